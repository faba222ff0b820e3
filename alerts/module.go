package alerts

import "go.uber.org/fx"

var Module = fx.Provide(
	NewRulesConfig,
	DefaultRules,
	NewEngine,
	NewRepository,
	NewCoordinator,
	NewPipeline,
)
