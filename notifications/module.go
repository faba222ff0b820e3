package notifications

import "go.uber.org/fx"

var Module = fx.Provide(
	NewDispatcherConfig,
	NewLogsRepository,
	NewPreferencesRepository,
	NewRateLimiter,
	NewDispatcher,
)
