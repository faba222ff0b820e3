package measurements

import "go.uber.org/fx"

var Module = fx.Provide(
	NewRepository,
	NewDeduplicator,
	NewIngestor,
)
