package alerts

import (
	"context"

	"github.com/nephrawn/monitor-worker/units"
	"go.uber.org/zap"
)

// Pipeline is the post-ingestion entry point: evaluate matching rules, apply
// each fired trigger in its own transaction. It implements
// measurements.Evaluator. A failed upsert for one rule is logged and does
// not stop sibling triggers.
type Pipeline struct {
	engine      *Engine
	coordinator *Coordinator
	logger      *zap.SugaredLogger
}

func NewPipeline(engine *Engine, coordinator *Coordinator, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		engine:      engine,
		coordinator: coordinator,
		logger:      logger,
	}
}

func (p *Pipeline) HandleMeasurement(ctx context.Context, patientId string, t units.Type) {
	for _, fired := range p.engine.Evaluate(ctx, patientId, t) {
		if _, _, err := p.coordinator.ApplyTrigger(ctx, patientId, fired.Rule, fired.Trigger); err != nil {
			p.logger.Errorw("failed to apply alert trigger",
				"patientId", patientId,
				"ruleId", fired.Rule.Id(),
				zap.Error(err),
			)
		}
	}
}
