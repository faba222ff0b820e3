package alerts

import (
	"context"
	"sync"

	"github.com/nephrawn/monitor-worker/units"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const evaluationParallelism = 4

// Engine runs every rule whose measurement type matches the just-ingested
// type. Rules evaluate in parallel and never see each other's failures: a
// rule error is logged and dropped so siblings and the ingestion that
// triggered evaluation are unaffected.
type Engine struct {
	rules  []Rule
	logger *zap.SugaredLogger
}

func NewEngine(rules []Rule, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		rules:  rules,
		logger: logger,
	}
}

// RuleTrigger pairs a fired trigger with the rule that produced it.
type RuleTrigger struct {
	Rule    Rule
	Trigger Trigger
}

func (e *Engine) Evaluate(ctx context.Context, patientId string, t units.Type) []RuleTrigger {
	var mu sync.Mutex
	var fired []RuleTrigger

	group := errgroup.Group{}
	group.SetLimit(evaluationParallelism)

	for _, rule := range e.rules {
		if rule.Type() != t {
			continue
		}
		rule := rule
		group.Go(func() error {
			trigger, err := rule.Evaluate(ctx, patientId)
			if err != nil {
				e.logger.Errorw("alert rule evaluation failed",
					"patientId", patientId,
					"ruleId", rule.Id(),
					zap.Error(err),
				)
				return nil
			}
			if trigger != nil {
				mu.Lock()
				fired = append(fired, RuleTrigger{Rule: rule, Trigger: *trigger})
				mu.Unlock()
			}
			return nil
		})
	}

	// Rule errors are swallowed above; Wait only flushes the group.
	_ = group.Wait()

	return fired
}
