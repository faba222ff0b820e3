package alerts

import (
	"context"

	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/units"
)

// thresholdRule triggers off the single most recent measurement of its type:
// crossing the warning bound raises WARNING, crossing the more extreme
// critical bound escalates to CRITICAL.
type thresholdRule struct {
	spec thresholdRuleSpec
	repo measurements.Repository
}

type thresholdRuleSpec struct {
	id            string
	name          string
	measurement   units.Type
	comparison    string
	warningBound  float64
	criticalBound float64
}

func newThresholdRule(spec thresholdRuleSpec, repo measurements.Repository) *thresholdRule {
	return &thresholdRule{
		spec: spec,
		repo: repo,
	}
}

func (r *thresholdRule) Id() string {
	return r.spec.id
}

func (r *thresholdRule) Name() string {
	return r.spec.name
}

func (r *thresholdRule) Type() units.Type {
	return r.spec.measurement
}

func (r *thresholdRule) Evaluate(ctx context.Context, patientId string) (*Trigger, error) {
	latest, err := r.repo.Latest(ctx, patientId, r.spec.measurement)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	crossed, severity := classify(latest.Value, r.spec.comparison, r.spec.warningBound, r.spec.criticalBound)
	if !crossed {
		return nil, nil
	}

	return &Trigger{
		Severity: severity,
		Inputs: TriggerInputs{
			Kind: InputsKindThreshold,
			Threshold: &ThresholdInputs{
				Value:         latest.Value,
				Unit:          latest.Unit,
				Comparison:    r.spec.comparison,
				WarningBound:  r.spec.warningBound,
				CriticalBound: r.spec.criticalBound,
			},
		},
	}, nil
}

func classify(value float64, comparison string, warningBound, criticalBound float64) (bool, Severity) {
	switch comparison {
	case ComparisonAtOrAbove:
		if value >= criticalBound {
			return true, SeverityCritical
		}
		if value >= warningBound {
			return true, SeverityWarning
		}
	case ComparisonAtOrBelow:
		if value <= criticalBound {
			return true, SeverityCritical
		}
		if value <= warningBound {
			return true, SeverityWarning
		}
	}
	return false, ""
}
