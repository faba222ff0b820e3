package alerts

import (
	"context"

	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/units"
)

// HeartRateRule is two-sided: both tachycardia and bradycardia surface as one
// condition so the care team sees a single open alert when the rate swings.
type HeartRateRule struct {
	config RulesConfig
	repo   measurements.Repository
}

func NewHeartRateRule(cfg RulesConfig, repo measurements.Repository) *HeartRateRule {
	return &HeartRateRule{
		config: cfg,
		repo:   repo,
	}
}

func (r *HeartRateRule) Id() string {
	return "heart-rate-abnormal"
}

func (r *HeartRateRule) Name() string {
	return "Abnormal heart rate"
}

func (r *HeartRateRule) Type() units.Type {
	return units.TypeHeartRate
}

func (r *HeartRateRule) Evaluate(ctx context.Context, patientId string) (*Trigger, error) {
	latest, err := r.repo.Latest(ctx, patientId, units.TypeHeartRate)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	crossed, severity := classify(latest.Value, ComparisonAtOrAbove, r.config.HeartRateHighWarning, r.config.HeartRateHighCritical)
	comparison := ComparisonAtOrAbove
	warningBound := r.config.HeartRateHighWarning
	criticalBound := r.config.HeartRateHighCritical
	if !crossed {
		crossed, severity = classify(latest.Value, ComparisonAtOrBelow, r.config.HeartRateLowWarning, r.config.HeartRateLowCritical)
		comparison = ComparisonAtOrBelow
		warningBound = r.config.HeartRateLowWarning
		criticalBound = r.config.HeartRateLowCritical
	}
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
				Comparison:    comparison,
				WarningBound:  warningBound,
				CriticalBound: criticalBound,
			},
		},
	}, nil
}
