package alerts

import (
	"context"
	"time"

	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/units"
)

// WeightGainRule flags rapid fluid-retention weight gain: the delta between
// the oldest and newest weight inside a trailing window.
type WeightGainRule struct {
	config RulesConfig
	repo   measurements.Repository
}

func NewWeightGainRule(cfg RulesConfig, repo measurements.Repository) *WeightGainRule {
	return &WeightGainRule{
		config: cfg,
		repo:   repo,
	}
}

func (r *WeightGainRule) Id() string {
	return "weight-gain-48h"
}

func (r *WeightGainRule) Name() string {
	return "Rapid weight gain"
}

func (r *WeightGainRule) Type() units.Type {
	return units.TypeWeight
}

func (r *WeightGainRule) Evaluate(ctx context.Context, patientId string) (*Trigger, error) {
	since := time.Now().UTC().Add(-r.config.WeightGainWindow)
	history, err := r.repo.ListRecent(ctx, patientId, units.TypeWeight, since)
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, nil
	}

	// ListRecent returns oldest first.
	oldest := history[0]
	newest := history[len(history)-1]
	delta := newest.Value - oldest.Value
	if delta < r.config.WeightGainWarningKg {
		return nil, nil
	}

	severity := SeverityWarning
	if delta >= r.config.WeightGainCriticalKg {
		severity = SeverityCritical
	}

	points := make([]Point, len(history))
	for i, m := range history {
		points[i] = Point{Value: m.Value, Time: m.Time}
	}

	return &Trigger{
		Severity: severity,
		Inputs: TriggerInputs{
			Kind: InputsKindWindowDelta,
			WindowDelta: &WindowDeltaInputs{
				Points:            points,
				Delta:             delta,
				Unit:              newest.Unit,
				WarningThreshold:  r.config.WeightGainWarningKg,
				CriticalThreshold: r.config.WeightGainCriticalKg,
				WindowHours:       int(r.config.WeightGainWindow.Hours()),
			},
		},
	}, nil
}
