package alerts

import (
	"context"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/units"
)

// Rule evaluates one clinical condition against a patient's recent history.
// Rules are pure with respect to their inputs and independent of each other.
type Rule interface {
	Id() string
	Name() string
	Type() units.Type
	Evaluate(ctx context.Context, patientId string) (*Trigger, error)
}

// RulesConfig carries the clinical thresholds. The defaults mirror the care
// team's standing protocol; they are configuration, not code.
type RulesConfig struct {
	WeightGainWindow     time.Duration `envconfig:"NEPHRAWN_ALERT_WEIGHT_GAIN_WINDOW" default:"48h"`
	WeightGainWarningKg  float64       `envconfig:"NEPHRAWN_ALERT_WEIGHT_GAIN_WARNING_KG" default:"1.36"`
	WeightGainCriticalKg float64       `envconfig:"NEPHRAWN_ALERT_WEIGHT_GAIN_CRITICAL_KG" default:"2.27"`

	SystolicHighWarning  float64 `envconfig:"NEPHRAWN_ALERT_SYSTOLIC_HIGH_WARNING" default:"160"`
	SystolicHighCritical float64 `envconfig:"NEPHRAWN_ALERT_SYSTOLIC_HIGH_CRITICAL" default:"180"`
	SystolicLowWarning   float64 `envconfig:"NEPHRAWN_ALERT_SYSTOLIC_LOW_WARNING" default:"90"`
	SystolicLowCritical  float64 `envconfig:"NEPHRAWN_ALERT_SYSTOLIC_LOW_CRITICAL" default:"80"`

	DiastolicHighWarning  float64 `envconfig:"NEPHRAWN_ALERT_DIASTOLIC_HIGH_WARNING" default:"100"`
	DiastolicHighCritical float64 `envconfig:"NEPHRAWN_ALERT_DIASTOLIC_HIGH_CRITICAL" default:"120"`

	SpO2LowWarning  float64 `envconfig:"NEPHRAWN_ALERT_SPO2_LOW_WARNING" default:"88"`
	SpO2LowCritical float64 `envconfig:"NEPHRAWN_ALERT_SPO2_LOW_CRITICAL" default:"85"`

	HeartRateHighWarning  float64 `envconfig:"NEPHRAWN_ALERT_HEART_RATE_HIGH_WARNING" default:"120"`
	HeartRateHighCritical float64 `envconfig:"NEPHRAWN_ALERT_HEART_RATE_HIGH_CRITICAL" default:"140"`
	HeartRateLowWarning   float64 `envconfig:"NEPHRAWN_ALERT_HEART_RATE_LOW_WARNING" default:"45"`
	HeartRateLowCritical  float64 `envconfig:"NEPHRAWN_ALERT_HEART_RATE_LOW_CRITICAL" default:"40"`
}

func NewRulesConfig() (RulesConfig, error) {
	cfg := RulesConfig{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// DefaultRules instantiates the full rule set against the measurement history.
func DefaultRules(cfg RulesConfig, repo measurements.Repository) []Rule {
	return []Rule{
		NewWeightGainRule(cfg, repo),
		newThresholdRule(thresholdRuleSpec{
			id:            "bp-systolic-high",
			name:          "High systolic blood pressure",
			measurement:   units.TypeBPSystolic,
			comparison:    ComparisonAtOrAbove,
			warningBound:  cfg.SystolicHighWarning,
			criticalBound: cfg.SystolicHighCritical,
		}, repo),
		newThresholdRule(thresholdRuleSpec{
			id:            "bp-systolic-low",
			name:          "Low systolic blood pressure",
			measurement:   units.TypeBPSystolic,
			comparison:    ComparisonAtOrBelow,
			warningBound:  cfg.SystolicLowWarning,
			criticalBound: cfg.SystolicLowCritical,
		}, repo),
		newThresholdRule(thresholdRuleSpec{
			id:            "bp-diastolic-high",
			name:          "High diastolic blood pressure",
			measurement:   units.TypeBPDiastolic,
			comparison:    ComparisonAtOrAbove,
			warningBound:  cfg.DiastolicHighWarning,
			criticalBound: cfg.DiastolicHighCritical,
		}, repo),
		newThresholdRule(thresholdRuleSpec{
			id:            "spo2-low",
			name:          "Low blood oxygen saturation",
			measurement:   units.TypeSpO2,
			comparison:    ComparisonAtOrBelow,
			warningBound:  cfg.SpO2LowWarning,
			criticalBound: cfg.SpO2LowCritical,
		}, repo),
		NewHeartRateRule(cfg, repo),
	}
}
