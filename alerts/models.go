package alerts

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities for preference checks and escalation comparisons.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	}
	return -1
}

type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusDismissed    Status = "DISMISSED"
)

// Alert is an unresolved (or resolved) clinical condition for a patient.
// At most one OPEN alert exists per (patientId, ruleId); while OPEN,
// re-triggers update severity and inputs in place.
type Alert struct {
	Id             primitive.ObjectID `bson:"_id,omitempty"`
	PatientId      string             `bson:"patientId"`
	RuleId         string             `bson:"ruleId"`
	RuleName       string             `bson:"ruleName"`
	Severity       Severity           `bson:"severity"`
	Status         Status             `bson:"status"`
	Inputs         TriggerInputs      `bson:"inputs"`
	TriggeredAt    time.Time          `bson:"triggeredAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
	LastNotifiedAt *time.Time         `bson:"lastNotifiedAt,omitempty"`
	AcknowledgedBy *string            `bson:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time         `bson:"acknowledgedAt,omitempty"`
}

const (
	InputsKindWindowDelta = "windowDelta"
	InputsKindThreshold   = "threshold"
)

// TriggerInputs is a tagged union of the structured explanation payloads the
// rules produce. Exactly one of the variant fields is set, selected by Kind.
type TriggerInputs struct {
	Kind        string             `bson:"kind"`
	WindowDelta *WindowDeltaInputs `bson:"windowDelta,omitempty"`
	Threshold   *ThresholdInputs   `bson:"threshold,omitempty"`
}

// WindowDeltaInputs explains a trailing-window delta trigger: every point the
// rule saw, the computed delta and the thresholds it was compared against.
type WindowDeltaInputs struct {
	Points            []Point `bson:"points"`
	Delta             float64 `bson:"delta"`
	Unit              string  `bson:"unit"`
	WarningThreshold  float64 `bson:"warningThreshold"`
	CriticalThreshold float64 `bson:"criticalThreshold"`
	WindowHours       int     `bson:"windowHours"`
}

type Point struct {
	Value float64   `bson:"value"`
	Time  time.Time `bson:"time"`
}

const (
	ComparisonAtOrAbove = "atOrAbove"
	ComparisonAtOrBelow = "atOrBelow"
)

// ThresholdInputs explains a latest-value trigger: the observed value and the
// bound it crossed.
type ThresholdInputs struct {
	Value         float64 `bson:"value"`
	Unit          string  `bson:"unit"`
	Comparison    string  `bson:"comparison"`
	WarningBound  float64 `bson:"warningBound"`
	CriticalBound float64 `bson:"criticalBound"`
}

// Trigger is a rule's decision that its condition currently holds.
type Trigger struct {
	Severity Severity
	Inputs   TriggerInputs
}
