package test

import (
	"context"
	"sync"
	"time"

	"github.com/nephrawn/monitor-worker/alerts"
	"github.com/nephrawn/monitor-worker/units"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FakeRepository is an in-memory alerts.Repository. Upsert holds a single
// lock across the read-and-write so it honors the same at-most-one-OPEN
// guarantee the partial unique index provides in mongo.
type FakeRepository struct {
	mu     sync.Mutex
	alerts []alerts.Alert

	UpsertErr error
}

var _ alerts.Repository = &FakeRepository{}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{}
}

func (f *FakeRepository) Upsert(ctx context.Context, patientId string, rule alerts.Rule, trigger alerts.Trigger) (*alerts.Alert, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.UpsertErr != nil {
		return nil, false, f.UpsertErr
	}

	now := time.Now().UTC()
	for i := range f.alerts {
		existing := &f.alerts[i]
		if existing.PatientId == patientId && existing.RuleId == rule.Id() && existing.Status == alerts.StatusOpen {
			existing.Severity = trigger.Severity
			existing.Inputs = trigger.Inputs
			existing.UpdatedAt = now
			result := *existing
			return &result, false, nil
		}
	}

	created := alerts.Alert{
		Id:          primitive.NewObjectID(),
		PatientId:   patientId,
		RuleId:      rule.Id(),
		RuleName:    rule.Name(),
		Severity:    trigger.Severity,
		Status:      alerts.StatusOpen,
		Inputs:      trigger.Inputs,
		TriggeredAt: now,
		UpdatedAt:   now,
	}
	f.alerts = append(f.alerts, created)
	return &created, true, nil
}

func (f *FakeRepository) SetLastNotified(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.alerts {
		if f.alerts[i].Id == id {
			f.alerts[i].LastNotifiedAt = &at
			return nil
		}
	}
	return nil
}

func (f *FakeRepository) Acknowledge(ctx context.Context, id primitive.ObjectID, actor string) (*alerts.Alert, error) {
	return f.resolve(id, actor, alerts.StatusAcknowledged)
}

func (f *FakeRepository) Dismiss(ctx context.Context, id primitive.ObjectID, actor string) (*alerts.Alert, error) {
	return f.resolve(id, actor, alerts.StatusDismissed)
}

func (f *FakeRepository) resolve(id primitive.ObjectID, actor string, status alerts.Status) (*alerts.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	for i := range f.alerts {
		existing := &f.alerts[i]
		if existing.Id == id && existing.Status == alerts.StatusOpen {
			existing.Status = status
			existing.AcknowledgedBy = &actor
			existing.AcknowledgedAt = &now
			existing.UpdatedAt = now
			result := *existing
			return &result, nil
		}
	}
	return nil, alerts.ErrNotOpen
}

func (f *FakeRepository) ListOpenForPatient(ctx context.Context, patientId string) ([]alerts.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []alerts.Alert
	for _, a := range f.alerts {
		if a.PatientId == patientId && a.Status == alerts.StatusOpen {
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *FakeRepository) DeleteAllForPatient(ctx context.Context, patientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var kept []alerts.Alert
	for _, a := range f.alerts {
		if a.PatientId != patientId {
			kept = append(kept, a)
		}
	}
	f.alerts = kept
	return nil
}

// All returns a copy of every stored alert.
func (f *FakeRepository) All() []alerts.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]alerts.Alert, len(f.alerts))
	copy(result, f.alerts)
	return result
}

// RecordingNotifier captures alert creation notifications.
type RecordingNotifier struct {
	mu      sync.Mutex
	created []alerts.Alert
}

var _ alerts.Notifier = &RecordingNotifier{}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (r *RecordingNotifier) NotifyAlertCreated(ctx context.Context, alert *alerts.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, *alert)
}

func (r *RecordingNotifier) Created() []alerts.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]alerts.Alert, len(r.created))
	copy(result, r.created)
	return result
}

// StaticRule is a rule with canned behavior for engine and coordinator tests.
type StaticRule struct {
	RuleId          string
	RuleName        string
	MeasurementType units.Type
	Trigger         *alerts.Trigger
	Err             error
}

var _ alerts.Rule = &StaticRule{}

func (r *StaticRule) Id() string {
	return r.RuleId
}

func (r *StaticRule) Name() string {
	return r.RuleName
}

func (r *StaticRule) Type() units.Type {
	return r.MeasurementType
}

func (r *StaticRule) Evaluate(ctx context.Context, patientId string) (*alerts.Trigger, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Trigger, nil
}
