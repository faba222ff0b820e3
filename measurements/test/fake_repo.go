package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/units"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FakeRepository is an in-memory measurements.Repository for tests.
type FakeRepository struct {
	mu     sync.Mutex
	stored []measurements.Measurement

	// CreateErr simulates a failed write transaction.
	CreateErr error
}

var _ measurements.Repository = &FakeRepository{}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{}
}

func (f *FakeRepository) Create(ctx context.Context, measurement *measurements.Measurement) (*measurements.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	measurement.Id = primitive.NewObjectID()
	measurement.CreatedAt = time.Now().UTC()
	f.stored = append(f.stored, *measurement)
	return measurement, nil
}

func (f *FakeRepository) FindByExternalId(ctx context.Context, source, externalId string) (*measurements.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.stored {
		m := f.stored[i]
		if m.Source == source && m.ExternalId != nil && *m.ExternalId == externalId {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *FakeRepository) FindManualNear(ctx context.Context, patientId string, t units.Type, at time.Time, window time.Duration) ([]measurements.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []measurements.Measurement
	for _, m := range f.stored {
		if m.PatientId != patientId || m.Type != t || m.Source != measurements.SourceManual {
			continue
		}
		if m.Time.Before(at.Add(-window)) || m.Time.After(at.Add(window)) {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (f *FakeRepository) ListRecent(ctx context.Context, patientId string, t units.Type, since time.Time) ([]measurements.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []measurements.Measurement
	for _, m := range f.stored {
		if m.PatientId == patientId && m.Type == t && !m.Time.Before(since) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})
	return result, nil
}

func (f *FakeRepository) Latest(ctx context.Context, patientId string, t units.Type) (*measurements.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var latest *measurements.Measurement
	for i := range f.stored {
		m := f.stored[i]
		if m.PatientId != patientId || m.Type != t {
			continue
		}
		if latest == nil || m.Time.After(latest.Time) {
			latest = &m
		}
	}
	return latest, nil
}

func (f *FakeRepository) DeleteAllForPatient(ctx context.Context, patientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var kept []measurements.Measurement
	for _, m := range f.stored {
		if m.PatientId != patientId {
			kept = append(kept, m)
		}
	}
	f.stored = kept
	return nil
}

// All returns a copy of everything stored so far.
func (f *FakeRepository) All() []measurements.Measurement {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]measurements.Measurement, len(f.stored))
	copy(result, f.stored)
	return result
}

// Seed inserts a measurement directly, bypassing the pipeline.
func (f *FakeRepository) Seed(measurement measurements.Measurement) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if measurement.Id.IsZero() {
		measurement.Id = primitive.NewObjectID()
	}
	f.stored = append(f.stored, measurement)
}

// RecordingEvaluator captures post-commit evaluation calls.
type RecordingEvaluator struct {
	mu    sync.Mutex
	calls []EvaluatorCall
}

type EvaluatorCall struct {
	PatientId string
	Type      units.Type
}

var _ measurements.Evaluator = &RecordingEvaluator{}

func NewRecordingEvaluator() *RecordingEvaluator {
	return &RecordingEvaluator{}
}

func (r *RecordingEvaluator) HandleMeasurement(ctx context.Context, patientId string, t units.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, EvaluatorCall{PatientId: patientId, Type: t})
}

func (r *RecordingEvaluator) Calls() []EvaluatorCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]EvaluatorCall, len(r.calls))
	copy(result, r.calls)
	return result
}
