package test

import (
	"context"
	"sync"

	"github.com/nephrawn/monitor-worker/enrollments"
)

// FakeRepository is an in-memory enrollments.Repository.
type FakeRepository struct {
	mu         sync.Mutex
	byPatient  map[string]*enrollments.Enrollment
	FindErrors map[string]error
}

var _ enrollments.Repository = &FakeRepository{}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		byPatient:  map[string]*enrollments.Enrollment{},
		FindErrors: map[string]error{},
	}
}

func (f *FakeRepository) SetPrimary(enrollment *enrollments.Enrollment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byPatient[enrollment.PatientId] = enrollment
}

func (f *FakeRepository) FindPrimary(ctx context.Context, patientId string) (*enrollments.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.FindErrors[patientId]; ok {
		return nil, err
	}
	if enrollment, ok := f.byPatient[patientId]; ok {
		result := *enrollment
		return &result, nil
	}
	return nil, nil
}

func (f *FakeRepository) DeleteAllForPatient(ctx context.Context, patientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byPatient, patientId)
	return nil
}
