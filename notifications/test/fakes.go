package test

import (
	"context"
	"sync"
	"time"

	"github.com/nephrawn/monitor-worker/notifications"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FakeLogsRepository is an in-memory notifications.LogsRepository.
type FakeLogsRepository struct {
	mu   sync.Mutex
	logs []notifications.NotificationLog

	CreateErr error
}

var _ notifications.LogsRepository = &FakeLogsRepository{}

func NewFakeLogsRepository() *FakeLogsRepository {
	return &FakeLogsRepository{}
}

func (f *FakeLogsRepository) Create(ctx context.Context, log *notifications.NotificationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return f.CreateErr
	}

	log.Id = primitive.NewObjectID()
	f.logs = append(f.logs, *log)
	return nil
}

func (f *FakeLogsRepository) HasRecentSent(ctx context.Context, clinicianId, patientId string, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, log := range f.logs {
		if log.ClinicianId == clinicianId && log.PatientId == patientId &&
			log.Status == notifications.StatusSent && !log.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeLogsRepository) DeleteAllForPatient(ctx context.Context, patientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var kept []notifications.NotificationLog
	for _, log := range f.logs {
		if log.PatientId != patientId {
			kept = append(kept, log)
		}
	}
	f.logs = kept
	return nil
}

func (f *FakeLogsRepository) All() []notifications.NotificationLog {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]notifications.NotificationLog, len(f.logs))
	copy(result, f.logs)
	return result
}

// FakePreferencesRepository serves canned preferences, defaulting like the
// real repository when a clinician has none stored.
type FakePreferencesRepository struct {
	mu          sync.Mutex
	preferences map[string]*notifications.Preferences
}

var _ notifications.PreferencesRepository = &FakePreferencesRepository{}

func NewFakePreferencesRepository() *FakePreferencesRepository {
	return &FakePreferencesRepository{
		preferences: map[string]*notifications.Preferences{},
	}
}

func (f *FakePreferencesRepository) Set(preferences *notifications.Preferences) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preferences[preferences.ClinicianId] = preferences
}

func (f *FakePreferencesRepository) Get(ctx context.Context, clinicianId string) (*notifications.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if preferences, ok := f.preferences[clinicianId]; ok {
		result := *preferences
		return &result, nil
	}
	return notifications.DefaultPreferences(clinicianId), nil
}

// RecordingAlertUpdater captures SetLastNotified calls.
type RecordingAlertUpdater struct {
	mu    sync.Mutex
	calls map[primitive.ObjectID]time.Time

	Err error
}

var _ notifications.AlertUpdater = &RecordingAlertUpdater{}

func NewRecordingAlertUpdater() *RecordingAlertUpdater {
	return &RecordingAlertUpdater{
		calls: map[primitive.ObjectID]time.Time{},
	}
}

func (r *RecordingAlertUpdater) SetLastNotified(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.calls[id] = at
	return nil
}

func (r *RecordingAlertUpdater) LastNotified(id primitive.ObjectID) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, ok := r.calls[id]
	return at, ok
}
