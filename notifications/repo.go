package notifications

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	logsCollectionName        = "notificationLogs"
	preferencesCollectionName = "notificationPreferences"
)

type LogsRepository interface {
	Create(ctx context.Context, log *NotificationLog) error

	// HasRecentSent reports whether a SENT notification from this clinician's
	// inbox about this patient exists at or after since.
	HasRecentSent(ctx context.Context, clinicianId, patientId string, since time.Time) (bool, error)

	DeleteAllForPatient(ctx context.Context, patientId string) error
}

type PreferencesRepository interface {
	// Get returns the clinician's stored preferences, or the defaults when
	// the clinician has never saved any.
	Get(ctx context.Context, clinicianId string) (*Preferences, error)
}

func NewLogsRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (LogsRepository, error) {
	repo := &logsRepository{
		collection: db.Collection(logsCollectionName),
		logger:     logger,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type logsRepository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

func (r *logsRepository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "clinicianId", Value: 1},
				{Key: "patientId", Value: 1},
				{Key: "status", Value: 1},
				{Key: "sentAt", Value: -1},
			},
			Options: options.Index().
				SetName("ClinicianPatientStatusSentAt"),
		},
	})
	return err
}

func (r *logsRepository) Create(ctx context.Context, log *NotificationLog) error {
	log.Id = primitive.NewObjectID()
	_, err := r.collection.InsertOne(ctx, log)
	return err
}

func (r *logsRepository) HasRecentSent(ctx context.Context, clinicianId, patientId string, since time.Time) (bool, error) {
	selector := bson.M{
		"clinicianId": clinicianId,
		"patientId":   patientId,
		"status":      StatusSent,
		"sentAt":      bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, selector, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *logsRepository) DeleteAllForPatient(ctx context.Context, patientId string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"patientId": patientId})
	return err
}

func NewPreferencesRepository(db *mongo.Database, logger *zap.SugaredLogger) (PreferencesRepository, error) {
	return &preferencesRepository{
		collection: db.Collection(preferencesCollectionName),
		logger:     logger,
	}, nil
}

type preferencesRepository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

func (r *preferencesRepository) Get(ctx context.Context, clinicianId string) (*Preferences, error) {
	selector := bson.M{"clinicianId": clinicianId}

	preferences := &Preferences{}
	err := r.collection.FindOne(ctx, selector).Decode(preferences)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DefaultPreferences(clinicianId), nil
	}
	if err != nil {
		return nil, err
	}
	return preferences, nil
}
