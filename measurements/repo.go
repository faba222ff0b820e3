package measurements

import (
	"context"
	"errors"
	"time"

	"github.com/nephrawn/monitor-worker/store"
	"github.com/nephrawn/monitor-worker/units"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	measurementsCollectionName = "measurements"
	interactionsCollectionName = "interactions"
)

type Repository interface {
	// Create persists the measurement and its interaction audit record in a
	// single transaction. Either both rows exist afterwards or neither does.
	Create(ctx context.Context, measurement *Measurement) (*Measurement, error)

	// FindByExternalId returns the stored measurement with the given vendor
	// identity, or nil when no such measurement exists.
	FindByExternalId(ctx context.Context, source, externalId string) (*Measurement, error)

	// FindManualNear returns manual measurements of the type for the patient
	// whose effective time falls within the window around at.
	FindManualNear(ctx context.Context, patientId string, t units.Type, at time.Time, window time.Duration) ([]Measurement, error)

	// ListRecent returns measurements of the type for the patient with
	// effective time at or after since, ordered oldest first.
	ListRecent(ctx context.Context, patientId string, t units.Type, since time.Time) ([]Measurement, error)

	// Latest returns the most recent measurement of the type for the patient,
	// or nil when the patient has none.
	Latest(ctx context.Context, patientId string, t units.Type) (*Measurement, error)

	// DeleteAllForPatient removes the patient's measurements and interactions.
	DeleteAllForPatient(ctx context.Context, patientId string) error
}

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		measurements: db.Collection(measurementsCollectionName),
		interactions: db.Collection(interactionsCollectionName),
		logger:       logger,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type repository struct {
	measurements *mongo.Collection
	interactions *mongo.Collection
	logger       *zap.SugaredLogger
}

func (r *repository) Initialize(ctx context.Context) error {
	_, err := r.measurements.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "source", Value: 1},
				{Key: "externalId", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "externalId", Value: bson.D{{Key: "$exists", Value: true}}},
				}).
				SetName("UniqueVendorReading"),
		},
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "type", Value: 1},
				{Key: "time", Value: -1},
			},
			Options: options.Index().
				SetName("PatientTypeTime"),
		},
	})
	return err
}

func (r *repository) Create(ctx context.Context, measurement *Measurement) (*Measurement, error) {
	measurement.Id = primitive.NewObjectID()
	measurement.CreatedAt = time.Now().UTC()

	interaction := &Interaction{
		Id:            primitive.NewObjectID(),
		PatientId:     measurement.PatientId,
		MeasurementId: measurement.Id,
		Kind:          InteractionKindMeasurement,
		Source:        measurement.Source,
		Time:          measurement.CreatedAt,
	}

	_, err := store.WithTransaction(ctx, r.measurements.Database().Client(), func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := r.measurements.InsertOne(sessCtx, measurement); err != nil {
			return nil, err
		}
		if _, err := r.interactions.InsertOne(sessCtx, interaction); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	return measurement, nil
}

func (r *repository) FindByExternalId(ctx context.Context, source, externalId string) (*Measurement, error) {
	selector := bson.M{
		"source":     source,
		"externalId": externalId,
	}

	measurement := &Measurement{}
	err := r.measurements.FindOne(ctx, selector).Decode(measurement)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return measurement, nil
}

func (r *repository) FindManualNear(ctx context.Context, patientId string, t units.Type, at time.Time, window time.Duration) ([]Measurement, error) {
	selector := bson.M{
		"patientId": patientId,
		"type":      t,
		"source":    SourceManual,
		"time": bson.M{
			"$gte": at.Add(-window),
			"$lte": at.Add(window),
		},
	}

	cursor, err := r.measurements.Find(ctx, selector)
	if err != nil {
		return nil, err
	}

	var result []Measurement
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *repository) ListRecent(ctx context.Context, patientId string, t units.Type, since time.Time) ([]Measurement, error) {
	selector := bson.M{
		"patientId": patientId,
		"type":      t,
		"time":      bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})

	cursor, err := r.measurements.Find(ctx, selector, opts)
	if err != nil {
		return nil, err
	}

	var result []Measurement
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *repository) Latest(ctx context.Context, patientId string, t units.Type) (*Measurement, error) {
	selector := bson.M{
		"patientId": patientId,
		"type":      t,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "time", Value: -1}})

	measurement := &Measurement{}
	err := r.measurements.FindOne(ctx, selector, opts).Decode(measurement)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return measurement, nil
}

func (r *repository) DeleteAllForPatient(ctx context.Context, patientId string) error {
	selector := bson.M{"patientId": patientId}
	if _, err := r.measurements.DeleteMany(ctx, selector); err != nil {
		return err
	}
	_, err := r.interactions.DeleteMany(ctx, selector)
	return err
}
