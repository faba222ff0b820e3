package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	alertsCollectionName = "alerts"

	upsertRaceAttempts = 2
	upsertRaceDelay    = 10 * time.Millisecond
)

var ErrNotOpen = errors.New("alert is not open")

type Repository interface {
	// Upsert ensures at most one OPEN alert exists for (patientId, ruleId):
	// when one exists its severity, inputs and updatedAt are replaced in
	// place, otherwise a new OPEN alert is inserted. The returned flag is
	// true when a new alert was created.
	Upsert(ctx context.Context, patientId string, rule Rule, trigger Trigger) (*Alert, bool, error)

	// SetLastNotified records a successful notification on the alert.
	SetLastNotified(ctx context.Context, id primitive.ObjectID, at time.Time) error

	// Acknowledge and Dismiss move an OPEN alert to its terminal state.
	// Both return ErrNotOpen when the alert is missing or already terminal.
	Acknowledge(ctx context.Context, id primitive.ObjectID, actor string) (*Alert, error)
	Dismiss(ctx context.Context, id primitive.ObjectID, actor string) (*Alert, error)

	ListOpenForPatient(ctx context.Context, patientId string) ([]Alert, error)

	DeleteAllForPatient(ctx context.Context, patientId string) error
}

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(alertsCollectionName),
		logger:     logger,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type repository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

func (r *repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// The partial unique index is what enforces the one-OPEN-alert
			// invariant: concurrent upserts that both miss the read race into
			// the insert, and the loser gets a duplicate key error.
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "ruleId", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "status", Value: StatusOpen},
				}).
				SetName("UniqueOpenAlert"),
		},
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().
				SetName("PatientStatus"),
		},
	})
	return err
}

func (r *repository) Upsert(ctx context.Context, patientId string, rule Rule, trigger Trigger) (*Alert, bool, error) {
	now := time.Now().UTC()
	selector := bson.M{
		"patientId": patientId,
		"ruleId":    rule.Id(),
		"status":    StatusOpen,
	}
	update := bson.M{
		"$set": bson.M{
			"ruleName":  rule.Name(),
			"severity":  trigger.Severity,
			"inputs":    trigger.Inputs,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"patientId":   patientId,
			"ruleId":      rule.Id(),
			"status":      StatusOpen,
			"triggeredAt": now,
		},
	}

	var created bool
	err := retry.Do(
		func() error {
			result, err := r.collection.UpdateOne(ctx, selector, update, options.Update().SetUpsert(true))
			if err != nil {
				return err
			}
			created = result.UpsertedCount > 0
			return nil
		},
		retry.Attempts(upsertRaceAttempts),
		retry.Delay(upsertRaceDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		// Losing the duplicate-key race means another trigger just created
		// the OPEN alert; the retry lands on the update arm.
		retry.RetryIf(mongo.IsDuplicateKeyError),
	)
	if err != nil {
		return nil, false, err
	}

	alert := &Alert{}
	if err := r.collection.FindOne(ctx, selector).Decode(alert); err != nil {
		return nil, false, err
	}
	return alert, created, nil
}

func (r *repository) SetLastNotified(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	update := bson.M{
		"$set": bson.M{"lastNotifiedAt": at},
	}
	_, err := r.collection.UpdateByID(ctx, id, update)
	return err
}

func (r *repository) Acknowledge(ctx context.Context, id primitive.ObjectID, actor string) (*Alert, error) {
	return r.resolve(ctx, id, actor, StatusAcknowledged)
}

func (r *repository) Dismiss(ctx context.Context, id primitive.ObjectID, actor string) (*Alert, error) {
	return r.resolve(ctx, id, actor, StatusDismissed)
}

func (r *repository) resolve(ctx context.Context, id primitive.ObjectID, actor string, status Status) (*Alert, error) {
	now := time.Now().UTC()
	selector := bson.M{
		"_id":    id,
		"status": StatusOpen,
	}
	update := bson.M{
		"$set": bson.M{
			"status":         status,
			"acknowledgedBy": actor,
			"acknowledgedAt": now,
			"updatedAt":      now,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	alert := &Alert{}
	err := r.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(alert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotOpen
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (r *repository) ListOpenForPatient(ctx context.Context, patientId string) ([]Alert, error) {
	selector := bson.M{
		"patientId": patientId,
		"status":    StatusOpen,
	}

	cursor, err := r.collection.Find(ctx, selector)
	if err != nil {
		return nil, err
	}

	var result []Alert
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *repository) DeleteAllForPatient(ctx context.Context, patientId string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"patientId": patientId})
	return err
}
