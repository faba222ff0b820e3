package enrollments

import (
	"context"
	"errors"

	"github.com/deepmap/oapi-codegen/pkg/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const enrollmentsCollectionName = "enrollments"

var Module = fx.Provide(NewRepository)

// Enrollment links a patient to a clinician. The primary active enrollment
// routes clinical notifications.
type Enrollment struct {
	Id             primitive.ObjectID `bson:"_id,omitempty"`
	PatientId      string             `bson:"patientId"`
	ClinicianId    string             `bson:"clinicianId"`
	ClinicianName  string             `bson:"clinicianName"`
	ClinicianEmail types.Email        `bson:"clinicianEmail"`
	Primary        bool               `bson:"primary"`
	Active         bool               `bson:"active"`
}

type Repository interface {
	// FindPrimary returns the patient's primary active enrollment, or nil
	// when the patient has none.
	FindPrimary(ctx context.Context, patientId string) (*Enrollment, error)

	DeleteAllForPatient(ctx context.Context, patientId string) error
}

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(enrollmentsCollectionName),
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
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "primary", Value: 1},
				{Key: "active", Value: 1},
			},
			Options: options.Index().
				SetName("PatientPrimaryActive"),
		},
	})
	return err
}

func (r *repository) FindPrimary(ctx context.Context, patientId string) (*Enrollment, error) {
	selector := bson.M{
		"patientId": patientId,
		"primary":   true,
		"active":    true,
	}

	enrollment := &Enrollment{}
	err := r.collection.FindOne(ctx, selector).Decode(enrollment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (r *repository) DeleteAllForPatient(ctx context.Context, patientId string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"patientId": patientId})
	return err
}
