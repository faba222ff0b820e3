package store

import (
	"context"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
)

var Module = fx.Provide(
	NewConfig,
	NewClient,
	NewDatabase,
)

type Config struct {
	Uri            string        `envconfig:"NEPHRAWN_MONGO_URI" default:"mongodb://localhost:27017"`
	Database       string        `envconfig:"NEPHRAWN_MONGO_DATABASE" default:"monitor"`
	ConnectTimeout time.Duration `envconfig:"NEPHRAWN_MONGO_CONNECT_TIMEOUT" default:"20s"`
}

func NewConfig() (Config, error) {
	cfg := Config{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}

func NewClient(config Config, lifecycle fx.Lifecycle) (*mongo.Client, error) {
	client, err := mongo.NewClient(options.Client().ApplyURI(config.Uri))
	if err != nil {
		return nil, err
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
			defer cancel()
			if err := client.Connect(connectCtx); err != nil {
				return err
			}
			return client.Ping(connectCtx, readpref.Primary())
		},
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client, nil
}

func NewDatabase(client *mongo.Client, config Config) *mongo.Database {
	return client.Database(config.Database)
}

// WithTransaction runs fn in a single multi-document transaction. The
// callback may be invoked more than once on transient transaction errors.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(sessCtx mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	session, err := client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	return session.WithTransaction(ctx, fn)
}
