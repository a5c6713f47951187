package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/littlewalk/go-walk"
	"github.com/littlewalk/go-walk/common/aws/config"
	"github.com/littlewalk/go-walk/common/aws/ddb"
	"github.com/littlewalk/go-walk/common/db"
	"github.com/littlewalk/go-walk/common/memstore"
	"github.com/littlewalk/go-walk/models"
)

// Backend bundles the repositories of one store.
type Backend struct {
	Store        string
	WalkRequests models.WalkRequestRepository
	Locations    models.WalkingLocationRepository
	Breeds       models.BreedRepository
	Dogs         models.DogRepository
	closer       func()
}

func (b *Backend) Close() {
	if b.closer != nil {
		b.closer()
	}
}

// StoreFromEnv returns the configured store, defaulting to the in-memory one.
func StoreFromEnv() string {
	if store, found := os.LookupEnv(walk.Env_WalkStore); found && len(store) > 0 {
		return store
	}
	return walk.WalkStore_Memory
}

// New connects to the configured store. DynamoDB tables are created on connection if missing; the PostgreSQL schema
// is only created when createSchema is set.
func New(ctx context.Context, logger models.Logger, awsCfg *aws.Config, metricService models.MetricService, createSchema bool) (*Backend, error) {
	store := StoreFromEnv()
	switch store {
	case walk.WalkStore_Memory:
		catalog := memstore.NewCatalogStore()
		return &Backend{
			Store:        store,
			WalkRequests: memstore.NewWalkRequestStore(),
			Locations:    memstore.NewWalkingLocationStore(),
			Breeds:       catalog,
			Dogs:         catalog,
		}, nil
	case walk.WalkStore_Postgres:
		pool, err := db.Connect(ctx, db.DbOptsFromEnv())
		if err != nil {
			return nil, err
		}
		if createSchema {
			if err = db.CreateSchema(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		catalog := db.NewCatalogDb(pool)
		return &Backend{
			Store:        store,
			WalkRequests: db.NewWalkRequestDb(pool, logger),
			Locations:    db.NewWalkingLocationDb(pool),
			Breeds:       catalog,
			Dogs:         catalog,
			closer:       pool.Close,
		}, nil
	case walk.WalkStore_DynamoDb:
		if awsCfg == nil {
			return nil, fmt.Errorf("backend: %s store needs an aws config", store)
		}
		// Use override endpoint, if specified, for the walk tables so that they can live in a local DynamoDB while
		// other clients keep hitting the regular AWS endpoints.
		dbAwsCfg, err := config.DynamoDbConfig(ctx, *awsCfg)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(dbAwsCfg)
		catalog := ddb.NewCatalogDb(ctx, logger, client)
		return &Backend{
			Store:        store,
			WalkRequests: ddb.NewWalkRequestDb(ctx, logger, client),
			Locations:    ddb.NewWalkingLocationDb(ctx, logger, client, metricService),
			Breeds:       catalog,
			Dogs:         catalog,
		}, nil
	default:
		return nil, fmt.Errorf("backend: unknown store %q", store)
	}
}
