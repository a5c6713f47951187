package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

var _ models.WalkingLocationRepository = &WalkingLocationDatabase{}

type WalkingLocationDatabase struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewWalkingLocationDb(pool *pgxpool.Pool) *WalkingLocationDatabase {
	return &WalkingLocationDatabase{pool, time.Now}
}

func (ldb *WalkingLocationDatabase) CreateWalkingLocation(ctx context.Context, create *models.WalkingLocationCreate) (*models.WalkingLocation, error) {
	location := &models.WalkingLocation{
		Id:            uuid.New().String(),
		WalkRequestId: create.WalkRequestId,
		Longitude:     create.Longitude,
		Latitude:      create.Latitude,
		CreatedAt:     ldb.now().UTC(),
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	if _, err := ldb.pool.Exec(
		dbCtx,
		"INSERT INTO walking_location (id, walk_request_id, longitude, latitude, created_at) VALUES ($1, $2, $3, $4, $5)",
		location.Id,
		location.WalkRequestId,
		location.Longitude,
		location.Latitude,
		location.CreatedAt,
	); err != nil {
		return nil, models.NewBackendError("create walking location", err)
	}
	return location, nil
}

func (ldb *WalkingLocationDatabase) QueryWalkingLocations(ctx context.Context, walkRequestId string) ([]*models.WalkingLocation, error) {
	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	rows, err := ldb.pool.Query(
		dbCtx,
		"SELECT id, walk_request_id, longitude, latitude, created_at FROM walking_location WHERE walk_request_id = $1 ORDER BY created_at, id",
		walkRequestId,
	)
	if err != nil {
		return nil, models.NewBackendError("query walking locations", err)
	}
	defer rows.Close()

	locations := make([]*models.WalkingLocation, 0)
	for rows.Next() {
		location := new(models.WalkingLocation)
		if err = rows.Scan(&location.Id, &location.WalkRequestId, &location.Longitude, &location.Latitude, &location.CreatedAt); err != nil {
			return nil, models.NewBackendError("query walking locations", err)
		}
		locations = append(locations, location)
	}
	if err = rows.Err(); err != nil {
		return nil, models.NewBackendError("query walking locations", err)
	}
	return locations, nil
}
