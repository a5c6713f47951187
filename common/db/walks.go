package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

var _ models.WalkRequestRepository = &WalkRequestDatabase{}

// WalkRequestDatabase stores walk requests in PostgreSQL. Every conditional update is a single UPDATE whose WHERE
// clause is the precondition; row locking makes the check and the write atomic against concurrent writers.
type WalkRequestDatabase struct {
	pool   *pgxpool.Pool
	logger models.Logger
	now    func() time.Time
}

func NewWalkRequestDb(pool *pgxpool.Pool, logger models.Logger) *WalkRequestDatabase {
	return &WalkRequestDatabase{pool, logger, time.Now}
}

func (wdb *WalkRequestDatabase) CreateWalkRequest(ctx context.Context, create *models.WalkRequestCreate) (string, error) {
	walkRequest := models.NewWalkRequest(uuid.New().String(), create, wdb.now())
	dogs, err := json.Marshal(walkRequest.Dogs)
	if err != nil {
		return "", err
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	if _, err = wdb.pool.Exec(
		dbCtx,
		"INSERT INTO walk_request ("+walkRequestColumns+") VALUES "+
			"($1, $2::jsonb, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)",
		walkRequest.Id,
		string(dogs),
		walkRequest.DogIds,
		walkRequest.ShouldStartAfter,
		walkRequest.ShouldStartBefore,
		walkRequest.ShouldEndAfter,
		walkRequest.ShouldEndBefore,
		walkRequest.Longitude,
		walkRequest.Latitude,
		walkRequest.CreatedBy,
		walkRequest.CreatedAt,
		walkRequest.UpdatedAt,
		walkRequest.AcceptedBy,
		walkRequest.AcceptedAt,
		walkRequest.Acceptances,
		walkRequest.CanceledAt,
		walkRequest.StartedAt,
		walkRequest.FinishedAt,
	); err != nil {
		wdb.logger.Errorf("walks: error inserting walk request: %v", err)
		return "", models.NewBackendError("create walk request", err)
	}
	return walkRequest.Id, nil
}

func (wdb *WalkRequestDatabase) GetWalkRequest(ctx context.Context, id string) (*models.WalkRequest, error) {
	walkRequests, err := wdb.QueryWalkRequests(ctx, models.WalkRequestQuery{Id: &id}, nil, nil)
	if err != nil {
		return nil, err
	} else if len(walkRequests) == 0 {
		return nil, models.ErrNotFound
	}
	return walkRequests[0], nil
}

func (wdb *WalkRequestDatabase) UpdateWalkRequest(ctx context.Context, query models.WalkRequestQuery, update models.WalkRequestUpdate) (*models.WalkRequest, error) {
	builder := sqlBuilder{}
	set := builder.set(update, wdb.now())
	where := builder.where(query)
	sql := "UPDATE walk_request SET " + set + " WHERE " + where
	if query.Id == nil {
		// Pin a single row; the outer predicate is re-checked against the locked row.
		sql = "UPDATE walk_request SET " + set +
			" WHERE id IN (SELECT id FROM walk_request WHERE " + where + " LIMIT 1 FOR UPDATE) AND " + where
	}
	sql += " RETURNING " + walkRequestColumns + ", NULL::float8"

	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	rows, err := wdb.pool.Query(dbCtx, sql, builder.args...)
	if err != nil {
		wdb.logger.Errorf("walks: error updating walk request: %v", err)
		return nil, models.NewBackendError("update walk request", err)
	}
	walkRequests, err := scanWalkRequests(rows)
	if err != nil {
		return nil, models.NewBackendError("update walk request", err)
	} else if len(walkRequests) == 0 {
		return nil, models.ErrNotFound
	}
	return walkRequests[0], nil
}

// UpdateWalkRequests returns the number of matched rows. Every matched row is written, including rows the update
// leaves unchanged, so this is the matched count rather than the modified count.
func (wdb *WalkRequestDatabase) UpdateWalkRequests(ctx context.Context, query models.WalkRequestQuery, update models.WalkRequestUpdate) (int64, error) {
	builder := sqlBuilder{}
	sql := "UPDATE walk_request SET " + builder.set(update, wdb.now()) + " WHERE " + builder.where(query)

	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	tag, err := wdb.pool.Exec(dbCtx, sql, builder.args...)
	if err != nil {
		wdb.logger.Errorf("walks: error updating walk requests: %v", err)
		return 0, models.NewBackendError("update walk requests", err)
	}
	return tag.RowsAffected(), nil
}

func (wdb *WalkRequestDatabase) QueryWalkRequests(ctx context.Context, query models.WalkRequestQuery, sortBy *models.SortBy, page *models.Pagination) ([]*models.WalkRequest, error) {
	builder := sqlBuilder{}
	sql := builder.selectWalkRequests(query, sortBy, page)

	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	rows, err := wdb.pool.Query(dbCtx, sql, builder.args...)
	if err != nil {
		wdb.logger.Errorf("walks: error querying walk requests: %v", err)
		return nil, models.NewBackendError("query walk requests", err)
	}
	walkRequests, err := scanWalkRequests(rows)
	if err != nil {
		return nil, models.NewBackendError("query walk requests", err)
	}
	return walkRequests, nil
}

func scanWalkRequests(rows pgx.Rows) ([]*models.WalkRequest, error) {
	defer rows.Close()

	walkRequests := make([]*models.WalkRequest, 0)
	for rows.Next() {
		walkRequest := new(models.WalkRequest)
		var dogs []byte
		if err := rows.Scan(
			&walkRequest.Id,
			&dogs,
			&walkRequest.DogIds,
			&walkRequest.ShouldStartAfter,
			&walkRequest.ShouldStartBefore,
			&walkRequest.ShouldEndAfter,
			&walkRequest.ShouldEndBefore,
			&walkRequest.Longitude,
			&walkRequest.Latitude,
			&walkRequest.CreatedBy,
			&walkRequest.CreatedAt,
			&walkRequest.UpdatedAt,
			&walkRequest.AcceptedBy,
			&walkRequest.AcceptedAt,
			&walkRequest.Acceptances,
			&walkRequest.CanceledAt,
			&walkRequest.StartedAt,
			&walkRequest.FinishedAt,
			&walkRequest.Distance,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(dogs, &walkRequest.Dogs); err != nil {
			return nil, err
		}
		if walkRequest.Acceptances == nil {
			walkRequest.Acceptances = []string{}
		}
		walkRequests = append(walkRequests, walkRequest)
	}
	return walkRequests, rows.Err()
}
