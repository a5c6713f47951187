package db

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/littlewalk/go-walk/common"
)

type DbOpts struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func DbOptsFromEnv() DbOpts {
	return DbOpts{
		Host:     os.Getenv(common.Env_DbHost),
		Port:     os.Getenv(common.Env_DbPort),
		User:     os.Getenv(common.Env_DbUsername),
		Password: os.Getenv(common.Env_DbPassword),
		Name:     os.Getenv(common.Env_DbName),
	}
}

func (o DbOpts) connUrl() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", o.User, o.Password, o.Host, o.Port, o.Name)
}

// Connect opens a connection pool and checks that the database answers.
func Connect(ctx context.Context, opts DbOpts) (*pgxpool.Pool, error) {
	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	pool, err := pgxpool.New(dbCtx, opts.connUrl())
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err = pool.Ping(dbCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS breed (
	id       TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	name     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dog (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	gender      TEXT NOT NULL,
	breed       JSONB NOT NULL,
	birthday    TIMESTAMPTZ NOT NULL,
	owner_id    TEXT NOT NULL,
	tags        TEXT[] NOT NULL DEFAULT '{}',
	portrait_id TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS dog_owner_id_idx ON dog (owner_id);

CREATE TABLE IF NOT EXISTS walk_request (
	id                  TEXT PRIMARY KEY,
	dogs                JSONB NOT NULL,
	dog_ids             TEXT[] NOT NULL DEFAULT '{}',
	should_start_after  TIMESTAMPTZ,
	should_start_before TIMESTAMPTZ,
	should_end_after    TIMESTAMPTZ,
	should_end_before   TIMESTAMPTZ,
	longitude           DOUBLE PRECISION NOT NULL,
	latitude            DOUBLE PRECISION NOT NULL,
	created_by          TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	accepted_by         TEXT,
	accepted_at         TIMESTAMPTZ,
	acceptances         TEXT[] NOT NULL DEFAULT '{}',
	canceled_at         TIMESTAMPTZ,
	started_at          TIMESTAMPTZ,
	finished_at         TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS walk_request_created_by_idx ON walk_request (created_by, created_at DESC);
CREATE INDEX IF NOT EXISTS walk_request_open_idx ON walk_request (created_at) WHERE accepted_by IS NULL;

CREATE TABLE IF NOT EXISTS walking_location (
	id              TEXT PRIMARY KEY,
	walk_request_id TEXT NOT NULL,
	longitude       DOUBLE PRECISION NOT NULL,
	latitude        DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS walking_location_request_idx ON walking_location (walk_request_id, created_at);
`

// CreateSchema is idempotent.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	if _, err := pool.Exec(dbCtx, schema); err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}
	return nil
}
