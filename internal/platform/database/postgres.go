package database

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is a type alias for pgxpool.Pool for use in other packages.
type Pool = pgxpool.Pool

// Querier abstracts pgx query methods so callers can work with both
// pool connections and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func Connect(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	if maxConns > 0 && maxConns <= math.MaxInt32 {
		config.MaxConns = int32(maxConns) // #nosec G115 -- bounds checked above
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the tables this service writes to if they do not
// already exist. The schema is small enough that a migration tool would
// be overhead.
func EnsureSchema(ctx context.Context, q Querier) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS security_events (
		id          UUID PRIMARY KEY,
		action      TEXT NOT NULL,
		client_fp   TEXT NOT NULL DEFAULT '',
		field       TEXT NOT NULL DEFAULT '',
		signal      TEXT NOT NULL DEFAULT '',
		risk_level  TEXT NOT NULL DEFAULT '',
		source      TEXT NOT NULL DEFAULT '',
		metadata    JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS security_events_created_at_idx ON security_events (created_at DESC);
	CREATE INDEX IF NOT EXISTS security_events_action_idx ON security_events (action);`

	if _, err := q.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
