package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/marketstream/internal/config"
)

// EventsTable is the table recorded stream records are inserted into.
const EventsTable = "stream_events"

// Schema creates the events table and its lookup index.
const Schema = `
CREATE TABLE IF NOT EXISTS stream_events (
	id          BIGSERIAL PRIMARY KEY,
	stream      TEXT        NOT NULL,
	category    TEXT        NOT NULL,
	symbol      TEXT        NOT NULL DEFAULT '',
	session     TEXT        NOT NULL DEFAULT '',
	received_at TIMESTAMPTZ NOT NULL,
	payload     JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS stream_events_category_symbol_idx
	ON stream_events (category, symbol, received_at);
`

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the events table when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create %s: %w", EventsTable, err)
	}
	return nil
}
