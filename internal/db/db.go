// Package db holds the PostgreSQL repositories used when STATE_BACKEND=postgres:
// the watermark document row and the per-invocation run history. Both take a
// DBTX so callers can pass a *pgxpool.Pool or a pgx.Tx.
//
// Expected schema:
//
//	CREATE TABLE scheduler_state (
//	    key        TEXT PRIMARY KEY,
//	    value      TEXT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE scheduler_runs (
//	    id                 BIGSERIAL PRIMARY KEY,
//	    invocation_id      TEXT NOT NULL,
//	    scheduled_at       TIMESTAMPTZ,
//	    past_due           BOOLEAN NOT NULL DEFAULT FALSE,
//	    started_at         TIMESTAMPTZ NOT NULL,
//	    finished_at        TIMESTAMPTZ,
//	    stop_reason        TEXT NOT NULL,
//	    windows_dispatched INT NOT NULL DEFAULT 0,
//	    per_activity       JSONB,
//	    queue_depth        INT,
//	    state_kind         TEXT,
//	    error              TEXT
//	);
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the part of *pgxpool.Pool and pgx.Tx the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
