package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the session tables if needed. Received chunks are a
// join relation keyed by (session_id, chunk_index), so an index is recorded
// at most once however many times it is uploaded.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS transfer_sessions (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	total_size BIGINT NOT NULL,
	chunk_size BIGINT NOT NULL,
	total_chunks INTEGER NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	failed_at TIMESTAMPTZ,
	cancelled_at TIMESTAMPTZ,
	expired_at TIMESTAMPTZ,
	last_error TEXT NOT NULL DEFAULT '',
	artifact_ref TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transfer_sessions_status ON transfer_sessions(status);
CREATE TABLE IF NOT EXISTS transfer_session_chunks (
	session_id TEXT NOT NULL REFERENCES transfer_sessions(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL CHECK (chunk_index >= 0),
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, chunk_index)
);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
