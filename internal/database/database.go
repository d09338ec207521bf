package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the batch, label and artifact tables if needed. Labels
// and artifacts are removed with their batch.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	dataset_name TEXT NOT NULL,
	dataset_path TEXT NOT NULL,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS labels (
	id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	product_name TEXT NOT NULL DEFAULT '',
	mrp TEXT NOT NULL DEFAULT '',
	quality TEXT NOT NULL DEFAULT '',
	size TEXT NOT NULL DEFAULT '',
	net_quantity TEXT NOT NULL DEFAULT '',
	product_code TEXT NOT NULL DEFAULT '',
	design_color TEXT NOT NULL DEFAULT '',
	mfg_month TEXT NOT NULL DEFAULT '',
	mfg_year TEXT NOT NULL DEFAULT '',
	gtin TEXT NOT NULL DEFAULT '',
	manufacturer TEXT NOT NULL DEFAULT '',
	image_path TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_labels_batch_position ON labels(batch_id, position);
CREATE TABLE IF NOT EXISTS barcode_artifacts (
	id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	code TEXT NOT NULL,
	path TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (batch_id, code)
);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
