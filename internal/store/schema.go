package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the registry, history and issue tables when missing.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS asset (
		id         UUID PRIMARY KEY,
		ticker     VARCHAR(32),
		name       VARCHAR(255),
		type       VARCHAR(32),
		currency   VARCHAR(3),
		exchange   VARCHAR(32),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by VARCHAR(64),
		updated_by VARCHAR(64)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_ticker ON asset (ticker)`,
	`CREATE TABLE IF NOT EXISTS asset_history (
		asset       UUID NOT NULL REFERENCES asset (id),
		price_date  DATE NOT NULL,
		open_price  NUMERIC(18, 6),
		high_price  NUMERIC(18, 6),
		low_price   NUMERIC(18, 6),
		close_price NUMERIC(18, 6) NOT NULL,
		volume      BIGINT,
		dividends   NUMERIC(18, 6) NOT NULL DEFAULT 0,
		splits      NUMERIC(18, 6) NOT NULL DEFAULT 0,
		PRIMARY KEY (asset, price_date)
	)`,
	`CREATE TABLE IF NOT EXISTS asset_log (
		id         UUID PRIMARY KEY,
		ticker     VARCHAR(32) NOT NULL,
		title      VARCHAR(255) NOT NULL,
		message    TEXT,
		service    VARCHAR(64) NOT NULL,
		level      VARCHAR(16) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by VARCHAR(64),
		updated_by VARCHAR(64)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_log_ticker_created ON asset_log (ticker, created_at)`,
}

// Migrate applies the schema. It is safe to run on every start.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
