package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the progress table and its required indices.
const Schema = `
CREATE TABLE IF NOT EXISTS url_progress (
	url_hash         CHAR(16) PRIMARY KEY,
	original_url     TEXT NOT NULL,
	vendor           TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending'
	                 CHECK (status IN ('pending', 'processing', 'success', 'failed')),
	attempts         INTEGER NOT NULL DEFAULT 0,
	last_attempt     TIMESTAMPTZ,
	html_size        INTEGER NOT NULL DEFAULT 0,
	validation_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	archive_key      TEXT,
	scrape_method    TEXT,
	error_message    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_url_progress_status ON url_progress (status);
CREATE INDEX IF NOT EXISTS idx_url_progress_vendor_status ON url_progress (vendor, status);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply progress schema: %w", err)
	}
	return nil
}
