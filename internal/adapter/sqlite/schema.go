package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Schema mirrors the PostgreSQL progress table. Timestamps are unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS url_progress (
	url_hash         TEXT PRIMARY KEY,
	original_url     TEXT NOT NULL,
	vendor           TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending'
	                 CHECK (status IN ('pending', 'processing', 'success', 'failed')),
	attempts         INTEGER NOT NULL DEFAULT 0,
	last_attempt     INTEGER,
	html_size        INTEGER NOT NULL DEFAULT 0,
	validation_score REAL NOT NULL DEFAULT 0,
	archive_key      TEXT,
	scrape_method    TEXT,
	error_message    TEXT,
	seq              INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_url_progress_status ON url_progress (status);
CREATE INDEX IF NOT EXISTS idx_url_progress_vendor_status ON url_progress (vendor, status);
`

// Open opens (or creates) the progress database at path and applies Schema.
// A single connection serializes writers, which is what makes Claim atomic.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply progress schema: %w", err)
	}
	return db, nil
}
