package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/pkg/utils"
)

const selectColumns = `url_hash, original_url, vendor, status, attempts, last_attempt,
	html_size, validation_score, COALESCE(archive_key, ''), COALESCE(scrape_method, ''), error_message`

// ProgressRepoImpl provides a concrete implementation for the ProgressRepository interface using PostgreSQL.
type ProgressRepoImpl struct {
	db       *pgxpool.Pool
	minScore float64
}

// NewProgressRepo creates a new instance of ProgressRepoImpl. minScore is the
// validation acceptance threshold enforced on Complete.
func NewProgressRepo(db *pgxpool.Pool, minScore float64) *ProgressRepoImpl {
	return &ProgressRepoImpl{db: db, minScore: minScore}
}

// Insert adds a pending row, ignoring duplicates by url_hash.
func (r *ProgressRepoImpl) Insert(ctx context.Context, originalURL, vendor string) (bool, error) {
	query := `
		INSERT INTO url_progress (url_hash, original_url, vendor, status)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT (url_hash) DO NOTHING;
	`
	tag, err := r.db.Exec(ctx, query, utils.HashURL(originalURL), originalURL, vendor)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Claim marks up to n pending rows as processing. SKIP LOCKED keeps
// concurrent claimers from receiving the same row.
func (r *ProgressRepoImpl) Claim(ctx context.Context, n int) ([]*entity.URLRecord, error) {
	query := `
		UPDATE url_progress
		SET status = 'processing', attempts = attempts + 1, last_attempt = NOW()
		WHERE url_hash IN (
			SELECT url_hash FROM url_progress
			WHERE status = 'pending'
			ORDER BY created_at, url_hash
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + selectColumns + `;
	`
	rows, err := r.db.Query(ctx, query, n)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Touch records another attempt on a processing row.
func (r *ProgressRepoImpl) Touch(ctx context.Context, urlHash string) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx, `
		UPDATE url_progress SET attempts = attempts + 1, last_attempt = NOW()
		WHERE url_hash = $1 AND status = 'processing'
		RETURNING attempts;
	`, urlHash).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("touch %s: %w", urlHash, repository.ErrConflict)
	}
	return attempts, err
}

// Complete moves a processing row to success.
func (r *ProgressRepoImpl) Complete(ctx context.Context, urlHash string, c repository.Completion) error {
	if c.ArchiveKey == "" || c.ValidationScore < r.minScore {
		return fmt.Errorf("complete %s: %w", urlHash, repository.ErrInvariant)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE url_progress
		SET status = 'success', scrape_method = $2, validation_score = $3,
			html_size = $4, archive_key = $5, error_message = NULL
		WHERE url_hash = $1 AND status = 'processing';
	`, urlHash, string(c.Method), c.ValidationScore, c.HTMLSize, c.ArchiveKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete %s: %w", urlHash, repository.ErrConflict)
	}
	return nil
}

// Fail moves a processing row to failed.
func (r *ProgressRepoImpl) Fail(ctx context.Context, urlHash string, errMsg string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE url_progress SET status = 'failed', error_message = $2
		WHERE url_hash = $1 AND status = 'processing';
	`, urlHash, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fail %s: %w", urlHash, repository.ErrConflict)
	}
	return nil
}

// ResetStuck requeues processing rows whose last attempt is older than timeout.
func (r *ProgressRepoImpl) ResetStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE url_progress SET status = 'pending'
		WHERE status = 'processing' AND last_attempt < $1;
	`, time.Now().Add(-timeout))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResetFailed requeues failed rows with attempts below maxAttempts.
func (r *ProgressRepoImpl) ResetFailed(ctx context.Context, maxAttempts int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE url_progress SET status = 'pending'
		WHERE status = 'failed' AND attempts < $1;
	`, maxAttempts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Get retrieves a row by url_hash.
func (r *ProgressRepoImpl) Get(ctx context.Context, urlHash string) (*entity.URLRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM url_progress WHERE url_hash = $1;`, urlHash)
	if err != nil {
		return nil, err
	}
	recs, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, repository.ErrNotFound
	}
	return recs[0], nil
}

// ListByStatus returns rows in status, optionally restricted to vendor.
func (r *ProgressRepoImpl) ListByStatus(ctx context.Context, vendor string, status entity.Status) ([]*entity.URLRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+selectColumns+` FROM url_progress
		WHERE status = $1 AND ($2 = '' OR vendor = $2)
		ORDER BY vendor, url_hash;
	`, string(status), vendor)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Stats returns counts grouped by vendor and status.
func (r *ProgressRepoImpl) Stats(ctx context.Context) ([]entity.StatusCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT vendor, status, COUNT(*), AVG(attempts)::float8, AVG(validation_score)::float8
		FROM url_progress
		GROUP BY vendor, status
		ORDER BY vendor, status;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.StatusCount
	for rows.Next() {
		var sc entity.StatusCount
		var status string
		if err := rows.Scan(&sc.Vendor, &status, &sc.Count, &sc.AvgAttempts, &sc.AvgValidation); err != nil {
			return nil, err
		}
		sc.Status = entity.Status(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// DeleteNonProduct removes a row that is demonstrably not a product page.
func (r *ProgressRepoImpl) DeleteNonProduct(ctx context.Context, urlHash string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM url_progress WHERE url_hash = $1;`, urlHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Close closes the pool.
func (r *ProgressRepoImpl) Close() {
	r.db.Close()
}

func collect(rows pgx.Rows) ([]*entity.URLRecord, error) {
	defer rows.Close()

	var out []*entity.URLRecord
	for rows.Next() {
		var rec entity.URLRecord
		var status, method string
		if err := rows.Scan(
			&rec.URLHash,
			&rec.OriginalURL,
			&rec.Vendor,
			&status,
			&rec.Attempts,
			&rec.LastAttempt,
			&rec.HTMLSize,
			&rec.ValidationScore,
			&rec.ArchiveKey,
			&method,
			&rec.ErrorMessage,
		); err != nil {
			return nil, err
		}
		rec.Status = entity.Status(status)
		rec.ScrapeMethod = entity.ScrapeMethod(method)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
