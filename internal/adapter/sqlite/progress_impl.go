package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/pkg/utils"
)

const selectColumns = `url_hash, original_url, vendor, status, attempts, last_attempt,
	html_size, validation_score, COALESCE(archive_key, ''), COALESCE(scrape_method, ''), error_message`

// ProgressRepoImpl implements ProgressRepository on SQLite.
type ProgressRepoImpl struct {
	db       *sql.DB
	minScore float64
	now      func() time.Time
}

// NewProgressRepo wraps an opened database. minScore is the validation
// acceptance threshold enforced on Complete.
func NewProgressRepo(db *sql.DB, minScore float64) *ProgressRepoImpl {
	return &ProgressRepoImpl{db: db, minScore: minScore, now: time.Now}
}

// SetClock replaces the time source; used by tests of ResetStuck.
func (r *ProgressRepoImpl) SetClock(now func() time.Time) {
	r.now = now
}

func (r *ProgressRepoImpl) Insert(ctx context.Context, originalURL, vendor string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO url_progress (url_hash, original_url, vendor, status, seq)
		VALUES (?, ?, ?, 'pending', (SELECT COALESCE(MAX(seq), 0) + 1 FROM url_progress))
		ON CONFLICT (url_hash) DO NOTHING;
	`, utils.HashURL(originalURL), originalURL, vendor)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *ProgressRepoImpl) Claim(ctx context.Context, n int) ([]*entity.URLRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE url_progress
		SET status = 'processing', attempts = attempts + 1, last_attempt = ?
		WHERE url_hash IN (
			SELECT url_hash FROM url_progress
			WHERE status = 'pending'
			ORDER BY seq, url_hash
			LIMIT ?
		)
		RETURNING `+selectColumns+`;
	`, r.now().UnixMilli(), n)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *ProgressRepoImpl) Touch(ctx context.Context, urlHash string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE url_progress SET attempts = attempts + 1, last_attempt = ?
		WHERE url_hash = ? AND status = 'processing'
		RETURNING attempts;
	`, r.now().UnixMilli(), urlHash).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("touch %s: %w", urlHash, repository.ErrConflict)
	}
	return attempts, err
}

func (r *ProgressRepoImpl) Complete(ctx context.Context, urlHash string, c repository.Completion) error {
	if c.ArchiveKey == "" || c.ValidationScore < r.minScore {
		return fmt.Errorf("complete %s: %w", urlHash, repository.ErrInvariant)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE url_progress
		SET status = 'success', scrape_method = ?, validation_score = ?,
			html_size = ?, archive_key = ?, error_message = NULL
		WHERE url_hash = ? AND status = 'processing';
	`, string(c.Method), c.ValidationScore, c.HTMLSize, c.ArchiveKey, urlHash)
	return expectOne(res, err, "complete", urlHash, repository.ErrConflict)
}

func (r *ProgressRepoImpl) Fail(ctx context.Context, urlHash string, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE url_progress SET status = 'failed', error_message = ?
		WHERE url_hash = ? AND status = 'processing';
	`, errMsg, urlHash)
	return expectOne(res, err, "fail", urlHash, repository.ErrConflict)
}

func (r *ProgressRepoImpl) ResetStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE url_progress SET status = 'pending'
		WHERE status = 'processing' AND last_attempt < ?;
	`, r.now().Add(-timeout).UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ProgressRepoImpl) ResetFailed(ctx context.Context, maxAttempts int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE url_progress SET status = 'pending'
		WHERE status = 'failed' AND attempts < ?;
	`, maxAttempts)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ProgressRepoImpl) Get(ctx context.Context, urlHash string) (*entity.URLRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM url_progress WHERE url_hash = ?;`, urlHash)
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

func (r *ProgressRepoImpl) ListByStatus(ctx context.Context, vendor string, status entity.Status) ([]*entity.URLRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM url_progress
		WHERE status = ? AND (? = '' OR vendor = ?)
		ORDER BY vendor, url_hash;
	`, string(status), vendor, vendor)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *ProgressRepoImpl) Stats(ctx context.Context) ([]entity.StatusCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT vendor, status, COUNT(*), AVG(attempts), AVG(validation_score)
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

func (r *ProgressRepoImpl) DeleteNonProduct(ctx context.Context, urlHash string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM url_progress WHERE url_hash = ?;`, urlHash)
	return expectOne(res, err, "delete", urlHash, repository.ErrNotFound)
}

func (r *ProgressRepoImpl) Close() {
	r.db.Close()
}

func expectOne(res sql.Result, err error, op, urlHash string, sentinel error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, urlHash, sentinel)
	}
	return nil
}

func collect(rows *sql.Rows) ([]*entity.URLRecord, error) {
	defer rows.Close()

	var out []*entity.URLRecord
	for rows.Next() {
		var rec entity.URLRecord
		var status, method string
		var last sql.NullInt64
		var errMsg sql.NullString
		if err := rows.Scan(
			&rec.URLHash,
			&rec.OriginalURL,
			&rec.Vendor,
			&status,
			&rec.Attempts,
			&last,
			&rec.HTMLSize,
			&rec.ValidationScore,
			&rec.ArchiveKey,
			&method,
			&errMsg,
		); err != nil {
			return nil, err
		}
		rec.Status = entity.Status(status)
		rec.ScrapeMethod = entity.ScrapeMethod(method)
		if last.Valid {
			t := time.UnixMilli(last.Int64)
			rec.LastAttempt = &t
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.ErrorMessage = &msg
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
