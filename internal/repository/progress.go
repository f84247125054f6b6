package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/strain-pipeline/internal/entity"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a row is not in the state an operation requires.
	ErrConflict = errors.New("progress state conflict")
	// ErrInvariant is returned when a write would violate a store invariant.
	ErrInvariant = errors.New("progress invariant violated")
)

// Completion is the payload of a successful acquisition.
type Completion struct {
	Method          entity.ScrapeMethod
	ValidationScore float64
	HTMLSize        int
	ArchiveKey      string
}

// ProgressRepository is the durable per-URL state machine (C2).
type ProgressRepository interface {
	// Insert adds a pending row; it reports false when url_hash already exists.
	Insert(ctx context.Context, originalURL, vendor string) (bool, error)
	// Claim atomically moves up to n pending rows to processing and returns them.
	// Each claim counts as one attempt.
	Claim(ctx context.Context, n int) ([]*entity.URLRecord, error)
	// Touch records another attempt on a processing row.
	Touch(ctx context.Context, urlHash string) (int, error)
	// Complete moves a processing row to success.
	Complete(ctx context.Context, urlHash string, c Completion) error
	// Fail moves a processing row to failed with the last error.
	Fail(ctx context.Context, urlHash string, errMsg string) error
	// ResetStuck moves processing rows older than timeout back to pending.
	ResetStuck(ctx context.Context, timeout time.Duration) (int64, error)
	// ResetFailed requeues failed rows with attempts below maxAttempts.
	ResetFailed(ctx context.Context, maxAttempts int) (int64, error)
	// Get returns one row by url_hash.
	Get(ctx context.Context, urlHash string) (*entity.URLRecord, error)
	// ListByStatus returns rows of vendor (all vendors when "") in status.
	ListByStatus(ctx context.Context, vendor string, status entity.Status) ([]*entity.URLRecord, error)
	// Stats returns counts grouped by vendor and status.
	Stats(ctx context.Context) ([]entity.StatusCount, error)
	// DeleteNonProduct removes a row demonstrated not to be a product page.
	DeleteNonProduct(ctx context.Context, urlHash string) error
	// Close releases the underlying connection.
	Close()
}
