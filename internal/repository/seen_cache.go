package repository

import (
	"context"
	"time"
)

// SeenCache remembers recently discovered URLs so reruns of discovery skip
// the progress-store insert. The progress store stays the dedupe authority.
type SeenCache interface {
	// MarkSeen marks a url_hash as discovered for expiry.
	MarkSeen(ctx context.Context, urlHash string, expiry time.Duration) error
	// IsSeen checks if a url_hash was discovered recently.
	IsSeen(ctx context.Context, urlHash string) (bool, error)
}
