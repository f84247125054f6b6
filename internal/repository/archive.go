package repository

import (
	"context"
	"time"

	"github.com/user/strain-pipeline/internal/entity"
)

// ArchiveRepository is the content-addressed object archive (C1).
// Writes are idempotent on key; every object is encrypted at rest.
type ArchiveRepository interface {
	// PutHTML stores page bytes under key.
	PutHTML(ctx context.Context, key string, html []byte) error
	// PutMetadata stores the JSON sidecar at metadata/{url_hash}.json.
	PutMetadata(ctx context.Context, meta *entity.ArchiveMetadata) error
	// GetHTML returns the bytes stored under key, or ErrNotFound.
	GetHTML(ctx context.Context, key string) ([]byte, error)
	// GetMetadata returns the sidecar of urlHash, or ErrNotFound.
	GetMetadata(ctx context.Context, urlHash string) (*entity.ArchiveMetadata, error)
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// ListKeys returns every key under prefix.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// PresignGet issues a time-limited GET link for key.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
