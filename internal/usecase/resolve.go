package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/pkg/utils"
	"go.uber.org/zap"
)

// Resolution is a time-limited link to the archived page of a URL.
type Resolution struct {
	SignedURL        string    `json:"signed_url"`
	Vendor           string    `json:"vendor"`
	CollectionDate   time.Time `json:"collection_date"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
	ArchiveKey       string    `json:"-"`
}

// ResolverUsecase maps an original URL to a signed link of its capture.
type ResolverUsecase interface {
	Resolve(ctx context.Context, rawURL string) (*Resolution, error)
}

// Resolver reads sidecars, never page bodies.
type Resolver struct {
	archive repository.ArchiveRepository
	inv     *Inventory
	ttl     time.Duration
	cache   *expirable.LRU[string, *entity.InventoryEntry]
	logger  *zap.Logger
}

// NewResolver creates a resolver issuing links valid for ttl. inv may be
// nil, in which case sidecars are read on demand and cached.
func NewResolver(archive repository.ArchiveRepository, inv *Inventory, ttl time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		archive: archive,
		inv:     inv,
		ttl:     ttl,
		cache:   expirable.NewLRU[string, *entity.InventoryEntry](4096, nil, 10*time.Minute),
		logger:  logger.Named("resolver"),
	}
}

// Resolve returns ErrUnknownURL when rawURL was never archived.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Resolution, error) {
	e, err := r.entry(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	key := e.PreferredKey()
	link, err := r.archive.PresignGet(ctx, key, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: presign %s: %v", ErrDownstream, key, err)
	}
	return &Resolution{
		SignedURL:        link,
		Vendor:           e.Vendor,
		CollectionDate:   e.CollectionDate,
		ExpiresInSeconds: int(r.ttl.Seconds()),
		ArchiveKey:       key,
	}, nil
}

func (r *Resolver) entry(ctx context.Context, rawURL string) (*entity.InventoryEntry, error) {
	if r.inv != nil {
		if e, ok := r.inv.Lookup(rawURL); ok {
			return e, nil
		}
		return nil, ErrUnknownURL
	}

	hashes := []string{utils.HashURL(rawURL)}
	if c := utils.CanonicalURL(rawURL); c != rawURL {
		hashes = append(hashes, utils.HashURL(c))
	}
	for _, h := range hashes {
		if e, ok := r.cache.Get(h); ok {
			return e, nil
		}
		e, err := r.fromSidecar(ctx, h)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		r.cache.Add(h, e)
		return e, nil
	}
	return nil, ErrUnknownURL
}

// fromSidecar builds an entry from the sidecar of h and the captures that exist.
func (r *Resolver) fromSidecar(ctx context.Context, h string) (*entity.InventoryEntry, error) {
	meta, err := r.archive.GetMetadata(ctx, h)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read sidecar %s: %v", ErrDownstream, h, err)
	}
	e := &entity.InventoryEntry{
		URLHash:         h,
		OriginalURL:     meta.OriginalURL,
		Vendor:          meta.Vendor,
		CollectionDate:  meta.CollectionDate,
		ScrapeMethod:    meta.ScrapeMethod,
		ValidationScore: meta.ValidationScore,
	}
	for _, key := range []string{entity.HTMLKey(h, entity.MethodDirect), entity.LegacyKey(h)} {
		ok, err := r.archive.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %v", ErrDownstream, key, err)
		}
		if ok {
			e.HTMLKey = key
			break
		}
	}
	jsKey := entity.HTMLKey(h, entity.MethodJS)
	ok, err := r.archive.Exists(ctx, jsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrDownstream, jsKey, err)
	}
	if ok {
		e.JSKey = jsKey
	}
	if e.HTMLKey == "" && e.JSKey == "" {
		r.logger.Warn("Sidecar without HTML", zap.String("url_hash", h))
		return nil, fmt.Errorf("%s: %w", h, repository.ErrNotFound)
	}
	return e, nil
}
