package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
)

// ArchiveRepoImpl is an in-process archive used for dry runs and tests.
type ArchiveRepoImpl struct {
	mu      sync.RWMutex
	objects map[string][]byte
	puts    int
}

// NewArchive creates an empty in-process archive.
func NewArchive() *ArchiveRepoImpl {
	return &ArchiveRepoImpl{objects: map[string][]byte{}}
}

func (a *ArchiveRepoImpl) PutHTML(_ context.Context, key string, html []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = append([]byte(nil), html...)
	a.puts++
	return nil
}

func (a *ArchiveRepoImpl) PutMetadata(ctx context.Context, meta *entity.ArchiveMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return a.PutHTML(ctx, entity.MetadataKey(meta.URLHash), raw)
}

func (a *ArchiveRepoImpl) GetHTML(_ context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	body, ok := a.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, repository.ErrNotFound)
	}
	return append([]byte(nil), body...), nil
}

func (a *ArchiveRepoImpl) GetMetadata(ctx context.Context, urlHash string) (*entity.ArchiveMetadata, error) {
	raw, err := a.GetHTML(ctx, entity.MetadataKey(urlHash))
	if err != nil {
		return nil, err
	}
	var meta entity.ArchiveMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (a *ArchiveRepoImpl) Exists(_ context.Context, key string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.objects[key]
	return ok, nil
}

func (a *ArchiveRepoImpl) ListKeys(_ context.Context, prefix string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var keys []string
	for k := range a.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// PresignGet returns a pseudo link carrying the expiry; nothing enforces it.
func (a *ArchiveRepoImpl) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	q := url.Values{}
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", int(expiry.Seconds())))
	return "memory://archive/" + key + "?" + q.Encode(), nil
}

// Puts returns the number of writes performed; used to assert idempotent no-ops.
func (a *ArchiveRepoImpl) Puts() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.puts
}
