package memory

import (
	"context"
	"sync"
	"time"
)

// SeenCacheImpl is the in-process SeenCache used when no Redis is configured.
type SeenCacheImpl struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewSeenCache creates an empty in-process seen cache.
func NewSeenCache() *SeenCacheImpl {
	return &SeenCacheImpl{entries: map[string]time.Time{}, now: time.Now}
}

func (c *SeenCacheImpl) MarkSeen(_ context.Context, urlHash string, expiry time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[urlHash] = c.now().Add(expiry)
	return nil
}

func (c *SeenCacheImpl) IsSeen(_ context.Context, urlHash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.entries[urlHash]
	if !ok {
		return false, nil
	}
	if c.now().After(until) {
		delete(c.entries, urlHash)
		return false, nil
	}
	return true, nil
}
