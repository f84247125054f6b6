package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const seenURLPrefix = "discovery:seen:"

// SeenCacheImpl provides a concrete implementation for the SeenCache interface using Redis.
type SeenCacheImpl struct {
	client *redis.Client
}

// NewSeenCache creates a new instance of SeenCacheImpl.
func NewSeenCache(client *redis.Client) *SeenCacheImpl {
	return &SeenCacheImpl{client: client}
}

// MarkSeen marks a url_hash as discovered by setting a key with an expiry.
func (r *SeenCacheImpl) MarkSeen(ctx context.Context, urlHash string, expiry time.Duration) error {
	// SET with an expiry is atomic.
	return r.client.Set(ctx, seenURLPrefix+urlHash, "1", expiry).Err()
}

// IsSeen checks for the existence of the url_hash key.
func (r *SeenCacheImpl) IsSeen(ctx context.Context, urlHash string) (bool, error) {
	val, err := r.client.Exists(ctx, seenURLPrefix+urlHash).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}
