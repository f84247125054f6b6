package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const hostGatePrefix = "fetch:host:"

// HostGateImpl spaces request starts per host across every fetcher process
// sharing the Redis instance. A start holds the host key for one interval.
type HostGateImpl struct {
	client *redis.Client
}

// NewHostGate creates a new instance of HostGateImpl.
func NewHostGate(client *redis.Client) *HostGateImpl {
	return &HostGateImpl{client: client}
}

// Wait blocks until the host key is free, then takes it for interval.
func (g *HostGateImpl) Wait(ctx context.Context, host string, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	key := hostGatePrefix + host
	for {
		ok, err := g.client.SetNX(ctx, key, "1", interval).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		ttl, err := g.client.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		if ttl <= 0 {
			ttl = 10 * time.Millisecond
		}
		timer := time.NewTimer(ttl)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
