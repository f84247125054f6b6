package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHostGateSpacesStartsPerHost(t *testing.T) {
	gate := NewHostGate()
	ctx := context.Background()
	interval := 80 * time.Millisecond

	start := time.Now()
	require.NoError(t, gate.Wait(ctx, "a.example", interval))
	require.NoError(t, gate.Wait(ctx, "b.example", interval))
	require.Less(t, time.Since(start), interval, "different hosts do not wait on each other")

	require.NoError(t, gate.Wait(ctx, "a.example", interval))
	require.GreaterOrEqual(t, time.Since(start), interval-5*time.Millisecond)
}

func TestHostGateHonoursCancellation(t *testing.T) {
	gate := NewHostGate()
	require.NoError(t, gate.Wait(context.Background(), "a.example", time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, gate.Wait(ctx, "a.example", time.Hour))
}

func TestSeenCacheExpires(t *testing.T) {
	cache := NewSeenCache()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.MarkSeen(ctx, "abc", time.Hour))
	seen, err := cache.IsSeen(ctx, "abc")
	require.NoError(t, err)
	require.True(t, seen)

	now = now.Add(2 * time.Hour)
	seen, err = cache.IsSeen(ctx, "abc")
	require.NoError(t, err)
	require.False(t, seen)
}
