package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostGateImpl keeps one limiter per host with a burst of one, so two
// starts to the same host are always at least one interval apart.
type HostGateImpl struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostGate creates an in-process host gate.
func NewHostGate() *HostGateImpl {
	return &HostGateImpl{limiters: map[string]*rate.Limiter{}}
}

// Wait blocks until a request to host may start.
func (g *HostGateImpl) Wait(ctx context.Context, host string, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	return g.limiter(host, interval).Wait(ctx)
}

func (g *HostGateImpl) limiter(host string, interval time.Duration) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	lim, ok := g.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(interval), 1)
		g.limiters[host] = lim
		return lim
	}
	if want := rate.Every(interval); lim.Limit() != want {
		lim.SetLimit(want)
	}
	return lim
}
