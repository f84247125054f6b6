package repository

import (
	"context"
	"time"
)

// HostGate enforces a minimum interval between request starts per host.
type HostGate interface {
	// Wait blocks until a request to host may start, then records the start.
	Wait(ctx context.Context, host string, interval time.Duration) error
}
