// Package ratelimit spaces out calls to third-party services and caps the
// server-wide request rate.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate lets one caller through per interval. The first Wait returns at once.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate creates a gate; interval <= 0 never blocks.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next slot or until ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
