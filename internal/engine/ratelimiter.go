package engine

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is the global token bucket (§4.3): rate_limit tokens added
// per second, capacity = rate_limit, FIFO ordering across waiters — exactly
// golang.org/x/time/rate's own contract, the pattern confirmed in-pack by
// ternarybob-quaero's rate.NewLimiter(rate.Limit(rps), rps) usage.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter with capacity == ratePerSecond.
func NewRateLimiter(ratePerSecond int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
	}
}

// Acquire blocks until one token is available or ctx is done.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
