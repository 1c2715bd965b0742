// Package ratelimit spaces outbound debrid provider calls so concurrent
// stream requests stay under the provider's request quota as a group.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// CallLimiter enforces a minimum interval between calls across all
// goroutines sharing it. Burst is fixed at 1: the provider quota is about
// spacing, not volume.
type CallLimiter struct {
	limiter *rate.Limiter
}

// NewCallLimiter returns a limiter allowing one call per interval.
func NewCallLimiter(interval time.Duration) *CallLimiter {
	if interval <= 0 {
		return &CallLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &CallLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call slot is available or ctx is done.
func (l *CallLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call may proceed immediately, consuming the slot
// if so. Used by tests; production callers should Wait.
func (l *CallLimiter) Allow() bool {
	return l.limiter.Allow()
}
