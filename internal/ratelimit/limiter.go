// Package ratelimit provides per-venue token-bucket rate limiting for the
// outbound REST calls codecs and supervisors make (poll-codec fetches,
// token prefetches), mirroring the teacher's venue-keyed limiter shape.
package ratelimit

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a wait would exceed the caller's
// context deadline.
var ErrRateLimited = errors.New("ratelimit: would exceed deadline")

// Limits configures one venue's token bucket.
type Limits struct {
	RequestsPerSecond float64
	Burst             int
}

// Limiter is a per-venue token-bucket rate limiter.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	defaults Limits
}

// New constructs a Limiter. defaults apply to any venue not explicitly
// configured via Configure.
func New(defaults Limits) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		defaults: defaults,
	}
}

// Configure sets or replaces the bucket for venue.
func (l *Limiter) Configure(venue string, limits Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[venue] = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), limits.Burst)
}

func (l *Limiter) bucketFor(venue string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[venue]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.limiters[venue]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(l.defaults.RequestsPerSecond), l.defaults.Burst)
	l.limiters[venue] = lim
	return lim
}

// Allow blocks until a token for venue is available or ctx is canceled.
func (l *Limiter) Allow(ctx context.Context, venue string) error {
	if err := l.bucketFor(venue).Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ErrRateLimited
		}
		// Wait refuses up front, with a plain error rather than a context
		// error, when the wait would outlast ctx's deadline.
		if _, ok := ctx.Deadline(); ok {
			return ErrRateLimited
		}
		return err
	}
	return nil
}
