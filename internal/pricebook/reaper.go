package pricebook

import (
	"context"
	"time"
)

// Reaper periodically evicts stale book entries. It emits nothing
// externally, per spec.md §4.4 — Book.Reap itself is where the
// last-alert-at cleanup and empty-parent removal happen.
type Reaper struct {
	book     *Book
	interval time.Duration
	maxAgeMs int64
}

// NewReaper constructs a Reaper. interval defaults to 60s and maxAge to
// 300s when zero, matching spec.md §4.4's defaults.
func NewReaper(book *Book, interval time.Duration, maxAge time.Duration) *Reaper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if maxAge <= 0 {
		maxAge = 300 * time.Second
	}
	return &Reaper{book: book, interval: interval, maxAgeMs: maxAge.Milliseconds()}
}

// Run blocks, calling Reap on every tick until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.book.Reap(r.maxAgeMs)
		}
	}
}
