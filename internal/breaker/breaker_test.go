package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestStateStartsClosed(t *testing.T) {
	r := New(DefaultConfig())
	if got := r.State("binance"); got != "closed" {
		t.Fatalf("expected closed initial state, got %q", got)
	}
}

func TestCallTripsBreakerAfterConsecutiveFailures(t *testing.T) {
	r := New(Config{FailureThreshold: 3, OpenTimeout: time.Minute})
	boom := errors.New("boom")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := r.Call(ctx, "binance", func(ctx context.Context) error { return boom }); err == nil {
			t.Fatalf("expected failing call %d to return an error", i)
		}
	}

	if got := r.State("binance"); got != "open" {
		t.Fatalf("expected breaker open after threshold failures, got %q", got)
	}

	err := r.Call(ctx, "binance", func(ctx context.Context) error { return nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState while breaker is open, got %v", err)
	}
}

func TestCallSucceedsAndKeepsBreakerClosed(t *testing.T) {
	r := New(DefaultConfig())
	ctx := context.Background()
	if err := r.Call(ctx, "binance", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.State("binance"); got != "closed" {
		t.Fatalf("expected closed after a successful call, got %q", got)
	}
}

func TestVenuesHaveIndependentBreakers(t *testing.T) {
	r := New(Config{FailureThreshold: 1, OpenTimeout: time.Minute})
	ctx := context.Background()
	r.Call(ctx, "binance", func(ctx context.Context) error { return errors.New("boom") })

	if got := r.State("binance"); got != "open" {
		t.Fatalf("expected binance breaker open, got %q", got)
	}
	if got := r.State("okx"); got != "closed" {
		t.Fatalf("expected okx breaker unaffected, got %q", got)
	}
}

func TestConfigureAppliesPerVenueThreshold(t *testing.T) {
	r := New(DefaultConfig())
	r.Configure("flaky", Config{FailureThreshold: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	r.Call(ctx, "flaky", func(ctx context.Context) error { return errors.New("boom") })
	if got := r.State("flaky"); got != "open" {
		t.Fatalf("expected configured low threshold to trip after one failure, got %q", got)
	}
}
