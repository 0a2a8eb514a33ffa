package supervisor

import (
	"context"
	"time"
)

// Transport is the minimal duplex connection abstraction a supervisor
// drives. The real implementation wraps gorilla/websocket; tests
// substitute a fake to exercise reconnect/re-subscribe behavior (spec.md
// S5) without a network.
type Transport interface {
	// Dial establishes the connection, blocking up to the transport's
	// own connect timeout.
	Dial(ctx context.Context) error
	// Read blocks for the next inbound frame.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one frame.
	Write(ctx context.Context, frame []byte) error
	// Close tears down the connection.
	Close() error
}

// TransportFactory builds a fresh Transport for one connection attempt.
// A new Transport is requested on every (re)connect.
type TransportFactory func() Transport

// clock is overridable in tests so reconnect pacing doesn't require real
// sleeps.
type clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time    { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
