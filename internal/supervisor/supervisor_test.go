package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"venuequote/internal/codec"
	"venuequote/internal/eventbus"
	"venuequote/internal/pricebook"
	"venuequote/internal/quote"
	"venuequote/internal/router"
)

// fakeTransport is an in-memory Transport double that records every
// frame written to it and lets the test control read errors/data to
// simulate a disconnect.
type fakeTransport struct {
	dialErr error

	mu      sync.Mutex
	written [][]byte
	reads   chan readResult
}

type readResult struct {
	data []byte
	err  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reads: make(chan readResult, 8)}
}

func (t *fakeTransport) Dial(ctx context.Context) error { return t.dialErr }

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case r := <-t.reads:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	cp := append([]byte(nil), frame...)
	t.written = append(t.written, cp)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Close() error { return nil }

// blockingReadTransport simulates a real websocket connection: Read blocks
// on the underlying connection and ignores ctx entirely, only returning once
// Close is called. This is the shape that reproduces a leaked reader
// goroutine if Stop doesn't actually close the transport.
type blockingReadTransport struct {
	dialErr error
	closed  chan struct{}

	mu         sync.Mutex
	closeCalls int
}

func newBlockingReadTransport() *blockingReadTransport {
	return &blockingReadTransport{closed: make(chan struct{})}
}

func (t *blockingReadTransport) Dial(ctx context.Context) error { return t.dialErr }

func (t *blockingReadTransport) Read(ctx context.Context) ([]byte, error) {
	<-t.closed
	return nil, errors.New("transport closed")
}

func (t *blockingReadTransport) Write(ctx context.Context, frame []byte) error { return nil }

func (t *blockingReadTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeCalls++
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	return nil
}

func (t *blockingReadTransport) wasClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCalls > 0
}

func (t *fakeTransport) writtenFrames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.written))
	copy(out, t.written)
	return out
}

// fakeCodec is a trivial Codec whose subscribe frames are just the raw
// ticker bytes, so tests can assert on subscribe order without parsing
// JSON.
type fakeCodec struct{}

func (fakeCodec) Venue() string   { return "fake" }
func (fakeCodec) Streaming() bool { return true }
func (fakeCodec) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return []byte("SUB:" + nativeTicker), nil
}
func (fakeCodec) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return []byte("UNSUB:" + nativeTicker), nil
}
func (fakeCodec) HeartbeatFrame() []byte { return nil }
func (fakeCodec) Decode(raw []byte) quote.DecodeOutcome {
	s := string(raw)
	switch {
	case len(s) > 2 && s[:2] == "Q:":
		return quote.NewQuoteOutcome(s[2:], 100, 99, 101, true, true, time.Now().UnixMilli())
	default:
		return quote.Ignore
	}
}

func waitForState(t *testing.T, s *Supervisor, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, last observed %v", want, s.State())
}

func testConfig() Config {
	return Config{
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: 10,
		HeartbeatInterval:    time.Hour, // avoid heartbeats firing mid-test
		SubscribePacing:      time.Millisecond,
		ConnectTimeout:       time.Second,
		HeartbeatTimeout:     time.Second,
		ShutdownGrace:        200 * time.Millisecond,
	}
}

func TestSupervisorReachesLiveAndAppliesQuote(t *testing.T) {
	rt := router.New(router.NewMappedTable([]router.Entry{
		{Exchange: "fake", NativeTicker: "T1", DisplaySymbol: "SYM1"},
	}))
	book := pricebook.New(nil)

	var mu sync.Mutex
	var transports []*fakeTransport
	factory := func() Transport {
		mu.Lock()
		defer mu.Unlock()
		tr := newFakeTransport()
		transports = append(transports, tr)
		return tr
	}

	sup := New("fake", fakeCodec{}, factory, rt, book, nil, testConfig())
	sup.Subscribe("T1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Start(ctx)

	waitForState(t, sup, Live, time.Second)

	mu.Lock()
	tr := transports[0]
	mu.Unlock()
	tr.reads <- readResult{data: []byte("Q:T1")}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if q := book.GetBySymbol("SYM1"); len(q) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected quote for SYM1 to reach the book")
}

// TestSupervisorReconnectResubscribesInOrder reproduces spec.md's S5
// scenario: after a disconnect, the supervisor reconnects and re-issues
// every desired subscription in its original order.
func TestSupervisorReconnectResubscribesInOrder(t *testing.T) {
	rt := router.New(router.NewMappedTable([]router.Entry{
		{Exchange: "fake", NativeTicker: "T1", DisplaySymbol: "SYM1"},
		{Exchange: "fake", NativeTicker: "T2", DisplaySymbol: "SYM2"},
	}))
	book := pricebook.New(nil)

	var mu sync.Mutex
	var transports []*fakeTransport
	factory := func() Transport {
		mu.Lock()
		defer mu.Unlock()
		tr := newFakeTransport()
		transports = append(transports, tr)
		return tr
	}

	sup := New("fake", fakeCodec{}, factory, rt, book, nil, testConfig())
	sup.Subscribe("T1")
	sup.Subscribe("T2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Start(ctx)

	waitForState(t, sup, Live, time.Second)

	mu.Lock()
	first := transports[0]
	mu.Unlock()
	first.reads <- readResult{err: errors.New("simulated disconnect")}

	// Wait for a second transport to be dialed and go live again.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(transports)
		mu.Unlock()
		if n >= 2 && sup.State() == Live {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transports) < 2 {
		t.Fatalf("expected a second transport after disconnect, got %d", len(transports))
	}

	wantOrder := [][]byte{[]byte("SUB:T1"), []byte("SUB:T2")}
	for i, tr := range transports[:2] {
		got := tr.writtenFrames()
		if len(got) < 2 {
			t.Fatalf("transport %d: expected at least 2 subscribe frames, got %d", i, len(got))
		}
		for j, want := range wantOrder {
			if string(got[j]) != string(want) {
				t.Errorf("transport %d frame %d: expected %s, got %s", i, j, want, got[j])
			}
		}
	}
}

// TestSupervisorUnknownSymbolDropped reproduces spec.md's S6 scenario.
func TestSupervisorUnknownSymbolDropped(t *testing.T) {
	rt := router.New(router.NewMappedTable(nil)) // no entries at all
	book := pricebook.New(nil)
	bus := eventbus.New(8)

	updates := make(chan interface{}, 1)
	bus.Subscribe(pricebook.TopicQuoteUpdated, func(p interface{}) { updates <- p })

	var mu sync.Mutex
	var transports []*fakeTransport
	factory := func() Transport {
		mu.Lock()
		defer mu.Unlock()
		tr := newFakeTransport()
		transports = append(transports, tr)
		return tr
	}

	sup := New("fake", fakeCodec{}, factory, rt, book, bus, testConfig())
	sup.Subscribe("FOO-PERPETUAL")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Start(ctx)

	waitForState(t, sup, Live, time.Second)

	mu.Lock()
	tr := transports[0]
	mu.Unlock()
	tr.reads <- readResult{data: []byte("Q:FOO-PERPETUAL")}

	select {
	case evt := <-updates:
		t.Fatalf("expected no quote-updated event for unmapped symbol, got %v", evt)
	case <-time.After(200 * time.Millisecond):
	}

	if all := book.GetAll(); len(all) != 0 {
		t.Fatalf("expected book unchanged, got %v", all)
	}
}

// TestSupervisorStopTerminates verifies Stop drives the supervisor to
// TERMINATED within the shutdown grace period.
func TestSupervisorStopTerminates(t *testing.T) {
	rt := router.New(router.NewMappedTable(nil))
	book := pricebook.New(nil)
	factory := func() Transport { return newFakeTransport() }

	sup := New("fake", fakeCodec{}, factory, rt, book, nil, testConfig())
	ctx := context.Background()
	go sup.Start(ctx)

	waitForState(t, sup, Live, time.Second)
	sup.Stop()

	if got := sup.State(); got != Terminated {
		t.Fatalf("expected TERMINATED after Stop, got %v", got)
	}
}

// TestSupervisorStopClosesTransportAndJoinsReader reproduces a real
// transport whose Read blocks on the underlying connection rather than on
// ctx. Stop must close the transport (unblocking the reader) and actually
// wait for it to exit, well within the shutdown grace period.
func TestSupervisorStopClosesTransportAndJoinsReader(t *testing.T) {
	rt := router.New(router.NewMappedTable(nil))
	book := pricebook.New(nil)
	transport := newBlockingReadTransport()
	factory := func() Transport { return transport }

	cfg := testConfig()
	cfg.ShutdownGrace = 2 * time.Second
	sup := New("fake", fakeCodec{}, factory, rt, book, nil, cfg)
	ctx := context.Background()
	go sup.Start(ctx)

	waitForState(t, sup, Live, time.Second)

	stopped := make(chan struct{})
	start := time.Now()
	go func() {
		sup.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return well within the shutdown grace period; reader likely leaked")
	}
	if elapsed := time.Since(start); elapsed >= cfg.ShutdownGrace {
		t.Fatalf("Stop took %v, at or beyond the shutdown grace period %v: reader was not actually joined", elapsed, cfg.ShutdownGrace)
	}
	if !transport.wasClosed() {
		t.Fatal("expected Stop to close the transport")
	}
	if got := sup.State(); got != Terminated {
		t.Fatalf("expected TERMINATED after Stop, got %v", got)
	}
}

var _ codec.Codec = fakeCodec{}
