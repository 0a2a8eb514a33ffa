// Package supervisor implements the per-venue connection lifecycle of
// spec.md §4.2: transport establishment, codec dispatch, heartbeat,
// reconnect with re-subscription, and terminal failure reporting.
// Grounded on the original system's BaseExchange
// (connect/_listen_messages/_handle_disconnect/start_ping state machine).
package supervisor

import (
	"context"
	"sync"
	"time"

	"venuequote/internal/codec"
	"venuequote/internal/eventbus"
	"venuequote/internal/pricebook"
	"venuequote/internal/quote"
	"venuequote/internal/router"
)

// TopicSupervisorExhausted is published when reconnect attempts are
// exhausted for a venue.
const TopicSupervisorExhausted = "supervisor-exhausted"

// SupervisorExhaustedEvent is the payload published on
// TopicSupervisorExhausted.
type SupervisorExhaustedEvent struct {
	Exchange string
}

// Config tunes reconnect/heartbeat/pacing behavior. New replaces the whole
// Config with DefaultConfig when ReconnectDelay is zero; otherwise every
// field is used as given, zero or not.
type Config struct {
	ReconnectDelay      time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval   time.Duration
	SubscribePacing     time.Duration
	ConnectTimeout      time.Duration
	HeartbeatTimeout    time.Duration
	ShutdownGrace       time.Duration
	LegacyMode          bool
	PollInterval        time.Duration // only used for poll codecs
}

// DefaultConfig matches spec.md's named defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 10,
		HeartbeatInterval:    30 * time.Second,
		SubscribePacing:      100 * time.Millisecond,
		ConnectTimeout:       10 * time.Second,
		HeartbeatTimeout:     5 * time.Second,
		ShutdownGrace:        10 * time.Second,
		PollInterval:         3 * time.Second,
	}
}

// tokenPrefetcher is satisfied by codecs (KuCoin) that must fetch an
// auth token via REST before a transport can be dialed.
type tokenPrefetcher interface {
	FetchToken(ctx context.Context) error
	WebsocketURL() string
}

// multiOutcomeCodec is satisfied by codecs (dYdX, Hyperliquid) whose
// single wire frame can carry many symbols at once.
type multiOutcomeCodec interface {
	DecodeAll(raw []byte) []quote.DecodeOutcome
}

// Supervisor owns one venue's transport and codec.
type Supervisor struct {
	exchange   string
	codec      codec.Codec
	transports TransportFactory
	router     *router.Router
	book       *pricebook.Book
	bus        *eventbus.Bus
	cfg        Config
	clk        clock

	mu        sync.Mutex
	state     State
	desired   []string        // desired native tickers, in subscribe order, independent of transport
	desiredSet map[string]bool // mirrors desired for O(1) membership checks
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	writeCh   chan []byte
	current   Transport
}

// New constructs a Supervisor for one venue. transports is called once
// per connection attempt (including reconnects) to obtain a fresh
// Transport.
func New(exchange string, c codec.Codec, transports TransportFactory, rt *router.Router, book *pricebook.Book, bus *eventbus.Bus, cfg Config) *Supervisor {
	if cfg.ReconnectDelay == 0 {
		cfg = DefaultConfig()
	}
	return &Supervisor{
		exchange:   exchange,
		codec:      c,
		transports: transports,
		router:     rt,
		book:       book,
		bus:        bus,
		cfg:        cfg,
		clk:        realClock{},
		state:      Idle,
		desiredSet: make(map[string]bool),
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Subscribe adds nativeTicker to the desired set, preserving the order
// tickers were first subscribed so a reconnect replays them identically
// (spec.md §4.2/§5's "re-issued in the original order"). If the
// supervisor is already LIVE, the subscribe frame is sent immediately;
// otherwise it takes effect on the next (re)connect.
func (s *Supervisor) Subscribe(nativeTicker string) {
	s.mu.Lock()
	if !s.desiredSet[nativeTicker] {
		s.desiredSet[nativeTicker] = true
		s.desired = append(s.desired, nativeTicker)
	}
	live := s.state == Live
	ch := s.writeCh
	s.mu.Unlock()

	if live && ch != nil {
		if frame, err := s.codec.SubscribeFrame(nativeTicker); err == nil && frame != nil {
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

// Unsubscribe removes nativeTicker from the desired set.
func (s *Supervisor) Unsubscribe(nativeTicker string) {
	s.mu.Lock()
	if s.desiredSet[nativeTicker] {
		delete(s.desiredSet, nativeTicker)
		for i, t := range s.desired {
			if t == nativeTicker {
				s.desired = append(s.desired[:i], s.desired[i+1:]...)
				break
			}
		}
	}
	live := s.state == Live
	ch := s.writeCh
	s.mu.Unlock()

	if live && ch != nil {
		if frame, err := s.codec.UnsubscribeFrame(nativeTicker); err == nil && frame != nil {
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

// desiredList returns the currently desired native tickers in the order
// they were first subscribed.
func (s *Supervisor) desiredList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.desired))
	copy(out, s.desired)
	return out
}

// Start begins the connect/run loop. It returns once the supervisor
// reaches TERMINATED (either via Stop or exhausted reconnects); run the
// loop itself in a goroutine for a long-lived venue.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if pc, ok := s.codec.(codec.PollCodec); ok {
		s.runPoll(ctx, pc)
		return
	}
	s.runStream(ctx)
}

// Stop transitions CLOSING -> TERMINATED, canceling both logical tasks
// and awaiting their exit within the configured grace period.
func (s *Supervisor) Stop() {
	s.setState(Closing)
	s.mu.Lock()
	cancel := s.cancel
	current := s.current
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	// Unblocks a reader goroutine parked in a blocking Read/ReadMessage
	// call, which ctx cancellation alone does not interrupt.
	if current != nil {
		current.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
	}
	s.setState(Terminated)
}

func (s *Supervisor) runStream(ctx context.Context) {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			s.setState(Terminated)
			return
		default:
		}

		s.setState(Connecting)
		transport := s.transports()

		if tp, ok := s.codec.(tokenPrefetcher); ok {
			if err := tp.FetchToken(ctx); err != nil {
				attempts++
				if attempts >= s.cfg.MaxReconnectAttempts {
					s.emitExhausted()
					return
				}
				s.setState(Reconnecting)
				s.clk.Sleep(s.cfg.ReconnectDelay)
				continue
			}
		}

		connectCtx, connectCancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		err := transport.Dial(connectCtx)
		connectCancel()
		if err != nil {
			attempts++
			if attempts >= s.cfg.MaxReconnectAttempts {
				s.emitExhausted()
				return
			}
			s.setState(Reconnecting)
			s.clk.Sleep(s.cfg.ReconnectDelay)
			continue
		}

		s.setState(Open)
		attempts = 0
		s.mu.Lock()
		s.current = transport
		s.mu.Unlock()
		s.runConnection(ctx, transport)

		select {
		case <-ctx.Done():
			transport.Close()
			s.setState(Terminated)
			return
		default:
		}
		transport.Close()
		s.setState(Reconnecting)
		s.clk.Sleep(s.cfg.ReconnectDelay)
	}
}

// runConnection drives one live connection: subscribing, then reading
// and heartbeating until the transport fails or the context is canceled.
func (s *Supervisor) runConnection(ctx context.Context, t Transport) {
	s.setState(Subscribing)
	writeCh := make(chan []byte, 16)
	s.mu.Lock()
	s.writeCh = writeCh
	s.mu.Unlock()

	acked := make(chan struct{}, 1)
	connDone := make(chan struct{})

	s.wg.Add(2)

	// Writer task: subscribes in order, paced, then serves
	// heartbeat/subscribe/unsubscribe requests.
	go func() {
		defer s.wg.Done()
		for _, ticker := range s.desiredList() {
			frame, err := s.codec.SubscribeFrame(ticker)
			if err != nil || frame == nil {
				continue
			}
			if err := t.Write(ctx, frame); err != nil {
				return
			}
			select {
			case <-time.After(s.cfg.SubscribePacing):
			case <-connDone:
				return
			}
		}
		select {
		case acked <- struct{}{}:
		default:
		}

		hb := s.codec.HeartbeatFrame()
		ticker := time.NewTicker(s.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-connDone:
				return
			case frame := <-writeCh:
				if err := t.Write(ctx, frame); err != nil {
					return
				}
			case <-ticker.C:
				if hb == nil {
					continue
				}
				hbCtx, cancel := context.WithTimeout(ctx, s.cfg.HeartbeatTimeout)
				err := t.Write(hbCtx, hb)
				cancel()
				if err != nil {
					return
				}
			}
		}
	}()

	// Reader task: decodes every inbound frame and feeds the book.
	go func() {
		defer s.wg.Done()
		defer close(connDone)
		for {
			raw, err := t.Read(ctx)
			if err != nil {
				return
			}
			s.handleFrame(raw)
		}
	}()

	select {
	case <-acked:
		// Goes LIVE once all subscribe frames are sent, regardless of
		// whether the codec ever sends a SubscriptionAck.
		s.setState(Live)
	case <-connDone:
	case <-ctx.Done():
	}

	s.wg.Wait()
}

func (s *Supervisor) handleFrame(raw []byte) {
	if moc, ok := s.codec.(multiOutcomeCodec); ok {
		for _, outcome := range moc.DecodeAll(raw) {
			s.applyOutcome(outcome)
		}
		return
	}
	s.applyOutcome(s.codec.Decode(raw))
}

func (s *Supervisor) applyOutcome(outcome quote.DecodeOutcome) {
	switch outcome.Kind {
	case quote.OutcomeQuote:
		display, ok := s.router.Lookup(s.exchange, outcome.NativeTicker)
		if !ok {
			// Dropped per spec.md §4.2: an unmapped symbol never
			// reaches the book.
			return
		}
		q := quoteFromOutcome(s.exchange, display, outcome)
		s.book.Update(q)
	case quote.OutcomeError:
		if outcome.Fatal {
			s.setState(Terminated)
		}
	default:
		// Ack, Heartbeat, Ignore: no book mutation.
	}
}

func quoteFromOutcome(exchange, display string, o quote.DecodeOutcome) quote.Quote {
	return quote.Quote{
		Exchange:      exchange,
		DisplaySymbol: display,
		NativeTicker:  o.NativeTicker,
		Last:          o.Last,
		Bid:           o.Bid,
		Ask:           o.Ask,
		HasBid:        o.HasBid,
		HasAsk:        o.HasAsk,
		ExchangeTsMs:  o.ExchangeTsMs,
		RecvTsMs:      time.Now().UnixMilli(),
	}
}

func (s *Supervisor) emitExhausted() {
	s.setState(Terminated)
	if s.bus != nil {
		s.bus.Publish(TopicSupervisorExhausted, SupervisorExhaustedEvent{Exchange: s.exchange})
	}
}

func (s *Supervisor) runPoll(ctx context.Context, pc codec.PollCodec) {
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	s.setState(Live)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.setState(Terminated)
			return
		case <-ticker.C:
			outcomes, err := pc.Poll(ctx)
			if err != nil {
				continue
			}
			for _, o := range outcomes {
				s.applyOutcome(o)
			}
		}
	}
}
