// Package engine is the embedder-facing orchestrator implementing the
// Core->embedder API of spec.md §6: it wires configuration into a
// router, one supervisor per venue, the shared price book, the
// arbitrage detector, and the event bus, and answers queries directly
// from the book. Grounded on the teacher's
// infrastructure/datafacade/factory.go wiring pattern (construct cache
// -> rate limiter -> breaker -> adapters -> facade).
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"venuequote/internal/arbitrage"
	"venuequote/internal/breaker"
	"venuequote/internal/cache"
	"venuequote/internal/codec"
	"venuequote/internal/config"
	"venuequote/internal/eventbus"
	"venuequote/internal/pit"
	"venuequote/internal/pricebook"
	"venuequote/internal/quote"
	"venuequote/internal/ratelimit"
	"venuequote/internal/router"
	"venuequote/internal/supervisor"
)

// venueWSURL names the public websocket endpoint for every streaming
// venue, grounded on the corresponding original_source exchange files.
// KuCoin is resolved per-connection via its REST token prefetch instead.
var venueWSURL = map[string]string{
	"binance":     "wss://fstream.binance.com/ws",
	"bitmex":      "wss://ws.bitmex.com/realtime",
	"bitget":      "wss://ws.bitget.com/v2/ws/public",
	"bybit":       "wss://stream.bybit.com/v5/public/linear",
	"deribit":     "wss://www.deribit.com/ws/api/v2",
	"dydx":        "wss://indexer.dydx.trade/v4/ws",
	"gateio":      "wss://fx-ws.gateio.ws/v4/ws/usdt",
	"hyperliquid": "wss://api.hyperliquid.xyz/ws",
	"mexc":        "wss://contract.mexc.com/edge",
	"okx":         "wss://ws.okx.com:8443/ws/v5/public",
	"phemex":      "wss://ws.phemex.com",
}

// Config is the embedder-supplied startup configuration.
type Config struct {
	Pairs       []config.Pair
	Runtime     config.Runtime
	RedisAddr   string // empty uses the in-memory cache
	PitBasePath string // empty disables disk-backed PIT flush
	Logger      zerolog.Logger
}

// Engine is the running system. Construct with New and drive with
// Start/Stop.
type Engine struct {
	mu          sync.RWMutex
	bus         *eventbus.Bus
	book        *pricebook.Book
	detector    *arbitrage.Detector
	rt          *router.Router
	supervisors map[string]*supervisor.Supervisor
	reaper      *pricebook.Reaper
	cacheImpl   cache.Cache
	pitStore    *pit.Store
	limiter     *ratelimit.Limiter
	breakers    *breaker.Registry
	logger      zerolog.Logger
	cancel      context.CancelFunc
	runtimeCfg  config.Runtime
}

// New constructs an idle Engine. Call Start to begin running.
func New() *Engine {
	return &Engine{supervisors: make(map[string]*supervisor.Supervisor)}
}

// bookAdapter satisfies arbitrage.Reader over a *pricebook.Book by
// converting pricebook.Spread into arbitrage.SpreadResult, keeping the
// two packages free of a direct import cycle (see DESIGN.md).
type bookAdapter struct {
	book *pricebook.Book
}

func adaptBook(book *pricebook.Book) bookAdapter { return bookAdapter{book: book} }

func (a bookAdapter) GetBySymbol(symbol string) map[string]quote.Quote {
	return a.book.GetBySymbol(symbol)
}

func (a bookAdapter) Spread(symbol, x, y string) (arbitrage.SpreadResult, bool) {
	s, ok := a.book.Spread(symbol, x, y)
	if !ok {
		return arbitrage.SpreadResult{}, false
	}
	return arbitrage.SpreadResult{
		Spread:      s.Spread,
		SpreadPct:   s.SpreadPct,
		Higher:      s.Higher,
		Lower:       s.Lower,
		HigherPrice: s.HigherPrice,
		LowerPrice:  s.LowerPrice,
		Timestamp:   s.Timestamp,
	}, true
}

func (a bookAdapter) MarkAlert(symbol string, nowMs int64) { a.book.MarkAlert(symbol, nowMs) }
func (a bookAdapter) LastAlertAt(symbol string) int64      { return a.book.LastAlertAt(symbol) }

// lazyURLTransport defers URL resolution to Dial time, for venues (KuCoin)
// whose endpoint is only known after a prior REST token fetch.
type lazyURLTransport struct {
	resolve func() string
	inner   *supervisor.WSTransport
}

func (t *lazyURLTransport) Dial(ctx context.Context) error {
	url := t.resolve()
	if url == "" {
		return fmt.Errorf("engine: no websocket url resolved yet")
	}
	t.inner = supervisor.NewWSTransport(url)
	return t.inner.Dial(ctx)
}

func (t *lazyURLTransport) Read(ctx context.Context) ([]byte, error)  { return t.inner.Read(ctx) }
func (t *lazyURLTransport) Write(ctx context.Context, f []byte) error { return t.inner.Write(ctx, f) }
func (t *lazyURLTransport) Close() error {
	if t.inner == nil {
		return nil
	}
	return t.inner.Close()
}

// Start builds the router, codecs, supervisors, detector and reaper, and
// begins running every configured venue's supervisor.
func (e *Engine) Start(ctx context.Context, cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger = cfg.Logger
	e.runtimeCfg = cfg.Runtime

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.limiter = ratelimit.New(ratelimit.Limits{RequestsPerSecond: 5, Burst: 5})
	e.breakers = breaker.New(breaker.DefaultConfig())

	if cfg.RedisAddr != "" {
		e.cacheImpl = cache.NewRedisCache(cfg.RedisAddr, "", 0, 5*time.Minute)
	} else {
		e.cacheImpl = cache.NewInMemoryCache()
	}
	e.pitStore = pit.New(64, cfg.PitBasePath)

	if e.bus == nil {
		e.bus = eventbus.New(256)
	}
	e.book = pricebook.New(e.bus)
	e.detector = arbitrage.New(
		adaptBook(e.book),
		e.bus,
		cfg.Runtime.ArbitrageThresholdPct,
		cfg.Runtime.ArbitrageCooldown,
	)
	e.book.SetDetector(e.detector)

	mappedEntries, legacyVenues := splitPairs(cfg.Pairs, cfg.Runtime.LegacyVenues)
	var legacyList []string
	for v := range legacyVenues {
		legacyList = append(legacyList, v)
	}
	table := router.NewTable(mappedEntries, legacyList)
	e.rt = router.New(table)

	registry := e.buildCodecRegistry()

	byVenue := groupByVenue(cfg.Pairs, legacyVenues)
	for venue, tickers := range byVenue {
		c, ok := registry.Lookup(venue)
		if !ok {
			e.logger.Warn().Str("exchange", venue).Msg("no codec registered, skipping")
			continue
		}
		supCfg := e.supervisorConfig()
		sup := supervisor.New(venue, c, e.transportFactory(venue, c), e.rt, e.book, e.bus, supCfg)
		e.supervisors[venue] = sup
		for _, ticker := range tickers {
			sup.Subscribe(ticker)
		}
		go sup.Start(runCtx)
	}

	e.reaper = pricebook.NewReaper(e.book, cfg.Runtime.ReapInterval, cfg.Runtime.ReapMaxAge)
	go e.reaper.Run(runCtx)

	return nil
}

// Stop tears down every supervisor.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	for _, sup := range e.supervisors {
		sup.Stop()
	}
	e.supervisors = make(map[string]*supervisor.Supervisor)
	return nil
}

// Reload tears down current supervisors and reinitializes under a new
// configuration, per spec.md §4.7/§9's admin.reload cycle. Accumulated
// book state is discarded; a fresh Book starts warming from the first
// inbound frame of the new configuration.
func (e *Engine) Reload(ctx context.Context, cfg Config) error {
	if err := e.Stop(ctx); err != nil {
		return fmt.Errorf("engine: reload stop: %w", err)
	}
	e.mu.Lock()
	e.bus = eventbus.New(256)
	e.mu.Unlock()
	if err := e.Start(ctx, cfg); err != nil {
		return fmt.Errorf("engine: reload start: %w", err)
	}
	return nil
}

// Subscribe registers handler on topic (one of pricebook.TopicQuoteUpdated,
// arbitrage.TopicArbitrageFound, supervisor.TopicSupervisorExhausted).
func (e *Engine) Subscribe(topic string, handler eventbus.Handler) func() {
	return e.bus.Subscribe(topic, handler)
}

// QueryPricesAll returns a full book snapshot (query.prices_all).
func (e *Engine) QueryPricesAll() map[string]map[string]quote.Quote {
	return e.book.GetAll()
}

// QueryPricesBySymbol returns every exchange's quote for symbol
// (query.prices_by_symbol).
func (e *Engine) QueryPricesBySymbol(symbol string) map[string]quote.Quote {
	return e.book.GetBySymbol(symbol)
}

// QueryBestPrices returns the best bid/ask across exchanges for symbol
// (query.best_prices).
func (e *Engine) QueryBestPrices(symbol string) (pricebook.BestPrices, bool) {
	return e.book.BestPrices(symbol)
}

// QuerySpread compares symbol's last price between two exchanges
// (query.spread).
func (e *Engine) QuerySpread(symbol, exchangeA, exchangeB string) (pricebook.Spread, bool) {
	return e.book.Spread(symbol, exchangeA, exchangeB)
}

// QuerySummary reports book-wide counts (query.summary).
func (e *Engine) QuerySummary() pricebook.Summary {
	return e.book.Summary()
}

// QueryArbitrage reports cross-venue spread opportunities for symbol at
// minPct (query.arbitrage).
func (e *Engine) QueryArbitrage(symbol string, minPct float64) []arbitrage.Opportunity {
	return e.detector.Check(symbol, minPct)
}

// QueryArbitrageStatus reports the alert cooldown state for symbol
// (query.arbitrage_status).
func (e *Engine) QueryArbitrageStatus(symbol string) arbitrage.AlertStatus {
	return e.detector.AlertStatus(symbol)
}

// PitStore exposes the point-in-time snapshot store for embedders that
// want to capture/inspect book history directly.
func (e *Engine) PitStore() *pit.Store { return e.pitStore }

func splitPairs(pairs []config.Pair, legacyOverride []string) ([]router.Entry, map[string]bool) {
	var mapped []router.Entry
	legacy := make(map[string]bool)
	for _, v := range legacyOverride {
		legacy[v] = true
	}
	for _, p := range pairs {
		if p.IsMapped() {
			mapped = append(mapped, router.Entry{Exchange: p.Exchange, NativeTicker: p.Ticker, DisplaySymbol: p.DisplaySymbol})
		} else {
			legacy[p.Exchange] = true
		}
	}
	return mapped, legacy
}

func groupByVenue(pairs []config.Pair, legacy map[string]bool) map[string][]string {
	out := make(map[string][]string)
	for _, p := range pairs {
		ticker := p.Symbol
		if p.IsMapped() {
			ticker = p.Ticker
		}
		out[p.Exchange] = append(out[p.Exchange], ticker)
	}
	return out
}

func (e *Engine) buildCodecRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	reg.Register(codec.NewBinance())
	reg.Register(codec.NewBitmex())
	reg.Register(codec.NewBitget())
	reg.Register(codec.NewBybit())
	reg.Register(codec.NewDeribit())
	reg.Register(codec.NewDydx())
	reg.Register(codec.NewGateIO())
	reg.Register(codec.NewHyperliquid())
	reg.Register(codec.NewKucoin(e.limiter, e.breakers))
	reg.Register(codec.NewMEXC())
	reg.Register(codec.NewOKX())
	reg.Register(codec.NewPhemex())
	reg.Register(codec.NewCoinDCX(e.limiter, e.breakers))
	return reg
}

func (e *Engine) transportFactory(venue string, c codec.Codec) supervisor.TransportFactory {
	if venue == "kucoin" {
		return func() supervisor.Transport {
			return &lazyURLTransport{resolve: func() string {
				if kc, ok := c.(interface{ WebsocketURL() string }); ok {
					return kc.WebsocketURL()
				}
				return ""
			}}
		}
	}
	url := venueWSURL[venue]
	return func() supervisor.Transport { return supervisor.NewWSTransport(url) }
}

func (e *Engine) supervisorConfig() supervisor.Config {
	cfg := supervisor.DefaultConfig()
	if e.runtimeCfg.ReconnectDelay > 0 {
		cfg.ReconnectDelay = e.runtimeCfg.ReconnectDelay
	}
	if e.runtimeCfg.MaxReconnectAttempts > 0 {
		cfg.MaxReconnectAttempts = e.runtimeCfg.MaxReconnectAttempts
	}
	if e.runtimeCfg.HeartbeatInterval > 0 {
		cfg.HeartbeatInterval = e.runtimeCfg.HeartbeatInterval
	}
	if e.runtimeCfg.SubscribePacing > 0 {
		cfg.SubscribePacing = e.runtimeCfg.SubscribePacing
	}
	if e.runtimeCfg.ConnectTimeout > 0 {
		cfg.ConnectTimeout = e.runtimeCfg.ConnectTimeout
	}
	if e.runtimeCfg.PollInterval > 0 {
		cfg.PollInterval = e.runtimeCfg.PollInterval
	}
	return cfg
}
