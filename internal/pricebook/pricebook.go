// Package pricebook implements the concurrent store of current quotes
// keyed by (display_symbol, exchange), the source of truth for every
// query the system serves. It is grounded on the original system's
// PriceManager (prices dict-of-dicts + asyncio lock), translated into a
// Go map guarded by sync.RWMutex.
package pricebook

import (
	"strings"
	"sync"
	"time"

	"venuequote/internal/eventbus"
	"venuequote/internal/quote"
)

// TopicQuoteUpdated is published whenever update() mutates the book.
const TopicQuoteUpdated = "quote-updated"

// QuoteUpdatedEvent is the payload published on TopicQuoteUpdated.
type QuoteUpdatedEvent struct {
	Symbol   string
	Exchange string
	Quote    quote.Quote
}

// Detector is the minimal interface PriceBook needs to trigger arbitrage
// evaluation after an update, satisfied structurally by
// internal/arbitrage.Detector. Declaring it here (rather than importing
// that package) avoids a PriceBook <-> ArbitrageDetector import cycle,
// per spec.md §9's cyclic-lifetime design note.
type Detector interface {
	Evaluate(symbol string)
}

type entry struct {
	quote          quote.Quote
	lastUpdateLocalMs int64
}

// Book is the concurrent (symbol, exchange) -> Quote store.
type Book struct {
	mu    sync.RWMutex
	data  map[string]map[string]entry // symbol -> exchange -> entry
	bus   *eventbus.Bus
	detector Detector

	alertMu      sync.Mutex
	lastAlertAt  map[string]int64
}

// New constructs an empty Book. bus is used to publish quote-updated
// events; detector (may be nil until wired) is invoked synchronously
// inside update() per spec.md §4.3, though the detector itself may emit
// asynchronously.
func New(bus *eventbus.Bus) *Book {
	return &Book{
		data:        make(map[string]map[string]entry),
		bus:         bus,
		lastAlertAt: make(map[string]int64),
	}
}

// SetDetector wires the arbitrage detector invoked after each update.
// Called once during engine construction, breaking the natural
// construction-order cycle between Book and Detector.
func (b *Book) SetDetector(d Detector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detector = d
}

func normSymbol(s string) string   { return strings.ToUpper(s) }
func normExchange(s string) string { return strings.ToLower(s) }

// Update writes q into the book under its (DisplaySymbol, Exchange) key,
// stamps the local receive time, publishes quote-updated, and invokes the
// detector for the affected symbol.
func (b *Book) Update(q quote.Quote) {
	symbol := normSymbol(q.DisplaySymbol)
	exchange := normExchange(q.Exchange)
	if !q.Valid() {
		return
	}
	nowMs := q.RecvTsMs
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	q.DisplaySymbol = symbol
	q.Exchange = exchange
	q.RecvTsMs = nowMs

	b.mu.Lock()
	exchanges, ok := b.data[symbol]
	if !ok {
		exchanges = make(map[string]entry)
		b.data[symbol] = exchanges
	}
	exchanges[exchange] = entry{quote: q, lastUpdateLocalMs: nowMs}
	var d Detector = b.detector
	b.mu.Unlock()

	if b.bus != nil {
		b.bus.Publish(TopicQuoteUpdated, QuoteUpdatedEvent{Symbol: symbol, Exchange: exchange, Quote: q})
	}
	if d != nil {
		d.Evaluate(symbol)
	}
}

// GetBySymbol returns a snapshot of every exchange's quote for symbol, or
// nil if the symbol has no entries.
func (b *Book) GetBySymbol(symbol string) map[string]quote.Quote {
	symbol = normSymbol(symbol)
	b.mu.RLock()
	defer b.mu.RUnlock()
	exchanges, ok := b.data[symbol]
	if !ok || len(exchanges) == 0 {
		return nil
	}
	out := make(map[string]quote.Quote, len(exchanges))
	for ex, e := range exchanges {
		out[ex] = e.quote
	}
	return out
}

// GetAll returns a deep-copy snapshot of the entire book.
func (b *Book) GetAll() map[string]map[string]quote.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]map[string]quote.Quote, len(b.data))
	for symbol, exchanges := range b.data {
		inner := make(map[string]quote.Quote, len(exchanges))
		for ex, e := range exchanges {
			inner[ex] = e.quote
		}
		out[symbol] = inner
	}
	return out
}

// Symbols returns every display symbol currently present with at least
// one exchange entry.
func (b *Book) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.data))
	for s := range b.data {
		out = append(out, s)
	}
	return out
}

// Exchanges returns the set of exchanges with at least one entry
// anywhere in the book.
func (b *Book) Exchanges() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, exchanges := range b.data {
		for ex := range exchanges {
			seen[ex] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for ex := range seen {
		out = append(out, ex)
	}
	return out
}

// BestPrices is the result of Book.BestPrices.
type BestPrices struct {
	BestBid   PricePoint
	BestAsk   PricePoint
	Spread    float64
	SpreadPct float64
}

// PricePoint names the exchange and receive time backing a best bid/ask.
type PricePoint struct {
	Price    float64
	Exchange string
	RecvTsMs int64
}

// BestPrices computes the best bid (max across exchanges) and best ask
// (min across exchanges) for symbol, breaking ties by most recent
// RecvTsMs. Returns ok=false if symbol has no entries.
func (b *Book) BestPrices(symbol string) (BestPrices, bool) {
	quotes := b.GetBySymbol(symbol)
	if len(quotes) == 0 {
		return BestPrices{}, false
	}
	var bestBid, bestAsk PricePoint
	haveBid, haveAsk := false, false
	for ex, q := range quotes {
		if q.HasBid && q.Bid > 0 {
			if !haveBid || q.Bid > bestBid.Price || (q.Bid == bestBid.Price && q.RecvTsMs > bestBid.RecvTsMs) {
				bestBid = PricePoint{Price: q.Bid, Exchange: ex, RecvTsMs: q.RecvTsMs}
				haveBid = true
			}
		}
		if q.HasAsk && q.Ask > 0 {
			if !haveAsk || q.Ask < bestAsk.Price || (q.Ask == bestAsk.Price && q.RecvTsMs > bestAsk.RecvTsMs) {
				bestAsk = PricePoint{Price: q.Ask, Exchange: ex, RecvTsMs: q.RecvTsMs}
				haveAsk = true
			}
		}
	}
	if !haveBid || !haveAsk {
		return BestPrices{}, false
	}
	spread := bestAsk.Price - bestBid.Price
	pct := 0.0
	if min := minFloat(bestBid.Price, bestAsk.Price); min != 0 {
		pct = spread / min * 100
	}
	return BestPrices{BestBid: bestBid, BestAsk: bestAsk, Spread: spread, SpreadPct: pct}, true
}

// Spread is the result of Book.Spread.
type Spread struct {
	Spread      float64
	SpreadPct   float64
	Higher      string
	Lower       string
	HigherPrice float64
	LowerPrice  float64
	Timestamp   int64
}

// Spread compares the last price for symbol between exchanges a and b.
// spread_pct = |p_a - p_b| / min(p_a, p_b) * 100; 0 if min is 0. Spread
// is symmetric: Spread(s,a,b) and Spread(s,b,a) agree up to swapped
// Higher/Lower.
func (b *Book) Spread(symbol, a, bExchange string) (Spread, bool) {
	quotes := b.GetBySymbol(symbol)
	qa, okA := quotes[normExchange(a)]
	qb, okB := quotes[normExchange(bExchange)]
	if !okA || !okB {
		return Spread{}, false
	}
	diff := qa.Last - qb.Last
	if diff < 0 {
		diff = -diff
	}
	pct := 0.0
	if min := minFloat(qa.Last, qb.Last); min != 0 {
		pct = diff / min * 100
	}
	higher, lower := a, bExchange
	higherPrice, lowerPrice := qa.Last, qb.Last
	ts := maxInt64(qa.RecvTsMs, qb.RecvTsMs)
	if qb.Last > qa.Last {
		higher, lower = bExchange, a
		higherPrice, lowerPrice = qb.Last, qa.Last
	}
	return Spread{
		Spread:      diff,
		SpreadPct:   pct,
		Higher:      normExchange(higher),
		Lower:       normExchange(lower),
		HigherPrice: higherPrice,
		LowerPrice:  lowerPrice,
		Timestamp:   ts,
	}, true
}

// IsStale reports whether (symbol, exchange)'s last local update is
// older than maxAgeMs.
func (b *Book) IsStale(symbol, exchange string, maxAgeMs int64) bool {
	symbol = normSymbol(symbol)
	exchange = normExchange(exchange)
	b.mu.RLock()
	defer b.mu.RUnlock()
	exchanges, ok := b.data[symbol]
	if !ok {
		return true
	}
	e, ok := exchanges[exchange]
	if !ok {
		return true
	}
	return time.Now().UnixMilli()-e.lastUpdateLocalMs > maxAgeMs
}

// Reap deletes every (symbol, exchange) entry whose local receive time is
// older than maxAgeMs, removes symbols left with no exchange entries, and
// clears stale last-alert-at bookkeeping. Returns the count of quote
// entries deleted. Reap is atomic with respect to concurrent reads of the
// same key: a reader observes either the old entry or its absence, never
// a half-written state, because both run under b.mu.
func (b *Book) Reap(maxAgeMs int64) int {
	cutoff := time.Now().UnixMilli() - maxAgeMs

	b.mu.Lock()
	deleted := 0
	remainingSymbols := make(map[string]struct{}, len(b.data))
	for symbol, exchanges := range b.data {
		for ex, e := range exchanges {
			if e.lastUpdateLocalMs < cutoff {
				delete(exchanges, ex)
				deleted++
			}
		}
		if len(exchanges) == 0 {
			delete(b.data, symbol)
		} else {
			remainingSymbols[symbol] = struct{}{}
		}
	}
	b.mu.Unlock()

	const alertHorizonMs = 3600_000
	nowMs := time.Now().UnixMilli()
	b.alertMu.Lock()
	for symbol, ts := range b.lastAlertAt {
		_, stillPresent := remainingSymbols[symbol]
		if !stillPresent || nowMs-ts > alertHorizonMs {
			delete(b.lastAlertAt, symbol)
		}
	}
	b.alertMu.Unlock()

	return deleted
}

// MarkAlert records that an arbitrage alert for symbol fired at nowMs.
// Called by the arbitrage detector, which owns the cooldown decision;
// the book just retains the bookkeeping so Reap can clean it up (spec.md
// invariant 4).
func (b *Book) MarkAlert(symbol string, nowMs int64) {
	b.alertMu.Lock()
	defer b.alertMu.Unlock()
	b.lastAlertAt[normSymbol(symbol)] = nowMs
}

// LastAlertAt returns the last recorded alert time for symbol, or 0 if
// none.
func (b *Book) LastAlertAt(symbol string) int64 {
	b.alertMu.Lock()
	defer b.alertMu.Unlock()
	return b.lastAlertAt[normSymbol(symbol)]
}

// Summary is the result of Book.Summary.
type Summary struct {
	SymbolCount   int
	ExchangeCount int
	Symbols       []string
	Exchanges     []string
	EntryCount    int
	WallClockMs   int64
	PerSymbolExchangeCount map[string]int
}

// Summary reports book-wide counts, including a per-symbol exchange
// count (restoring the richer market summary the original system
// exposed — see SPEC_FULL.md §12).
func (b *Book) Summary() Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	symbols := make([]string, 0, len(b.data))
	perSymbol := make(map[string]int, len(b.data))
	entryCount := 0
	exchangeSet := make(map[string]struct{})
	for symbol, exchanges := range b.data {
		symbols = append(symbols, symbol)
		perSymbol[symbol] = len(exchanges)
		entryCount += len(exchanges)
		for ex := range exchanges {
			exchangeSet[ex] = struct{}{}
		}
	}
	exchanges := make([]string, 0, len(exchangeSet))
	for ex := range exchangeSet {
		exchanges = append(exchanges, ex)
	}
	return Summary{
		SymbolCount:            len(symbols),
		ExchangeCount:          len(exchanges),
		Symbols:                symbols,
		Exchanges:               exchanges,
		EntryCount:              entryCount,
		WallClockMs:             time.Now().UnixMilli(),
		PerSymbolExchangeCount: perSymbol,
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
