// Package arbitrage computes cross-venue spread opportunities for a
// symbol on every price-book update, with rate-limited alert emission.
// Grounded on the original system's check_arbitrage_opportunities and
// _should_send_arbitrage_alert (price_manager.py).
package arbitrage

import (
	"strings"
	"sync"
	"time"

	"venuequote/internal/eventbus"
	"venuequote/internal/quote"
)

// TopicArbitrageFound is published when a symbol has at least one
// opportunity meeting threshold and the symbol is out of cooldown.
const TopicArbitrageFound = "arbitrage-found"

// Opportunity is one cross-venue spread exceeding the configured
// threshold.
type Opportunity struct {
	Symbol          string
	BuyExchange     string
	SellExchange    string
	BuyPrice        float64
	SellPrice       float64
	Spread          float64
	SpreadPct       float64
	PotentialProfit float64
}

// ArbitrageFoundEvent is the payload published on TopicArbitrageFound.
type ArbitrageFoundEvent struct {
	Symbol        string
	Opportunities []Opportunity
}

// AlertStatus reports cooldown state for a symbol.
type AlertStatus struct {
	CanSendAlert          bool
	SecondsUntilNextAlert float64
	CooldownSeconds       float64
	LastAlertAt           int64
}

// SpreadResult mirrors pricebook.Spread's fields without importing that
// package, keeping Reader a narrow structural interface.
type SpreadResult struct {
	Spread      float64
	SpreadPct   float64
	Higher      string
	Lower       string
	HigherPrice float64
	LowerPrice  float64
	Timestamp   int64
}

// Reader is the minimal view of PriceBook the detector needs. Declaring
// it here rather than importing internal/pricebook avoids a direct
// import-cycle between the two packages (pricebook.Book depends on a
// Detector interface it declares itself). pricebook.Book does not satisfy
// this interface directly, since its Spread returns pricebook.Spread; the
// engine bridges the two with a small adapter.
type Reader interface {
	GetBySymbol(symbol string) map[string]quote.Quote
	Spread(symbol, a, b string) (SpreadResult, bool)
	MarkAlert(symbol string, nowMs int64)
	LastAlertAt(symbol string) int64
}

// Detector evaluates cross-venue arbitrage opportunities for a symbol
// whenever the price book is updated.
type Detector struct {
	book      Reader
	bus       *eventbus.Bus
	threshold float64 // spread_pct threshold, e.g. 0.1 for 0.1%
	cooldown  time.Duration

	mu sync.Mutex
}

// New constructs a Detector reading from book and publishing to bus.
// threshold is a percentage (0.1 means 0.1%); cooldown is the minimum
// interval between two alerts for the same symbol (default 5 minutes).
func New(book Reader, bus *eventbus.Bus, threshold float64, cooldown time.Duration) *Detector {
	if threshold <= 0 {
		threshold = 0.1
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &Detector{book: book, bus: bus, threshold: threshold, cooldown: cooldown}
}

// Evaluate computes opportunities for symbol and, if any survive the
// threshold and the symbol is out of cooldown, publishes
// TopicArbitrageFound and records the alert time. The computation itself
// always runs; only the event emission is suppressed during cooldown,
// per spec.md §4.5.
func (d *Detector) Evaluate(symbol string) {
	opportunities := d.Check(symbol, d.threshold)
	if len(opportunities) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	nowMs := time.Now().UnixMilli()
	last := d.book.LastAlertAt(symbol)
	if last != 0 && nowMs-last < d.cooldown.Milliseconds() {
		return
	}
	d.book.MarkAlert(symbol, nowMs)
	if d.bus != nil {
		d.bus.Publish(TopicArbitrageFound, ArbitrageFoundEvent{Symbol: symbol, Opportunities: opportunities})
	}
}

// Check computes opportunities for symbol at minPct without touching
// cooldown state, for direct query.arbitrage(sym, min_pct) callers.
func (d *Detector) Check(symbol string, minPct float64) []Opportunity {
	quotes := d.book.GetBySymbol(symbol)
	if len(quotes) < 2 {
		return nil
	}

	exchanges := make([]string, 0, len(quotes))
	for ex := range quotes {
		exchanges = append(exchanges, ex)
	}

	var opportunities []Opportunity
	for i := 0; i < len(exchanges); i++ {
		for j := i + 1; j < len(exchanges); j++ {
			sr, ok := d.book.Spread(symbol, exchanges[i], exchanges[j])
			if !ok || sr.SpreadPct < minPct {
				continue
			}
			opportunities = append(opportunities, Opportunity{
				Symbol:          strings.ToUpper(symbol),
				BuyExchange:     sr.Lower,
				SellExchange:    sr.Higher,
				BuyPrice:        sr.LowerPrice,
				SellPrice:       sr.HigherPrice,
				Spread:          sr.Spread,
				SpreadPct:       sr.SpreadPct,
				PotentialProfit: sr.SpreadPct,
			})
		}
	}

	sortOpportunitiesDesc(opportunities)
	return opportunities
}

// AlertStatus reports the cooldown state used by query.arbitrage_status.
func (d *Detector) AlertStatus(symbol string) AlertStatus {
	last := d.book.LastAlertAt(symbol)
	cooldownSec := d.cooldown.Seconds()
	if last == 0 {
		return AlertStatus{CanSendAlert: true, CooldownSeconds: cooldownSec}
	}
	elapsedSec := float64(time.Now().UnixMilli()-last) / 1000.0
	remaining := cooldownSec - elapsedSec
	if remaining < 0 {
		remaining = 0
	}
	return AlertStatus{
		CanSendAlert:          remaining <= 0,
		SecondsUntilNextAlert: remaining,
		CooldownSeconds:       cooldownSec,
		LastAlertAt:           last,
	}
}

func sortOpportunitiesDesc(o []Opportunity) {
	for i := 1; i < len(o); i++ {
		for j := i; j > 0 && o[j-1].SpreadPct < o[j].SpreadPct; j-- {
			o[j-1], o[j] = o[j], o[j-1]
		}
	}
}
