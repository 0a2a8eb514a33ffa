package codec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"venuequote/internal/breaker"
	"venuequote/internal/quote"
	"venuequote/internal/ratelimit"
)

// coindcxChangeEpsilon is the minimum relative price move (0.01%, per
// SPEC_FULL.md §6) required before a poll re-emits a symbol.
const coindcxChangeEpsilon = 0.0001

const coindcxDefaultBaseURL = "https://public.coindcx.com"

// CoinDCX implements Codec as a poll codec: there is no persistent
// transport, only a periodic REST fetch of the tickers endpoint.
type CoinDCX struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	breakers   *breaker.Registry

	mu       sync.Mutex
	lastSeen map[string]float64
}

// NewCoinDCX constructs a CoinDCX poll codec.
func NewCoinDCX(limiter *ratelimit.Limiter, breakers *breaker.Registry) *CoinDCX {
	return &CoinDCX{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    coindcxDefaultBaseURL,
		limiter:    limiter,
		breakers:   breakers,
		lastSeen:   make(map[string]float64),
	}
}

func (c *CoinDCX) Venue() string   { return "coindcx" }
func (c *CoinDCX) Streaming() bool { return false }

// SubscribeFrame is a no-op: the poll loop already fetches every
// configured symbol on each tick.
func (c *CoinDCX) SubscribeFrame(nativeTicker string) ([]byte, error) { return nil, nil }

// UnsubscribeFrame is a no-op for the same reason.
func (c *CoinDCX) UnsubscribeFrame(nativeTicker string) ([]byte, error) { return nil, nil }

// HeartbeatFrame is unused by poll codecs.
func (c *CoinDCX) HeartbeatFrame() []byte { return nil }

// Decode is unused by poll codecs; the supervisor drives CoinDCX through
// Poll instead of a stream-reader loop.
func (c *CoinDCX) Decode(raw []byte) quote.DecodeOutcome { return quote.Ignore }

type coindcxTicker struct {
	Market    string  `json:"market"`
	LastPrice string  `json:"last_price"`
	Bid       string  `json:"bid"`
	Ask       string  `json:"ask"`
	Timestamp float64 `json:"timestamp"`
}

// coindcxTimestampMs normalizes the ticker endpoint's timestamp field to
// milliseconds: CoinDCX sends it in seconds for some markets and
// milliseconds for others. Absent (<=0) stays 0 per spec.md's missing/unknown
// timestamp rule rather than substituting the current time.
func coindcxTimestampMs(raw float64) int64 {
	if raw <= 0 {
		return 0
	}
	if raw < 1e12 {
		raw *= 1000
	}
	return int64(raw)
}

// Poll fetches the full tickers snapshot and returns one outcome per
// symbol whose price moved at least coindcxChangeEpsilon since the last
// poll.
func (c *CoinDCX) Poll(ctx context.Context) ([]quote.DecodeOutcome, error) {
	if err := c.limiter.Allow(ctx, c.Venue()); err != nil {
		return nil, fmt.Errorf("coindcx poll rate limit: %w", err)
	}

	var body []byte
	err := c.breakers.Call(ctx, c.Venue(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/exchange/ticker", nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	var tickers []coindcxTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("coindcx decode tickers: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	outcomes := make([]quote.DecodeOutcome, 0, len(tickers))
	for _, t := range tickers {
		if t.Market == "" || !strings.HasSuffix(t.Market, "USDT") {
			continue
		}
		price, err := parsePositiveFloat(t.LastPrice)
		if err != nil {
			continue
		}
		prev, seen := c.lastSeen[t.Market]
		if seen && prev > 0 {
			moved := (price - prev) / prev
			if moved < 0 {
				moved = -moved
			}
			if moved < coindcxChangeEpsilon {
				continue
			}
		}
		c.lastSeen[t.Market] = price

		var bid, ask float64
		var hasBid, hasAsk bool
		if t.Bid != "" {
			if v, err := parsePositiveFloat(t.Bid); err == nil {
				bid, hasBid = v, true
			}
		}
		if t.Ask != "" {
			if v, err := parsePositiveFloat(t.Ask); err == nil {
				ask, hasAsk = v, true
			}
		}

		outcomes = append(outcomes, quote.NewQuoteOutcome(t.Market, price, bid, ask, hasBid, hasAsk, coindcxTimestampMs(t.Timestamp)))
	}
	return outcomes, nil
}
