package codec

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"venuequote/internal/quote"
)

// GateIO implements Codec for Gate.io USDT-margined futures tickers.
type GateIO struct{}

// NewGateIO constructs a GateIO codec.
func NewGateIO() *GateIO { return &GateIO{} }

func (c *GateIO) Venue() string   { return "gateio" }
func (c *GateIO) Streaming() bool { return true }

// ToGateIOSymbol converts BTCUSDT-style symbols to Gate.io's BTC_USDT form.
func ToGateIOSymbol(symbol string) string {
	if strings.HasSuffix(symbol, "USDT") {
		return strings.TrimSuffix(symbol, "USDT") + "_USDT"
	}
	return symbol
}

type gateioFrame struct {
	Time    int64           `json:"time"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload []string        `json:"payload"`
	Result  json.RawMessage `json:"result"`
}

func (c *GateIO) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(gateioFrame{
		Time:    time.Now().Unix(),
		Channel: "futures.tickers",
		Event:   "subscribe",
		Payload: []string{nativeTicker},
	})
}

func (c *GateIO) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(gateioFrame{
		Time:    time.Now().Unix(),
		Channel: "futures.tickers",
		Event:   "unsubscribe",
		Payload: []string{nativeTicker},
	})
}

func (c *GateIO) HeartbeatFrame() []byte {
	b, _ := json.Marshal(gateioFrame{Time: time.Now().Unix(), Channel: "futures.ping"})
	return b
}

type gateioTickerResult struct {
	Contract string `json:"contract"`
	Last     string `json:"last"`
}

func (c *GateIO) Decode(raw []byte) quote.DecodeOutcome {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) > 0 && trimmed[0] == '[' {
		// List-shaped frames (pong, some ticker echoes) carry no
		// actionable price data in this wire dialect.
		return quote.Ignore
	}

	var frame gateioFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return quote.Ignore
	}
	if frame.Channel != "futures.tickers" || frame.Event != "update" || len(frame.Result) == 0 {
		return quote.Ignore
	}

	var single gateioTickerResult
	if err := json.Unmarshal(frame.Result, &single); err == nil && single.Contract != "" {
		return c.toOutcome(single, frame.Time)
	}
	var list []gateioTickerResult
	if err := json.Unmarshal(frame.Result, &list); err == nil && len(list) > 0 {
		return c.toOutcome(list[0], frame.Time)
	}
	return quote.Ignore
}

// toOutcome converts a decoded ticker row plus the envelope's own "time"
// field (Unix seconds) into a quote outcome. Per spec.md's missing/unknown
// timestamp rule, an absent envelope time is left at 0 rather than
// substituted with the current time.
func (c *GateIO) toOutcome(t gateioTickerResult, envelopeTimeSec int64) quote.DecodeOutcome {
	if t.Contract == "" || t.Last == "" {
		return quote.Ignore
	}
	last, err := strconv.ParseFloat(t.Last, 64)
	if err != nil || last <= 0 {
		return quote.Ignore
	}
	var tsMs int64
	if envelopeTimeSec > 0 {
		tsMs = envelopeTimeSec * 1000
	}
	return quote.NewQuoteOutcome(t.Contract, last, 0, 0, false, false, tsMs)
}
