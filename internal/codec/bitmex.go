package codec

import (
	"encoding/json"
	"strings"
	"time"

	"venuequote/internal/quote"
)

// Bitmex implements Codec for BitMEX, which splits last-trade price and
// top-of-book across two channels.
type Bitmex struct {
	lastTrade map[string]float64
}

// NewBitmex constructs a Bitmex codec.
func NewBitmex() *Bitmex {
	return &Bitmex{lastTrade: make(map[string]float64)}
}

func (c *Bitmex) Venue() string   { return "bitmex" }
func (c *Bitmex) Streaming() bool { return true }

// ToBitmexSymbol converts a display-style symbol to BitMEX's native form.
func ToBitmexSymbol(symbol string) string {
	switch symbol {
	case "BTCUSDT", "BTCUSD":
		return "XBTUSD"
	case "ETHUSDT", "ETHUSD":
		return "ETHUSD"
	}
	s := strings.TrimSuffix(symbol, "USDT")
	s = strings.TrimSuffix(s, "USD")
	return s + "USD"
}

type bitmexSubscribeFrame struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

func (c *Bitmex) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(bitmexSubscribeFrame{
		Op:   "subscribe",
		Args: []string{"quote:" + nativeTicker, "trade:" + nativeTicker},
	})
}

func (c *Bitmex) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(bitmexSubscribeFrame{
		Op:   "unsubscribe",
		Args: []string{"quote:" + nativeTicker, "trade:" + nativeTicker},
	})
}

func (c *Bitmex) HeartbeatFrame() []byte {
	b, _ := json.Marshal(map[string]string{"op": "ping"})
	return b
}

type bitmexTableMessage struct {
	Table  string            `json:"table"`
	Action string            `json:"action"`
	Data   []json.RawMessage `json:"data"`
	Info   string            `json:"info"`
	Error  string            `json:"error"`
}

type bitmexQuoteRow struct {
	Symbol    string  `json:"symbol"`
	BidPrice  float64 `json:"bidPrice"`
	AskPrice  float64 `json:"askPrice"`
	Timestamp string  `json:"timestamp"`
}

type bitmexTradeRow struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

func (c *Bitmex) Decode(raw []byte) quote.DecodeOutcome {
	var msg bitmexTableMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return quote.Ignore
	}
	if msg.Error != "" {
		return quote.NewErrorOutcome(msg.Error, false)
	}
	if msg.Info != "" || msg.Table == "" || len(msg.Data) == 0 {
		return quote.Ignore
	}

	switch msg.Table {
	case "trade":
		for _, raw := range msg.Data {
			var row bitmexTradeRow
			if err := json.Unmarshal(raw, &row); err != nil || row.Symbol == "" || row.Price <= 0 {
				continue
			}
			c.lastTrade[row.Symbol] = row.Price
		}
		return quote.Ignore
	case "quote":
		var row bitmexQuoteRow
		if err := json.Unmarshal(msg.Data[0], &row); err != nil {
			return quote.Ignore
		}
		if row.Symbol == "" || row.BidPrice <= 0 || row.AskPrice <= 0 {
			return quote.Ignore
		}
		last := c.lastTrade[row.Symbol]
		if last <= 0 {
			last = (row.BidPrice + row.AskPrice) / 2
		}
		ts := parseISO8601Millis(row.Timestamp)
		return quote.NewQuoteOutcome(row.Symbol, last, row.BidPrice, row.AskPrice, true, true, ts)
	default:
		return quote.Ignore
	}
}

func parseISO8601Millis(s string) int64 {
	if s == "" {
		return 0
	}
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
