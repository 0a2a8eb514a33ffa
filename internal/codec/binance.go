package codec

import (
	"encoding/json"
	"fmt"
	"strconv"

	"venuequote/internal/quote"
)

// Binance implements Codec for Binance USD-M futures book-ticker streams.
type Binance struct {
	reqID int
}

// NewBinance constructs a Binance codec.
func NewBinance() *Binance {
	return &Binance{reqID: 1}
}

func (c *Binance) Venue() string { return "binance" }

func (c *Binance) Streaming() bool { return true }

type binanceSubscribeFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

func (c *Binance) SubscribeFrame(nativeTicker string) ([]byte, error) {
	frame := binanceSubscribeFrame{
		Method: "SUBSCRIBE",
		Params: []string{fmt.Sprintf("%s@bookTicker", toLowerASCII(nativeTicker))},
		ID:     c.nextID(),
	}
	return json.Marshal(frame)
}

func (c *Binance) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	frame := binanceSubscribeFrame{
		Method: "UNSUBSCRIBE",
		Params: []string{fmt.Sprintf("%s@bookTicker", toLowerASCII(nativeTicker))},
		ID:     c.nextID(),
	}
	return json.Marshal(frame)
}

// HeartbeatFrame returns nil: Binance relies on the transport's built-in
// ping/pong control frames.
func (c *Binance) HeartbeatFrame() []byte { return nil }

func (c *Binance) nextID() int {
	id := c.reqID
	c.reqID++
	return id
}

// binanceBookTicker is the raw wire shape of a bookTicker push.
type binanceBookTicker struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
	EventMs  int64  `json:"E"`
}

type binanceAckFrame struct {
	Result interface{} `json:"result"`
	ID     int         `json:"id"`
}

func (c *Binance) Decode(raw []byte) quote.DecodeOutcome {
	var ack binanceAckFrame
	if err := json.Unmarshal(raw, &ack); err == nil && ack.ID != 0 {
		return quote.NewAckOutcome(strconv.Itoa(ack.ID))
	}

	var t binanceBookTicker
	if err := json.Unmarshal(raw, &t); err != nil {
		return quote.Ignore
	}
	if t.Symbol == "" || t.BidPrice == "" || t.AskPrice == "" {
		return quote.Ignore
	}
	bid, err1 := strconv.ParseFloat(t.BidPrice, 64)
	ask, err2 := strconv.ParseFloat(t.AskPrice, 64)
	if err1 != nil || err2 != nil || bid <= 0 || ask <= 0 {
		return quote.Ignore
	}
	return quote.NewQuoteOutcome(t.Symbol, 0, bid, ask, true, true, t.EventMs)
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
