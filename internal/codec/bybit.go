package codec

import (
	"encoding/json"
	"strconv"
	"strings"

	"venuequote/internal/quote"
)

// Bybit implements Codec for Bybit v5 linear perpetual orderbook streams.
type Bybit struct {
	reqID int
}

// NewBybit constructs a Bybit codec.
func NewBybit() *Bybit {
	return &Bybit{reqID: 1}
}

func (c *Bybit) Venue() string   { return "bybit" }
func (c *Bybit) Streaming() bool { return true }

type bybitSubscribeFrame struct {
	Op    string   `json:"op"`
	Args  []string `json:"args"`
	ReqID string   `json:"req_id"`
}

func (c *Bybit) nextReqID() string {
	id := c.reqID
	c.reqID++
	return strconv.Itoa(id)
}

func (c *Bybit) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(bybitSubscribeFrame{
		Op:    "subscribe",
		Args:  []string{"orderbook.1." + nativeTicker},
		ReqID: c.nextReqID(),
	})
}

func (c *Bybit) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(bybitSubscribeFrame{
		Op:    "unsubscribe",
		Args:  []string{"orderbook.1." + nativeTicker},
		ReqID: c.nextReqID(),
	})
}

func (c *Bybit) HeartbeatFrame() []byte {
	b, _ := json.Marshal(bybitSubscribeFrame{Op: "ping", ReqID: c.nextReqID()})
	return b
}

type bybitOrderbookMessage struct {
	Topic   string `json:"topic"`
	Success *bool  `json:"success"`
	Op      string `json:"op"`
	Ts      int64  `json:"ts"`
	Data    struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
	} `json:"data"`
}

func (c *Bybit) Decode(raw []byte) quote.DecodeOutcome {
	var msg bybitOrderbookMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return quote.Ignore
	}
	if msg.Op == "subscribe" || msg.Op == "unsubscribe" {
		return quote.Ignore
	}
	if msg.Topic == "" {
		return quote.Ignore
	}
	parts := strings.Split(msg.Topic, ".")
	if len(parts) < 3 {
		return quote.Ignore
	}
	symbol := parts[2]
	if len(msg.Data.Bids) == 0 || len(msg.Data.Asks) == 0 {
		return quote.Ignore
	}
	bid, err1 := strconv.ParseFloat(msg.Data.Bids[0][0], 64)
	ask, err2 := strconv.ParseFloat(msg.Data.Asks[0][0], 64)
	if err1 != nil || err2 != nil || bid <= 0 || ask <= 0 {
		return quote.Ignore
	}
	return quote.NewQuoteOutcome(symbol, 0, bid, ask, true, true, msg.Ts)
}
