package codec

import (
	"encoding/json"
	"strconv"

	"venuequote/internal/quote"
)

// MEXC implements Codec for MEXC contract ticker pushes.
type MEXC struct {
	reqID int
}

// NewMEXC constructs a MEXC codec.
func NewMEXC() *MEXC { return &MEXC{reqID: 1} }

func (c *MEXC) Venue() string   { return "mexc" }
func (c *MEXC) Streaming() bool { return true }

type mexcParam struct {
	Symbol string `json:"symbol"`
}

type mexcSubscribeFrame struct {
	Method string    `json:"method"`
	Param  mexcParam `json:"param"`
	ID     int       `json:"id"`
}

func (c *MEXC) nextID() int {
	id := c.reqID
	c.reqID++
	return id
}

func (c *MEXC) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(mexcSubscribeFrame{Method: "sub.ticker", Param: mexcParam{Symbol: nativeTicker}, ID: c.nextID()})
}

func (c *MEXC) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(mexcSubscribeFrame{Method: "unsub.ticker", Param: mexcParam{Symbol: nativeTicker}, ID: c.nextID()})
}

func (c *MEXC) HeartbeatFrame() []byte {
	b, _ := json.Marshal(map[string]interface{}{"method": "ping", "id": c.nextID()})
	return b
}

type mexcTickerData struct {
	Symbol    string      `json:"symbol"`
	LastPrice json.Number `json:"lastPrice"`
	Last      json.Number `json:"last"`
	Bid1      json.Number `json:"bid1"`
	BidPrice  json.Number `json:"bidPrice"`
	Ask1      json.Number `json:"ask1"`
	AskPrice  json.Number `json:"askPrice"`
	Timestamp int64       `json:"timestamp"`
}

type mexcPushFrame struct {
	Channel string         `json:"channel"`
	Data    mexcTickerData `json:"data"`
	Code    *int           `json:"code"`
	Msg     string         `json:"msg"`
	ID      int            `json:"id"`
}

func firstNonEmpty(values ...json.Number) (float64, bool) {
	for _, v := range values {
		if v == "" {
			continue
		}
		f, err := v.Float64()
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

func (c *MEXC) Decode(raw []byte) quote.DecodeOutcome {
	var frame mexcPushFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return quote.Ignore
	}
	if frame.Code != nil {
		if *frame.Code == 0 && frame.ID != 0 {
			return quote.NewAckOutcome(strconv.Itoa(frame.ID))
		}
		if *frame.Code != 0 {
			return quote.NewErrorOutcome(frame.Msg, false)
		}
	}
	if frame.Channel == "pong" {
		return quote.Heartbeat
	}
	if frame.Channel != "push.ticker" {
		return quote.Ignore
	}
	d := frame.Data
	if d.Symbol == "" {
		return quote.Ignore
	}
	last, okLast := firstNonEmpty(d.LastPrice, d.Last)
	bid, okBid := firstNonEmpty(d.Bid1, d.BidPrice)
	ask, okAsk := firstNonEmpty(d.Ask1, d.AskPrice)
	if !okLast || !okBid || !okAsk || last <= 0 || bid <= 0 || ask <= 0 {
		return quote.Ignore
	}
	return quote.NewQuoteOutcome(d.Symbol, last, bid, ask, true, true, d.Timestamp)
}
