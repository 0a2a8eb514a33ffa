package codec

import (
	"encoding/json"

	"venuequote/internal/quote"
)

// Bitget implements Codec for Bitget USDT-margined futures ticker pushes.
type Bitget struct{}

// NewBitget constructs a Bitget codec.
func NewBitget() *Bitget { return &Bitget{} }

func (c *Bitget) Venue() string   { return "bitget" }
func (c *Bitget) Streaming() bool { return true }

type bitgetArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type bitgetSubscribeFrame struct {
	Op   string      `json:"op"`
	Args []bitgetArg `json:"args"`
}

func (c *Bitget) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(bitgetSubscribeFrame{
		Op:   "subscribe",
		Args: []bitgetArg{{InstType: "USDT-FUTURES", Channel: "ticker", InstID: nativeTicker}},
	})
}

func (c *Bitget) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(bitgetSubscribeFrame{
		Op:   "unsubscribe",
		Args: []bitgetArg{{InstType: "USDT-FUTURES", Channel: "ticker", InstID: nativeTicker}},
	})
}

// HeartbeatFrame returns nil: Bitget relies on the transport's built-in
// ping/pong control frames.
func (c *Bitget) HeartbeatFrame() []byte { return nil }

type bitgetTickerRow struct {
	InstID   string `json:"instId"`
	LastPr   string `json:"lastPr"`
	BidPr    string `json:"bidPr"`
	AskPr    string `json:"askPr"`
	Ts       string `json:"ts"`
}

type bitgetFrame struct {
	Event string            `json:"event"`
	Arg   bitgetArg         `json:"arg"`
	Data  []bitgetTickerRow `json:"data"`
}

func (c *Bitget) Decode(raw []byte) quote.DecodeOutcome {
	var frame bitgetFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return quote.Ignore
	}
	if frame.Event == "subscribe" {
		return quote.NewAckOutcome(frame.Arg.InstID)
	}
	if frame.Event == "pong" {
		return quote.Heartbeat
	}
	if frame.Event == "error" {
		return quote.NewErrorOutcome("bitget error", false)
	}
	if frame.Arg.Channel != "ticker" || len(frame.Data) == 0 {
		return quote.Ignore
	}
	row := frame.Data[0]
	if row.InstID == "" || row.LastPr == "" || row.BidPr == "" || row.AskPr == "" {
		return quote.Ignore
	}
	last, err1 := parsePositiveFloat(row.LastPr)
	bid, err2 := parsePositiveFloat(row.BidPr)
	ask, err3 := parsePositiveFloat(row.AskPr)
	if err1 != nil || err2 != nil || err3 != nil {
		return quote.Ignore
	}
	ts, _ := parseInt64(row.Ts)
	return quote.NewQuoteOutcome(row.InstID, last, bid, ask, true, true, ts)
}
