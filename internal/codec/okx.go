package codec

import (
	"encoding/json"
	"strconv"

	"venuequote/internal/quote"
)

// OKX implements Codec for OKX v5 public books channel.
type OKX struct{}

// NewOKX constructs an OKX codec.
func NewOKX() *OKX { return &OKX{} }

func (c *OKX) Venue() string   { return "okx" }
func (c *OKX) Streaming() bool { return true }

type okxArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxSubscribeFrame struct {
	Op   string   `json:"op"`
	Args []okxArg `json:"args"`
}

func (c *OKX) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(okxSubscribeFrame{
		Op:   "subscribe",
		Args: []okxArg{{Channel: "books", InstID: nativeTicker}},
	})
}

func (c *OKX) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(okxSubscribeFrame{
		Op:   "unsubscribe",
		Args: []okxArg{{Channel: "books", InstID: nativeTicker}},
	})
}

// HeartbeatFrame sends the literal string "ping"; OKX does not expect a
// JSON envelope for its keepalive.
func (c *OKX) HeartbeatFrame() []byte { return []byte("ping") }

type okxWSMessage struct {
	Arg   okxArg            `json:"arg"`
	Data  []okxBookSnapshot `json:"data"`
	Event string            `json:"event"`
	Code  string            `json:"code"`
	Msg   string            `json:"msg"`
}

type okxBookSnapshot struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	Ts   string     `json:"ts"`
}

func (c *OKX) Decode(raw []byte) quote.DecodeOutcome {
	if string(raw) == "pong" {
		return quote.Heartbeat
	}
	var msg okxWSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return quote.Ignore
	}
	if msg.Event == "subscribe" {
		return quote.NewAckOutcome(msg.Arg.InstID)
	}
	if msg.Event == "error" {
		return quote.NewErrorOutcome(msg.Msg, false)
	}
	if msg.Arg.Channel != "books" || len(msg.Data) == 0 {
		return quote.Ignore
	}
	book := msg.Data[0]
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return quote.Ignore
	}
	bid, err1 := strconv.ParseFloat(book.Bids[0][0], 64)
	ask, err2 := strconv.ParseFloat(book.Asks[0][0], 64)
	if err1 != nil || err2 != nil || bid <= 0 || ask <= 0 {
		return quote.Ignore
	}
	ts, _ := strconv.ParseInt(book.Ts, 10, 64)
	return quote.NewQuoteOutcome(msg.Arg.InstID, 0, bid, ask, true, true, ts)
}
