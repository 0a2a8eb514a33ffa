package codec

import (
	"encoding/json"
	"time"

	"venuequote/internal/quote"
)

// Hyperliquid implements Codec for Hyperliquid's allMids channel, which
// reports only a mid price per symbol with no book levels and no
// per-message timestamp. Per the resolved Open Question in SPEC_FULL.md
// §9, bid/ask are not synthesized here; consumers get last only.
type Hyperliquid struct{}

// NewHyperliquid constructs a Hyperliquid codec.
func NewHyperliquid() *Hyperliquid { return &Hyperliquid{} }

func (c *Hyperliquid) Venue() string   { return "hyperliquid" }
func (c *Hyperliquid) Streaming() bool { return true }

type hyperliquidSubscription struct {
	Type string `json:"type"`
}

type hyperliquidSubscribeFrame struct {
	Method       string                   `json:"method"`
	Subscription hyperliquidSubscription `json:"subscription"`
}

func (c *Hyperliquid) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(hyperliquidSubscribeFrame{Method: "subscribe", Subscription: hyperliquidSubscription{Type: "allMids"}})
}

func (c *Hyperliquid) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(hyperliquidSubscribeFrame{Method: "unsubscribe", Subscription: hyperliquidSubscription{Type: "allMids"}})
}

// HeartbeatFrame returns nil: Hyperliquid relies on the transport's
// built-in ping/pong control frames.
func (c *Hyperliquid) HeartbeatFrame() []byte { return nil }

type hyperliquidAllMidsMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

// DecodeAll returns one outcome per symbol in an allMids push, since a
// single frame carries the whole market.
func (c *Hyperliquid) DecodeAll(raw []byte) []quote.DecodeOutcome {
	var msg hyperliquidAllMidsMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Channel != "allMids" {
		return nil
	}
	now := time.Now().UnixMilli()
	outcomes := make([]quote.DecodeOutcome, 0, len(msg.Data.Mids))
	for symbol, raw := range msg.Data.Mids {
		mid, err := parsePositiveFloat(raw)
		if err != nil {
			continue
		}
		outcomes = append(outcomes, quote.NewQuoteOutcome(symbol, mid, 0, 0, false, false, now))
	}
	return outcomes
}

func (c *Hyperliquid) Decode(raw []byte) quote.DecodeOutcome {
	outs := c.DecodeAll(raw)
	if len(outs) == 0 {
		return quote.Ignore
	}
	return outs[0]
}
