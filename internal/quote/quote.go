// Package quote defines the canonical price record shared by every codec,
// the supervisor, the price book and the arbitrage detector.
package quote

import "fmt"

// Quote is the canonical record produced by every codec after decoding a
// venue-specific wire frame.
type Quote struct {
	Exchange       string  `json:"exchange"`
	DisplaySymbol  string  `json:"display_symbol"`
	NativeTicker   string  `json:"native_ticker"`
	Last           float64 `json:"last"`
	Bid            float64 `json:"bid,omitempty"`
	Ask            float64 `json:"ask,omitempty"`
	HasBid         bool    `json:"-"`
	HasAsk         bool    `json:"-"`
	ExchangeTsMs   int64   `json:"exchange_ts_ms"`
	RecvTsMs       int64   `json:"recv_ts_ms"`
}

// Valid reports whether q satisfies the canonical invariants: last strictly
// positive, and bid/ask strictly positive whenever present.
func (q Quote) Valid() bool {
	if q.Last <= 0 {
		return false
	}
	if q.HasBid && q.Bid <= 0 {
		return false
	}
	if q.HasAsk && q.Ask <= 0 {
		return false
	}
	return true
}

// OutcomeKind tags the variant carried by a DecodeOutcome.
type OutcomeKind int

const (
	// OutcomeIgnore is an unrecognized or unneeded frame.
	OutcomeIgnore OutcomeKind = iota
	// OutcomeQuote carries a decoded canonical quote.
	OutcomeQuote
	// OutcomeAck confirms a subscription request.
	OutcomeAck
	// OutcomeHeartbeat is a pong or equivalent keepalive response.
	OutcomeHeartbeat
	// OutcomeError carries a codec-reported error, fatal or not.
	OutcomeError
)

// DecodeOutcome is the sum type returned by Codec.Decode. Exactly the field
// relevant to Kind is meaningful.
type DecodeOutcome struct {
	Kind OutcomeKind

	// OutcomeQuote
	NativeTicker string
	Last         float64
	Bid          float64
	Ask          float64
	HasBid       bool
	HasAsk       bool
	ExchangeTsMs int64

	// OutcomeAck
	RequestID string

	// OutcomeError
	Message string
	Fatal   bool
}

func (o DecodeOutcome) String() string {
	switch o.Kind {
	case OutcomeQuote:
		return fmt.Sprintf("Quote(%s last=%g bid=%g ask=%g ts=%d)", o.NativeTicker, o.Last, o.Bid, o.Ask, o.ExchangeTsMs)
	case OutcomeAck:
		return fmt.Sprintf("Ack(%s)", o.RequestID)
	case OutcomeHeartbeat:
		return "Heartbeat"
	case OutcomeError:
		return fmt.Sprintf("Error(%s fatal=%v)", o.Message, o.Fatal)
	default:
		return "Ignore"
	}
}

// Ignore is the canonical sentinel for unrecognized frames.
var Ignore = DecodeOutcome{Kind: OutcomeIgnore}

// Heartbeat is the canonical sentinel for a pong/keepalive frame.
var Heartbeat = DecodeOutcome{Kind: OutcomeHeartbeat}

// NewQuoteOutcome builds an OutcomeQuote, deriving last from bid/ask
// midpoint when last is unset but both sides are present.
func NewQuoteOutcome(nativeTicker string, last, bid, ask float64, hasBid, hasAsk bool, exchangeTsMs int64) DecodeOutcome {
	if last <= 0 && hasBid && hasAsk && bid > 0 && ask > 0 {
		last = (bid + ask) / 2
	}
	return DecodeOutcome{
		Kind:         OutcomeQuote,
		NativeTicker: nativeTicker,
		Last:         last,
		Bid:          bid,
		Ask:          ask,
		HasBid:       hasBid,
		HasAsk:       hasAsk,
		ExchangeTsMs: exchangeTsMs,
	}
}

// NewErrorOutcome builds an OutcomeError.
func NewErrorOutcome(message string, fatal bool) DecodeOutcome {
	return DecodeOutcome{Kind: OutcomeError, Message: message, Fatal: fatal}
}

// NewAckOutcome builds an OutcomeAck.
func NewAckOutcome(requestID string) DecodeOutcome {
	return DecodeOutcome{Kind: OutcomeAck, RequestID: requestID}
}
