// Package codec translates venue-specific wire dialects into canonical
// quote.DecodeOutcome values. Each venue gets its own file; all share the
// Codec capability set so the supervisor never special-cases a venue.
package codec

import (
	"context"

	"venuequote/internal/quote"
)

// Codec is the per-venue translator. Implementations are not required to
// be safe for concurrent Decode calls on a single instance — the
// supervisor serializes them.
type Codec interface {
	// Venue returns the lowercase, stable venue identifier.
	Venue() string

	// SubscribeFrame returns the wire message requesting a subscription
	// to nativeTicker. A poll codec returns nil, nil (no-op).
	SubscribeFrame(nativeTicker string) ([]byte, error)

	// UnsubscribeFrame returns the wire message releasing a subscription.
	UnsubscribeFrame(nativeTicker string) ([]byte, error)

	// HeartbeatFrame returns the keepalive frame to send, or nil if the
	// transport's built-in ping should be relied on instead.
	HeartbeatFrame() []byte

	// Decode translates one raw inbound frame.
	Decode(raw []byte) quote.DecodeOutcome

	// Streaming reports whether this codec expects to be driven by a
	// persistent duplex transport (true) or wants to be polled on its
	// own internal cadence (false).
	Streaming() bool
}

// PollCodec is implemented additionally by codecs whose Streaming()
// returns false. The supervisor calls Poll on its own ticker and treats
// each returned outcome as if it had arrived over a stream.
type PollCodec interface {
	Codec

	// Poll fetches the current snapshot from the venue and returns zero
	// or more decoded outcomes, one per symbol that changed enough to
	// report.
	Poll(ctx context.Context) ([]quote.DecodeOutcome, error)
}

// Registry maps venue identifiers to constructed codecs.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds c under its own Venue() identifier.
func (r *Registry) Register(c Codec) {
	r.codecs[c.Venue()] = c
}

// Lookup returns the codec for venue, or false if none is registered.
func (r *Registry) Lookup(venue string) (Codec, bool) {
	c, ok := r.codecs[venue]
	return c, ok
}

// Venues returns all registered venue identifiers.
func (r *Registry) Venues() []string {
	out := make([]string, 0, len(r.codecs))
	for v := range r.codecs {
		out = append(out, v)
	}
	return out
}
