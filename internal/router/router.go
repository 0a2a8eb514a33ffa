// Package router maps between operator-facing display symbols and each
// venue's native ticker, per spec.md §4.7. It supports hot reload via
// atomic replacement of the whole router instance.
package router

import (
	"strings"
	"sync/atomic"
)

// Entry is one (exchange, native_ticker) -> display_symbol mapping.
type Entry struct {
	Exchange      string
	NativeTicker  string
	DisplaySymbol string
}

type key struct {
	exchange string
	ticker   string
}

// Table is one fixed snapshot of routing state for a set of venues. Each
// venue is fixed to mapped or legacy mode at load time (the resolved
// Open Question in SPEC_FULL.md §9); the mode never varies at runtime for
// a given venue within one Table.
type Table struct {
	byNative  map[key]string
	byDisplay map[key]string // (exchange, display_symbol) -> native_ticker
	legacy    map[string]bool
}

// NewMappedTable builds a Table entirely in mapped mode from entries.
func NewMappedTable(entries []Entry) *Table {
	t := &Table{
		byNative:  make(map[key]string, len(entries)),
		byDisplay: make(map[key]string, len(entries)),
		legacy:    make(map[string]bool),
	}
	for _, e := range entries {
		exchange := strings.ToLower(e.Exchange)
		display := strings.ToUpper(e.DisplaySymbol)
		t.byNative[key{exchange, e.NativeTicker}] = display
		t.byDisplay[key{exchange, display}] = e.NativeTicker
	}
	return t
}

// NewLegacyTable builds a Table in legacy mode for the given venues: the
// same string plays both native_ticker and display_symbol.
func NewLegacyTable(venues []string) *Table {
	t := &Table{
		byNative:  make(map[key]string),
		byDisplay: make(map[key]string),
		legacy:    make(map[string]bool, len(venues)),
	}
	for _, v := range venues {
		t.legacy[strings.ToLower(v)] = true
	}
	return t
}

// NewTable builds a Table mixing both modes in one snapshot: entries
// populate mapped-mode venues, legacyVenues are fixed to legacy mode, per
// the load-time policy decided in SPEC_FULL.md §9. A venue listed in both
// runs in legacy mode: Lookup and NativeTicker check the legacy set first.
func NewTable(entries []Entry, legacyVenues []string) *Table {
	t := NewMappedTable(entries)
	for _, v := range legacyVenues {
		t.legacy[strings.ToLower(v)] = true
	}
	return t
}

// Lookup resolves (exchange, native_ticker) to a display symbol. ok is
// false for an unmapped pair in mapped mode.
func (t *Table) Lookup(exchange, nativeTicker string) (displaySymbol string, ok bool) {
	exchange = strings.ToLower(exchange)
	if t.legacy[exchange] {
		return strings.ToUpper(nativeTicker), true
	}
	d, ok := t.byNative[key{exchange, nativeTicker}]
	return d, ok
}

// NativeTicker resolves the native ticker to subscribe on exchange for a
// display symbol. ok is false if no mapping exists (mapped mode) or the
// venue is unconfigured.
func (t *Table) NativeTicker(exchange, displaySymbol string) (nativeTicker string, ok bool) {
	exchange = strings.ToLower(exchange)
	displaySymbol = strings.ToUpper(displaySymbol)
	if t.legacy[exchange] {
		return displaySymbol, true
	}
	n, ok := t.byDisplay[key{exchange, displaySymbol}]
	return n, ok
}

// Router holds the current Table behind an atomic pointer so Reload can
// swap the whole instance without readers observing a torn state.
type Router struct {
	current atomic.Pointer[Table]
}

// New constructs a Router with an initial table.
func New(initial *Table) *Router {
	r := &Router{}
	r.current.Store(initial)
	return r
}

// Reload atomically replaces the routing table.
func (r *Router) Reload(t *Table) {
	r.current.Store(t)
}

// Lookup delegates to the current table.
func (r *Router) Lookup(exchange, nativeTicker string) (string, bool) {
	return r.current.Load().Lookup(exchange, nativeTicker)
}

// NativeTicker delegates to the current table.
func (r *Router) NativeTicker(exchange, displaySymbol string) (string, bool) {
	return r.current.Load().NativeTicker(exchange, displaySymbol)
}
