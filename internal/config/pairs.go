// Package config loads the venue/symbol configuration (CSV or JSON, per
// spec.md §6) and the YAML runtime tunables file (SPEC_FULL.md §4.8),
// grounded on original_source's input_parser.py dispatch-by-extension.
package config

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Pair is one {exchange, symbol} configuration row. DisplaySymbol and
// Ticker are populated only by the extended JSON form; when both are
// empty the router treats Symbol as both the native ticker and the
// display symbol (legacy mode).
type Pair struct {
	Exchange      string `json:"exchange"`
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"display_symbol"`
	Ticker        string `json:"ticker"`
}

// IsMapped reports whether this row carries the extended mapped-mode
// fields.
func (p Pair) IsMapped() bool {
	return p.DisplaySymbol != "" && p.Ticker != ""
}

// SupportedExchanges is authoritative at the core, per spec.md §6.
var SupportedExchanges = map[string]bool{
	"binance": true, "bitmex": true, "bitget": true, "bybit": true,
	"coindcx": true, "deribit": true, "dydx": true, "gateio": true,
	"hyperliquid": true, "kucoin": true, "mexc": true, "okx": true,
	"phemex": true,
}

// LoadPairs dispatches on file extension: .csv with header
// "exchange,symbol", or .json as either a plain array of
// {exchange,symbol} or the extended {display_symbol,exchange,ticker}
// form. Unsupported exchanges are dropped with a warning rather than
// failing the load.
func LoadPairs(path string) ([]Pair, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var raw []Pair
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		raw, err = parseCSV(f)
	case ".json":
		raw, err = parseJSON(f)
	default:
		return nil, nil, fmt.Errorf("config: unsupported extension for %s", path)
	}
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	out := make([]Pair, 0, len(raw))
	for _, p := range raw {
		p.Exchange = strings.ToLower(strings.TrimSpace(p.Exchange))
		p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
		if p.DisplaySymbol != "" {
			p.DisplaySymbol = strings.ToUpper(strings.TrimSpace(p.DisplaySymbol))
		}
		if !SupportedExchanges[p.Exchange] {
			warnings = append(warnings, fmt.Sprintf("dropping unsupported exchange %q", p.Exchange))
			continue
		}
		out = append(out, p)
	}
	return out, warnings, nil
}

func parseCSV(r io.Reader) ([]Pair, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("config: parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	exIdx, symIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "exchange":
			exIdx = i
		case "symbol":
			symIdx = i
		}
	}
	if exIdx == -1 || symIdx == -1 {
		return nil, fmt.Errorf("config: csv missing exchange/symbol header")
	}
	out := make([]Pair, 0, len(records)-1)
	for _, row := range records[1:] {
		if exIdx >= len(row) || symIdx >= len(row) {
			continue
		}
		out = append(out, Pair{Exchange: row[exIdx], Symbol: row[symIdx]})
	}
	return out, nil
}

func parseJSON(r io.Reader) ([]Pair, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read json: %w", err)
	}
	var pairs []Pair
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, fmt.Errorf("config: parse json: %w", err)
	}
	return pairs, nil
}
