package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"venuequote/internal/breaker"
	"venuequote/internal/codec"
	"venuequote/internal/config"
	"venuequote/internal/ratelimit"
	"venuequote/internal/supervisor"
)

var (
	probeTimeout time.Duration
	probeFormat  string
)

// venueWSURL mirrors engine's venue endpoint table for the standalone
// probe path, which intentionally avoids constructing a full Engine.
var venueWSURL = map[string]string{
	"binance":     "wss://fstream.binance.com/ws",
	"bitmex":      "wss://ws.bitmex.com/realtime",
	"bitget":      "wss://ws.bitget.com/v2/ws/public",
	"bybit":       "wss://stream.bybit.com/v5/public/linear",
	"deribit":     "wss://www.deribit.com/ws/api/v2",
	"dydx":        "wss://indexer.dydx.trade/v4/ws",
	"gateio":      "wss://fx-ws.gateio.ws/v4/ws/usdt",
	"hyperliquid": "wss://api.hyperliquid.xyz/ws",
	"mexc":        "wss://contract.mexc.com/edge",
	"okx":         "wss://ws.okx.com:8443/ws/v5/public",
	"phemex":      "wss://ws.phemex.com",
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Dial every configured venue once and report connect latency/health",
	Long: `probe attempts one connection to every venue named in the pairs file
(a websocket dial for streaming venues, a single poll for CoinDCX) and
reports whether it succeeded, without wiring the full book/router/detector.`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "per-venue connect timeout")
	probeCmd.Flags().StringVar(&probeFormat, "format", "table", "output format: table or json")
}

// probeResult is one venue's probe outcome.
type probeResult struct {
	Venue     string        `json:"venue"`
	OK        bool          `json:"ok"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	Streaming bool          `json:"streaming"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	pairs, _, err := config.LoadPairs(flagPairsFile)
	if err != nil {
		return fmt.Errorf("load pairs: %w", err)
	}
	venues := make(map[string]bool)
	for _, p := range pairs {
		venues[p.Exchange] = true
	}

	limiter := ratelimit.New(ratelimit.Limits{RequestsPerSecond: 5, Burst: 5})
	breakers := breaker.New(breaker.DefaultConfig())
	registry := codec.NewRegistry()
	registry.Register(codec.NewBinance())
	registry.Register(codec.NewBitmex())
	registry.Register(codec.NewBitget())
	registry.Register(codec.NewBybit())
	registry.Register(codec.NewDeribit())
	registry.Register(codec.NewDydx())
	registry.Register(codec.NewGateIO())
	registry.Register(codec.NewHyperliquid())
	registry.Register(codec.NewKucoin(limiter, breakers))
	registry.Register(codec.NewMEXC())
	registry.Register(codec.NewOKX())
	registry.Register(codec.NewPhemex())
	registry.Register(codec.NewCoinDCX(limiter, breakers))

	names := make([]string, 0, len(venues))
	for v := range venues {
		names = append(names, v)
	}
	sort.Strings(names)

	results := make([]probeResult, 0, len(names))
	for _, venue := range names {
		c, ok := registry.Lookup(venue)
		if !ok {
			results = append(results, probeResult{Venue: venue, OK: false, Error: "no codec registered"})
			continue
		}
		results = append(results, probeOne(venue, c, probeTimeout))
	}

	if probeFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "venue\tstreaming\tok\tlatency\terror")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%v\t%v\t%s\t%s\n", r.Venue, r.Streaming, r.OK, r.Latency.Round(time.Millisecond), r.Error)
	}
	return w.Flush()
}

func probeOne(venue string, c codec.Codec, timeout time.Duration) probeResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	start := time.Now()

	if pc, ok := c.(codec.PollCodec); ok {
		_, err := pc.Poll(ctx)
		res := probeResult{Venue: venue, Streaming: false, Latency: time.Since(start)}
		if err != nil {
			res.Error = err.Error()
		} else {
			res.OK = true
		}
		return res
	}

	url := venueWSURL[venue]
	if tp, ok := c.(interface {
		FetchToken(ctx context.Context) error
		WebsocketURL() string
	}); ok {
		if err := tp.FetchToken(ctx); err != nil {
			return probeResult{Venue: venue, Streaming: true, Latency: time.Since(start), Error: err.Error()}
		}
		url = tp.WebsocketURL()
	}

	transport := supervisor.NewWSTransport(url)
	err := transport.Dial(ctx)
	res := probeResult{Venue: venue, Streaming: true, Latency: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	transport.Close()
	return res
}
