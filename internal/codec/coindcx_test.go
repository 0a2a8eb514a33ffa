package codec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"venuequote/internal/breaker"
	"venuequote/internal/ratelimit"
)

func newTestCoinDCX(t *testing.T, body string) (*CoinDCX, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c := NewCoinDCX(ratelimit.New(ratelimit.Limits{RequestsPerSecond: 1000, Burst: 1000}), breaker.New(breaker.DefaultConfig()))
	c.baseURL = srv.URL
	return c, srv
}

func TestCoinDCXPollEmitsFirstSeenPrices(t *testing.T) {
	c, _ := newTestCoinDCX(t, `[{"market":"BTCUSDT","last_price":"60000"},{"market":"ETHBTC","last_price":"1"}]`)
	outs, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("expected only the USDT market to be reported, got %+v", outs)
	}
	if outs[0].NativeTicker != "BTCUSDT" || outs[0].Last != 60000 {
		t.Fatalf("unexpected outcome: %+v", outs[0])
	}
}

// TestCoinDCXPollEpsilonSuppressesSmallMoves reproduces the 0.01% change
// detection epsilon named in SPEC_FULL.md §6.
func TestCoinDCXPollEpsilonSuppressesSmallMoves(t *testing.T) {
	c, srv := newTestCoinDCX(t, `[{"market":"BTCUSDT","last_price":"60000"}]`)
	if _, err := c.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error on first poll: %v", err)
	}

	srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"market":"BTCUSDT","last_price":"60000.5"}]`))
	})
	outs, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on second poll: %v", err)
	}
	if len(outs) != 0 {
		t.Fatalf("expected sub-epsilon move to be suppressed, got %+v", outs)
	}
}

func TestCoinDCXPollEmitsOnceMoveExceedsEpsilon(t *testing.T) {
	c, srv := newTestCoinDCX(t, `[{"market":"BTCUSDT","last_price":"60000"}]`)
	if _, err := c.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error on first poll: %v", err)
	}

	srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"market":"BTCUSDT","last_price":"60100"}]`))
	})
	outs, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on second poll: %v", err)
	}
	if len(outs) != 1 || outs[0].Last != 60100 {
		t.Fatalf("expected move beyond epsilon to be reported, got %+v", outs)
	}
}

func TestCoinDCXPollPopulatesBidAskAndTimestamp(t *testing.T) {
	c, _ := newTestCoinDCX(t, `[{"market":"BTCUSDT","last_price":"60000","bid":"59999","ask":"60001","timestamp":1700000000}]`)
	outs, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("expected 1 outcome, got %+v", outs)
	}
	out := outs[0]
	if !out.HasBid || out.Bid != 59999 {
		t.Errorf("expected bid 59999, got HasBid=%v Bid=%v", out.HasBid, out.Bid)
	}
	if !out.HasAsk || out.Ask != 60001 {
		t.Errorf("expected ask 60001, got HasAsk=%v Ask=%v", out.HasAsk, out.Ask)
	}
	if out.ExchangeTsMs != 1700000000000 {
		t.Errorf("expected seconds-timestamp normalized to ms, got %d", out.ExchangeTsMs)
	}
}

func TestCoinDCXPollMissingBidAskTimestampLeavesThemUnset(t *testing.T) {
	c, _ := newTestCoinDCX(t, `[{"market":"BTCUSDT","last_price":"60000"}]`)
	outs, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("expected 1 outcome, got %+v", outs)
	}
	out := outs[0]
	if out.HasBid || out.HasAsk {
		t.Errorf("expected no bid/ask when absent, got HasBid=%v HasAsk=%v", out.HasBid, out.HasAsk)
	}
	if out.ExchangeTsMs != 0 {
		t.Errorf("expected missing timestamp to stay 0, got %d", out.ExchangeTsMs)
	}
}

func TestCoinDCXPollSkipsNonUSDTMarkets(t *testing.T) {
	c, _ := newTestCoinDCX(t, `[{"market":"BTCINR","last_price":"5000000"}]`)
	outs, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 0 {
		t.Fatalf("expected non-USDT market filtered out, got %+v", outs)
	}
}
