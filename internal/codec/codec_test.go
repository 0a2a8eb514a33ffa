package codec

import (
	"testing"

	"venuequote/internal/quote"
)

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewBinance())
	reg.Register(NewOKX())

	if _, ok := reg.Lookup("binance"); !ok {
		t.Fatal("expected binance to be registered")
	}
	if _, ok := reg.Lookup("unknown-venue"); ok {
		t.Fatal("expected unknown venue to be absent")
	}
	venues := reg.Venues()
	if len(venues) != 2 {
		t.Fatalf("expected 2 venues, got %d", len(venues))
	}
}

func TestBinanceDecodeDerivesMidFromBookTicker(t *testing.T) {
	c := NewBinance()
	raw := []byte(`{"s":"BTCUSDT","b":"59999.00","B":"1","a":"60001.00","A":"1","E":1700000000000}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.Last != 60000 {
		t.Errorf("expected derived last 60000, got %v", out.Last)
	}
	if out.Bid != 59999 || out.Ask != 60001 {
		t.Errorf("unexpected bid/ask: %v/%v", out.Bid, out.Ask)
	}
}

func TestBinanceDecodeMissingTimestampStaysZero(t *testing.T) {
	c := NewBinance()
	raw := []byte(`{"s":"BTCUSDT","b":"59999.00","B":"1","a":"60001.00","A":"1"}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.ExchangeTsMs != 0 {
		t.Fatalf("expected missing timestamp to stay 0, got %d", out.ExchangeTsMs)
	}
}

func TestBinanceDecodeIgnoresMissingFields(t *testing.T) {
	c := NewBinance()
	out := c.Decode([]byte(`{"s":"BTCUSDT","b":"","a":"60001"}`))
	if out.Kind != quote.OutcomeIgnore {
		t.Fatalf("expected Ignore for missing bid, got %v", out.Kind)
	}
}

func TestBinanceDecodeAck(t *testing.T) {
	c := NewBinance()
	out := c.Decode([]byte(`{"result":null,"id":1}`))
	if out.Kind != quote.OutcomeAck {
		t.Fatalf("expected Ack, got %v", out.Kind)
	}
}

// TestPhemexScaledIntegerDecode reproduces spec.md's S4 scenario.
func TestPhemexScaledIntegerDecode(t *testing.T) {
	c := NewPhemex()
	raw := []byte(`{"symbol":"BTCUSD","book":{"bids":[[600010000,1]],"asks":[[600030000,1]]},"timestamp":1000000000}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.Bid != 60001 {
		t.Errorf("expected bid 60001, got %v", out.Bid)
	}
	if out.Ask != 60003 {
		t.Errorf("expected ask 60003, got %v", out.Ask)
	}
	if out.Last != 60002 {
		t.Errorf("expected derived last 60002, got %v", out.Last)
	}
}

func TestPhemexUnknownSymbolUsesDefaultScale(t *testing.T) {
	c := NewPhemex()
	raw := []byte(`{"symbol":"DOGEUSD","book":{"bids":[[100000]],"asks":[[100010]]},"timestamp":1}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.Bid != 10 {
		t.Errorf("expected bid scaled by default 10000, got %v", out.Bid)
	}
}

func TestPhemexZeroScaledValueIgnored(t *testing.T) {
	c := NewPhemex()
	raw := []byte(`{"symbol":"BTCUSD","book":{"bids":[[0]],"asks":[[600030000]]},"timestamp":1}`)
	if out := c.Decode(raw); out.Kind != quote.OutcomeIgnore {
		t.Fatalf("expected Ignore for zero-scaled bid, got %v", out.Kind)
	}
}

func TestBitmexUsesCachedTradePriceAsLast(t *testing.T) {
	c := NewBitmex()
	trade := []byte(`{"table":"trade","action":"insert","data":[{"symbol":"XBTUSD","price":60500,"timestamp":"2024-01-01T00:00:00.000Z"}]}`)
	if out := c.Decode(trade); out.Kind != quote.OutcomeIgnore {
		t.Fatalf("trade frame itself should not produce a quote, got %v", out.Kind)
	}

	quoteFrame := []byte(`{"table":"quote","action":"update","data":[{"symbol":"XBTUSD","bidPrice":60499,"askPrice":60501,"timestamp":"2024-01-01T00:00:01.000Z"}]}`)
	out := c.Decode(quoteFrame)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.Last != 60500 {
		t.Errorf("expected cached trade price 60500 as last, got %v", out.Last)
	}
}

func TestBitmexFallsBackToMidWithoutCachedTrade(t *testing.T) {
	c := NewBitmex()
	quoteFrame := []byte(`{"table":"quote","action":"update","data":[{"symbol":"ETHUSD","bidPrice":3000,"askPrice":3010,"timestamp":"2024-01-01T00:00:01.000Z"}]}`)
	out := c.Decode(quoteFrame)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.Last != 3005 {
		t.Errorf("expected midpoint 3005 when no cached trade, got %v", out.Last)
	}
}

func TestGateIODecodeHandlesDictAndListResultShapes(t *testing.T) {
	c := NewGateIO()
	dict := []byte(`{"channel":"futures.tickers","event":"update","result":{"contract":"BTC_USDT","last":"60000"}}`)
	out := c.Decode(dict)
	if out.Kind != quote.OutcomeQuote || out.NativeTicker != "BTC_USDT" {
		t.Fatalf("unexpected dict-shaped decode: %+v", out)
	}

	list := []byte(`{"channel":"futures.tickers","event":"update","result":[{"contract":"ETH_USDT","last":"3000"}]}`)
	out = c.Decode(list)
	if out.Kind != quote.OutcomeQuote || out.NativeTicker != "ETH_USDT" {
		t.Fatalf("unexpected list-shaped decode: %+v", out)
	}
}

func TestGateIODecodeUsesEnvelopeTimestampWhenPresent(t *testing.T) {
	c := NewGateIO()
	raw := []byte(`{"time":1700000000,"channel":"futures.tickers","event":"update","result":{"contract":"BTC_USDT","last":"60000"}}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.ExchangeTsMs != 1700000000000 {
		t.Fatalf("expected envelope time converted to ms, got %d", out.ExchangeTsMs)
	}
}

func TestGateIODecodeMissingTimestampStaysZero(t *testing.T) {
	c := NewGateIO()
	raw := []byte(`{"channel":"futures.tickers","event":"update","result":{"contract":"BTC_USDT","last":"60000"}}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.ExchangeTsMs != 0 {
		t.Fatalf("expected missing envelope time to stay 0, got %d", out.ExchangeTsMs)
	}
}

func TestGateIOIgnoresNonTickerEvents(t *testing.T) {
	c := NewGateIO()
	if out := c.Decode([]byte(`["pong frame shaped as a list"]`)); out.Kind != quote.OutcomeIgnore {
		t.Fatalf("expected Ignore for list-shaped frame, got %v", out.Kind)
	}
	if out := c.Decode([]byte(`{"channel":"futures.tickers","event":"subscribe"}`)); out.Kind != quote.OutcomeIgnore {
		t.Fatalf("expected Ignore for non-update event, got %v", out.Kind)
	}
}

func TestDeribitDirectFieldsNoDerivation(t *testing.T) {
	c := NewDeribit()
	raw := []byte(`{"method":"subscription","params":{"channel":"ticker.BTC-PERPETUAL.100ms","data":{"instrument_name":"BTC-PERPETUAL","last_price":60000,"best_bid_price":59995,"best_ask_price":60005,"timestamp":1700000000000}}}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.Last != 60000 {
		t.Errorf("expected direct last 60000, got %v", out.Last)
	}
}

func TestDeribitAckAndError(t *testing.T) {
	c := NewDeribit()
	ack := c.Decode([]byte(`{"id":2,"result":[]}`))
	if ack.Kind != quote.OutcomeAck {
		t.Fatalf("expected Ack, got %v", ack.Kind)
	}
	errOut := c.Decode([]byte(`{"id":3,"error":{"message":"bad request"}}`))
	if errOut.Kind != quote.OutcomeError || errOut.Message != "bad request" {
		t.Fatalf("expected Error with message, got %+v", errOut)
	}
}

func TestMEXCFieldNameFallback(t *testing.T) {
	c := NewMEXC()
	raw := []byte(`{"channel":"push.ticker","data":{"symbol":"BTC_USDT","last":"60000","bidPrice":"59990","askPrice":"60010","timestamp":1700000000000}}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote {
		t.Fatalf("expected OutcomeQuote, got %v", out.Kind)
	}
	if out.Last != 60000 || out.Bid != 59990 || out.Ask != 60010 {
		t.Errorf("unexpected fallback decode: %+v", out)
	}
}

func TestMEXCPrefersPrimaryFieldNames(t *testing.T) {
	c := NewMEXC()
	raw := []byte(`{"channel":"push.ticker","data":{"symbol":"BTC_USDT","lastPrice":"61000","last":"60000","bid1":"60990","bidPrice":"59990","ask1":"61010","askPrice":"60010"}}`)
	out := c.Decode(raw)
	if out.Last != 61000 || out.Bid != 60990 || out.Ask != 61010 {
		t.Errorf("expected primary field names to take priority, got %+v", out)
	}
}

func TestHyperliquidDecodeAllOneOutcomePerSymbol(t *testing.T) {
	c := NewHyperliquid()
	raw := []byte(`{"channel":"allMids","data":{"mids":{"BTC":"60000","ETH":"3000"}}}`)
	outs := c.DecodeAll(raw)
	if len(outs) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outs))
	}
	for _, o := range outs {
		if o.HasBid || o.HasAsk {
			t.Errorf("expected no bid/ask synthesis for hyperliquid, got %+v", o)
		}
	}
}

func TestBybitParsesSymbolOutOfTopic(t *testing.T) {
	c := NewBybit()
	raw := []byte(`{"topic":"orderbook.1.BTCUSDT","ts":1700000000000,"data":{"b":[["59999","1"]],"a":[["60001","1"]]}}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote || out.NativeTicker != "BTCUSDT" {
		t.Fatalf("unexpected decode: %+v", out)
	}
	if out.Last != 60000 {
		t.Errorf("expected derived mid 60000, got %v", out.Last)
	}
}

func TestOKXPongHeartbeat(t *testing.T) {
	c := NewOKX()
	if out := c.Decode([]byte("pong")); out.Kind != quote.OutcomeHeartbeat {
		t.Fatalf("expected Heartbeat, got %v", out.Kind)
	}
}

func TestBitgetDecodesTickerRow(t *testing.T) {
	c := NewBitget()
	raw := []byte(`{"arg":{"instType":"USDT-FUTURES","channel":"ticker","instId":"BTCUSDT"},"data":[{"instId":"BTCUSDT","lastPr":"60000","bidPr":"59999","askPr":"60001","ts":"1700000000000"}]}`)
	out := c.Decode(raw)
	if out.Kind != quote.OutcomeQuote || out.Last != 60000 {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestDydxDecodeAllMultipleMarkets(t *testing.T) {
	c := NewDydx()
	raw := []byte(`{"type":"channel_data","channel":"v4_markets","contents":{"markets":{"BTC-USD":{"oraclePrice":"60000"},"ETH-USD":{"oraclePrice":"3000"}}}}`)
	outs := c.DecodeAll(raw)
	if len(outs) != 2 {
		t.Fatalf("expected 2 markets decoded, got %d", len(outs))
	}
}

func TestKucoinRequiresTokenBeforeWebsocketURL(t *testing.T) {
	c := NewKucoin(nil, nil)
	if url := c.WebsocketURL(); url != "" {
		t.Fatalf("expected empty websocket url before token fetch, got %q", url)
	}
}
