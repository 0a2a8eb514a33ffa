package codec

import (
	"encoding/json"
	"fmt"

	"venuequote/internal/quote"
)

// Deribit implements Codec for Deribit's JSON-RPC 2.0 ticker channel.
type Deribit struct {
	reqID int
}

// NewDeribit constructs a Deribit codec.
func NewDeribit() *Deribit { return &Deribit{reqID: 1} }

func (c *Deribit) Venue() string   { return "deribit" }
func (c *Deribit) Streaming() bool { return true }

type deribitRPCFrame struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      int                    `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
}

func (c *Deribit) nextID() int {
	id := c.reqID
	c.reqID++
	return id
}

func (c *Deribit) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(deribitRPCFrame{
		JSONRPC: "2.0",
		ID:      c.nextID(),
		Method:  "public/subscribe",
		Params:  map[string]interface{}{"channels": []string{fmt.Sprintf("ticker.%s.100ms", nativeTicker)}},
	})
}

func (c *Deribit) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(deribitRPCFrame{
		JSONRPC: "2.0",
		ID:      c.nextID(),
		Method:  "public/unsubscribe",
		Params:  map[string]interface{}{"channels": []string{fmt.Sprintf("ticker.%s.100ms", nativeTicker)}},
	})
}

func (c *Deribit) HeartbeatFrame() []byte {
	b, _ := json.Marshal(deribitRPCFrame{JSONRPC: "2.0", ID: c.nextID(), Method: "public/test"})
	return b
}

type deribitTickerData struct {
	InstrumentName string  `json:"instrument_name"`
	LastPrice      float64 `json:"last_price"`
	BestBidPrice   float64 `json:"best_bid_price"`
	BestAskPrice   float64 `json:"best_ask_price"`
	Timestamp      int64   `json:"timestamp"`
}

type deribitNotification struct {
	Method string `json:"method"`
	Params struct {
		Channel string             `json:"channel"`
		Data    deribitTickerData  `json:"data"`
	} `json:"params"`
}

type deribitRPCResponse struct {
	ID     *int `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Deribit) Decode(raw []byte) quote.DecodeOutcome {
	var resp deribitRPCResponse
	if err := json.Unmarshal(raw, &resp); err == nil && resp.ID != nil {
		if resp.Error != nil {
			return quote.NewErrorOutcome(resp.Error.Message, false)
		}
		return quote.NewAckOutcome(fmt.Sprintf("%d", *resp.ID))
	}

	var notif deribitNotification
	if err := json.Unmarshal(raw, &notif); err != nil || notif.Method != "subscription" {
		return quote.Ignore
	}
	d := notif.Params.Data
	if d.InstrumentName == "" || d.LastPrice <= 0 || d.BestBidPrice <= 0 || d.BestAskPrice <= 0 {
		return quote.Ignore
	}
	return quote.NewQuoteOutcome(d.InstrumentName, d.LastPrice, d.BestBidPrice, d.BestAskPrice, true, true, d.Timestamp)
}
