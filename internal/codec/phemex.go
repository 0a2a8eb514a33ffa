package codec

import (
	"encoding/json"
	"strconv"
	"strings"

	"venuequote/internal/quote"
)

// defaultPhemexScale is used for symbols without a documented scale
// factor entry.
const defaultPhemexScale = 10000

// phemexScaleFactors maps Phemex's native symbol to its fixed-point scale
// factor (spec.md S4: BTCUSD/ETHUSD at 10000, XRPUSD/ADAUSD at 1e8).
var phemexScaleFactors = map[string]int64{
	"BTCUSD": 10000,
	"ETHUSD": 10000,
	"XRPUSD": 100000000,
	"ADAUSD": 100000000,
}

// Phemex implements Codec for Phemex's scaled-integer orderbook stream.
type Phemex struct {
	reqID int
}

// NewPhemex constructs a Phemex codec.
func NewPhemex() *Phemex { return &Phemex{reqID: 1} }

func (c *Phemex) Venue() string   { return "phemex" }
func (c *Phemex) Streaming() bool { return true }

type phemexSubscribeFrame struct {
	ID     int           `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

func (c *Phemex) nextID() int {
	id := c.reqID
	c.reqID++
	return id
}

func (c *Phemex) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(phemexSubscribeFrame{
		ID:     c.nextID(),
		Method: "orderbook.subscribe",
		Params: []interface{}{nativeTicker, 20},
	})
}

func (c *Phemex) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(phemexSubscribeFrame{
		ID:     c.nextID(),
		Method: "orderbook.unsubscribe",
		Params: []interface{}{nativeTicker},
	})
}

func (c *Phemex) HeartbeatFrame() []byte {
	b, _ := json.Marshal(phemexSubscribeFrame{ID: c.nextID(), Method: "server.ping", Params: []interface{}{}})
	return b
}

func scaleForSymbol(symbol string) int64 {
	if s, ok := phemexScaleFactors[symbol]; ok {
		return s
	}
	return defaultPhemexScale
}

type phemexBook struct {
	Bids [][]json.Number `json:"bids"`
	Asks [][]json.Number `json:"asks"`
}

type phemexMessage struct {
	ID        int         `json:"id"`
	Result    interface{} `json:"result"`
	Error     interface{} `json:"error"`
	Symbol    string      `json:"symbol"`
	Book      *phemexBook `json:"book"`
	Timestamp int64       `json:"timestamp"`
	Method    string      `json:"method"`
	Params    []json.RawMessage `json:"params"`
}

func (c *Phemex) Decode(raw []byte) quote.DecodeOutcome {
	var msg phemexMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return quote.Ignore
	}
	if msg.Error != nil {
		return quote.NewErrorOutcome("phemex error", false)
	}
	if msg.ID != 0 && msg.Result != nil {
		return quote.NewAckOutcome(strconv.Itoa(msg.ID))
	}
	if msg.Symbol != "" && msg.Book != nil {
		return c.decodeBook(msg.Symbol, *msg.Book, msg.Timestamp/1_000_000)
	}
	if msg.Method == "orderbook.update" && len(msg.Params) >= 2 {
		var symbol string
		if err := json.Unmarshal(msg.Params[0], &symbol); err != nil {
			return quote.Ignore
		}
		var book phemexBook
		if err := json.Unmarshal(msg.Params[1], &book); err != nil {
			return quote.Ignore
		}
		return c.decodeBook(symbol, book, msg.Timestamp/1_000_000)
	}
	return quote.Ignore
}

func (c *Phemex) decodeBook(symbol string, book phemexBook, tsMs int64) quote.DecodeOutcome {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return quote.Ignore
	}
	scale := scaleForSymbol(symbol)
	bidRaw, err1 := book.Bids[0][0].Float64()
	askRaw, err2 := book.Asks[0][0].Float64()
	if err1 != nil || err2 != nil {
		return quote.Ignore
	}
	bid := bidRaw / float64(scale)
	ask := askRaw / float64(scale)
	if bid <= 0 || ask <= 0 {
		return quote.Ignore
	}
	return quote.NewQuoteOutcome(symbol, 0, bid, ask, true, true, tsMs)
}

// ToPhemexSymbol converts a display-style symbol to Phemex's native form.
func ToPhemexSymbol(symbol string) string {
	switch symbol {
	case "BTCUSDT":
		return "BTCUSD"
	case "ETHUSDT":
		return "ETHUSD"
	default:
		return strings.Replace(symbol, "USDT", "USD", 1)
	}
}
