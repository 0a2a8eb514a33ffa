package codec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"venuequote/internal/breaker"
	"venuequote/internal/quote"
	"venuequote/internal/ratelimit"
)

// kucoinTokenResponse is the bullet-public REST response shape.
type kucoinTokenResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Token           string `json:"token"`
		InstanceServers []struct {
			Endpoint string `json:"endpoint"`
		} `json:"instanceServers"`
	} `json:"data"`
}

const kucoinDefaultBaseURL = "https://api.kucoin.com"

// Kucoin implements Codec for KuCoin futures, which requires a REST token
// prefetch before the websocket connection can be opened.
type Kucoin struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	breakers   *breaker.Registry

	mu       sync.Mutex
	reqID    int
	token    string
	endpoint string
}

// NewKucoin constructs a Kucoin codec. limiter and breakers guard the
// bullet-public token fetch.
func NewKucoin(limiter *ratelimit.Limiter, breakers *breaker.Registry) *Kucoin {
	return &Kucoin{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    kucoinDefaultBaseURL,
		limiter:    limiter,
		breakers:   breakers,
		reqID:      1,
	}
}

func (c *Kucoin) Venue() string   { return "kucoin" }
func (c *Kucoin) Streaming() bool { return true }

// FetchToken obtains a fresh bullet-public token and connection endpoint.
// The supervisor calls this before dialing the websocket.
func (c *Kucoin) FetchToken(ctx context.Context) error {
	if err := c.limiter.Allow(ctx, c.Venue()); err != nil {
		return fmt.Errorf("kucoin token rate limit: %w", err)
	}
	err := c.breakers.Call(ctx, c.Venue(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/bullet-public", strings.NewReader(url.Values{}.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var parsed kucoinTokenResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return err
		}
		if parsed.Code != "200000" || len(parsed.Data.InstanceServers) == 0 {
			return fmt.Errorf("kucoin bullet-public error: %s", parsed.Msg)
		}
		c.mu.Lock()
		c.token = parsed.Data.Token
		c.endpoint = parsed.Data.InstanceServers[0].Endpoint
		c.mu.Unlock()
		return nil
	})
	return err
}

// WebsocketURL returns the endpoint+token URL obtained by FetchToken.
func (c *Kucoin) WebsocketURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || c.endpoint == "" {
		return ""
	}
	return fmt.Sprintf("%s?token=%s&connectId=welcome", c.endpoint, c.token)
}

func (c *Kucoin) nextID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.reqID
	c.reqID++
	return id
}

type kucoinSubscribeFrame struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic"`
	PrivateChannel bool   `json:"privateChannel"`
	Response       bool   `json:"response"`
}

func (c *Kucoin) SubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(kucoinSubscribeFrame{
		ID:       strconv.Itoa(c.nextID()),
		Type:     "subscribe",
		Topic:    "/contractMarket/ticker:" + nativeTicker,
		Response: true,
	})
}

func (c *Kucoin) UnsubscribeFrame(nativeTicker string) ([]byte, error) {
	return json.Marshal(kucoinSubscribeFrame{
		ID:       strconv.Itoa(c.nextID()),
		Type:     "unsubscribe",
		Topic:    "/contractMarket/ticker:" + nativeTicker,
		Response: true,
	})
}

func (c *Kucoin) HeartbeatFrame() []byte {
	b, _ := json.Marshal(map[string]string{"id": strconv.Itoa(c.nextID()), "type": "ping"})
	return b
}

type kucoinTickerData struct {
	Price        string `json:"price"`
	BestBidPrice string `json:"bestBidPrice"`
	BestAskPrice string `json:"bestAskPrice"`
	Ts           int64  `json:"ts"`
}

type kucoinMessage struct {
	Type  string           `json:"type"`
	Topic string           `json:"topic"`
	Data  kucoinTickerData `json:"data"`
}

func (c *Kucoin) Decode(raw []byte) quote.DecodeOutcome {
	var msg kucoinMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return quote.Ignore
	}
	switch msg.Type {
	case "ack":
		return quote.NewAckOutcome(msg.Topic)
	case "welcome":
		return quote.Ignore
	case "pong":
		return quote.Heartbeat
	case "message":
		if !strings.HasPrefix(msg.Topic, "/contractMarket/ticker:") {
			return quote.Ignore
		}
		symbol := strings.TrimPrefix(msg.Topic, "/contractMarket/ticker:")
		price, err1 := parsePositiveFloat(msg.Data.Price)
		bid, err2 := parsePositiveFloat(msg.Data.BestBidPrice)
		ask, err3 := parsePositiveFloat(msg.Data.BestAskPrice)
		if err1 != nil || err2 != nil || err3 != nil {
			return quote.Ignore
		}
		return quote.NewQuoteOutcome(symbol, price, bid, ask, true, true, msg.Data.Ts/1_000_000)
	default:
		return quote.Ignore
	}
}
