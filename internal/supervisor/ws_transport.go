package supervisor

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// WSTransport is the production Transport backed by gorilla/websocket,
// grounded on the lazy-dial-and-cache-conn pattern in the teacher's
// adapters/binance_adapter.go.
type WSTransport struct {
	url  string
	dialer *websocket.Dialer
	conn *websocket.Conn
}

// NewWSTransport constructs a transport that will dial url on Dial.
func NewWSTransport(url string) *WSTransport {
	return &WSTransport{url: url, dialer: websocket.DefaultDialer}
}

func (t *WSTransport) Dial(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", t.url, err)
	}
	t.conn = conn
	return nil
}

func (t *WSTransport) Read(ctx context.Context) ([]byte, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("websocket read: not connected")
	}
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *WSTransport) Write(ctx context.Context, frame []byte) error {
	if t.conn == nil {
		return fmt.Errorf("websocket write: not connected")
	}
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *WSTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
