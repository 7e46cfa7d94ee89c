package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a bidirectional message-framed socket. The Manager treats it
// as an opaque send/receive pair; gorilla/websocket provides the production
// implementation and tests substitute in-memory pipes.
type Transport interface {
	// ReadMessage blocks until the next complete inbound message.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one complete message. Callers must serialize
	// writes; the Manager holds its write lock across this call.
	WriteMessage(data []byte) error

	// Close tears the socket down. Safe to call more than once.
	Close() error
}

// Dialer opens a Transport to a peer address.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Transport, error)
}

// bridgePath is the WebSocket endpoint the Designer serves on its
// advertised loopback port.
const bridgePath = "/studiobridge"

// WebSocketDialer dials the Designer's advertised WebSocket endpoint.
type WebSocketDialer struct {
	config *Config
}

// NewWebSocketDialer returns a Dialer for the given config. A nil config
// uses DefaultConfig.
func NewWebSocketDialer(config *Config) *WebSocketDialer {
	if config == nil {
		config = DefaultConfig()
	}
	return &WebSocketDialer{config: config}
}

// Dial opens a WebSocket connection to ws://addr/studiobridge.
func (d *WebSocketDialer) Dial(ctx context.Context, addr string) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.config.ConnectTimeout,
	}

	url := fmt.Sprintf("ws://%s%s", addr, bridgePath)
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	if d.config.MaxMessageSize > 0 {
		conn.SetReadLimit(d.config.MaxMessageSize)
	}

	return &wsTransport{conn: conn, config: d.config}, nil
}

// wsTransport adapts a gorilla connection to the Transport interface.
type wsTransport struct {
	conn   *websocket.Conn
	config *Config
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	if t.config.ReadTimeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	}
	_, msg, err := t.conn.ReadMessage()
	return msg, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
