package broker

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is a bidirectional message-framed connection to the hub. The
// broker assumes complete frames delivered in order; the reference
// implementation is WebSocket.
type Conn interface {
	// ReadMessage blocks until the next complete frame arrives.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one complete frame. Safe for concurrent use.
	WriteMessage(data []byte) error

	Close() error
}

// Dialer opens a Conn to the given URL.
type Dialer func(ctx context.Context, rawURL string) (Conn, error)

// wsConn adapts a gorilla websocket connection to Conn. gorilla permits
// only one concurrent writer, so writes are serialized here.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// DialWebSocket is the default Dialer. It accepts ws://, wss://, and
// their http(s) equivalents.
func DialWebSocket(ctx context.Context, rawURL string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse hub URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}

	// Larger buffers than gorilla's defaults; hub registries and bulk
	// responses routinely exceed 4 KiB.
	dialer := websocket.Dialer{
		ReadBufferSize:  1024 * 1024,
		WriteBufferSize: 64 * 1024,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}
	conn.SetReadLimit(100 * 1024 * 1024)

	return &wsConn{conn: conn}, nil
}
