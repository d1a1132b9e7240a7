package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestDialWebSocketRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The dialer must accept the http scheme and upgrade it itself.
	conn, err := DialWebSocket(ctx, server.URL+"/core")
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage([]byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != `{"type":"ping"}` {
		t.Errorf("echo = %q", data)
	}
}

func TestDialWebSocketRejectsBadURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := DialWebSocket(ctx, "://not-a-url"); err == nil {
		t.Error("DialWebSocket accepted a malformed URL")
	}
}

func TestHubURL(t *testing.T) {
	c, err := NewClient("acme.sum", "/core")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Destroy() })

	tests := []struct {
		opts ConnectOptions
		want string
	}{
		{ConnectOptions{Host: "hub.local", Port: 80}, "ws://hub.local:80/core"},
		{ConnectOptions{Host: "hub.local"}, "ws://hub.local/core"},
		{ConnectOptions{Host: "hub.local", Port: 443, TLS: true}, "wss://hub.local:443/core"},
	}
	for _, tt := range tests {
		if got := c.hubURL(tt.opts); got != tt.want {
			t.Errorf("hubURL(%+v) = %q, want %q", tt.opts, got, tt.want)
		}
	}

	if !strings.HasSuffix(c.hubURL(ConnectOptions{Host: "h"}), DefaultWebSocketPath) {
		t.Errorf("hubURL does not use the websocket path")
	}
}
