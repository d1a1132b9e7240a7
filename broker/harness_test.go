package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// pipeConn is an in-memory Conn for loopback tests. Two ends share one
// closed channel, so closing either side drops the pair, mirroring a
// socket.
type pipeConn struct {
	read   chan []byte
	write  chan []byte
	closed chan struct{}
	once   *sync.Once
}

func newConnPair() (client, server *pipeConn) {
	toServer := make(chan []byte, 64)
	toClient := make(chan []byte, 64)
	closed := make(chan struct{})
	once := &sync.Once{}
	client = &pipeConn{read: toClient, write: toServer, closed: closed, once: once}
	server = &pipeConn{read: toServer, write: toClient, closed: closed, once: once}
	return client, server
}

func (c *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.read:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *pipeConn) WriteMessage(data []byte) error {
	select {
	case c.write <- data:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// hubConn is the hub side of one accepted connection. It records every
// frame the client sends and can answer awaited frames automatically.
type hubConn struct {
	t    *testing.T
	conn *pipeConn
	auto bool

	mu      sync.Mutex
	pending []*Message
	notify  chan struct{}
}

func (hc *hubConn) reader() {
	for {
		data, err := hc.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if hc.auto && msg.Type != TypeResponse && msg.Type != TypeEvent {
			hc.respondTo(&msg, true)
		}
		hc.mu.Lock()
		hc.pending = append(hc.pending, &msg)
		hc.mu.Unlock()
		select {
		case hc.notify <- struct{}{}:
		default:
		}
	}
}

// waitFor returns (and consumes) the first recorded frame matching
// pred, failing the test after two seconds.
func (hc *hubConn) waitFor(desc string, pred func(*Message) bool) *Message {
	hc.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		hc.mu.Lock()
		for i, msg := range hc.pending {
			if pred(msg) {
				hc.pending = append(hc.pending[:i], hc.pending[i+1:]...)
				hc.mu.Unlock()
				return msg
			}
		}
		hc.mu.Unlock()
		if time.Now().After(deadline) {
			hc.t.Fatalf("timed out waiting for %s", desc)
		}
		select {
		case <-hc.notify:
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (hc *hubConn) waitForType(typ string) *Message {
	hc.t.Helper()
	return hc.waitFor("frame of type "+typ, func(m *Message) bool { return m.Type == typ })
}

func (hc *hubConn) send(msg *Message) {
	hc.t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		hc.t.Fatalf("marshal hub frame: %v", err)
	}
	if err := hc.conn.WriteMessage(data); err != nil {
		hc.t.Fatalf("write hub frame: %v", err)
	}
}

func (hc *hubConn) respondTo(req *Message, success bool, data ...any) {
	if data == nil {
		data = []any{}
	}
	resp := &Message{
		Type:             TypeResponse,
		ID:               "hub-resp-" + req.ID,
		RequestID:        req.ID,
		ModuleName:       "hub.core",
		TargetModuleName: req.ModuleName,
		Success:          boolPtr(success),
		Data:             data,
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = hc.conn.WriteMessage(raw)
}

func (hc *hubConn) sendEvent(eventName string, args ...any) {
	hc.t.Helper()
	if args == nil {
		args = []any{}
	}
	hc.send(&Message{
		Type:       TypeEvent,
		ID:         "hub-evt",
		ModuleName: "hub.core",
		EventName:  eventName,
		Data:       args,
	})
}

func (hc *hubConn) sendPing(server, target string) {
	hc.t.Helper()
	hc.send(&Message{
		Type:             TypePing,
		ID:               "hub-ping-" + server + "-" + target,
		ModuleName:       server,
		TargetModuleName: target,
	})
}

// fakeHub hands a fresh connection pair to every dial, so reconnect
// tests can accept the replacement connection.
type fakeHub struct {
	t     *testing.T
	auto  bool
	conns chan *hubConn
}

func newFakeHub(t *testing.T, auto bool) *fakeHub {
	return &fakeHub{t: t, auto: auto, conns: make(chan *hubConn, 4)}
}

func (h *fakeHub) dialer() Dialer {
	return func(ctx context.Context, rawURL string) (Conn, error) {
		client, server := newConnPair()
		hc := &hubConn{t: h.t, conn: server, auto: h.auto, notify: make(chan struct{}, 1)}
		go hc.reader()
		h.conns <- hc
		return client, nil
	}
}

func (h *fakeHub) accept() *hubConn {
	h.t.Helper()
	select {
	case hc := <-h.conns:
		return hc
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for a hub connection")
		return nil
	}
}

func testConfig() Config {
	return Config{MessageTimeout: 300 * time.Millisecond}
}

// newTestClient connects a client named acme.sum to a fake hub.
func newTestClient(t *testing.T, auto bool) (*Client, *fakeHub, *hubConn) {
	t.Helper()
	hub := newFakeHub(t, auto)

	c, err := NewClient("acme.sum", "",
		WithDialer(hub.dialer()),
		WithConfig(testConfig()),
		WithReconnectWait(25*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Destroy() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx, ConnectOptions{Host: "hub.test"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c, hub, hub.accept()
}

type callResult struct {
	data []any
	err  error
}
