// Package broker implements the client side of the RealityHub message
// broker. A module embeds a Client to exchange request/response method
// calls, subscription-based events, and control traffic with the hub
// over one bidirectional message-framed connection.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/zerodensity/realityhub-api/logging"
)

// Internal signal names carried by the client's signal bus.
const (
	signalConnect          = "connect"
	signalDisconnect       = "disconnect"
	signalDestroy          = "destroy"
	signalError            = "error"
	signalModuleConnect    = "moduleconnect"
	signalModuleDisconnect = "moduledisconnect"
)

// DefaultWebSocketPath is the hub's broker endpoint.
const DefaultWebSocketPath = "/core"

const eventQueueSize = 128

// ConnectOptions locate the hub for Connect. The same options are
// reused for every automatic reconnect attempt.
type ConnectOptions struct {
	Host string
	Port int
	TLS  bool
}

// Client is one module's connection to the hub. A parent client owns
// the transport; duplicates created with Duplicate share it while
// keeping their own identity, handler table, subscription table, and
// registrars.
type Client struct {
	moduleName    string
	wsPath        string
	cfg           Config
	logger        *slog.Logger
	dialer        Dialer
	reconnectWait time.Duration

	emitter *emitter

	mu               sync.Mutex
	conn             Conn
	connected        bool
	destroyed        bool
	serverModuleName string
	handlers         map[string]handlerEntry
	subs             map[string][]*subscription
	registrars       map[string]struct{}
	lastOpts         *ConnectOptions

	pendingMu sync.Mutex
	pending   map[string]chan *Message

	parent     *Client
	dupMu      sync.Mutex
	duplicates map[*Client]struct{}

	events   chan *Message
	quit     chan struct{}
	quitOnce sync.Once

	reconnectMu    sync.Mutex
	reconnectTimer *time.Timer
}

// Option configures a Client at construction.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConfig injects explicit limits instead of the environment-derived
// defaults.
func WithConfig(cfg Config) Option {
	return func(c *Client) { c.cfg = cfg.withDefaults() }
}

// WithDialer replaces the websocket dialer, primarily for tests and
// alternate transports.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithReconnectWait overrides the delay between a connection loss and
// the automatic reconnect attempt.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectWait = d
		}
	}
}

// NewClient creates a client for the given vendor.module name. The
// websocket path defaults to DefaultWebSocketPath when empty.
func NewClient(moduleName, wsPath string, opts ...Option) (*Client, error) {
	if !validModuleName(moduleName) {
		return nil, fmt.Errorf("module name %q is not a vendor.module name", moduleName)
	}
	if wsPath == "" {
		wsPath = DefaultWebSocketPath
	}

	c := &Client{
		moduleName:    moduleName,
		wsPath:        wsPath,
		cfg:           ConfigFromEnv(),
		logger:        logging.Silent(),
		dialer:        DialWebSocket,
		reconnectWait: defaultReconnectWait,
		emitter:       newEmitter(),
		handlers:      make(map[string]handlerEntry),
		subs:          make(map[string][]*subscription),
		registrars:    make(map[string]struct{}),
		pending:       make(map[string]chan *Message),
		duplicates:    make(map[*Client]struct{}),
		events:        make(chan *Message, eventQueueSize),
		quit:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("module", moduleName)

	go c.eventLoop()
	return c, nil
}

// ModuleName returns the client's vendor.module identity.
func (c *Client) ModuleName() string {
	return c.moduleName
}

// ServerModuleName returns the hub's module name as captured from the
// most recent server ping, or empty before one arrived.
func (c *Client) ServerModuleName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverModuleName
}

// root returns the parent that owns the transport. Duplicates of
// duplicates attach to the original parent at creation, so the chain is
// at most one level deep.
func (c *Client) root() *Client {
	if c.parent != nil {
		return c.parent
	}
	return c
}

func (c *Client) currentConn() Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// IsConnected reports whether the family's transport is open.
// Duplicates delegate to their parent.
func (c *Client) IsConnected() bool {
	root := c.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	return root.connected
}

// hubURL builds the websocket URL for opts.
func (c *Client) hubURL(opts ConnectOptions) string {
	scheme := "ws"
	if opts.TLS {
		scheme = "wss"
	}
	host := opts.Host
	if opts.Port > 0 {
		host = host + ":" + strconv.Itoa(opts.Port)
	}
	u := url.URL{Scheme: scheme, Host: host, Path: c.wsPath}
	return u.String()
}

// Connect opens the transport to the hub. On failure the dial is
// retried automatically after the reconnect delay, so a caller that can
// tolerate a late hub may ignore the error and block on AwaitConnect
// instead. Duplicates cannot connect; the parent owns the transport.
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) error {
	if c.parent != nil {
		return errors.New("duplicate clients share the parent's connection")
	}
	if c.isDestroyed() {
		return ErrDestroyed
	}
	if opts.Host == "" {
		return ErrMissingAddress
	}

	c.mu.Lock()
	c.lastOpts = &opts
	c.mu.Unlock()

	target := c.hubURL(opts)
	c.logger.Info("connecting to hub", "url", target)

	conn, err := c.dialer(ctx, target)
	if err != nil {
		c.logger.Warn("hub connection failed", "url", target, "error", err)
		c.scheduleReconnect()
		return fmt.Errorf("connect %s: %w", target, err)
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		conn.Close()
		return ErrDestroyed
	}
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}

	go c.readLoop(conn)
	c.handleOpen()
	return nil
}

// ForceReconnect drops the current connection. The read loop observes
// the close and drives the normal reconnect path.
func (c *Client) ForceReconnect() {
	root := c.root()
	if conn := root.currentConn(); conn != nil {
		conn.Close()
		return
	}
	root.scheduleReconnect()
}

// AwaitConnect blocks until the family's transport is open or ctx is
// done. It returns immediately when already connected.
func (c *Client) AwaitConnect(ctx context.Context) error {
	root := c.root()

	ready := make(chan struct{}, 1)
	token := root.emitter.once(signalConnect, func([]any) {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	defer root.emitter.off(signalConnect, token)

	if root.IsConnected() {
		return nil
	}
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping round-trips a ping through the hub.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.send(ctx, &Message{Type: TypePing}, nil, false, 0)
	return err
}

// handleOpen marks the family connected and fans the open out: the
// connect signal fires, registrars are re-announced, and every
// duplicate runs its own open sequence.
func (c *Client) handleOpen() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.emitter.emit(signalConnect)

	if c.parent != nil {
		// Duplicates announce themselves so the hub learns the extra
		// module identity on the shared transport.
		go func() {
			if err := c.Ping(context.Background()); err != nil {
				c.logger.Debug("post-open ping failed", "error", err)
			}
		}()
	}

	if registrars := c.registrarNames(); len(registrars) > 0 {
		go func() {
			for _, target := range registrars {
				if err := c.RegisterHandlersToRemote(context.Background(), target); err != nil {
					c.logger.Warn("failed to re-register handlers", "registrar", target, "error", err)
				}
			}
		}()
	}

	for _, d := range c.duplicateList() {
		d.handleOpen()
	}
}

// handleClose runs when the transport is lost. The disconnect signal
// fires only when the client had observed the open, stale server
// lifecycle subscriptions are dropped, duplicates cascade, and a
// reconnect is scheduled with the last connect options.
func (c *Client) handleClose(conn Conn) {
	c.mu.Lock()
	if c.conn != nil && c.conn != conn {
		// A stale read loop from an already replaced connection.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if wasConnected {
		c.emitter.emit(signalDisconnect)
		c.dropServerLifecycleSubs()
		for _, d := range c.duplicateList() {
			d.handleClose(conn)
		}
	}
	if c.parent == nil {
		c.scheduleReconnect()
	}
}

// dropServerLifecycleSubs deletes the server lifecycle subscription
// entries. They are re-installed by the first ping after reconnect and
// would otherwise go stale.
func (c *Client) dropServerLifecycleSubs() {
	c.mu.Lock()
	server := c.serverModuleName
	c.mu.Unlock()
	if server == "" {
		return
	}
	_ = c.unsubscribe(context.Background(), server+".moduleconnect", nil, false)
	_ = c.unsubscribe(context.Background(), server+".moduledisconnect", nil, false)
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	opts := c.lastOpts
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed || opts == nil || c.parent != nil {
		return
	}

	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	if c.reconnectTimer != nil {
		return
	}
	c.reconnectTimer = time.AfterFunc(c.reconnectWait, func() {
		c.reconnectMu.Lock()
		c.reconnectTimer = nil
		c.reconnectMu.Unlock()
		if c.isDestroyed() {
			return
		}
		if err := c.Connect(context.Background(), *opts); err != nil {
			c.logger.Debug("reconnect attempt failed", "error", err)
		}
	})
}

// readLoop pumps frames from one connection into dispatch until the
// connection dies.
func (c *Client) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !c.isDestroyed() {
				c.logger.Warn("hub connection lost", "error", err)
			}
			c.handleClose(conn)
			return
		}
		c.dispatch(data, conn)
	}
}

// replayToDuplicates hands a raw frame to every live duplicate so their
// subscription tables and response waiters observe the same stream.
func (c *Client) replayToDuplicates(data []byte, conn Conn) {
	for _, d := range c.duplicateList() {
		d.dispatch(data, conn)
	}
}

// dispatch is the inbound state machine. Response routing and event
// queueing stay on the read loop to preserve frame order; branches that
// themselves await responses on the same transport (ping, method
// handlers) run on their own goroutine.
func (c *Client) dispatch(data []byte, conn Conn) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("malformed inbound frame", "error", err)
		return
	}

	switch msg.Type {
	case TypeResponse:
		c.routeResponse(&msg)
		if c.parent == nil {
			c.replayToDuplicates(data, conn)
		}

	case TypeEvent:
		c.enqueueEvent(&msg)
		if c.parent == nil {
			c.replayToDuplicates(data, conn)
		}

	case TypeSubscribe, TypeUnsubscribe:
		c.dispatchSubscriptionControl(&msg, data, conn)

	case TypePing:
		c.dispatchPing(&msg, data, conn)

	default:
		c.dispatchMethod(&msg, data, conn)
	}
}

// routeResponse wakes the waiter for the correlated request. A late
// response for an already torn down waiter is dropped.
func (c *Client) routeResponse(msg *Message) {
	c.pendingMu.Lock()
	waiter, ok := c.pending[msg.RequestID]
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Debug("response for unknown request", "requestId", msg.RequestID)
		return
	}
	select {
	case waiter <- msg:
	default:
	}
}

// dispatchSubscriptionControl serves inbound subscribe/unsubscribe for
// this module, hands targeted traffic to the matching duplicate, and
// rejects the rest.
func (c *Client) dispatchSubscriptionControl(msg *Message, data []byte, conn Conn) {
	target := eventTarget(msg.EventName)
	local := eventLocal(msg.EventName)

	if target == c.moduleName {
		c.emitter.emit(msg.Type, local)
		c.respond(conn, msg, true, nil, false)
		return
	}
	if c.parent == nil {
		if d := c.duplicateByName(target); d != nil {
			d.dispatch(data, conn)
			return
		}
	}
	c.respond(conn, msg, false, []any{map[string]any{
		"error": fmt.Sprintf("%s received a %s message intended for %q", c.moduleName, msg.Type, target),
	}}, false)
}

// dispatchPing captures the server identity, hands duplicate-targeted
// pings off, and otherwise answers while refreshing subscriptions.
func (c *Client) dispatchPing(msg *Message, data []byte, conn Conn) {
	c.mu.Lock()
	c.serverModuleName = msg.ModuleName
	c.mu.Unlock()

	if c.parent == nil && msg.TargetModuleName != "" && msg.TargetModuleName != c.moduleName {
		if d := c.duplicateByName(msg.TargetModuleName); d != nil {
			d.dispatch(data, conn)
			return
		}
	}

	c.respond(conn, msg, true, nil, false)
	go func() {
		c.resubscribeAll(context.Background())
		c.installServerLifecycleSubs(context.Background(), msg.ModuleName)
	}()
}

// resubscribeAll announces a fresh subscribe for every table entry.
// Called after reconnect (driven by the server ping) and when a peer
// module appears.
func (c *Client) resubscribeAll(ctx context.Context) {
	for _, event := range c.subscribedEvents() {
		msg := &Message{
			Type:             TypeSubscribe,
			EventName:        event,
			TargetModuleName: eventTarget(event),
		}
		if _, err := c.send(ctx, msg, nil, false, 0); err != nil {
			c.logger.Debug("resubscribe failed", "event", event, "error", err)
		}
	}
}

// installServerLifecycleSubs subscribes to the hub's module lifecycle
// events. Installation is idempotent: prior entries are dropped first
// so reconnect cycles do not accumulate duplicates.
func (c *Client) installServerLifecycleSubs(ctx context.Context, server string) {
	if server == "" {
		return
	}
	connectEvent := server + ".moduleconnect"
	disconnectEvent := server + ".moduledisconnect"

	_ = c.unsubscribe(ctx, connectEvent, nil, false)
	_ = c.unsubscribe(ctx, disconnectEvent, nil, false)

	err := c.subscribe(ctx, connectEvent, func(args []any) {
		c.emitter.emit(signalModuleConnect, args...)
		// A peer that just appeared may own events this module watches.
		go c.resubscribeAll(context.Background())
	}, subscribeOptions{sendMessage: true})
	if err != nil {
		c.logger.Debug("failed to install lifecycle subscription", "event", connectEvent, "error", err)
	}

	err = c.subscribe(ctx, disconnectEvent, func(args []any) {
		c.emitter.emit(signalModuleDisconnect, args...)
	}, subscribeOptions{sendMessage: true})
	if err != nil {
		c.logger.Debug("failed to install lifecycle subscription", "event", disconnectEvent, "error", err)
	}
}

// dispatchMethod resolves a method FQN against the handler table,
// handing off to the duplicate serving the target module when this
// client does not.
func (c *Client) dispatchMethod(msg *Message, data []byte, conn Conn) {
	entry, ok := c.handlerFor(msg.Type)
	if !ok {
		if c.parent == nil {
			if d := c.duplicateForMethod(msg); d != nil {
				d.dispatch(data, conn)
				return
			}
		}
		c.respond(conn, msg, false, []any{map[string]any{
			"error": "There is no handler registered for this type of message: " + msg.Type,
		}}, false)
		return
	}
	go c.invokeHandler(entry, msg, conn)
}

// invokeHandler runs one method handler and responds with its result.
// Handler failures never propagate: a BrokerError surfaces its own
// message, a timeout is downgraded to a warning because the remote
// caller already observed it, and anything else becomes a generic
// failure response.
func (c *Client) invokeHandler(entry handlerEntry, msg *Message, conn Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), c.requestDeadline(0, msg.Timeout))
	defer cancel()

	result, err := func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return entry.fn(ctx, msg.Data)
	}()

	if err == nil {
		if raw, ok := result.(*RawRequest); ok {
			result, err = raw.invoke(msg.InstigatorID, msg.Data)
		}
	}

	if err != nil {
		if IsTimeout(err) {
			c.logger.Warn("handler timed out", "type", msg.Type, "error", err)
			return
		}
		var brokerErr *BrokerError
		if errors.As(err, &brokerErr) {
			c.respond(conn, msg, false, []any{map[string]any{"error": brokerErr.Message}}, entry.relay)
			return
		}
		c.logger.Log(ctx, logging.LevelTrace, "handler failed", "type", msg.Type, "error", err)
		c.respond(conn, msg, false, []any{map[string]any{"error": "ERROR"}}, entry.relay)
		return
	}

	payload := []any{}
	if result != nil {
		payload = []any{result}
	}
	c.respond(conn, msg, true, payload, entry.relay)
}

// enqueueEvent queues an event frame for ordered delivery. The queue
// decouples handlers from the read loop so a handler that issues its
// own requests cannot starve response routing.
func (c *Client) enqueueEvent(msg *Message) {
	select {
	case c.events <- msg:
	default:
		c.logger.Warn("event queue full, dropping event", "eventName", msg.EventName)
	}
}

// eventLoop delivers queued events in arrival order until the client is
// destroyed.
func (c *Client) eventLoop() {
	for {
		select {
		case msg := <-c.events:
			c.deliverEvent(msg)
		case <-c.quit:
			return
		}
	}
}

// deliverEvent invokes every table entry for the event in registration
// order. A panicking handler is logged and does not interrupt the
// remaining handlers; once entries are removed after their invocation.
func (c *Client) deliverEvent(msg *Message) {
	c.mu.Lock()
	list := c.subs[msg.EventName]
	snapshot := make([]*subscription, len(list))
	copy(snapshot, list)
	c.mu.Unlock()

	var fired []*subscription
	for _, sub := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Warn("event handler panicked", "eventName", msg.EventName, "panic", r)
				}
			}()
			sub.fn(msg.Data)
		}()
		if sub.once {
			fired = append(fired, sub)
		}
	}
	for _, sub := range fired {
		c.removeSubscription(msg.EventName, sub)
	}
}

// Duplicate creates a sibling client with its own module identity and
// tables that shares this family's transport. Duplicates always attach
// to the root parent, never to an intermediate duplicate.
func (c *Client) Duplicate(moduleName string) (*Client, error) {
	root := c.root()
	if root.isDestroyed() {
		return nil, ErrDestroyed
	}

	d, err := NewClient(moduleName, root.wsPath,
		WithConfig(root.cfg),
		WithDialer(root.dialer),
		WithReconnectWait(root.reconnectWait),
	)
	if err != nil {
		return nil, err
	}
	d.logger = root.logger.With("module", moduleName)
	d.parent = root

	root.dupMu.Lock()
	root.duplicates[d] = struct{}{}
	root.dupMu.Unlock()

	d.emitter.on(signalDestroy, func([]any) {
		root.dupMu.Lock()
		delete(root.duplicates, d)
		root.dupMu.Unlock()
	})
	return d, nil
}

func (c *Client) duplicateList() []*Client {
	c.dupMu.Lock()
	defer c.dupMu.Unlock()
	list := make([]*Client, 0, len(c.duplicates))
	for d := range c.duplicates {
		list = append(list, d)
	}
	return list
}

func (c *Client) duplicateByName(moduleName string) *Client {
	for _, d := range c.duplicateList() {
		if d.moduleName == moduleName {
			return d
		}
	}
	return nil
}

// duplicateForMethod finds the duplicate serving a method message,
// matching first on target module and then on handler key.
func (c *Client) duplicateForMethod(msg *Message) *Client {
	target := msg.TargetModuleName
	if target == "" {
		target, _ = splitFQN(msg.Type)
	}
	if d := c.duplicateByName(target); d != nil {
		return d
	}
	for _, d := range c.duplicateList() {
		if _, ok := d.handlerFor(msg.Type); ok {
			return d
		}
	}
	return nil
}

// Destroy tears the client down. A duplicate withdraws its handlers
// from every registrar, unsubscribes from its events, announces its
// disconnect to the server, and detaches from the parent. A parent
// closes the transport, cancels any pending reconnect, and drops every
// signal listener. Destroy is idempotent.
func (c *Client) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if c.parent != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.MessageTimeout)
		defer cancel()

		c.DeregisterHandlersFromRemotes(ctx)
		c.UnsubscribeFromAllEvents(ctx)
		if _, err := c.send(ctx, &Message{
			Type:      TypeEvent,
			EventName: c.moduleName + ".disconnect",
		}, nil, false, 0); err != nil {
			c.logger.Debug("failed to announce disconnect", "error", err)
		}

		c.mu.Lock()
		c.destroyed = true
		c.mu.Unlock()
		c.quitOnce.Do(func() { close(c.quit) })
		c.emitter.emit(signalDestroy)
		c.emitter.removeAll()
		return nil
	}

	c.mu.Lock()
	c.destroyed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	c.reconnectMu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectMu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.quitOnce.Do(func() { close(c.quit) })
	c.emitter.emit(signalDestroy)
	c.emitter.removeAll()
	return err
}

// OnError attaches fn to the error signal. While at least one error
// listener is attached, request failures are emitted instead of
// returned from calls. The returned function detaches fn.
func (c *Client) OnError(fn func(err error)) func() {
	token := c.emitter.on(signalError, func(args []any) {
		if len(args) > 0 {
			if err, ok := args[0].(error); ok {
				fn(err)
			}
		}
	})
	return func() { c.emitter.off(signalError, token) }
}

// OnConnect attaches fn to the connect signal.
func (c *Client) OnConnect(fn func()) func() {
	token := c.emitter.on(signalConnect, func([]any) { fn() })
	return func() { c.emitter.off(signalConnect, token) }
}

// OnDisconnect attaches fn to the disconnect signal.
func (c *Client) OnDisconnect(fn func()) func() {
	token := c.emitter.on(signalDisconnect, func([]any) { fn() })
	return func() { c.emitter.off(signalDisconnect, token) }
}

// OnModuleConnect attaches fn to peer-module lifecycle arrivals
// surfaced by the hub.
func (c *Client) OnModuleConnect(fn func(args []any)) func() {
	token := c.emitter.on(signalModuleConnect, func(args []any) { fn(args) })
	return func() { c.emitter.off(signalModuleConnect, token) }
}

// OnModuleDisconnect attaches fn to peer-module lifecycle departures.
func (c *Client) OnModuleDisconnect(fn func(args []any)) func() {
	token := c.emitter.on(signalModuleDisconnect, func(args []any) { fn(args) })
	return func() { c.emitter.off(signalModuleDisconnect, token) }
}

// OnLocalSubscribe attaches fn to inbound subscriptions for this
// module's own events. fn receives the event's local name.
func (c *Client) OnLocalSubscribe(fn func(eventName string)) func() {
	token := c.emitter.on(TypeSubscribe, func(args []any) {
		if len(args) > 0 {
			if name, ok := args[0].(string); ok {
				fn(name)
			}
		}
	})
	return func() { c.emitter.off(TypeSubscribe, token) }
}

// OnLocalUnsubscribe attaches fn to inbound unsubscriptions for this
// module's own events.
func (c *Client) OnLocalUnsubscribe(fn func(eventName string)) func() {
	token := c.emitter.on(TypeUnsubscribe, func(args []any) {
		if len(args) > 0 {
			if name, ok := args[0].(string); ok {
				fn(name)
			}
		}
	})
	return func() { c.emitter.off(TypeUnsubscribe, token) }
}
