package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/zerodensity/realityhub-api/logging"
)

// DefaultRegistrar is the module that relays method traffic for clients
// that do not name their own registrar.
const DefaultRegistrar = "hub.core"

// Handler serves one method FQN. It receives the inbound argument list
// and returns the response payload. Returning a *RawRequest defers the
// work until the dispatcher has attached the instigator context.
type Handler func(ctx context.Context, args []any) (any, error)

// EventHandler receives the argument list of a delivered event.
type EventHandler func(args []any)

// handlerEntry is one handler table slot. relay marks handlers whose
// responses must preserve the original target as sender.
type handlerEntry struct {
	fn    Handler
	relay bool
}

// subscription is one subscription table slot. Insertion order is
// preserved; identity (the handler's code pointer) matters for targeted
// removal.
type subscription struct {
	fn    EventHandler
	key   uintptr
	once  bool
	timer *time.Timer
}

func handlerIdentity(fn EventHandler) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// reservedLocalNames cannot be registered as handlers: the module proxy
// claims them for event operations.
var reservedLocalNames = map[string]bool{
	"emit": true,
	"on":   true,
	"off":  true,
}

// reservedProxyNames extends the reserved set with the proxy's own
// fluent surface.
var reservedProxyNames = map[string]bool{
	"emit":           true,
	"on":             true,
	"off":            true,
	"once":           true,
	"callTimeout":    true,
	"excludeClients": true,
}

// requestDeadline computes the effective response deadline: the
// construction-time override beats the per-call override beats the
// message's own timeout beats the configured default.
func (c *Client) requestDeadline(override time.Duration, messageTimeoutMillis int64) time.Duration {
	if c.cfg.TimeoutOverride > 0 {
		return c.cfg.TimeoutOverride
	}
	if override > 0 {
		return override
	}
	if messageTimeoutMillis > 0 {
		return time.Duration(messageTimeoutMillis) * time.Millisecond
	}
	return c.cfg.MessageTimeout
}

// send transmits msg and, for message types that expect one, awaits the
// correlated response and returns its data list. conn selects the
// connection; nil means the family's current connection, waiting out a
// pending connect up to the request's own deadline. Event and response
// sends return immediately after the write.
//
// When the client has listeners on its error signal, response failures
// are emitted there instead of returned, and send yields (nil, nil).
func (c *Client) send(ctx context.Context, msg *Message, conn Conn, relayed bool, override time.Duration) ([]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.isDestroyed() {
		return nil, ErrDestroyed
	}

	deadline := c.requestDeadline(override, msg.Timeout)

	if conn == nil {
		var err error
		conn, err = c.awaitConn(ctx, deadline)
		if err != nil {
			if IsTimeout(err) {
				c.logger.Debug("send aborted waiting for connection", "type", msg.Type, "error", err)
				return c.deliverSendError(newTimeoutError(fmt.Sprintf("%q request", msg.Type)))
			}
			return nil, err
		}
	}

	msg.stamp()
	if !relayed || msg.ModuleName == "" {
		msg.ModuleName = c.moduleName
	}
	if msg.Data == nil {
		// The wire always carries an argument list, even when empty.
		msg.Data = []any{}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %q message: %w", msg.Type, err)
	}
	if len(data) > c.cfg.MaxPacketSize {
		c.logger.Log(ctx, logging.LevelTrace, "outbound packet exceeds maximum size",
			"type", msg.Type,
			"size", len(data),
			"max", c.cfg.MaxPacketSize,
		)
	}

	awaited := msg.Type != TypeEvent && msg.Type != TypeResponse

	var waiter chan *Message
	if awaited {
		waiter = make(chan *Message, 1)
		c.pendingMu.Lock()
		c.pending[msg.ID] = waiter
		c.pendingMu.Unlock()
		defer func() {
			c.pendingMu.Lock()
			delete(c.pending, msg.ID)
			c.pendingMu.Unlock()
		}()
	}

	if err := conn.WriteMessage(data); err != nil {
		return nil, fmt.Errorf("write %q message: %w", msg.Type, err)
	}
	if !awaited {
		return nil, nil
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		if resp.succeeded() {
			return resp.Data, nil
		}
		text, ok := resp.errorString()
		if !ok {
			text = fmt.Sprintf("%s's %q request has failed", resp.ModuleName, msg.Type)
		}
		return c.deliverSendError(&BrokerError{Message: text})
	case <-timer.C:
		c.logger.Debug("request timed out", "type", msg.Type, "id", msg.ID, "timeout", deadline)
		return c.deliverSendError(newTimeoutError(fmt.Sprintf("%q request", msg.Type)))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliverSendError emits err on the error signal when anyone listens,
// otherwise returns it.
func (c *Client) deliverSendError(err error) ([]any, error) {
	if c.emitter.count(signalError) > 0 {
		c.emitter.emit(signalError, err)
		return nil, nil
	}
	return nil, err
}

// awaitConn returns the family's connection, waiting for a pending
// connect when the transport is not yet open.
func (c *Client) awaitConn(ctx context.Context, deadline time.Duration) (Conn, error) {
	root := c.root()
	if conn := root.currentConn(); conn != nil {
		return conn, nil
	}
	if _, _, err := root.emitter.waitAny(ctx, []string{signalConnect}, deadline); err != nil {
		return nil, err
	}
	conn := root.currentConn()
	if conn == nil {
		return nil, newTimeoutError("wait for connection")
	}
	return conn, nil
}

// respond sends a response for orig, echoing its correlation fields and
// routing back to its sender. For relayed responses the outbound sender
// is the original target, so the far side sees the response as
// originating from the intended module. A missing conn is a silent
// no-op.
func (c *Client) respond(conn Conn, orig *Message, success bool, data []any, relayed bool) {
	if conn == nil {
		return
	}
	resp := &Message{
		Type:             TypeResponse,
		RequestID:        orig.ID,
		Timeout:          orig.Timeout,
		InstigatorID:     orig.InstigatorID,
		TargetModuleName: orig.ModuleName,
		Success:          boolPtr(success),
		Data:             data,
	}
	if relayed {
		resp.ModuleName = orig.TargetModuleName
	}
	if _, err := c.send(context.Background(), resp, conn, relayed, 0); err != nil {
		c.logger.Warn("failed to send response", "requestId", orig.ID, "error", err)
	}
}

// RegisterAPIHandler installs fn under <moduleName>.<name>. Insertion
// is one-shot: it returns false when the slot is taken, when the name
// is reserved, or when fn is nil, leaving any existing handler in
// place.
func (c *Client) RegisterAPIHandler(name string, fn Handler) bool {
	if fn == nil || name == "" || reservedLocalNames[name] {
		return false
	}
	return c.registerHandlerKey(c.moduleName+"."+name, fn, false)
}

// registerHandlerKey installs fn under a full method FQN. The relay
// flag is preserved into every response the handler produces.
func (c *Client) registerHandlerKey(key string, fn Handler, relay bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handlers[key]; exists {
		return false
	}
	c.handlers[key] = handlerEntry{fn: fn, relay: relay}
	return true
}

// RegisterAPIHandlers bulk-registers handlers and then registers the
// client with remote so matching method traffic is relayed here. An
// empty remote uses DefaultRegistrar.
func (c *Client) RegisterAPIHandlers(ctx context.Context, handlers map[string]Handler, remote string) error {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if handlers[name] == nil {
			return fmt.Errorf("handler %q is nil", name)
		}
		if !c.RegisterAPIHandler(name, handlers[name]) {
			return fmt.Errorf("handler %q was not installed (reserved or already registered)", name)
		}
	}
	if remote == "" {
		remote = DefaultRegistrar
	}
	return c.RegisterHandlersToRemote(ctx, remote)
}

// handlerKeys returns the installed method FQNs in sorted order.
func (c *Client) handlerKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.handlers))
	for key := range c.handlers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (c *Client) handlerFor(key string) (handlerEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.handlers[key]
	return entry, ok
}

// RegisterHandlersToRemote records target as a registrar and announces
// this client's handler keys to it. Registrars are re-announced
// automatically after every (re)connect.
func (c *Client) RegisterHandlersToRemote(ctx context.Context, target string) error {
	if !validModuleName(target) {
		return fmt.Errorf("registrar %q is not a vendor.module name", target)
	}
	c.mu.Lock()
	c.registrars[target] = struct{}{}
	c.mu.Unlock()

	msg := &Message{
		Type:             target + ".registerAPIHandlers",
		TargetModuleName: target,
		Data:             []any{c.handlerKeys()},
	}
	if _, err := c.send(ctx, msg, nil, false, 0); err != nil {
		return fmt.Errorf("register handlers with %s: %w", target, err)
	}
	return nil
}

// DeregisterHandlersFromRemotes withdraws this client's handlers from
// every registrar. Failures are logged and do not stop the sweep.
func (c *Client) DeregisterHandlersFromRemotes(ctx context.Context) {
	c.mu.Lock()
	registrars := make([]string, 0, len(c.registrars))
	for target := range c.registrars {
		registrars = append(registrars, target)
	}
	c.mu.Unlock()
	sort.Strings(registrars)

	keys := c.handlerKeys()
	for _, target := range registrars {
		msg := &Message{
			Type:             target + ".deregisterAPIHandlers",
			TargetModuleName: target,
			Data:             []any{keys},
		}
		if _, err := c.send(ctx, msg, nil, false, 0); err != nil {
			c.logger.Debug("failed to deregister handlers", "registrar", target, "error", err)
		}
	}
}

// registrarNames returns the recorded registrars in sorted order.
func (c *Client) registrarNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.registrars))
	for target := range c.registrars {
		names = append(names, target)
	}
	sort.Strings(names)
	return names
}

// subscribeOptions controls table insertion and the wire side effect.
type subscribeOptions struct {
	sendMessage bool
	once        bool
	onceTimeout time.Duration
}

// subscribe appends a subscription table entry and, when requested,
// announces it to the event's owning module. Duplicate handlers are
// allowed and each fires independently.
func (c *Client) subscribe(ctx context.Context, event string, fn EventHandler, opts subscribeOptions) error {
	if fn == nil {
		return fmt.Errorf("subscribe %s: handler is nil", event)
	}
	if !validEventName(event) {
		return fmt.Errorf("subscribe %s: event name needs at least vendor.module.event", event)
	}

	sub := &subscription{fn: fn, key: handlerIdentity(fn), once: opts.once}
	c.mu.Lock()
	c.subs[event] = append(c.subs[event], sub)
	c.mu.Unlock()

	if opts.once {
		wait := opts.onceTimeout
		if wait <= 0 {
			wait = defaultOnceTimeout
		}
		// Leak guard: an event that never arrives must not pin its
		// handler forever.
		sub.timer = time.AfterFunc(wait, func() {
			c.removeSubscription(event, sub)
		})
	}

	if !opts.sendMessage {
		return nil
	}
	msg := &Message{
		Type:             TypeSubscribe,
		EventName:        event,
		TargetModuleName: eventTarget(event),
	}
	if _, err := c.send(ctx, msg, nil, false, 0); err != nil {
		return fmt.Errorf("subscribe %s: %w", event, err)
	}
	return nil
}

// removeSubscription drops one table entry by identity of the slot.
func (c *Client) removeSubscription(event string, sub *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.subs[event]
	for i, candidate := range list {
		if candidate == sub {
			if candidate.timer != nil {
				candidate.timer.Stop()
			}
			c.subs[event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(c.subs[event]) == 0 {
		delete(c.subs, event)
	}
}

// unsubscribe removes fn's first matching entry, or the whole entry
// when fn is nil, optionally announcing the removal on the wire.
func (c *Client) unsubscribe(ctx context.Context, event string, fn EventHandler, sendMessage bool) error {
	c.mu.Lock()
	if fn == nil {
		for _, sub := range c.subs[event] {
			if sub.timer != nil {
				sub.timer.Stop()
			}
		}
		delete(c.subs, event)
	} else {
		key := handlerIdentity(fn)
		list := c.subs[event]
		for i, sub := range list {
			if sub.key == key {
				if sub.timer != nil {
					sub.timer.Stop()
				}
				c.subs[event] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(c.subs[event]) == 0 {
			delete(c.subs, event)
		}
	}
	c.mu.Unlock()

	if !sendMessage {
		return nil
	}
	msg := &Message{
		Type:             TypeUnsubscribe,
		EventName:        event,
		TargetModuleName: eventTarget(event),
	}
	if _, err := c.send(ctx, msg, nil, false, 0); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", event, err)
	}
	return nil
}

// SubscribeToAPIEvent subscribes fn to an event FQN and announces the
// subscription to the event's owning module.
func (c *Client) SubscribeToAPIEvent(ctx context.Context, event string, fn EventHandler) error {
	return c.subscribe(ctx, event, fn, subscribeOptions{sendMessage: true})
}

// UnsubscribeFromAPIEvent removes fn's subscription to an event FQN. A
// nil fn removes every handler for the event.
func (c *Client) UnsubscribeFromAPIEvent(ctx context.Context, event string, fn EventHandler) error {
	return c.unsubscribe(ctx, event, fn, true)
}

// UnsubscribeFromAllEvents removes every subscription, announcing each
// removal. Failures are logged and do not stop the sweep.
func (c *Client) UnsubscribeFromAllEvents(ctx context.Context) {
	c.mu.Lock()
	events := make([]string, 0, len(c.subs))
	for event := range c.subs {
		events = append(events, event)
	}
	c.mu.Unlock()
	sort.Strings(events)

	for _, event := range events {
		if err := c.unsubscribe(ctx, event, nil, true); err != nil {
			c.logger.Debug("failed to unsubscribe", "event", event, "error", err)
		}
	}
}

// subscribedEvents returns the event FQNs currently in the table.
func (c *Client) subscribedEvents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]string, 0, len(c.subs))
	for event := range c.subs {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

// subscriptionCount reports the number of table entries for event.
func (c *Client) subscriptionCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[event])
}
