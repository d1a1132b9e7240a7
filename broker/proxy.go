package broker

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Proxy is the ergonomic face of one remote (or local) module. It binds
// a vendor.module target plus call options and exposes method calls,
// event operations, and handler registration against it. Proxies are
// immutable: CallTimeout and ExcludeClients derive new ones.
type Proxy struct {
	client  *Client
	vendor  string
	module  string
	timeout time.Duration
	exclude []string
}

// API returns a proxy for vendor.module with default call options.
func (c *Client) API(vendor, module string) *Proxy {
	return &Proxy{client: c, vendor: vendor, module: module}
}

// Module returns a proxy for a dotted vendor.module name.
func (c *Client) Module(name string) (*Proxy, error) {
	if !validModuleName(name) {
		return nil, fmt.Errorf("module name %q is not a vendor.module name", name)
	}
	vendor, module := splitFQN(name)
	return &Proxy{client: c, vendor: vendor, module: module}, nil
}

// Target returns the proxy's vendor.module name.
func (p *Proxy) Target() string {
	return p.vendor + "." + p.module
}

func (p *Proxy) clone() *Proxy {
	derived := *p
	derived.exclude = append([]string(nil), p.exclude...)
	return &derived
}

// CallTimeout derives a proxy whose calls use the given response
// deadline instead of the default.
func (p *Proxy) CallTimeout(d time.Duration) *Proxy {
	derived := p.clone()
	derived.timeout = d
	return derived
}

// ExcludeClients derives a proxy whose outbound traffic asks the hub to
// skip the named modules. Exclusions accumulate across derivations.
func (p *Proxy) ExcludeClients(moduleNames ...string) *Proxy {
	derived := p.clone()
	derived.exclude = append(derived.exclude, moduleNames...)
	return derived
}

// Call invokes a method on the target module and returns the response's
// data list.
func (p *Proxy) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	if method == "" {
		return nil, fmt.Errorf("method name is required")
	}
	if reservedProxyNames[method] {
		return nil, fmt.Errorf("%q is a reserved name, not a callable method", method)
	}

	if args == nil {
		args = []any{}
	}
	exclude := p.exclude
	if exclude == nil {
		exclude = []string{}
	}
	msg := &Message{
		Type:             p.Target() + "." + method,
		TargetModuleName: p.Target(),
		Data:             args,
		Timeout:          p.timeoutMillis(),
		ExcludedClients:  exclude,
	}
	return p.client.send(ctx, msg, nil, false, p.timeout)
}

// CallOne is Call for the common single-value response: it returns the
// first element of the data list, or nil when the list is empty.
func (p *Proxy) CallOne(ctx context.Context, method string, args ...any) (any, error) {
	data, err := p.Call(ctx, method, args...)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	return data[0], nil
}

// timeoutMillis is the per-call timeout carried on the wire so the far
// side can bound its own work.
func (p *Proxy) timeoutMillis() int64 {
	if p.timeout > 0 {
		return p.timeout.Milliseconds()
	}
	return p.client.cfg.MessageTimeout.Milliseconds()
}

// Emit publishes an event owned by this module. Emitting through a
// proxy for another module is rejected: events belong to their owner.
func (p *Proxy) Emit(eventName string, args ...any) error {
	if p.Target() != p.client.moduleName {
		return fmt.Errorf("cannot emit %q: events of %s can only be emitted by %s itself (this client is %s)",
			eventName, p.Target(), p.Target(), p.client.moduleName)
	}
	if eventName == "" {
		return fmt.Errorf("event name is required")
	}

	if args == nil {
		args = []any{}
	}
	exclude := p.exclude
	if exclude == nil {
		exclude = []string{}
	}
	msg := &Message{
		Type:            TypeEvent,
		EventName:       p.Target() + "." + eventName,
		Data:            args,
		ExcludedClients: exclude,
	}
	_, err := p.client.send(context.Background(), msg, nil, false, p.timeout)
	return err
}

// On subscribes fn to one of the target module's events. A subscription
// announcement that times out is logged and tolerated; the table entry
// stays and the next resubscription pass repeats the announcement.
func (p *Proxy) On(eventName string, fn EventHandler) error {
	return p.onWithOptions(eventName, fn, subscribeOptions{sendMessage: true})
}

// Once subscribes fn for a single delivery. When no event arrives
// within wait (default five minutes) the handler is removed so the
// table cannot leak.
func (p *Proxy) Once(eventName string, fn EventHandler, wait time.Duration) error {
	return p.onWithOptions(eventName, fn, subscribeOptions{
		sendMessage: true,
		once:        true,
		onceTimeout: wait,
	})
}

func (p *Proxy) onWithOptions(eventName string, fn EventHandler, opts subscribeOptions) error {
	ctx, cancel := p.callContext()
	defer cancel()
	err := p.client.subscribe(ctx, p.eventFQN(eventName), fn, opts)
	if IsTimeout(err) {
		p.client.logger.Debug("subscription announcement timed out", "eventName", eventName)
		return nil
	}
	return err
}

// Off removes fn's subscription to the event; a nil fn removes every
// handler for it.
func (p *Proxy) Off(eventName string, fn EventHandler) error {
	ctx, cancel := p.callContext()
	defer cancel()
	err := p.client.unsubscribe(ctx, p.eventFQN(eventName), fn, true)
	if IsTimeout(err) {
		p.client.logger.Debug("unsubscription announcement timed out", "eventName", eventName)
		return nil
	}
	return err
}

func (p *Proxy) eventFQN(eventName string) string {
	return p.Target() + "." + eventName
}

func (p *Proxy) callContext() (context.Context, context.CancelFunc) {
	deadline := p.timeout
	if deadline <= 0 {
		deadline = p.client.cfg.MessageTimeout
	}
	return context.WithTimeout(context.Background(), 2*deadline)
}

// Register installs fn as a handler for one of this module's methods.
// Registration through a proxy for another module is rejected, as are
// reserved names and nil handlers.
func (p *Proxy) Register(name string, fn Handler) error {
	if p.Target() != p.client.moduleName {
		return fmt.Errorf("cannot register %q on %s: handlers can only be registered on this client's own module %s",
			name, p.Target(), p.client.moduleName)
	}
	if fn == nil {
		return fmt.Errorf("cannot register %q: handler is nil", name)
	}
	if name == "" {
		return fmt.Errorf("handler name is required")
	}
	if reservedProxyNames[name] {
		return fmt.Errorf("cannot register %q: the name is reserved", name)
	}
	if !p.client.RegisterAPIHandler(name, fn) {
		return fmt.Errorf("handler %q is already registered", name)
	}
	return nil
}

// RegisterAll installs every member of handlers in name order and
// returns the error of the first invalid entry. Entries installed
// before that entry stay installed.
func (p *Proxy) RegisterAll(handlers map[string]Handler) error {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := p.Register(name, handlers[name]); err != nil {
			return err
		}
	}
	return nil
}
