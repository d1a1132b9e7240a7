package broker

import (
	"context"
	"sync"
	"time"
)

// signalListener is one registration on the internal signal bus.
type signalListener struct {
	fn   func(args []any)
	once bool
}

// emitter is the client-internal signal bus. It carries lifecycle
// signals (connect, disconnect, destroy, error) and the local
// subscribe/unsubscribe notifications raised by inbound control
// messages. It is not the subscription table: hub events are delivered
// through the table, not through this bus.
type emitter struct {
	mu        sync.Mutex
	listeners map[string][]*signalListener
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[string][]*signalListener)}
}

// on registers fn for every emission of name and returns a token for
// targeted removal.
func (e *emitter) on(name string, fn func(args []any)) *signalListener {
	ln := &signalListener{fn: fn}
	e.mu.Lock()
	e.listeners[name] = append(e.listeners[name], ln)
	e.mu.Unlock()
	return ln
}

// once registers fn for the next emission of name only.
func (e *emitter) once(name string, fn func(args []any)) *signalListener {
	ln := &signalListener{fn: fn, once: true}
	e.mu.Lock()
	e.listeners[name] = append(e.listeners[name], ln)
	e.mu.Unlock()
	return ln
}

// off removes a previously registered listener. Unknown tokens are a
// no-op.
func (e *emitter) off(name string, ln *signalListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.listeners[name]
	for i, candidate := range list {
		if candidate == ln {
			e.listeners[name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(e.listeners[name]) == 0 {
		delete(e.listeners, name)
	}
}

// count returns the number of listeners currently registered for name.
func (e *emitter) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[name])
}

// emit invokes every listener registered for name, in registration
// order. Once-listeners are removed before their callback runs, so a
// listener re-registering itself from inside the callback is safe.
func (e *emitter) emit(name string, args ...any) {
	e.mu.Lock()
	list := e.listeners[name]
	snapshot := make([]*signalListener, len(list))
	copy(snapshot, list)
	kept := list[:0]
	for _, ln := range list {
		if !ln.once {
			kept = append(kept, ln)
		}
	}
	if len(kept) == 0 {
		delete(e.listeners, name)
	} else {
		e.listeners[name] = kept
	}
	e.mu.Unlock()

	for _, ln := range snapshot {
		ln.fn(args)
	}
}

// removeAll drops every listener on every signal.
func (e *emitter) removeAll() {
	e.mu.Lock()
	e.listeners = make(map[string][]*signalListener)
	e.mu.Unlock()
}

// anyResult carries the winning signal out of waitAny.
type anyResult struct {
	name string
	args []any
}

// waitAny blocks until the first of the named signals fires, the
// timeout elapses, or ctx is done. Every listener installed by the call
// is removed on all paths, including for signals that never fired. A
// zero timeout arms no timer; timeout failures are TimeoutError.
func (e *emitter) waitAny(ctx context.Context, names []string, timeout time.Duration) (string, []any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ch := make(chan anyResult, 1)
	tokens := make([]*signalListener, len(names))
	for i, name := range names {
		name := name
		tokens[i] = e.once(name, func(args []any) {
			select {
			case ch <- anyResult{name: name, args: args}:
			default:
			}
		})
	}
	cleanup := func() {
		for i, name := range names {
			e.off(name, tokens[i])
		}
	}
	defer cleanup()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case r := <-ch:
		return r.name, r.args, nil
	case <-timer:
		return "", nil, newTimeoutError("wait for " + names[0])
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}
