package broker

// RawRequestFunc is the deferred body of a raw request. It receives the
// instigator id of the inbound message along with the original argument
// list, and its return value becomes the response payload.
type RawRequestFunc func(instigatorID string, args []any) (any, error)

// RawRequest defers a handler's work until the dispatcher has attached
// the instigator context of the inbound message. A handler returns one
// when it needs to know who originally asked without polluting its own
// signature.
type RawRequest struct {
	fn           RawRequestFunc
	instigatorID string
}

// NewRawRequest wraps fn in a raw-request envelope.
func NewRawRequest(fn RawRequestFunc) *RawRequest {
	return &RawRequest{fn: fn}
}

// Instigator returns the instigator id stamped by the dispatcher. It is
// empty until the envelope has been invoked.
func (r *RawRequest) Instigator() string {
	return r.instigatorID
}

// invoke stamps the envelope and runs the deferred body.
func (r *RawRequest) invoke(instigatorID string, args []any) (any, error) {
	r.instigatorID = instigatorID
	return r.fn(instigatorID, args)
}
