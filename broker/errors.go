package broker

import (
	"errors"
	"fmt"
)

// Stable error codes carried by the broker error kinds.
const (
	CodeTimeout = "TIMEOUT"
	CodeBroker  = "BROKER"
)

// BrokerError is a logical failure reported by a remote handler. Its
// message is the remote's own error string when the remote provided one.
type BrokerError struct {
	Message string
}

// Error implements the error interface.
func (e *BrokerError) Error() string {
	return e.Message
}

// Code returns the stable code for remote handler failures.
func (e *BrokerError) Code() string {
	return CodeBroker
}

func newBrokerError(format string, args ...any) *BrokerError {
	return &BrokerError{Message: fmt.Sprintf(format, args...)}
}

// TimeoutError reports that an awaited response was not received before
// the deadline. Callers can match on it to suppress stack traces for
// this expected failure.
type TimeoutError struct {
	Op string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Op == "" {
		return "timed out"
	}
	return fmt.Sprintf("%s: timed out", e.Op)
}

// Code returns the stable TIMEOUT code.
func (e *TimeoutError) Code() string {
	return CodeTimeout
}

func newTimeoutError(op string) *TimeoutError {
	return &TimeoutError{Op: op}
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// ErrDestroyed is returned by operations on a destroyed client.
var ErrDestroyed = errors.New("broker client is destroyed")

// ErrMissingAddress is returned when Connect is called without a hub
// host. There is no ambient default address on a non-browser host, so
// the caller must supply one.
var ErrMissingAddress = errors.New("hub address is required")
