package broker

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	brokerErr := &BrokerError{Message: "remote said no"}
	if brokerErr.Error() != "remote said no" {
		t.Errorf("BrokerError.Error() = %q", brokerErr.Error())
	}
	if brokerErr.Code() != CodeBroker {
		t.Errorf("BrokerError.Code() = %q, want %q", brokerErr.Code(), CodeBroker)
	}

	timeoutErr := newTimeoutError(`"acme.sum.add" request`)
	if timeoutErr.Code() != CodeTimeout {
		t.Errorf("TimeoutError.Code() = %q, want %q", timeoutErr.Code(), CodeTimeout)
	}
	if !IsTimeout(timeoutErr) {
		t.Error("IsTimeout on a TimeoutError = false")
	}
	if !IsTimeout(fmt.Errorf("outer: %w", timeoutErr)) {
		t.Error("IsTimeout through wrapping = false")
	}
	if IsTimeout(brokerErr) || IsTimeout(nil) {
		t.Error("IsTimeout matched a non-timeout error")
	}

	var asBroker *BrokerError
	if !errors.As(fmt.Errorf("wrap: %w", brokerErr), &asBroker) {
		t.Error("errors.As failed to match a wrapped BrokerError")
	}
}
