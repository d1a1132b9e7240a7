package broker

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved message types. Any other type is a method FQN resolved
// against a module's handler table.
const (
	TypePing        = "ping"
	TypeResponse    = "response"
	TypeEvent       = "event"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// Message is the wire record exchanged with the hub. The wire is
// symmetric: clients and the hub read and write the same shape, one
// UTF-8 JSON document per transport frame.
type Message struct {
	Type             string   `json:"type"`
	ID               string   `json:"id,omitempty"`
	Time             int64    `json:"time,omitempty"`
	ModuleName       string   `json:"moduleName,omitempty"`
	TargetModuleName string   `json:"targetModuleName,omitempty"`
	RequestID        string   `json:"requestId,omitempty"`
	InstigatorID     string   `json:"instigatorId,omitempty"`
	EventName        string   `json:"eventName,omitempty"`
	Data             []any    `json:"data"`
	Success          *bool    `json:"success,omitempty"`
	Timeout          int64    `json:"timeout,omitempty"`
	ExcludedClients  []string `json:"excludedClients,omitempty"`
}

// stamp assigns a fresh id and the current wall-clock millisecond
// timestamp. Ids are never reused within a process lifetime.
func (m *Message) stamp() {
	m.ID = uuid.NewString()
	m.Time = time.Now().UnixMilli()
}

// succeeded reports whether a response message carries success=true.
func (m *Message) succeeded() bool {
	return m.Success != nil && *m.Success
}

// errorString extracts the remote's first error string from a failure
// response, if the remote provided one.
func (m *Message) errorString() (string, bool) {
	if len(m.Data) == 0 {
		return "", false
	}
	obj, ok := m.Data[0].(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := obj["error"].(string)
	return s, ok
}

// splitFQN splits a fully qualified name on its last dot into the
// target module and the local name. "acme.sum.add" yields
// ("acme.sum", "add").
func splitFQN(fqn string) (module, local string) {
	i := strings.LastIndex(fqn, ".")
	if i < 0 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}

// eventTarget returns the first two segments of an event FQN — the
// module that owns the event. eventLocal returns the remainder.
func eventTarget(fqn string) string {
	parts := strings.SplitN(fqn, ".", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func eventLocal(fqn string) string {
	parts := strings.SplitN(fqn, ".", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

// validEventName reports whether fqn has at least three dotted segments.
func validEventName(fqn string) bool {
	parts := strings.Split(fqn, ".")
	if len(parts) < 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// validModuleName reports whether name is a two-segment vendor.module name.
func validModuleName(name string) bool {
	parts := strings.Split(name, ".")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

func boolPtr(b bool) *bool {
	return &b
}
