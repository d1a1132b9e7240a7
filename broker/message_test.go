package broker

import (
	"encoding/json"
	"testing"
)

func TestSplitFQN(t *testing.T) {
	tests := []struct {
		fqn    string
		module string
		local  string
	}{
		{"acme.sum.add", "acme.sum", "add"},
		{"acme.sum", "acme", "sum"},
		{"bare", "", "bare"},
	}
	for _, tt := range tests {
		module, local := splitFQN(tt.fqn)
		if module != tt.module || local != tt.local {
			t.Errorf("splitFQN(%q) = (%q, %q), want (%q, %q)", tt.fqn, module, local, tt.module, tt.local)
		}
	}
}

func TestEventTargetAndLocal(t *testing.T) {
	if got := eventTarget("vendor.mod.some.deep.event"); got != "vendor.mod" {
		t.Errorf("eventTarget = %q, want vendor.mod", got)
	}
	if got := eventLocal("vendor.mod.some.deep.event"); got != "some.deep.event" {
		t.Errorf("eventLocal = %q, want some.deep.event", got)
	}
	if got := eventTarget("vendor.mod"); got != "" {
		t.Errorf("eventTarget on a two-segment name = %q, want empty", got)
	}
}

func TestValidEventName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"vendor.mod.event", true},
		{"vendor.mod.some.deep", true},
		{"vendor.mod", false},
		{"vendor..event", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := validEventName(tt.name); got != tt.want {
			t.Errorf("validEventName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidModuleName(t *testing.T) {
	if !validModuleName("acme.sum") {
		t.Error("validModuleName(acme.sum) = false, want true")
	}
	for _, bad := range []string{"acme", "acme.sum.extra", "acme.", ".sum", ""} {
		if validModuleName(bad) {
			t.Errorf("validModuleName(%q) = true, want false", bad)
		}
	}
}

func TestMessageStamp(t *testing.T) {
	a := &Message{Type: TypePing}
	b := &Message{Type: TypePing}
	a.stamp()
	b.stamp()

	if a.ID == "" || b.ID == "" {
		t.Fatal("stamp left an empty id")
	}
	if a.ID == b.ID {
		t.Errorf("two stamps produced the same id %q", a.ID)
	}
	if a.Time == 0 {
		t.Error("stamp left a zero timestamp")
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	orig := &Message{
		Type:             "acme.sum.add",
		ID:               "id-1",
		Time:             1700000000000,
		ModuleName:       "acme.sum",
		TargetModuleName: "hub.core",
		RequestID:        "req-1",
		InstigatorID:     "inst-1",
		EventName:        "acme.sum.tick",
		Data:             []any{float64(1), "two"},
		Success:          boolPtr(true),
		Timeout:          2000,
		ExcludedClients:  []string{"hub.other"},
	}

	raw, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var parsed Message
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if parsed.Type != orig.Type || parsed.ID != orig.ID || parsed.Time != orig.Time ||
		parsed.ModuleName != orig.ModuleName || parsed.TargetModuleName != orig.TargetModuleName ||
		parsed.RequestID != orig.RequestID || parsed.InstigatorID != orig.InstigatorID ||
		parsed.EventName != orig.EventName || parsed.Timeout != orig.Timeout {
		t.Errorf("round trip changed scalar fields: %+v", parsed)
	}
	if !parsed.succeeded() {
		t.Error("round trip lost success=true")
	}
	if len(parsed.Data) != 2 || parsed.Data[0] != float64(1) || parsed.Data[1] != "two" {
		t.Errorf("round trip data = %v", parsed.Data)
	}
	if len(parsed.ExcludedClients) != 1 || parsed.ExcludedClients[0] != "hub.other" {
		t.Errorf("round trip excludedClients = %v", parsed.ExcludedClients)
	}
}

func TestErrorString(t *testing.T) {
	msg := &Message{Data: []any{map[string]any{"error": "boom"}}}
	text, ok := msg.errorString()
	if !ok || text != "boom" {
		t.Errorf("errorString = (%q, %v), want (boom, true)", text, ok)
	}

	if _, ok := (&Message{}).errorString(); ok {
		t.Error("errorString on empty data reported ok")
	}
	if _, ok := (&Message{Data: []any{"plain"}}).errorString(); ok {
		t.Error("errorString on non-object data reported ok")
	}
}
