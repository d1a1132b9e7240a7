package broker

import (
	"context"
	"testing"
	"time"
)

func TestInitModule(t *testing.T) {
	hub := newFakeHub(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := InitModule(ctx, ModuleOptions{
		ModuleName: "acme.sum",
		ServerURL:  "http://localhost:5000",
		Hub:        HubAddress{Host: "hub.test", Port: 80},
	}, WithDialer(hub.dialer()), WithConfig(testConfig()))
	if err != nil {
		t.Fatalf("InitModule: %v", err)
	}
	t.Cleanup(func() { client.Destroy() })

	if !client.IsConnected() {
		t.Error("InitModule returned a disconnected client")
	}

	hc := hub.accept()
	reg := hc.waitForType("hub.core.registerProxyURL")
	if reg.TargetModuleName != "hub.core" {
		t.Errorf("registerProxyURL target = %q, want hub.core", reg.TargetModuleName)
	}
	payload, ok := reg.Data[0].(map[string]any)
	if !ok {
		t.Fatalf("registerProxyURL payload = %v, want an object", reg.Data)
	}
	if payload["moduleName"] != "acme.sum" || payload["serverURL"] != "http://localhost:5000" {
		t.Errorf("registerProxyURL payload = %v", payload)
	}
}

func TestInitModuleWithoutServerURL(t *testing.T) {
	hub := newFakeHub(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := InitModule(ctx, ModuleOptions{
		ModuleName: "acme.sum",
		Hub:        HubAddress{Host: "hub.test"},
	}, WithDialer(hub.dialer()), WithConfig(testConfig()))
	if err != nil {
		t.Fatalf("InitModule: %v", err)
	}
	t.Cleanup(func() { client.Destroy() })

	if !client.IsConnected() {
		t.Error("InitModule returned a disconnected client")
	}
}

func TestInitModuleRequiresHost(t *testing.T) {
	_, err := InitModule(context.Background(), ModuleOptions{ModuleName: "acme.sum"})
	if err != ErrMissingAddress {
		t.Errorf("InitModule without host = %v, want ErrMissingAddress", err)
	}
}
