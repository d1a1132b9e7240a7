package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"fatal", LevelFatal},
		{" Trace ", LevelTrace},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}

func TestCustomLevelNames(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level:       LevelTrace,
		ReplaceAttr: ReplaceLevelNames,
	})
	logger := slog.New(handler)

	logger.Log(context.Background(), LevelTrace, "wire dump")
	logger.Log(context.Background(), LevelFatal, "cannot continue")

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("trace record missing TRACE level name: %s", out)
	}
	if !strings.Contains(out, "level=FATAL") {
		t.Errorf("fatal record missing FATAL level name: %s", out)
	}
}

func TestNewDecoratesModuleName(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)

	logger := New(handler, "acme.sum")
	logger.Info("hello")

	if !strings.Contains(buf.String(), "module=acme.sum") {
		t.Errorf("record missing module attribute: %s", buf.String())
	}
}

func TestSilentDiscards(t *testing.T) {
	logger := Silent()
	// Must not panic and must report everything disabled.
	logger.Error("dropped")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("silent logger reports Error level enabled")
	}
}

func TestNewNilHandlerIsSilent(t *testing.T) {
	logger := New(nil, "acme.sum")
	if logger.Enabled(context.Background(), LevelFatal) {
		t.Error("nil-handler logger is not silent")
	}
}
