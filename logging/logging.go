// Package logging provides the module logger used across the broker
// client. It extends log/slog with trace and fatal severities so the
// full six-level range of hub log records maps onto one handler.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace is a custom log level below Debug for wire-level forensics.
const LevelTrace = slog.Level(-8)

// LevelFatal is a custom log level above Error for unrecoverable failures.
const LevelFatal = slog.Level(12)

// ParseLevel converts a string to a slog.Level.
// Supported values: trace, debug, info, warn, error, fatal (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error, fatal)", s)
	}
}

// ReplaceLevelNames customizes the level names for Trace and Fatal in
// log output. Pass it as HandlerOptions.ReplaceAttr.
func ReplaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if ok {
			switch level {
			case LevelTrace:
				a.Value = slog.StringValue("TRACE")
			case LevelFatal:
				a.Value = slog.StringValue("FATAL")
			}
		}
	}
	return a
}

// New returns a logger that decorates every record with the module name.
// A nil handler yields a silent logger.
func New(handler slog.Handler, moduleName string) *slog.Logger {
	if handler == nil {
		return Silent()
	}
	return slog.New(handler).With("module", moduleName)
}

// discardHandler is a slog.Handler that reports every level as disabled
// and drops every record, matching the stdlib slog.DiscardHandler
// behavior from Go 1.24 on toolchains that predate it.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }

// Silent returns a logger that discards every record. It is the default
// for clients constructed without a logger.
func Silent() *slog.Logger {
	return slog.New(discardHandler{})
}
