package broker

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys consulted by ConfigFromEnv.
const (
	EnvBrokerTimeout = "BROKER_TIMEOUT"
	EnvMaxPacketSize = "MAX_WS_PACKET_SIZE"
)

const (
	defaultMessageTimeout = 2000 * time.Millisecond
	defaultMaxPacketSize  = 4 << 20

	// minMaxPacketSize is the floor applied to MAX_WS_PACKET_SIZE
	// overrides.
	minMaxPacketSize = 1_000_000

	defaultOnceTimeout   = 5 * time.Minute
	defaultReconnectWait = time.Second
)

// Config holds the limits a client reads once at construction.
type Config struct {
	// MessageTimeout is the default per-request response deadline.
	MessageTimeout time.Duration

	// MaxPacketSize is the serialized frame size above which outbound
	// packets are logged at trace. Oversize frames are still sent; the
	// transport makes the final decision.
	MaxPacketSize int

	// TimeoutOverride, when non-zero, replaces every request's
	// effective deadline regardless of per-call settings.
	TimeoutOverride time.Duration
}

// DefaultConfig returns the built-in limits with no overrides applied.
func DefaultConfig() Config {
	return Config{
		MessageTimeout: defaultMessageTimeout,
		MaxPacketSize:  defaultMaxPacketSize,
	}
}

// ConfigFromEnv returns the default limits with process-environment
// overrides applied. Unset, empty, or unparseable values are ignored:
// a BROKER_TIMEOUT of 0 or garbage falls back to per-request timeouts,
// and a MAX_WS_PACKET_SIZE below the floor is clamped up to it.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if raw := os.Getenv(EnvBrokerTimeout); raw != "" {
		if ms, err := strconv.ParseFloat(raw, 64); err == nil && ms > 0 {
			cfg.TimeoutOverride = time.Duration(ms * float64(time.Millisecond))
		}
	}

	if raw := os.Getenv(EnvMaxPacketSize); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			if size < minMaxPacketSize {
				size = minMaxPacketSize
			}
			cfg.MaxPacketSize = size
		}
	}

	return cfg
}

// withDefaults fills zero fields so a partially specified Config
// behaves sanely.
func (c Config) withDefaults() Config {
	if c.MessageTimeout <= 0 {
		c.MessageTimeout = defaultMessageTimeout
	}
	if c.MaxPacketSize <= 0 {
		c.MaxPacketSize = defaultMaxPacketSize
	}
	return c
}

// HubAddress locates the hub endpoint.
type HubAddress struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// ModuleOptions describes one module's bootstrap parameters, loadable
// from a yaml file.
type ModuleOptions struct {
	// ModuleName is the module's vendor.module identity.
	ModuleName string `yaml:"module_name"`

	// ServerURL, when set, is registered with the hub after connect so
	// the hub can proxy the module's static assets.
	ServerURL string `yaml:"server_url"`

	// WebSocketPath defaults to "/core".
	WebSocketPath string `yaml:"websocket_path"`

	Hub HubAddress `yaml:"hub"`

	// LogLevel is consumed by binaries embedding the client; the
	// library itself does not read it.
	LogLevel string `yaml:"log_level"`
}

// DefaultOptionsSearchPaths returns the module options search order:
// ./hub.yaml, ~/.config/realityhub/hub.yaml, /etc/realityhub/hub.yaml.
func DefaultOptionsSearchPaths() []string {
	paths := []string{"hub.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "realityhub", "hub.yaml"))
	}
	paths = append(paths, "/etc/realityhub/hub.yaml")
	return paths
}

// FindModuleOptions locates an options file. If explicit is non-empty
// it must exist; otherwise the default search paths are tried in order.
func FindModuleOptions(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("options file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultOptionsSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no options file found (searched: %v)", DefaultOptionsSearchPaths())
}

// LoadModuleOptions reads and validates a yaml module options file.
func LoadModuleOptions(path string) (ModuleOptions, error) {
	var opts ModuleOptions

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read options file: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options file %s: %w", path, err)
	}
	if !validModuleName(opts.ModuleName) {
		return opts, fmt.Errorf("module_name %q is not a vendor.module name", opts.ModuleName)
	}
	return opts, nil
}
