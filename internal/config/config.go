package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/studiobridge/studiobridge/pkg/bridge"
	"github.com/studiobridge/studiobridge/pkg/completion"
	"github.com/studiobridge/studiobridge/pkg/discovery"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "studiobridge.json"

	// DefaultStatusAddr is where the local status server listens.
	DefaultStatusAddr = "127.0.0.1:9690"
)

// Config is the complete studiobridge.json configuration.
type Config struct {
	// Endpoints are the locally configured Designer endpoints that
	// discovered peers are matched against.
	Endpoints []discovery.Endpoint `json:"endpoints,omitempty"`

	// Bridge tunes the connection manager.
	Bridge BridgeConfig `json:"bridge,omitempty"`

	// Completion tunes the completion cache.
	Completion CompletionConfig `json:"completion,omitempty"`

	// Status configures the local status server.
	Status StatusConfig `json:"status,omitempty"`

	// Log configures logging.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// BridgeConfig tunes the connection manager. Zero values fall back to the
// bridge defaults.
type BridgeConfig struct {
	RequestTimeoutSec int `json:"requestTimeoutSec,omitempty"`
	ReconnectDelaySec int `json:"reconnectDelaySec,omitempty"`
	HeartbeatSec      int `json:"heartbeatSec,omitempty"`
	ConnectTimeoutSec int `json:"connectTimeoutSec,omitempty"`
}

// CompletionConfig tunes the completion cache.
type CompletionConfig struct {
	TTLMs           int `json:"ttlMs,omitempty"`
	SweepIntervalMs int `json:"sweepIntervalMs,omitempty"`
}

// StatusConfig configures the local status HTTP server.
type StatusConfig struct {
	// Addr is the listen address. Empty disables the status server.
	Addr string `json:"addr,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `json:"level,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Status: StatusConfig{Addr: DefaultStatusAddr},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from the specified directory. It looks for
// studiobridge.json in the directory; a missing file yields the defaults.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path. A missing file
// is not an error: the bridge runs fine on defaults plus a descriptor.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.configPath = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromWorkingDir walks up from the working directory until it finds a
// studiobridge.json, falling back to defaults at the filesystem root.
func LoadFromWorkingDir() (*Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Path returns where the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.configPath
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	for i, ep := range c.Endpoints {
		if ep.Host == "" {
			return fmt.Errorf("config: endpoint %d (%s): missing host", i, ep.Name)
		}
		if ep.Port < 0 || ep.Port > 65535 {
			return fmt.Errorf("config: endpoint %d (%s): port %d out of range", i, ep.Name, ep.Port)
		}
	}
	if c.Bridge.RequestTimeoutSec < 0 || c.Bridge.ReconnectDelaySec < 0 ||
		c.Bridge.HeartbeatSec < 0 || c.Bridge.ConnectTimeoutSec < 0 {
		return fmt.Errorf("config: bridge durations must not be negative")
	}
	if c.Completion.TTLMs < 0 || c.Completion.SweepIntervalMs < 0 {
		return fmt.Errorf("config: completion durations must not be negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	return nil
}

// BridgeConfig materializes the bridge tuning, applying defaults for zero
// fields. version is stamped into the handshake client identity.
func (c *Config) BridgeConfig(version string) *bridge.Config {
	cfg := bridge.DefaultConfig()
	cfg.ClientVersion = version
	if c.Bridge.RequestTimeoutSec > 0 {
		cfg.RequestTimeout = time.Duration(c.Bridge.RequestTimeoutSec) * time.Second
	}
	if c.Bridge.ReconnectDelaySec > 0 {
		cfg.ReconnectDelay = time.Duration(c.Bridge.ReconnectDelaySec) * time.Second
	}
	if c.Bridge.HeartbeatSec > 0 {
		cfg.HeartbeatInterval = time.Duration(c.Bridge.HeartbeatSec) * time.Second
	}
	if c.Bridge.ConnectTimeoutSec > 0 {
		cfg.ConnectTimeout = time.Duration(c.Bridge.ConnectTimeoutSec) * time.Second
	}
	return cfg
}

// CompletionConfig materializes the cache tuning, applying defaults for
// zero fields.
func (c *Config) CompletionConfig() *completion.Config {
	cfg := completion.DefaultConfig()
	if c.Completion.TTLMs > 0 {
		cfg.TTL = time.Duration(c.Completion.TTLMs) * time.Millisecond
	}
	if c.Completion.SweepIntervalMs > 0 {
		cfg.SweepInterval = time.Duration(c.Completion.SweepIntervalMs) * time.Millisecond
	}
	return cfg
}

// LogLevel maps the configured level onto slog.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
