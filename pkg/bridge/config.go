package bridge

import "time"

// Config holds tuning for a single Manager.
type Config struct {
	// Editor is the host editor name reported in the handshake.
	// Default: "studiobridge".
	Editor string

	// ClientVersion is the bridge version reported in the handshake.
	// Default: "dev".
	ClientVersion string

	// ConnectTimeout bounds the transport dial.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// RequestTimeout is the fixed window every request gets before it fails
	// with ErrRequestTimeout.
	// Default: 30 seconds.
	RequestTimeout time.Duration

	// ReconnectDelay is the fixed delay before the single automatic
	// reconnection attempt after a closure while Connected. 0 disables
	// automatic reconnection.
	// Default: 5 seconds.
	ReconnectDelay time.Duration

	// HeartbeatInterval is the time between designer.ping round trips while
	// Connected. 0 disables the heartbeat.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadTimeout is the maximum time to wait for any inbound traffic.
	// 0 disables the read deadline entirely.
	// Default: 0.
	ReadTimeout time.Duration

	// MaxMessageSize is the maximum size of an inbound WebSocket message.
	// Default: 1MB.
	MaxMessageSize int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Editor:            "studiobridge",
		ClientVersion:     "dev",
		ConnectTimeout:    10 * time.Second,
		RequestTimeout:    30 * time.Second,
		ReconnectDelay:    5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       0,
		MaxMessageSize:    1 << 20,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
