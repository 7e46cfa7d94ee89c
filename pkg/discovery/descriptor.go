package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
)

// Descriptor is the record a running Designer advertises so an editor can
// connect to it. It is produced externally, owned by the caller, and
// referenced (never copied) by the active connection. Treat it as immutable
// once passed to Connect.
type Descriptor struct {
	// Host is the interface the Designer listens on, normally loopback.
	Host string `json:"host"`

	// Port is the advertised bridge port.
	Port int `json:"port"`

	// Secret is the shared secret for the authenticate handshake.
	Secret string `json:"secret"`

	// Meta describes the peer for matching and display.
	Meta Meta `json:"meta"`
}

// Meta is the peer metadata carried by a descriptor.
type Meta struct {
	Project      string   `json:"project"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Address returns the host:port dial address.
func (d *Descriptor) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Validate reports whether the descriptor can seed a connection attempt:
// a reachable address and a shared secret are required, nothing else.
func (d *Descriptor) Validate() error {
	if d.Host == "" {
		return errors.New("discovery: descriptor missing host")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return fmt.Errorf("discovery: descriptor port %d out of range", d.Port)
	}
	if d.Secret == "" {
		return errors.New("discovery: descriptor missing secret")
	}
	return nil
}

// LoadDescriptor reads and validates a descriptor record from a JSON file.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("discovery: read descriptor: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("discovery: parse descriptor %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Endpoint is a locally configured Designer endpoint a descriptor can be
// matched against.
type Endpoint struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	Port    int    `json:"port,omitempty"`
	Project string `json:"project,omitempty"`
}

// Matcher scores a discovered descriptor against a configured endpoint.
// Higher is better; a negative score means no match. The scoring rules are
// business logic owned by the discovery layer, not the bridge.
type Matcher interface {
	Score(d *Descriptor, ep Endpoint) int
}
