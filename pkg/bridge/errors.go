package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for common connection and request conditions.
var (
	// ErrNotConnected is returned when a request is attempted outside the
	// Connected state.
	ErrNotConnected = errors.New("bridge: not connected")

	// ErrAlreadyConnected is returned when Connect is called while a
	// connection attempt or an established connection is active.
	ErrAlreadyConnected = errors.New("bridge: connection already active")

	// ErrRequestTimeout is returned when no response arrives within the
	// configured request timeout.
	ErrRequestTimeout = errors.New("bridge: request timed out")

	// ErrConnectionClosed uniformly fails every in-flight request when the
	// connection closes or Disconnect is called.
	ErrConnectionClosed = errors.New("bridge: connection closed")
)

// AuthError is returned when the Designer refuses the handshake. It is
// terminal for that connect attempt; the Manager never retries it.
type AuthError struct {
	Reason string
	Err    error // Underlying error, if the handshake itself failed
}

// Error returns the error message.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bridge: authentication failed: %v", e.Err)
	}
	if e.Reason == "" {
		return "bridge: authentication rejected by peer"
	}
	return fmt.Sprintf("bridge: authentication rejected by peer: %s", e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransportError wraps a socket-level failure with the operation that hit it.
type TransportError struct {
	Op  string // "dial", "write" or "read"
	Err error
}

// Error returns the error message.
func (e *TransportError) Error() string {
	return fmt.Sprintf("bridge: transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}
