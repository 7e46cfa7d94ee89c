package bridge

// State is the connection lifecycle state. Exactly one value is current at
// a time, owned by the Manager and mutated only by its transition handlers.
type State uint8

const (
	// StateDisconnected is the initial and terminal state.
	StateDisconnected State = iota

	// StateConnecting means the transport dial is in progress.
	StateConnecting

	// StateAuthenticating means the transport is open and the handshake
	// request has been issued but not yet answered.
	StateAuthenticating

	// StateConnected means the handshake succeeded; requests may be sent.
	StateConnected

	// StateError means the last connect attempt failed. No reconnection is
	// scheduled from this state; a fresh Connect call is required.
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateConnected:
		return "Connected"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}
