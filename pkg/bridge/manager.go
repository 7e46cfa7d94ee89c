package bridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/studiobridge/studiobridge/pkg/discovery"
	"github.com/studiobridge/studiobridge/pkg/protocol"
)

// Manager owns the single connection to a Designer instance: the transport,
// the pending-request table, the subscriber lists and the reconnect timer.
// Construct one explicitly and inject it where it is needed; there is no
// package-level instance.
type Manager struct {
	config   *Config
	dialer   Dialer
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	clientID string

	// mu guards state, conn, gen, desc, peer, connectedAt and reconnect.
	mu          sync.Mutex
	state       State
	conn        Transport
	gen         uint64 // Increments per connection; read loops carry their gen
	desc        *discovery.Descriptor
	peer        protocol.PeerInfo
	connectedAt time.Time
	reconnect   *time.Timer

	// writeMu serializes transport writes (gorilla allows one writer).
	writeMu sync.Mutex

	seq       atomic.Uint64
	pending   map[uint64]*pendingCall
	pendingMu sync.Mutex

	subMu      sync.Mutex
	subSeq     uint64
	stateSubs  []stateSub
	notifySubs map[string][]notifySub
	debugSubs  []debugSub
}

// NewManager creates a Manager. A nil dialer uses the WebSocket dialer, a
// nil config uses DefaultConfig, a nil logger uses slog.Default and a nil
// metrics records nothing. The config is cloned; later mutations by the
// caller do not reach the Manager.
func NewManager(dialer Dialer, config *Config, logger *slog.Logger, metrics *Metrics) *Manager {
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.Clone()
	}
	if dialer == nil {
		dialer = NewWebSocketDialer(config)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		config:     config,
		dialer:     dialer,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("studiobridge/bridge"),
		clientID:   uuid.NewString(),
		state:      StateDisconnected,
		pending:    make(map[uint64]*pendingCall),
		notifySubs: make(map[string][]notifySub),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Descriptor returns the descriptor of the current or last connection
// attempt, or nil after Disconnect.
func (m *Manager) Descriptor() *discovery.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desc
}

// Peer returns the metadata the Designer reported in the last successful
// handshake.
func (m *Manager) Peer() protocol.PeerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peer
}

// ClientID returns the per-process identity sent in the handshake.
func (m *Manager) ClientID() string {
	return m.clientID
}

// Stats is a point-in-time snapshot for the status endpoint.
type Stats struct {
	State       State
	Peer        protocol.PeerInfo
	ConnectedAt time.Time
	Pending     int
}

// Snapshot returns current connection statistics.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	s := Stats{
		State:       m.state,
		Peer:        m.peer,
		ConnectedAt: m.connectedAt,
	}
	m.mu.Unlock()
	s.Pending = m.pendingCount()
	return s
}

// Connect dials the peer named by the descriptor and performs the
// authenticate handshake. It blocks until the handshake succeeds or fails.
//
// Connect is legal only from Disconnected or Error; any in-progress or
// established connection returns ErrAlreadyConnected. On handshake refusal
// the state moves to Error and an *AuthError is returned; no reconnection
// is scheduled from Error.
func (m *Manager) Connect(ctx context.Context, desc *discovery.Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	switch m.state {
	case StateConnecting, StateAuthenticating, StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.cancelReconnectLocked()
	m.desc = desc
	notify := m.transitionLocked(StateConnecting)
	m.mu.Unlock()
	notify()

	dialCtx := ctx
	if m.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.config.ConnectTimeout)
		defer cancel()
	}

	conn, err := m.dialer.Dial(dialCtx, desc.Address())
	if err != nil {
		m.failAttempt(nil)
		return &TransportError{Op: "dial", Err: err}
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.conn = conn
	notify = m.transitionLocked(StateAuthenticating)
	m.mu.Unlock()
	notify()

	go m.readLoop(conn, gen)

	result, err := m.authenticate(ctx, desc)
	if err != nil {
		m.failAttempt(conn)
		return err
	}
	if !result.Success {
		m.failAttempt(conn)
		return &AuthError{Reason: "peer rejected shared secret"}
	}

	m.mu.Lock()
	if m.gen != gen || m.conn != conn {
		// Disconnect raced the tail of the handshake.
		m.mu.Unlock()
		return ErrConnectionClosed
	}
	m.peer = result.Peer
	m.connectedAt = time.Now()
	notify = m.transitionLocked(StateConnected)
	m.mu.Unlock()
	notify()

	m.logger.Info("connected to designer",
		"address", desc.Address(),
		"project", result.Peer.Project,
		"peer_version", result.Peer.Version)

	if m.config.HeartbeatInterval > 0 {
		go m.heartbeatLoop(gen)
	}
	return nil
}

// Disconnect tears the connection down from any state. It cancels a
// scheduled reconnect, fails all pending requests with ErrConnectionClosed,
// closes the transport and lands in Disconnected. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.cancelReconnectLocked()
	conn := m.conn
	m.conn = nil
	m.gen++ // Orphans any live read loop
	m.desc = nil
	notify := m.transitionLocked(StateDisconnected)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.failAllPending(ErrConnectionClosed)
	notify()
}

// transitionLocked moves to a new state and returns the subscriber fan-out
// to run after the Manager mutex is released. A same-state call is a no-op.
// Subscriber panics are recovered; they never abort a transition.
func (m *Manager) transitionLocked(s State) func() {
	if m.state == s {
		return func() {}
	}
	m.state = s
	desc := m.desc
	m.metrics.RecordStateChange(s)
	m.logger.Debug("state changed", "state", s.String())

	m.subMu.Lock()
	subs := make([]stateSub, len(m.stateSubs))
	copy(subs, m.stateSubs)
	m.subMu.Unlock()

	return func() {
		for _, sub := range subs {
			m.invokeSubscriber("state-change", func() { sub.fn(s, desc) })
		}
	}
}

// failAttempt closes out a failed connect attempt. The machine lands in
// Error unless an explicit Disconnect already moved it to Disconnected.
func (m *Manager) failAttempt(conn Transport) {
	m.mu.Lock()
	if conn != nil && m.conn == conn {
		m.conn = nil
	}
	var notify func()
	if m.state != StateDisconnected {
		notify = m.transitionLocked(StateError)
	}
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if notify != nil {
		notify()
	}
}

// readLoop is the single inbound dispatch point for one connection. It runs
// until the transport errors, then hands off to handleClosure.
func (m *Manager) readLoop(conn Transport, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClosure(conn, gen, err)
			return
		}
		m.dispatch(data)
	}
}

// dispatch classifies one inbound frame. Malformed frames are logged and
// dropped; they affect neither pending requests nor connection state.
func (m *Manager) dispatch(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		m.metrics.RecordParseError()
		m.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	switch msg.Kind {
	case protocol.KindResponse:
		m.completeResponse(msg)
	case protocol.KindNotification:
		m.dispatchNotification(msg)
	}
}

// completeResponse resolves the pending call matching the response id.
// Stale, duplicate or unmatched ids are logged and discarded.
func (m *Manager) completeResponse(msg *protocol.Message) {
	p := m.removePending(msg.ID)
	if p == nil {
		m.logger.Warn("discarding unmatched response", "id", msg.ID)
		return
	}
	if msg.Err != nil {
		p.complete(nil, msg.Err)
		return
	}
	p.complete(msg.Result, nil)
}

// handleClosure reacts to the transport dying. Closure while Connected
// moves to Disconnected and schedules the single reconnection attempt;
// closure during an attempt moves to Error. Either way every pending
// request fails exactly once with ErrConnectionClosed.
func (m *Manager) handleClosure(conn Transport, gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.conn != conn {
		// Stale read loop from a connection that was already replaced.
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.conn = nil
	desc := m.desc

	var notify func()
	switch prev {
	case StateConnected:
		m.logger.Info("connection closed", "error", cause)
		notify = m.transitionLocked(StateDisconnected)
		m.scheduleReconnectLocked(desc)
	case StateConnecting, StateAuthenticating:
		m.logger.Warn("connection lost during handshake", "error", cause)
		notify = m.transitionLocked(StateError)
	default:
		notify = func() {}
	}
	m.mu.Unlock()

	conn.Close()
	m.failAllPending(ErrConnectionClosed)
	notify()
}

// scheduleReconnectLocked arms the single reconnection attempt. The timer is
// Manager state and is canceled deterministically by Disconnect.
func (m *Manager) scheduleReconnectLocked(desc *discovery.Descriptor) {
	if m.config.ReconnectDelay <= 0 || desc == nil {
		return
	}
	m.logger.Info("scheduling reconnect", "delay", m.config.ReconnectDelay)
	gen := m.gen
	m.reconnect = time.AfterFunc(m.config.ReconnectDelay, func() {
		m.runReconnect(desc, gen)
	})
}

func (m *Manager) runReconnect(desc *discovery.Descriptor, gen uint64) {
	m.mu.Lock()
	m.reconnect = nil
	state := m.state
	stale := m.gen != gen
	m.mu.Unlock()

	// An explicit Connect or Disconnect in the meantime wins. Disconnect
	// bumps the generation, so a timer that beat the cancel still backs off.
	if stale || state != StateDisconnected {
		return
	}

	m.metrics.RecordReconnect()
	m.logger.Info("reconnecting", "address", desc.Address())
	if err := m.Connect(context.Background(), desc); err != nil {
		m.logger.Error("reconnect failed", "error", err)
	}
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

// heartbeatLoop pings the peer while this connection is current. Failures
// are left to the read loop to surface; the heartbeat never mutates state.
func (m *Manager) heartbeatLoop(gen uint64) {
	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		alive := m.gen == gen && m.state == StateConnected
		m.mu.Unlock()
		if !alive {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.config.RequestTimeout)
		if _, err := m.Ping(ctx); err != nil {
			m.logger.Debug("heartbeat ping failed", "error", err)
		}
		cancel()
	}
}
