package bridge

import (
	"encoding/json"
	"sync"
)

// pendingCall tracks one in-flight request awaiting its correlated response.
// It is completed exactly once: by the matching response, by its timeout, by
// connection closure, or by the caller's context - whichever fires first.
// Later events for the same id find the entry gone and are no-ops.
type pendingCall struct {
	id     uint64
	done   chan struct{}
	once   sync.Once
	result json.RawMessage
	err    error
}

func newPendingCall(id uint64) *pendingCall {
	return &pendingCall{
		id:   id,
		done: make(chan struct{}),
	}
}

// complete resolves the call. All completion paths funnel through here so
// the exactly-once guarantee holds regardless of which path wins.
func (p *pendingCall) complete(result json.RawMessage, err error) {
	p.once.Do(func() {
		p.result = result
		p.err = err
		close(p.done)
	})
}

// addPending registers a pending call. A given id maps to at most one live
// entry; ids come from a monotonic counter and are never reused while the
// Manager lives.
func (m *Manager) addPending(p *pendingCall) {
	m.pendingMu.Lock()
	m.pending[p.id] = p
	m.pendingMu.Unlock()
}

// removePending drops a pending call from the table, returning it if it was
// still registered.
func (m *Manager) removePending(id uint64) *pendingCall {
	m.pendingMu.Lock()
	p, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.pendingMu.Unlock()
	if !ok {
		return nil
	}
	return p
}

// failAllPending uniformly fails every in-flight call. Used on connection
// closure and on Disconnect.
func (m *Manager) failAllPending(err error) {
	m.pendingMu.Lock()
	calls := make([]*pendingCall, 0, len(m.pending))
	for _, p := range m.pending {
		calls = append(calls, p)
	}
	m.pending = make(map[uint64]*pendingCall)
	m.pendingMu.Unlock()

	for _, p := range calls {
		p.complete(nil, err)
	}
}

// pendingCount reports the number of in-flight calls.
func (m *Manager) pendingCount() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return len(m.pending)
}
