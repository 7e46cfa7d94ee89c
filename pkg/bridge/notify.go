package bridge

import (
	"encoding/json"
	"runtime/debug"

	"github.com/studiobridge/studiobridge/pkg/discovery"
	"github.com/studiobridge/studiobridge/pkg/protocol"
)

// StateHandler observes connection state transitions. The descriptor is the
// one the current or last attempt was made with, or nil after Disconnect.
type StateHandler func(state State, desc *discovery.Descriptor)

// NotificationHandler receives the params of an inbound notification.
type NotificationHandler func(params json.RawMessage)

// DebugEventHandler receives all designer.debug.event.* notifications,
// keyed by the event-type suffix.
type DebugEventHandler func(event string, params json.RawMessage)

type stateSub struct {
	id uint64
	fn StateHandler
}

type notifySub struct {
	id uint64
	fn NotificationHandler
}

type debugSub struct {
	id uint64
	fn DebugEventHandler
}

// OnStateChange registers a state-change subscriber. Subscribers are invoked
// in registration order on every transition; the returned function removes
// the subscription.
func (m *Manager) OnStateChange(fn StateHandler) func() {
	m.subMu.Lock()
	m.subSeq++
	id := m.subSeq
	m.stateSubs = append(m.stateSubs, stateSub{id: id, fn: fn})
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, sub := range m.stateSubs {
			if sub.id == id {
				m.stateSubs = append(m.stateSubs[:i], m.stateSubs[i+1:]...)
				return
			}
		}
	}
}

// OnNotification registers a subscriber for one exact notification method.
// The returned function removes the subscription.
func (m *Manager) OnNotification(method string, fn NotificationHandler) func() {
	m.subMu.Lock()
	m.subSeq++
	id := m.subSeq
	m.notifySubs[method] = append(m.notifySubs[method], notifySub{id: id, fn: fn})
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		subs := m.notifySubs[method]
		for i, sub := range subs {
			if sub.id == id {
				m.notifySubs[method] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// OnDebugEvent registers a subscriber for the whole debug-event family.
// One dispatch path serves every designer.debug.event.* variant; handlers
// receive the suffix as the event name.
func (m *Manager) OnDebugEvent(fn DebugEventHandler) func() {
	m.subMu.Lock()
	m.subSeq++
	id := m.subSeq
	m.debugSubs = append(m.debugSubs, debugSub{id: id, fn: fn})
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, sub := range m.debugSubs {
			if sub.id == id {
				m.debugSubs = append(m.debugSubs[:i], m.debugSubs[i+1:]...)
				return
			}
		}
	}
}

// dispatchNotification fans an inbound notification out to its subscribers.
// Delivery follows wire order because the read loop is the only caller.
func (m *Manager) dispatchNotification(msg *protocol.Message) {
	m.metrics.RecordNotification(msg.Method)

	suffix, isDebug := protocol.DebugEventSuffix(msg.Method)

	m.subMu.Lock()
	var family []debugSub
	if isDebug {
		family = make([]debugSub, len(m.debugSubs))
		copy(family, m.debugSubs)
	}
	exact := make([]notifySub, len(m.notifySubs[msg.Method]))
	copy(exact, m.notifySubs[msg.Method])
	m.subMu.Unlock()

	if len(family) == 0 && len(exact) == 0 {
		m.logger.Debug("ignoring notification", "method", msg.Method)
		return
	}

	// A debug-event method reaches both its family subscribers and any
	// subscriber registered for the exact method name.
	for _, sub := range family {
		m.invokeSubscriber(msg.Method, func() { sub.fn(suffix, msg.Params) })
	}
	for _, sub := range exact {
		m.invokeSubscriber(msg.Method, func() { sub.fn(msg.Params) })
	}
}

// invokeSubscriber runs one callback with panic recovery. A panicking
// subscriber must never abort a transition or the read loop.
func (m *Manager) invokeSubscriber(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subscriber panic",
				"subscription", name,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
