// Package bridge maintains the single persistent connection between the
// editor and a running Designer instance.
//
// The Manager owns one WebSocket connection at a time and drives it through
// the Disconnected -> Connecting -> Authenticating -> Connected lifecycle.
// All requests are correlated by a monotonically increasing id; concurrent
// calls may be in flight and responses may arrive in any order. Inbound
// notifications fan out to typed subscribers.
//
// Connection-scoped failures (transport errors, closure, authentication
// refusal) surface through the state-change subscription and uniformly fail
// every in-flight call. Request-scoped failures (timeout, remote error)
// surface only to the caller awaiting that request. Every call resolves
// exactly once.
//
// A Manager instance talks to exactly one peer; there is no pooling.
package bridge
