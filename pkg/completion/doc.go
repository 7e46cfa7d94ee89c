// Package completion layers a short-TTL cache over the editor.completion
// RPC method.
//
// The cache is keyed by the trimmed completion prefix. Results may be stale
// by at most the TTL; every invalidating event on either side clears the
// whole cache (there is no partial invalidation), which bounds staleness to
// one round trip. Four triggers clear it: a connection state transition
// away from Connected, an explicit local Invalidate, the peer's
// designer.cache.invalidated notification, and InvalidateRemote, which also
// asks the peer to clear its own server-side cache.
package completion
