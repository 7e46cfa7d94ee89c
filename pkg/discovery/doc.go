// Package discovery defines the peer descriptor record that seeds a bridge
// connection attempt, and the boundary interfaces the out-of-process
// discovery machinery plugs into.
//
// The bridge consumes descriptors; it does not produce them. How a
// descriptor is found (filesystem polling, liveness checking) and how a
// discovered peer is scored against configured endpoints are out of scope
// here - only the record shape and the Matcher boundary belong to this
// package. LoadDescriptor reads the single JSON record a running Designer
// writes alongside its runtime directory; it performs one read and no
// watching.
package discovery
