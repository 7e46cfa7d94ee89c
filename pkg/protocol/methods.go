package protocol

import "strings"

// Methods invoked by the bridge. The correlation engine is method-agnostic;
// these constants and their schemas are the closed set the typed call
// wrappers validate against.
const (
	// MethodAuthenticate is the mandatory handshake request. It must be the
	// first and only request issued before the connection reaches the
	// Connected state.
	MethodAuthenticate = "designer.authenticate"

	// MethodPing is a lightweight liveness round trip.
	MethodPing = "designer.ping"

	// MethodShowMessage displays a message to the Designer user.
	MethodShowMessage = "designer.showMessage"

	// MethodCompletion is the single cached completion lookup.
	MethodCompletion = "editor.completion"

	// MethodCompletionInvalidate asks the peer to clear its own server-side
	// completion cache. Sent fire-and-forget.
	MethodCompletionInvalidate = "editor.completion.invalidate"

	// MethodScriptExecute runs a script in the Designer scripting scope.
	MethodScriptExecute = "script.execute"

	// MethodProjectScan triggers a project resource scan on the peer.
	MethodProjectScan = "project.scan"

	MethodProjectSessions = "project.sessions"
	MethodProjectPages    = "project.pages"
	MethodProjectViews    = "project.views"
)

// Notifications accepted by the bridge.
const (
	// NotifyCacheInvalidated reports a remote-side change that invalidates
	// completion results. Reason and Count are informational only.
	NotifyCacheInvalidated = "designer.cache.invalidated"

	// DebugEventPrefix is the prefix shared by all debug-session events.
	// Subscribers are keyed by the suffix ("breakpoint", "resume", ...).
	DebugEventPrefix = "designer.debug.event."
)

// DebugEventSuffix returns the event-type suffix of a debug notification
// method and whether the method belongs to the debug event family.
func DebugEventSuffix(method string) (string, bool) {
	if !strings.HasPrefix(method, DebugEventPrefix) {
		return "", false
	}
	return method[len(DebugEventPrefix):], true
}

// ClientInfo identifies the editor side of the handshake.
type ClientInfo struct {
	ID      string `json:"id"`      // Per-process UUID
	Editor  string `json:"editor"`  // Host editor name
	Version string `json:"version"` // Bridge version
}

// PeerInfo is the metadata the Designer reports about itself.
type PeerInfo struct {
	Project      string   `json:"project"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// AuthenticateParams is the payload of MethodAuthenticate.
type AuthenticateParams struct {
	Secret string     `json:"secret"`
	Client ClientInfo `json:"client"`
}

// AuthenticateResult is the handshake response. Success false means the
// connect attempt has failed; the bridge does not retry it automatically.
type AuthenticateResult struct {
	Success bool     `json:"success"`
	Peer    PeerInfo `json:"peer"`
}

// PingResult carries the peer's clock for latency measurement.
type PingResult struct {
	ServerTime int64 `json:"serverTime"` // Unix milliseconds
}

// ShowMessageParams displays a user-visible message in the Designer.
type ShowMessageParams struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"` // "info", "warn" or "error"
}

// CompletionParams is the payload of MethodCompletion. Prefix is expected
// to be normalized (trimmed) by the caller before it is used as a cache key.
type CompletionParams struct {
	Prefix string `json:"prefix"`
	Scope  string `json:"scope,omitempty"`
}

// CompletionItem is a single completion suggestion.
type CompletionItem struct {
	Label      string `json:"label"`
	Kind       string `json:"kind,omitempty"`
	Detail     string `json:"detail,omitempty"`
	InsertText string `json:"insertText,omitempty"`
}

// CompletionResult is the payload of a MethodCompletion response.
type CompletionResult struct {
	Items []CompletionItem `json:"items"`
}

// ScriptExecuteParams runs Code in the Designer scripting scope.
type ScriptExecuteParams struct {
	Code  string `json:"code"`
	Scope string `json:"scope,omitempty"`
}

// ScriptExecuteResult carries the captured output of a script run.
type ScriptExecuteResult struct {
	Output string `json:"output"`
}

// ProjectScanParams restricts a scan to a subtree when Path is non-empty.
type ProjectScanParams struct {
	Path string `json:"path,omitempty"`
}

// ProjectScanResult reports how many resources the scan touched.
type ProjectScanResult struct {
	Updated int `json:"updated"`
}

// Resource is a named project resource (session, page or view).
type Resource struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Path  string `json:"path,omitempty"`
}

// ResourceListResult is shared by the sessions/pages/views listings.
type ResourceListResult struct {
	Resources []Resource `json:"resources"`
}

// CacheInvalidatedParams is the payload of NotifyCacheInvalidated. Both
// fields are used only for logging.
type CacheInvalidatedParams struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}
