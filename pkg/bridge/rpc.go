package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/studiobridge/studiobridge/pkg/discovery"
	"github.com/studiobridge/studiobridge/pkg/protocol"
)

// Call sends a request and blocks until its correlated response, the fixed
// request timeout, connection closure or ctx cancellation - whichever comes
// first. It fails immediately with ErrNotConnected outside the Connected
// state. The result is the raw response payload; remote errors come back as
// *protocol.RPCError with code, message and data preserved verbatim.
func (m *Manager) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return m.call(ctx, method, params, false)
}

// call is the correlation engine. handshake permits the one authenticate
// request that must run during Authenticating.
func (m *Manager) call(ctx context.Context, method string, params any, handshake bool) (json.RawMessage, error) {
	m.mu.Lock()
	conn := m.conn
	allowed := m.state == StateConnected || (handshake && m.state == StateAuthenticating)
	m.mu.Unlock()

	if !allowed || conn == nil {
		return nil, ErrNotConnected
	}

	id := m.seq.Add(1)
	data, err := protocol.EncodeRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	ctx, span := m.tracer.Start(ctx, "designer.rpc "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.method", method),
			attribute.Int64("rpc.id", int64(id)),
		))
	defer span.End()

	callCtx := ctx
	if m.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.config.RequestTimeout)
		defer cancel()
	}

	p := newPendingCall(id)
	m.addPending(p)

	start := time.Now()
	if err := m.writeMessage(conn, data); err != nil {
		m.removePending(id)
		werr := &TransportError{Op: "write", Err: err}
		m.finishSpan(span, werr)
		m.metrics.RecordRequest(method, "write_error", time.Since(start))
		return nil, werr
	}

	select {
	case <-callCtx.Done():
		m.removePending(id)
		// A response or closure may have landed in the same instant. It
		// already completed the call, so honor it over the deadline.
		select {
		case <-p.done:
			m.finishSpan(span, p.err)
			m.metrics.RecordRequest(method, statusOf(p.err), time.Since(start))
			return p.result, p.err
		default:
		}
		err := callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrRequestTimeout
		}
		m.finishSpan(span, err)
		m.metrics.RecordRequest(method, statusOf(err), time.Since(start))
		return nil, err

	case <-p.done:
		m.finishSpan(span, p.err)
		m.metrics.RecordRequest(method, statusOf(p.err), time.Since(start))
		return p.result, p.err
	}
}

// Notify sends a fire-and-forget notification to the peer. There is no
// correlation id and no response.
func (m *Manager) Notify(method string, params any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := protocol.EncodeNotification(method, params)
	if err != nil {
		return err
	}
	if err := m.writeMessage(conn, data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (m *Manager) writeMessage(conn Transport, data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(data)
}

func (m *Manager) finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// statusOf buckets request outcomes for the metrics label. Bounded set to
// keep cardinality down.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRequestTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		var rpcErr *protocol.RPCError
		if errors.As(err, &rpcErr) {
			return "remote_error"
		}
		return "error"
	}
}

// authenticate issues the mandatory handshake request. It is the only
// request legal during Authenticating; remote refusals come back wrapped in
// *AuthError so Connect can distinguish them from transport failures.
func (m *Manager) authenticate(ctx context.Context, desc *discovery.Descriptor) (*protocol.AuthenticateResult, error) {
	params := protocol.AuthenticateParams{
		Secret: desc.Secret,
		Client: protocol.ClientInfo{
			ID:      m.clientID,
			Editor:  m.config.Editor,
			Version: m.config.ClientVersion,
		},
	}

	raw, err := m.call(ctx, protocol.MethodAuthenticate, params, true)
	if err != nil {
		var rpcErr *protocol.RPCError
		if errors.As(err, &rpcErr) {
			return nil, &AuthError{Reason: rpcErr.Message, Err: rpcErr}
		}
		return nil, err
	}

	var result protocol.AuthenticateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal authenticate result: %w", err)
	}
	return &result, nil
}

// Ping performs a liveness round trip.
func (m *Manager) Ping(ctx context.Context) (*protocol.PingResult, error) {
	raw, err := m.Call(ctx, protocol.MethodPing, nil)
	if err != nil {
		return nil, err
	}

	var result protocol.PingResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal ping result: %w", err)
	}
	return &result, nil
}

// ExecuteScript runs code in the Designer scripting scope and returns the
// captured output.
func (m *Manager) ExecuteScript(ctx context.Context, code, scope string) (*protocol.ScriptExecuteResult, error) {
	raw, err := m.Call(ctx, protocol.MethodScriptExecute, protocol.ScriptExecuteParams{
		Code:  code,
		Scope: scope,
	})
	if err != nil {
		return nil, err
	}

	var result protocol.ScriptExecuteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal script result: %w", err)
	}
	return &result, nil
}

// ScanProject triggers a resource scan on the peer. An empty path scans the
// whole project.
func (m *Manager) ScanProject(ctx context.Context, path string) (*protocol.ProjectScanResult, error) {
	raw, err := m.Call(ctx, protocol.MethodProjectScan, protocol.ProjectScanParams{Path: path})
	if err != nil {
		return nil, err
	}

	var result protocol.ProjectScanResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal scan result: %w", err)
	}
	return &result, nil
}

// Sessions lists the designer sessions open on the peer.
func (m *Manager) Sessions(ctx context.Context) ([]protocol.Resource, error) {
	return m.listResources(ctx, protocol.MethodProjectSessions)
}

// Pages lists the pages of the open project.
func (m *Manager) Pages(ctx context.Context) ([]protocol.Resource, error) {
	return m.listResources(ctx, protocol.MethodProjectPages)
}

// Views lists the views of the open project.
func (m *Manager) Views(ctx context.Context) ([]protocol.Resource, error) {
	return m.listResources(ctx, protocol.MethodProjectViews)
}

func (m *Manager) listResources(ctx context.Context, method string) ([]protocol.Resource, error) {
	raw, err := m.Call(ctx, method, nil)
	if err != nil {
		return nil, err
	}

	var result protocol.ResourceListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal %s result: %w", method, err)
	}
	return result.Resources, nil
}

// ShowMessage displays a message to the Designer user. Level is "info",
// "warn" or "error"; empty defaults to "info" on the peer.
func (m *Manager) ShowMessage(ctx context.Context, message, level string) error {
	_, err := m.Call(ctx, protocol.MethodShowMessage, protocol.ShowMessageParams{
		Message: message,
		Level:   level,
	})
	return err
}

// Completion performs one completion lookup. Callers normally go through
// the completion cache instead of calling this directly.
func (m *Manager) Completion(ctx context.Context, prefix, scope string) (*protocol.CompletionResult, error) {
	raw, err := m.Call(ctx, protocol.MethodCompletion, protocol.CompletionParams{
		Prefix: prefix,
		Scope:  scope,
	})
	if err != nil {
		return nil, err
	}

	var result protocol.CompletionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal completion result: %w", err)
	}
	return &result, nil
}

// InvalidateRemoteCompletion asks the peer to clear its server-side
// completion cache. Fire-and-forget: no response is awaited.
func (m *Manager) InvalidateRemoteCompletion() error {
	return m.Notify(protocol.MethodCompletionInvalidate, nil)
}
