package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/studiobridge/studiobridge/pkg/discovery"
	"github.com/studiobridge/studiobridge/pkg/protocol"
)

// fakeTransport is an in-memory Transport. Tests deliver inbound frames via
// deliver and inspect outbound frames via nextWrite.
type fakeTransport struct {
	inbound chan []byte
	writes  chan []byte

	mu       sync.Mutex
	writeErr error

	done chan struct{}
	once sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 64),
		writes:  make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

func (t *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-t.inbound:
		return data, nil
	case <-t.done:
		return nil, errors.New("use of closed connection")
	}
}

func (t *fakeTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	err := t.writeErr
	t.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case t.writes <- data:
	case <-t.done:
		return errors.New("use of closed connection")
	}
	return nil
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

func (t *fakeTransport) setWriteErr(err error) {
	t.mu.Lock()
	t.writeErr = err
	t.mu.Unlock()
}

func (t *fakeTransport) deliver(tb testing.TB, frame string) {
	tb.Helper()
	select {
	case t.inbound <- []byte(frame):
	case <-time.After(2 * time.Second):
		tb.Fatal("timed out delivering inbound frame")
	}
}

// nextWrite returns the next outbound frame, failing the test if none
// arrives in time.
func (t *fakeTransport) nextWrite(tb testing.TB) []byte {
	tb.Helper()
	select {
	case data := <-t.writes:
		return data
	case <-time.After(2 * time.Second):
		tb.Fatal("timed out waiting for outbound frame")
		return nil
	}
}

// fakeDialer hands out one fakeTransport per Dial and records every call.
type fakeDialer struct {
	mu      sync.Mutex
	dialErr error
	dialed  []*fakeTransport
	notify  chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{notify: make(chan *fakeTransport, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, addr string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	tr := newFakeTransport()
	d.dialed = append(d.dialed, tr)
	d.notify <- tr
	return tr, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialed)
}

// waitDial blocks until the next Dial happens.
func (d *fakeDialer) waitDial(tb testing.TB) *fakeTransport {
	tb.Helper()
	select {
	case tr := <-d.notify:
		return tr
	case <-time.After(2 * time.Second):
		tb.Fatal("timed out waiting for dial")
		return nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Editor = "testeditor"
	cfg.ClientVersion = "0.0.0-test"
	cfg.ConnectTimeout = 2 * time.Second
	cfg.RequestTimeout = 2 * time.Second
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.HeartbeatInterval = 0
	return cfg
}

func testDescriptor() *discovery.Descriptor {
	return &discovery.Descriptor{
		Host:   "127.0.0.1",
		Port:   8043,
		Secret: "sesame",
		Meta: discovery.Meta{
			Project: "demo",
			Version: "8.3.1",
		},
	}
}

// decodeRequest parses an outbound frame as a request envelope.
func decodeRequest(tb testing.TB, data []byte) protocol.Request {
	tb.Helper()
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		tb.Fatalf("unmarshal outbound request: %v", err)
	}
	return req
}

// respondAuth consumes the authenticate request from the transport and
// answers it with the given outcome.
func respondAuth(tb testing.TB, tr *fakeTransport, success bool) {
	tb.Helper()
	req := decodeRequest(tb, tr.nextWrite(tb))
	if req.Method != protocol.MethodAuthenticate {
		tb.Fatalf("first request = %q, want %q", req.Method, protocol.MethodAuthenticate)
	}
	var params protocol.AuthenticateParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		tb.Fatalf("unmarshal authenticate params: %v", err)
	}
	if params.Secret != "sesame" {
		tb.Fatalf("handshake secret = %q, want %q", params.Secret, "sesame")
	}
	if params.Client.ID == "" {
		tb.Fatal("handshake client id is empty")
	}
	tr.deliver(tb, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%d,"result":{"success":%v,"peer":{"project":"demo","version":"8.3.1"}}}`,
		req.ID, success))
}

// connect drives a full successful handshake and returns a Connected manager
// with its active transport and dialer.
func connect(tb testing.TB, cfg *Config) (*Manager, *fakeTransport, *fakeDialer) {
	tb.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	dialer := newFakeDialer()
	m := NewManager(dialer, cfg, testLogger(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- m.Connect(context.Background(), testDescriptor()) }()

	tr := dialer.waitDial(tb)
	respondAuth(tb, tr, true)

	select {
	case err := <-errCh:
		if err != nil {
			tb.Fatalf("Connect: %v", err)
		}
	case <-time.After(2 * time.Second):
		tb.Fatal("Connect did not return")
	}
	return m, tr, dialer
}

// waitState polls until the manager reaches the wanted state.
func waitState(tb testing.TB, m *Manager, want State) {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf("state = %v, want %v", m.State(), want)
}

// waitFor polls an arbitrary condition.
func waitFor(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %s", what)
}
