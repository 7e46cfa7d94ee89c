package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/studiobridge/studiobridge/pkg/bridge"
	"github.com/studiobridge/studiobridge/pkg/protocol"
)

// fakeClient counts completion lookups and remote invalidations.
type fakeClient struct {
	mu          sync.Mutex
	calls       int
	invalidates int
	err         error
	items       []protocol.CompletionItem
}

func (f *fakeClient) Completion(ctx context.Context, prefix, scope string) (*protocol.CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	items := f.items
	if items == nil {
		items = []protocol.CompletionItem{{Label: prefix + ".suggestion"}}
	}
	return &protocol.CompletionResult{Items: items}, nil
}

func (f *fakeClient) InvalidateRemoteCompletion() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidates++
	return nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeClient) invalidateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidates
}

// fakeSubscription records the handlers Bind registers and lets tests fire
// them directly.
type fakeSubscription struct {
	mu       sync.Mutex
	stateFns []bridge.StateHandler
	noteFns  map[string][]bridge.NotificationHandler
	disposed int
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{noteFns: make(map[string][]bridge.NotificationHandler)}
}

func (s *fakeSubscription) OnStateChange(fn bridge.StateHandler) func() {
	s.mu.Lock()
	s.stateFns = append(s.stateFns, fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.disposed++
		s.mu.Unlock()
	}
}

func (s *fakeSubscription) OnNotification(method string, fn bridge.NotificationHandler) func() {
	s.mu.Lock()
	s.noteFns[method] = append(s.noteFns[method], fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.disposed++
		s.mu.Unlock()
	}
}

func (s *fakeSubscription) fireState(state bridge.State) {
	s.mu.Lock()
	fns := append([]bridge.StateHandler(nil), s.stateFns...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(state, nil)
	}
}

func (s *fakeSubscription) fireNotification(method string, params string) {
	s.mu.Lock()
	fns := append([]bridge.NotificationHandler(nil), s.noteFns[method]...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(json.RawMessage(params))
	}
}

func testCacheLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetServesWithinTTL(t *testing.T) {
	client := &fakeClient{}
	cache := NewCache(client, &Config{TTL: time.Minute}, testCacheLogger(), nil)

	ctx := context.Background()
	first, err := cache.Get(ctx, "system.tag")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := cache.Get(ctx, "system.tag")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if n := client.callCount(); n != 1 {
		t.Fatalf("completion calls = %d for two gets within TTL, want 1", n)
	}
	if len(first.Items) != 1 || first.Items[0].Label != second.Items[0].Label {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestGetRefreshesAfterTTL(t *testing.T) {
	client := &fakeClient{}
	cache := NewCache(client, &Config{TTL: 20 * time.Millisecond}, testCacheLogger(), nil)

	ctx := context.Background()
	if _, err := cache.Get(ctx, "system"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := cache.Get(ctx, "system"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if n := client.callCount(); n != 2 {
		t.Fatalf("completion calls = %d after TTL expiry, want 2", n)
	}
}

func TestGetTrimsPrefix(t *testing.T) {
	client := &fakeClient{}
	cache := NewCache(client, &Config{TTL: time.Minute}, testCacheLogger(), nil)

	ctx := context.Background()
	if _, err := cache.Get(ctx, "  system.tag  "); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := cache.Get(ctx, "system.tag"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n := client.callCount(); n != 1 {
		t.Fatalf("completion calls = %d for trimmed variants, want 1", n)
	}
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("peer busy")}
	cache := NewCache(client, &Config{TTL: time.Minute}, testCacheLogger(), nil)

	ctx := context.Background()
	if _, err := cache.Get(ctx, "x"); err == nil {
		t.Fatal("Get succeeded, want error")
	}
	if n := cache.Size(); n != 0 {
		t.Fatalf("size = %d after failed lookup, want 0", n)
	}

	client.mu.Lock()
	client.err = nil
	client.mu.Unlock()
	if _, err := cache.Get(ctx, "x"); err != nil {
		t.Fatalf("Get after recovery: %v", err)
	}
	if n := client.callCount(); n != 2 {
		t.Errorf("completion calls = %d, want 2", n)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	client := &fakeClient{items: []protocol.CompletionItem{{Label: "a"}}}
	cache := NewCache(client, &Config{TTL: time.Minute}, testCacheLogger(), nil)

	ctx := context.Background()
	first, err := cache.Get(ctx, "p")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first.Items[0].Label = "mutated"

	second, err := cache.Get(ctx, "p")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.Items[0].Label != "a" {
		t.Fatalf("cached entry mutated through returned slice: %q", second.Items[0].Label)
	}
}

func TestInvalidateClearsEverything(t *testing.T) {
	client := &fakeClient{}
	cache := NewCache(client, &Config{TTL: time.Minute}, testCacheLogger(), nil)

	ctx := context.Background()
	cache.Get(ctx, "a")
	cache.Get(ctx, "b")
	if n := cache.Size(); n != 2 {
		t.Fatalf("size = %d, want 2", n)
	}

	cache.Invalidate()
	if n := cache.Size(); n != 0 {
		t.Fatalf("size = %d after Invalidate, want 0", n)
	}
	cache.Get(ctx, "a")
	if n := client.callCount(); n != 3 {
		t.Errorf("completion calls = %d, want 3", n)
	}
}

func TestInvalidateRemote(t *testing.T) {
	client := &fakeClient{}
	cache := NewCache(client, &Config{TTL: time.Minute}, testCacheLogger(), nil)

	cache.Get(context.Background(), "a")
	if err := cache.InvalidateRemote(); err != nil {
		t.Fatalf("InvalidateRemote: %v", err)
	}
	if n := cache.Size(); n != 0 {
		t.Errorf("size = %d after InvalidateRemote, want 0", n)
	}
	if n := client.invalidateCount(); n != 1 {
		t.Errorf("remote invalidations = %d, want 1", n)
	}
}

// The remote invalidation notification clears entries even when their TTL
// has not expired.
func TestRemoteNotificationClearsLiveEntries(t *testing.T) {
	client := &fakeClient{}
	sub := newFakeSubscription()
	cache := NewCache(client, &Config{TTL: time.Hour}, testCacheLogger(), nil).Bind(sub)
	defer cache.Close()

	ctx := context.Background()
	cache.Get(ctx, "live")
	sub.fireNotification(protocol.NotifyCacheInvalidated, `{"reason":"tag edit","count":5}`)

	if n := cache.Size(); n != 0 {
		t.Fatalf("size = %d after remote invalidation, want 0", n)
	}
	cache.Get(ctx, "live")
	if n := client.callCount(); n != 2 {
		t.Errorf("completion calls = %d, want 2", n)
	}
}

func TestRemoteNotificationBadPayloadStillClears(t *testing.T) {
	client := &fakeClient{}
	sub := newFakeSubscription()
	cache := NewCache(client, &Config{TTL: time.Hour}, testCacheLogger(), nil).Bind(sub)
	defer cache.Close()

	cache.Get(context.Background(), "x")
	sub.fireNotification(protocol.NotifyCacheInvalidated, `"not an object"`)

	if n := cache.Size(); n != 0 {
		t.Fatalf("size = %d after malformed invalidation, want 0", n)
	}
}

func TestStateChangeClears(t *testing.T) {
	client := &fakeClient{}
	sub := newFakeSubscription()
	cache := NewCache(client, &Config{TTL: time.Hour}, testCacheLogger(), nil).Bind(sub)
	defer cache.Close()

	cache.Get(context.Background(), "x")

	// Staying Connected must not clear.
	sub.fireState(bridge.StateConnected)
	if n := cache.Size(); n != 1 {
		t.Fatalf("size = %d after Connected transition, want 1", n)
	}

	sub.fireState(bridge.StateDisconnected)
	if n := cache.Size(); n != 0 {
		t.Fatalf("size = %d after Disconnected transition, want 0", n)
	}
}

func TestCloseUnbinds(t *testing.T) {
	client := &fakeClient{}
	sub := newFakeSubscription()
	cache := NewCache(client, DefaultConfig(), testCacheLogger(), nil).Bind(sub)

	cache.Close()
	cache.Close()

	sub.mu.Lock()
	disposed := sub.disposed
	sub.mu.Unlock()
	if disposed != 2 {
		t.Fatalf("disposed subscriptions = %d, want 2", disposed)
	}
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	client := &fakeClient{}
	sub := newFakeSubscription()
	cfg := &Config{TTL: 10 * time.Millisecond, SweepInterval: 10 * time.Millisecond}
	cache := NewCache(client, cfg, testCacheLogger(), nil).Bind(sub)
	defer cache.Close()

	cache.Get(context.Background(), "old")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cache.Size() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("size = %d, sweep never dropped the expired entry", cache.Size())
}
