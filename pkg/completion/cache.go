package completion

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/studiobridge/studiobridge/pkg/bridge"
	"github.com/studiobridge/studiobridge/pkg/discovery"
	"github.com/studiobridge/studiobridge/pkg/protocol"
)

// Client is the slice of the bridge Manager the cache needs. Tests
// substitute a fake; production passes *bridge.Manager.
type Client interface {
	Completion(ctx context.Context, prefix, scope string) (*protocol.CompletionResult, error)
	InvalidateRemoteCompletion() error
}

// Subscription is the event surface the cache binds its invalidation
// triggers to. *bridge.Manager satisfies it.
type Subscription interface {
	OnStateChange(fn bridge.StateHandler) func()
	OnNotification(method string, fn bridge.NotificationHandler) func()
}

// Config holds cache tuning.
type Config struct {
	// TTL is the maximum age at which an entry is still served.
	// Default: 2 seconds.
	TTL time.Duration

	// SweepInterval is the period of the optional expired-entry sweep.
	// 0 disables the sweep; disconnect and invalidation already purge
	// wholesale, so the sweep only trims memory on long idle stretches.
	// Default: 0.
	SweepInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TTL:           2 * time.Second,
		SweepInterval: 0,
	}
}

type entry struct {
	result    *protocol.CompletionResult
	timestamp time.Time
}

// Cache is a TTL-bound completion cache. It is safe for concurrent use.
type Cache struct {
	client  Client
	config  *Config
	logger  *slog.Logger
	metrics *bridge.Metrics

	mu      sync.Mutex
	entries map[string]entry

	cancels   []func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewCache creates a Cache over the given client. A nil config uses
// DefaultConfig, a nil logger uses slog.Default and a nil metrics records
// nothing.
func NewCache(client Client, config *Config, logger *slog.Logger, metrics *bridge.Metrics) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client:  client,
		config:  config,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
}

// Bind wires the cache's event-driven invalidation triggers to the bridge:
// any state transition away from Connected and the peer's cache
// invalidation notification both clear everything. It also starts the
// optional sweep. Returns the cache for chaining.
func (c *Cache) Bind(sub Subscription) *Cache {
	c.cancels = append(c.cancels, sub.OnStateChange(func(state bridge.State, _ *discovery.Descriptor) {
		if state == bridge.StateConnected {
			return
		}
		c.clear("state " + state.String())
	}))

	c.cancels = append(c.cancels, sub.OnNotification(protocol.NotifyCacheInvalidated, func(params json.RawMessage) {
		var p protocol.CacheInvalidatedParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.logger.Warn("bad cache invalidation payload", "error", err)
		} else {
			c.logger.Debug("remote cache invalidation", "reason", p.Reason, "count", p.Count)
		}
		c.clear("remote notification")
	}))

	if c.config.SweepInterval > 0 {
		go c.sweepLoop()
	}
	return c
}

// Close unbinds the invalidation triggers and stops the sweep. Idempotent.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		for _, cancel := range c.cancels {
			cancel()
		}
		c.cancels = nil
		close(c.done)
	})
}

// Get returns completions for the prefix, serving a live cached entry when
// one exists and issuing exactly one editor.completion call otherwise.
func (c *Cache) Get(ctx context.Context, prefix string) (*protocol.CompletionResult, error) {
	key := strings.TrimSpace(prefix)
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Sub(e.timestamp) < c.config.TTL {
		c.mu.Unlock()
		c.metrics.RecordCacheHit()
		return copyResult(e.result), nil
	}
	c.mu.Unlock()

	c.metrics.RecordCacheMiss()
	result, err := c.client.Completion(ctx, key, "")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = entry{result: result, timestamp: time.Now()}
	c.mu.Unlock()

	return copyResult(result), nil
}

// Invalidate clears the entire cache.
func (c *Cache) Invalidate() {
	c.clear("local invalidate")
}

// InvalidateRemote clears the local cache and asks the peer to clear its
// server-side cache. The remote clear is fire-and-forget; its error is
// returned only so callers can log delivery failures.
func (c *Cache) InvalidateRemote() error {
	c.clear("local invalidate (remote requested)")
	return c.client.InvalidateRemoteCompletion()
}

// Size reports the number of cached entries, live or expired.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) clear(reason string) {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	if n > 0 {
		c.logger.Debug("completion cache cleared", "reason", reason, "entries", n)
	}
}

// sweepLoop periodically drops expired entries. Purely a memory trim; the
// TTL check in Get is what guarantees freshness.
func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, e := range c.entries {
				if now.Sub(e.timestamp) >= c.config.TTL {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()

		case <-c.done:
			return
		}
	}
}

// copyResult returns a shallow copy with its own items slice so callers
// cannot mutate cached state.
func copyResult(r *protocol.CompletionResult) *protocol.CompletionResult {
	if r == nil {
		return nil
	}
	items := make([]protocol.CompletionItem, len(r.Items))
	copy(items, r.Items)
	return &protocol.CompletionResult{Items: items}
}
