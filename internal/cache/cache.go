// Package cache memoizes expensive aggregate computations.
//
// Each key has at most one computation in flight. Concurrent callers for a
// key that is being computed wait for that computation and share its
// result. Entries expire passively: freshness is checked on read and no
// background eviction runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("cache closed")

// Lookup results reported to metrics.
const (
	resultHit    = "hit"
	resultMiss   = "miss"
	resultShared = "shared"
	resultBypass = "bypass"
	resultRemote = "remote"
)

type entry struct {
	value      any
	computedAt time.Time
	ttl        time.Duration
}

func (e entry) fresh(now time.Time) bool {
	return now.Before(e.computedAt.Add(e.ttl))
}

// Options configures a Cache.
type Options struct {
	Enabled    bool
	DefaultTTL time.Duration
	Clock      clock.Clock
	Remote     Remote
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Cache is a process-local TTL cache with per-key single flight and an
// optional shared remote tier.
type Cache struct {
	enabled    bool
	defaultTTL time.Duration
	clock      clock.Clock
	remote     Remote
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu      sync.RWMutex
	entries map[string]entry
	// gen advances on Clear; flights started under an older generation
	// neither store nor share their result.
	gen     uint64
	flights singleflight.Group
	closed  atomic.Bool
}

// New constructs a cache.
func New(opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	return &Cache{
		enabled:    opts.Enabled,
		defaultTTL: opts.DefaultTTL,
		clock:      opts.Clock,
		remote:     opts.Remote,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		entries:    make(map[string]entry),
	}
}

// Enabled reports whether results are memoized.
func (c *Cache) Enabled() bool { return c.enabled }

// Do returns the fresh value for key or runs fill once across all
// concurrent callers and stores its result for ttl. fill runs detached from
// the caller's cancellation: a caller whose ctx ends stops waiting, the
// computation still completes and is stored. Errors are not cached.
func (c *Cache) Do(ctx context.Context, key string, ttl time.Duration, fill func(context.Context) (any, error)) (any, error) {
	return c.do(ctx, key, ttl, func(ctx context.Context) (any, bool, error) {
		v, err := fill(ctx)
		return v, false, err
	})
}

// do runs fill under single flight. fill reports whether its value should be
// published to the remote tier once stored.
func (c *Cache) do(ctx context.Context, key string, ttl time.Duration, fill func(context.Context) (any, bool, error)) (any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !c.enabled {
		c.metrics.RecordCacheLookup(resultBypass)
		v, _, err := fill(ctx)
		return v, err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if v, ok := c.lookup(key); ok {
		c.metrics.RecordCacheLookup(resultHit)
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	gen := c.generation()
	ch := c.flights.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		// A flight that finished between our lookup and DoChan already
		// stored the value.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		c.metrics.RecordCacheLookup(resultMiss)
		v, publish, err := fill(detached)
		if err != nil {
			return nil, err
		}
		if c.store(key, v, ttl, gen) && publish {
			c.remoteSet(detached, key, v, ttl)
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.RecordCacheLookup(resultShared)
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetOrCompute is the typed form of Do. When the cache has a remote tier the
// value is also shared there, JSON encoded, so T must round-trip through
// JSON.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	v, err := c.do(ctx, key, ttl, func(ctx context.Context) (any, bool, error) {
		if c.remote != nil && c.enabled {
			if cached, ok := c.remoteGet(ctx, key, new(T)); ok {
				c.metrics.RecordCacheLookup(resultRemote)
				return *cached.(*T), false, nil
			}
		}
		computed, err := compute(ctx)
		if err != nil {
			return nil, false, err
		}
		return computed, c.remote != nil, nil
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache key %q holds %T", key, v)
	}
	return typed, nil
}

func (c *Cache) lookup(key string) (any, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.fresh(now) {
		return e.value, true
	}
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && !cur.fresh(now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil, false
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// store keeps v unless the cache was cleared or closed after the flight
// computing it started.
func (c *Cache) store(key string, v any, ttl time.Duration, gen uint64) bool {
	if c.closed.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.entries[key] = entry{value: v, computedAt: c.clock.Now(), ttl: ttl}
	return true
}

func (c *Cache) remoteGet(ctx context.Context, key string, dst any) (any, bool) {
	data, err := c.remote.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("remote cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("remote cache entry undecodable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return dst, true
}

func (c *Cache) remoteSet(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("remote cache entry unencodable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.remote.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("remote cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry, locally and in the remote tier. Computations
// still in flight finish for their callers but are not stored, and later
// callers start a fresh computation.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.gen++
	c.mu.Unlock()
	if c.remote != nil {
		return c.remote.Clear(ctx)
	}
	return nil
}

// Close drops local entries and rejects further use. The remote tier is
// left intact for other replicas.
func (c *Cache) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.gen++
	c.mu.Unlock()
}

// Key derives a cache key from a report name and its parameters. Equal
// parameters always yield the same key.
func Key(name string, params any) string {
	if params == nil {
		return name
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", name, params)
	}
	sum := sha256.Sum256(data)
	return name + ":" + hex.EncodeToString(sum[:12])
}
