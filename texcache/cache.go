package texcache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/gogpu/tilerender"
)

// DefaultCapacity is the number of resident textures kept when no capacity
// is given.
const DefaultCapacity = 10_000

// ErrCreateFailed wraps errors returned by a create function.
var ErrCreateFailed = errors.New("texcache: create failed")

// Stats contains cache counters.
type Stats struct {
	Len      int
	Capacity int

	Hits      uint64
	Misses    uint64
	Creates   uint64
	Failures  uint64
	Evictions uint64

	// Deferred counts evictions whose release waited for EndFrame.
	Deferred uint64
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("TextureCache[%d/%d resident, %d hits, %d misses, %d failures, %d evictions (%d deferred)]",
		s.Len, s.Capacity, s.Hits, s.Misses, s.Failures, s.Evictions, s.Deferred)
}

// ReleaseFunc frees the resource behind an evicted handle.
type ReleaseFunc[K comparable, H any] func(key K, handle H)

// Option configures a Cache.
type Option func(*options)

type options struct {
	label string
}

// WithLabel names the cache in log output.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

type pendingRelease[K comparable, H any] struct {
	key    K
	handle H
}

// Cache is a strict LRU cache of texture handles.
//
// Inserting past capacity always removes the least recently used key from
// the index at once. Its handle is released synchronously only when the
// current frame has not pinned it; a pinned handle is released by the next
// EndFrame, after the frame drawing with it was submitted.
//
// Cache is safe for concurrent use.
type Cache[K comparable, H any] struct {
	mu sync.Mutex

	lru      *simplelru.LRU[K, H]
	capacity int
	release  ReleaseFunc[K, H]
	label    string

	pinned   map[K]struct{}
	pending  []pendingRelease[K, H]
	clearing bool

	stats Stats
}

// New creates a cache holding at most capacity entries. A capacity <= 0
// selects DefaultCapacity. release is called for every handle leaving the
// cache; it may be nil.
func New[K comparable, H any](capacity int, release ReleaseFunc[K, H], opts ...Option) *Cache[K, H] {
	o := options{label: "texture"}
	for _, opt := range opts {
		opt(&o)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &Cache[K, H]{
		capacity: capacity,
		release:  release,
		label:    o.label,
		pinned:   make(map[K]struct{}),
	}
	// NewLRU only fails for a non-positive size.
	c.lru, _ = simplelru.NewLRU[K, H](capacity, c.onEvict)
	return c
}

// onEvict runs with c.mu held.
func (c *Cache[K, H]) onEvict(key K, handle H) {
	if c.clearing {
		c.releaseLocked(key, handle)
		return
	}
	c.stats.Evictions++
	if _, ok := c.pinned[key]; ok {
		c.stats.Deferred++
		c.pending = append(c.pending, pendingRelease[K, H]{key: key, handle: handle})
		tilerender.Logger().Debug("texcache: eviction deferred until end of frame",
			"cache", c.label, "key", key)
		return
	}
	c.releaseLocked(key, handle)
	tilerender.Logger().Debug("texcache: evicted", "cache", c.label, "key", key)
}

func (c *Cache[K, H]) releaseLocked(key K, handle H) {
	if c.release != nil {
		c.release(key, handle)
	}
}

// GetOrCreate returns the handle cached for key, creating it with create on
// a miss. A hit marks the entry most recently used. A create error is logged
// and reported as ok == false; nothing is inserted and the caller should skip
// the draw.
func (c *Cache[K, H]) GetOrCreate(key K, create func() (H, error)) (handle H, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, hit := c.lru.Get(key); hit {
		c.stats.Hits++
		c.pinned[key] = struct{}{}
		return h, true
	}
	c.stats.Misses++

	h, err := create()
	if err != nil {
		c.stats.Failures++
		tilerender.Logger().Debug("texcache: create failed",
			"cache", c.label, "key", key, "err", fmt.Errorf("%w: %w", ErrCreateFailed, err))
		var zero H
		return zero, false
	}
	c.stats.Creates++
	c.pinned[key] = struct{}{}
	c.lru.Add(key, h)
	return h, true
}

// Peek returns the handle for key without touching recency or pins.
func (c *Cache[K, H]) Peek(key K) (H, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Contains reports whether key is resident.
func (c *Cache[K, H]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Keys returns resident keys from least to most recently used.
func (c *Cache[K, H]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Len returns the number of resident entries.
func (c *Cache[K, H]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity returns the maximum number of resident entries.
func (c *Cache[K, H]) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Resize changes the capacity, evicting least recently used entries when
// shrinking. A size <= 0 selects DefaultCapacity. Returns the number evicted.
func (c *Cache[K, H]) Resize(size int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if size <= 0 {
		size = DefaultCapacity
	}
	c.capacity = size
	return c.lru.Resize(size)
}

// Pending returns the number of evicted handles waiting for EndFrame.
func (c *Cache[K, H]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// EndFrame releases handles evicted while pinned and unpins everything.
// Call it once the frame that used the handles has been submitted.
func (c *Cache[K, H]) EndFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushPendingLocked()
	clear(c.pinned)
}

func (c *Cache[K, H]) flushPendingLocked() {
	for _, p := range c.pending {
		c.releaseLocked(p.key, p.handle)
	}
	clear(c.pending)
	c.pending = c.pending[:0]
}

// Clear releases every resident and pending handle and empties the cache.
// Used on teardown or context loss, not per frame.
func (c *Cache[K, H]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flushPendingLocked()
	c.clearing = true
	c.lru.Purge()
	c.clearing = false
	clear(c.pinned)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, H]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Len = c.lru.Len()
	s.Capacity = c.capacity
	return s
}
