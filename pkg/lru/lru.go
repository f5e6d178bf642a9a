// Package lru provides an adaptive least-recently-used cache keyed by
// string. Capacity floats between a configured minimum and maximum: the
// cache periodically inspects its own hit rate and grows when the working
// set overflows it, or shrinks when a smaller cache would serve the same
// request pattern.
package lru

import (
	"log/slog"
	"sync"
)

// Default capacity bounds and adaptation tuning.
const (
	DefaultCapacity = 256
	DefaultMin      = 64
	DefaultMax      = 4096

	// DefaultCheckInterval is the number of lookups between hit-rate
	// checks.
	DefaultCheckInterval = 512

	// DefaultLowWater is the hit rate below which capacity grows.
	DefaultLowWater = 0.50

	// DefaultHighWater is the hit rate above which capacity shrinks.
	DefaultHighWater = 0.95
)

// entry is one cache slot, linked into the recency list.
type entry[V any] struct {
	key        string
	value      V
	prev, next *entry[V]
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Len       int
	Capacity  int
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is an adaptive LRU cache. The zero value is not usable; construct
// with New.
//
// Get and Set never invoke user code while holding internal state, so a
// caller reached between cache operations (a nested lookup from inside a
// navigation guard, for example) can safely call back into the same cache.
type Cache[V any] struct {
	mu sync.Mutex

	entries map[string]*entry[V]
	// head is most recently used, tail least.
	head, tail *entry[V]

	capacity int
	min, max int

	hits, misses, evictions uint64

	// hit-rate window since the last adaptation check
	checkInterval int
	windowOps     int
	windowHits    int

	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*config)

type config struct {
	capacity      int
	min, max      int
	checkInterval int
	logger        *slog.Logger
}

// WithCapacity sets the initial capacity. It is clamped to the bounds.
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// WithBounds sets the minimum and maximum capacity the adaptive policy
// may resize within.
func WithBounds(min, max int) Option {
	return func(c *config) {
		c.min = min
		c.max = max
	}
}

// WithCheckInterval sets how many lookups pass between hit-rate checks.
// A non-positive value disables adaptation.
func WithCheckInterval(n int) Option {
	return func(c *config) { c.checkInterval = n }
}

// WithLogger sets the logger used to report resizes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates an adaptive LRU cache.
func New[V any](opts ...Option) *Cache[V] {
	cfg := config{
		capacity:      DefaultCapacity,
		min:           DefaultMin,
		max:           DefaultMax,
		checkInterval: DefaultCheckInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.min < 1 {
		cfg.min = 1
	}
	if cfg.max < cfg.min {
		cfg.max = cfg.min
	}

	c := &Cache[V]{
		entries:       make(map[string]*entry[V]),
		capacity:      clamp(cfg.capacity, cfg.min, cfg.max),
		min:           cfg.min,
		max:           cfg.max,
		checkInterval: cfg.checkInterval,
		logger:        cfg.logger,
	}
	return c
}

// Get returns the cached value for key and refreshes its recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		c.misses++
		c.tick(false)
		return zero, false
	}
	c.hits++
	c.moveToFront(e)
	c.tick(true)
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry if
// the cache is full. Setting an existing key refreshes its recency.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	for len(c.entries) > c.capacity {
		c.evictTail()
	}
}

// Delete removes key from the cache. It reports whether the key was
// present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.unlink(e)
	delete(c.entries, key)
	return true
}

// Clear drops every entry. Counters are preserved.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[V])
	c.head = nil
	c.tail = nil
}

// Resize sets the capacity, clamped to the configured bounds, evicting
// from the tail when shrinking below the current length.
func (c *Cache[V]) Resize(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resizeLocked(n)
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cap returns the current capacity.
func (c *Cache[V]) Cap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Len:       len(c.entries),
		Capacity:  c.capacity,
	}
}

// tick advances the adaptation window. Called with the lock held.
func (c *Cache[V]) tick(hit bool) {
	if c.checkInterval <= 0 {
		return
	}
	c.windowOps++
	if hit {
		c.windowHits++
	}
	if c.windowOps < c.checkInterval {
		return
	}

	rate := float64(c.windowHits) / float64(c.windowOps)
	c.windowOps = 0
	c.windowHits = 0

	switch {
	case rate < DefaultLowWater && c.capacity < c.max:
		// Misses dominate: the working set is larger than assumed.
		old := c.capacity
		c.resizeLocked(c.capacity * 2)
		c.logger.Debug("cache grown",
			"old", old,
			"new", c.capacity,
			"hit_rate", rate)
	case rate > DefaultHighWater && c.capacity > c.min:
		// A smaller cache already serves this request pattern.
		old := c.capacity
		c.resizeLocked(c.capacity / 2)
		c.logger.Debug("cache shrunk",
			"old", old,
			"new", c.capacity,
			"hit_rate", rate)
	}
}

func (c *Cache[V]) resizeLocked(n int) int {
	c.capacity = clamp(n, c.min, c.max)
	for len(c.entries) > c.capacity {
		c.evictTail()
	}
	return c.capacity
}

func (c *Cache[V]) evictTail() {
	e := c.tail
	if e == nil {
		return
	}
	c.unlink(e)
	delete(c.entries, e.key)
	c.evictions++
}

func (c *Cache[V]) pushFront(e *entry[V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache[V]) moveToFront(e *entry[V]) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *Cache[V]) unlink(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
