// Package cache provides a bounded in-memory cache with per-entry expiry.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache maps keys to values until their expiry.
type Cache[V any] interface {
	// Get returns the value for key if present and not expired.
	Get(key string) (V, bool)

	// Set stores value under key for ttl. A non-positive ttl removes the key.
	Set(key string, value V, ttl time.Duration)

	Size() int64
}

// node is one entry in the insertion-ordered list.
type node[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	prev      *node[V]
	next      *node[V]
}

func (n *node[V]) reset() {
	var zero V
	n.key = ""
	n.value = zero
	n.expiresAt = time.Time{}
	n.prev = nil
	n.next = nil
}

// inMemoryCache keeps entries in a map plus a doubly linked list ordered by
// insertion. When full, expired entries are dropped first, then the oldest.
type inMemoryCache[V any] struct {
	mu       sync.Mutex
	entries  map[string]*node[V]
	head     *node[V] // newest
	tail     *node[V] // oldest
	maxSize  int      // 0 or negative = unbounded
	size     atomic.Int64
	now      func() time.Time
	nodePool sync.Pool
}

// New creates a cache. Default bound is 5000 entries.
func New[V any](opts ...Option) Cache[V] {
	o := options{maxSize: 5000, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	c := &inMemoryCache[V]{
		entries: make(map[string]*node[V]),
		maxSize: o.maxSize,
		now:     o.now,
	}
	c.nodePool.New = func() any { return &node[V]{} }
	return c
}

func (c *inMemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	n, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(n.expiresAt) {
		c.remove(n)
		return zero, false
	}
	return n.value, true
}

func (c *inMemoryCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		c.remove(n)
	}
	if ttl <= 0 {
		return
	}
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evict()
	}

	n := c.nodePool.Get().(*node[V])
	n.key = key
	n.value = value
	n.expiresAt = c.now().Add(ttl)
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.entries[key] = n
	c.size.Add(1)
}

// Size returns the number of stored entries, expired ones included until
// they are touched or evicted.
func (c *inMemoryCache[V]) Size() int64 {
	return c.size.Load()
}

// evict drops expired entries, or the oldest one if none expired.
// Must be called with c.mu held.
func (c *inMemoryCache[V]) evict() {
	now := c.now()
	dropped := false
	for n := c.tail; n != nil; {
		prev := n.prev
		if !now.Before(n.expiresAt) {
			c.remove(n)
			dropped = true
		}
		n = prev
	}
	if !dropped && c.tail != nil {
		c.remove(c.tail)
	}
}

// remove unlinks n and returns it to the pool. Must be called with c.mu held.
func (c *inMemoryCache[V]) remove(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	delete(c.entries, n.key)
	n.reset()
	c.nodePool.Put(n)
	c.size.Add(-1)
}
