// Package cache provides a bounded, thread-safe LRU cache.
package cache

import (
	"sync"
	"time"
)

// Entry represents a cache entry with metadata.
type Entry[K comparable, V any] struct {
	Key        K
	Value      V
	AccessedAt time.Time
	CreatedAt  time.Time
}

// LRUCache is an in-memory LRU cache.
type LRUCache[K comparable, V any] struct {
	mu        sync.Mutex
	items     map[K]*listItem[K, V]
	lru       *list[K, V] // doubly-linked list (most recent at front)
	maxSize   int
	onEvict   func(key K, value V)
	hitCount  int64
	missCount int64
}

// listItem is an item in the doubly-linked list.
type listItem[K comparable, V any] struct {
	Entry[K, V]
	prev *listItem[K, V]
	next *listItem[K, V]
}

// list represents a doubly-linked list.
type list[K comparable, V any] struct {
	head *listItem[K, V] // most recently accessed
	tail *listItem[K, V] // least recently accessed
	len  int
}

// unlink removes an item from the list.
func (l *list[K, V]) unlink(item *listItem[K, V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

// moveToFront moves an item to the front (most recently used).
func (l *list[K, V]) moveToFront(item *listItem[K, V]) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

// removeBack removes and returns the least recently used item.
func (l *list[K, V]) removeBack() *listItem[K, V] {
	item := l.tail
	if item == nil {
		return nil
	}
	l.unlink(item)
	return item
}

// pushFront adds an item to the front of the list.
func (l *list[K, V]) pushFront(item *listItem[K, V]) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

// Options configures the LRU cache.
type Options[K comparable, V any] struct {
	// MaxSize is the maximum number of entries.
	// 0 means unlimited.
	MaxSize int

	// OnEvict is called when an entry is evicted.
	OnEvict func(key K, value V)
}

// New creates a new LRU cache with the given options.
func New[K comparable, V any](opts Options[K, V]) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		items:   make(map[K]*listItem[K, V]),
		lru:     &list[K, V]{},
		maxSize: opts.MaxSize,
		onEvict: opts.OnEvict,
	}
}

// Get retrieves a value from the cache.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.missCount++
		var zero V
		return zero, false
	}

	c.hitCount++
	item.AccessedAt = time.Now()
	c.lru.moveToFront(item)
	return item.Value, true
}

// Set stores a value in the cache.
func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if item, exists := c.items[key]; exists {
		item.Value = value
		item.AccessedAt = now
		c.lru.moveToFront(item)
		return
	}

	item := &listItem[K, V]{
		Entry: Entry[K, V]{
			Key:        key,
			Value:      value,
			AccessedAt: now,
			CreatedAt:  now,
		},
	}
	c.items[key] = item
	c.lru.pushFront(item)
	c.evictIfNeeded()
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. Errors are not cached.
func (c *LRUCache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Clear removes all entries from the cache.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*listItem[K, V])
	c.lru = &list[K, V]{}
}

// evictIfNeeded evicts entries while the cache exceeds its size limit.
func (c *LRUCache[K, V]) evictIfNeeded() {
	for c.maxSize > 0 && c.lru.len > c.maxSize {
		item := c.lru.removeBack()
		if item == nil {
			break
		}
		delete(c.items, item.Key)

		if c.onEvict != nil {
			c.onEvict(item.Key, item.Value)
		}
	}
}

// Stats holds cache statistics.
type Stats struct {
	Length    int   `json:"length"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
}

// Stats returns the current cache statistics.
func (c *LRUCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:    len(c.items),
		HitCount:  c.hitCount,
		MissCount: c.missCount,
	}
}

// HitRate returns the share of lookups served from the cache.
func (s Stats) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// ResetStats resets the statistics counters.
func (c *LRUCache[K, V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hitCount = 0
	c.missCount = 0
}
