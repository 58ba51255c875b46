// Package cache implements the per-instance TTL cache used to shield the
// CRCON API client from redundant polling (spec §4.3). Entries expire on
// their own TTL; a bounded capacity evicts the entry nearest to expiry when
// full.
package cache

import (
	"container/heap"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a capacity-bounded, per-entry-TTL key/value store. The zero value
// is not usable; construct with New. A Cache is safe only for the
// single-writer/single-reader access pattern the controller gives it (spec
// §5) — it does not take an internal lock across Get/Put pairs used by
// Cached, so callers composing read-modify-write sequences must serialize
// themselves.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*entry
	order    expiryHeap
	now      func() time.Time

	// group coalesces concurrent misses for the same key into one
	// underlying call, scoped to this Cache instance so two Processors
	// (one per managed server, spec §3's per-instance cache invariant)
	// never share a singleflight key even if they happen to compute the
	// same method/args/kwargs key (spec §4.3).
	group singleflight.Group
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
	heapIndex int
}

// DefaultCapacity is the default maximum number of live entries (spec §4.3).
const DefaultCapacity = 100

// New builds a Cache with the given capacity. A capacity <= 0 uses
// DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*entry, capacity),
		now:      time.Now,
	}
}

// Get returns the value stored under key and true, or (nil, false) if the
// key is absent or its entry has expired. An expired entry found during Get
// is evicted immediately.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.After(c.now()) {
		c.removeLocked(e)
		return nil, false
	}
	return e.value, true
}

// Put stores value under key with the given ttl, overwriting any existing
// entry for key. If storing a new key would exceed capacity, the entry
// nearest to expiry (which may be the new one, if ttl is the longest-lived)
// is evicted first.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		heap.Fix(&c.order, e.heapIndex)
		return
	}

	if len(c.entries) >= c.capacity {
		evicted := heap.Pop(&c.order).(*entry)
		delete(c.entries, evicted.key)
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	heap.Push(&c.order, e)
}

// Len reports the number of entries currently stored, including any that
// have expired but not yet been observed via Get.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(e *entry) {
	delete(c.entries, e.key)
	heap.Remove(&c.order, e.heapIndex)
}

// expiryHeap is a min-heap on expiresAt, giving O(log n) eviction of the
// entry nearest expiry.
type expiryHeap []*entry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *expiryHeap) Push(x any) {
	e := x.(*entry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
