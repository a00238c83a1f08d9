package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/nodegraph/internal/resource"
)

// LRU is a memory-weighted least recently used cache.
type LRU[V any] struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List
	sizeOf    SizeFunc[V]
	rc        *resource.Controller

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type entry[V any] struct {
	key   Key
	value V
	size  int64
}

// NewLRU creates a new LRU cache with the given capacity in bytes.
// If rc is provided, it will be used to track memory usage.
func NewLRU[V any](capacity int64, sizeOf SizeFunc[V], rc *resource.Controller) *LRU[V] {
	return &LRU[V]{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
		sizeOf:    sizeOf,
		rc:        rc,
	}
}

// Get returns a cached value.
func (c *LRU[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Set caches a value. Values larger than the capacity, or rejected by the
// resource controller, are not cached.
func (c *LRU[V]) Set(key Key, v V) {
	itemSize := c.sizeOf(v)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		// Same key, same content; only refresh recency.
		c.evictList.MoveToFront(ent)
		return
	}

	if itemSize > c.capacity {
		return
	}

	// Evict to make space locally first; this releases memory to the
	// controller before we ask for it.
	for c.size+itemSize > c.capacity {
		ent := c.evictList.Back()
		if ent == nil {
			break
		}
		c.removeElement(ent)
		c.evictions.Add(1)
	}

	if !c.rc.TryAcquireMemory(itemSize) {
		return
	}

	element := c.evictList.PushFront(&entry[V]{key: key, value: v, size: itemSize})
	c.items[key] = element
	c.size += itemSize
}

// Halve evicts the least recently used half of the entries and returns the
// number of evicted entries.
func (c *LRU[V]) Halve() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.evictList.Len() / 2
	for range n {
		c.removeElement(c.evictList.Back())
	}
	c.evictions.Add(int64(n))
	return n
}

// Clear removes every entry.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
	}
}

// Stats returns the cache counters.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.evictList.Len(),
		Bytes:     c.size,
	}
}

// Size returns the current size of the cache in bytes.
func (c *LRU[V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *LRU[V]) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry[V])
	delete(c.items, kv.key)
	c.size -= kv.size
	c.rc.ReleaseMemory(kv.size)
}
