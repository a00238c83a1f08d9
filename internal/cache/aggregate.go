package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Aggregate caches scalar results (counts). It is bounded by entry count.
type Aggregate struct {
	c *lru.Cache[Key, int]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	clearing  atomic.Bool
}

// NewAggregate creates an aggregate cache holding at most size entries.
func NewAggregate(size int) (*Aggregate, error) {
	a := &Aggregate{}
	c, err := lru.NewWithEvict(max(size, 1), func(Key, int) {
		if !a.clearing.Load() {
			a.evictions.Add(1)
		}
	})
	if err != nil {
		return nil, err
	}
	a.c = c
	return a, nil
}

// Get returns a cached count.
func (a *Aggregate) Get(key Key) (int, bool) {
	v, ok := a.c.Get(key)
	if ok {
		a.hits.Add(1)
	} else {
		a.misses.Add(1)
	}
	return v, ok
}

// Set caches a count.
func (a *Aggregate) Set(key Key, v int) {
	a.c.Add(key, v)
}

// Halve evicts the least recently used half of the entries.
func (a *Aggregate) Halve() int {
	n := a.c.Len() / 2
	for range n {
		a.c.RemoveOldest()
	}
	return n
}

// Clear removes every entry.
func (a *Aggregate) Clear() {
	a.clearing.Store(true)
	a.c.Purge()
	a.clearing.Store(false)
}

// Stats returns the cache counters.
func (a *Aggregate) Stats() Stats {
	return Stats{
		Hits:      a.hits.Load(),
		Misses:    a.misses.Load(),
		Evictions: a.evictions.Load(),
		Entries:   a.c.Len(),
	}
}
