package cache

import (
	"hash/maphash"

	"github.com/hupe1980/nodegraph/internal/resource"
)

const numShards = 16

// Sharded distributes entries across independent LRU shards to reduce lock
// contention between concurrent queries.
type Sharded[V any] struct {
	shards [numShards]*LRU[V]
	seed   maphash.Seed
}

// NewSharded creates a sharded cache. The capacity is divided evenly across
// all shards.
func NewSharded[V any](capacity int64, sizeOf SizeFunc[V], rc *resource.Controller) *Sharded[V] {
	shardCapacity := max(capacity/numShards, 1)

	s := &Sharded[V]{seed: maphash.MakeSeed()}
	for i := range numShards {
		s.shards[i] = NewLRU(shardCapacity, sizeOf, rc)
	}
	return s
}

func (s *Sharded[V]) shard(key Key) *LRU[V] {
	return s.shards[maphash.Comparable(s.seed, key)%numShards]
}

// Get returns a cached value.
func (s *Sharded[V]) Get(key Key) (V, bool) {
	return s.shard(key).Get(key)
}

// Set caches a value.
func (s *Sharded[V]) Set(key Key, v V) {
	s.shard(key).Set(key, v)
}

// Halve evicts the least recently used half of every shard.
func (s *Sharded[V]) Halve() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.Halve()
	}
	return n
}

// Clear removes every entry.
func (s *Sharded[V]) Clear() {
	for _, sh := range s.shards {
		sh.Clear()
	}
}

// Stats returns counters aggregated over all shards.
func (s *Sharded[V]) Stats() Stats {
	var st Stats
	for _, sh := range s.shards {
		st = st.add(sh.Stats())
	}
	return st
}
