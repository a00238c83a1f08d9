// Package cache provides the result caches of the set-algebra register.
//
// # Set Cache
//
// Sharded is a memory-weighted LRU for set results. Every entry is charged its
// estimated size against the shard capacity and, when configured, against the
// store-wide resource.Controller. Entries that do not fit are not cached.
//
// # Aggregate Cache
//
// Aggregate holds scalar results (counts) and is bounded by entry count. It is
// backed by hashicorp/golang-lru.
//
// Both caches support Halve for pressure relief: the least recently used half
// of the entries is dropped.
package cache
