// Package valueindex implements the sorted value index kept for every indexed
// node property, and the write coalescing buffer placed in front of it.
//
// # Architecture
//
// An Index maps node ids to values and values back to ids:
//
//	values: map[id]T                 - O(1) value lookup per node
//	single: map[T]id                 - values held by exactly one node
//	multi:  map[T]set[id]            - values held by two or more nodes
//
// Most property values are unique (names, timestamps), so the single-id bucket
// avoids allocating a set per value. A value moves between the buckets when its
// population crosses the 1↔2 boundary.
//
// Ordered queries (greater/less/range) binary-search a sorted projection of the
// distinct values. The projection is rebuilt lazily on first access after a
// mutation; concurrent readers wait for a single rebuild instead of sorting in
// parallel.
//
// # Version Stamps
//
// Every Add and Remove draws a fresh StateID from the shared model.Clock. The
// register keys cached results by these stamps, so a mutation makes every
// earlier result unreachable without purging anything.
//
// # Thread Safety
//
// An Index follows a single-writer, multiple-reader discipline enforced by the
// owning store: Add/Remove never overlap with queries on the same index. Query
// methods are safe for concurrent use with each other.
//
// # Integrity
//
// Any disagreement between the per-id map and the value buckets is reported as
// ErrIntegrity. The index is corrupt at that point and must be rebuilt.
package valueindex
