// Package register memoizes set algebra over identifier sets and value indexes.
//
// Every operation builds a cache key from the version stamps of its operands
// and its scalar parameters, returns the cached result on a hit and computes,
// stores and returns it on a miss. Stamps change on every mutation and are
// never reused, so a cached result can only be found while all of its inputs
// are unchanged. Nothing is ever invalidated; old entries age out of the
// bounded caches.
//
// Trivial cases are answered without a lookup: an empty operand, or a single
// id that is tested directly against the other operand.
//
// A result derived from an uncacheable set (for example a live search result)
// is computed fresh every time and carries the uncacheable stamp itself.
//
// Because Go methods cannot take type parameters, operations bound to a typed
// value index are package-level generic functions taking the Register:
//
//	adults, err := register.WhereGreaterOrEqual(reg, ageIndex, people, int64(18))
//
// # Self-Check
//
// Building with the cachecheck tag recomputes every cache hit and panics with
// ErrCacheMismatch if the result differs. Release builds compile the check out.
package register
