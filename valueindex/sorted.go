package valueindex

import (
	"encoding/binary"
	"slices"
)

// Values returns the distinct values in ascending order. The returned slice is
// shared and must not be modified.
func (ix *Index[T]) Values() []T {
	return ix.projection()
}

// projection returns the sorted distinct values for the current state,
// rebuilding them at most once per state.
func (ix *Index[T]) projection() []T {
	if p := ix.sorted.Load(); p != nil && p.state == ix.state {
		return p.values
	}

	ix.sortMu.Lock()
	defer ix.sortMu.Unlock()

	// Another reader may have finished the rebuild while we waited.
	if p := ix.sorted.Load(); p != nil && p.state == ix.state {
		return p.values
	}

	values := make([]T, 0, ix.Distinct())
	for v := range ix.single {
		values = append(values, v)
	}
	for v := range ix.multi {
		values = append(values, v)
	}
	slices.SortFunc(values, ix.vt.Compare)

	ix.sorted.Store(&projection[T]{state: ix.state, values: values})
	return values
}

// search returns the insertion position of value in the sorted projection and
// whether the value is present.
func (ix *Index[T]) search(value T) (int, bool) {
	return slices.BinarySearchFunc(ix.projection(), value, ix.vt.Compare)
}

// lowerBound returns the index of the first sorted value that is > value, or
// >= value when inclusive.
func (ix *Index[T]) lowerBound(value T, inclusive bool) int {
	pos, found := ix.search(value)
	if found && !inclusive {
		pos++
	}
	return pos
}

// upperBound returns the end (exclusive) of the sorted values that are < value,
// or <= value when inclusive.
func (ix *Index[T]) upperBound(value T, inclusive bool) int {
	pos, found := ix.search(value)
	if found && inclusive {
		pos++
	}
	return pos
}

func (ix *Index[T]) requireOrdered(q QueryType) error {
	if !ix.vt.Ordered {
		return &UnsupportedQueryError{Query: q, Type: ix.vt.Kind.String()}
	}
	return nil
}

// Supports reports whether the index can answer q.
func (ix *Index[T]) Supports(q QueryType) bool {
	return q.Valid() && (!q.Ordered() || ix.vt.Ordered)
}

// collect gathers the ids of the sorted values in [lo, hi).
func (ix *Index[T]) collect(lo, hi int) []uint32 {
	if hi <= lo {
		return nil
	}
	values := ix.projection()
	var ids []uint32
	for _, v := range values[lo:hi] {
		ids = ix.appendIDs(ids, v)
	}
	return ids
}

// GreaterThan returns the ids whose value is > value, or >= value when inclusive.
func (ix *Index[T]) GreaterThan(value T, inclusive bool) ([]uint32, error) {
	if err := ix.requireOrdered(QueryGreater); err != nil {
		return nil, err
	}
	return ix.collect(ix.lowerBound(value, inclusive), len(ix.projection())), nil
}

// LessThan returns the ids whose value is < value, or <= value when inclusive.
func (ix *Index[T]) LessThan(value T, inclusive bool) ([]uint32, error) {
	if err := ix.requireOrdered(QueryLess); err != nil {
		return nil, err
	}
	return ix.collect(0, ix.upperBound(value, inclusive)), nil
}

// RangeSearch returns the ids whose value lies between from and to.
func (ix *Index[T]) RangeSearch(from, to T, includeFrom, includeTo bool) ([]uint32, error) {
	if err := ix.requireOrdered(QueryGreaterOrEqual); err != nil {
		return nil, err
	}
	return ix.collect(ix.lowerBound(from, includeFrom), ix.upperBound(to, includeTo)), nil
}

// CountInRange returns the number of ids whose value lies between from and to.
func (ix *Index[T]) CountInRange(from, to T, includeFrom, includeTo bool) (int, error) {
	if err := ix.requireOrdered(QueryGreaterOrEqual); err != nil {
		return 0, err
	}
	lo, hi := ix.lowerBound(from, includeFrom), ix.upperBound(to, includeTo)
	n := 0
	for _, v := range ix.projection()[max(lo, 0):max(hi, lo)] {
		n += ix.CountEqual(v)
	}
	return n, nil
}

// Query returns the ids satisfying "value(id) q value".
func (ix *Index[T]) Query(q QueryType, value T) ([]uint32, error) {
	switch q {
	case QueryEqual:
		return ix.GetIDs(value), nil
	case QueryNotEqual:
		ids := make([]uint32, 0, len(ix.values))
		for id, v := range ix.values {
			if v != value {
				ids = append(ids, id)
			}
		}
		return ids, nil
	case QueryGreater:
		return ix.GreaterThan(value, false)
	case QueryGreaterOrEqual:
		return ix.GreaterThan(value, true)
	case QueryLess:
		return ix.LessThan(value, false)
	case QueryLessOrEqual:
		return ix.LessThan(value, true)
	default:
		return nil, &UnsupportedQueryError{Query: q, Type: ix.vt.Kind.String()}
	}
}

// Match reports whether the value indexed for id satisfies "value(id) q value".
// Ids without a value never match.
func (ix *Index[T]) Match(id uint32, q QueryType, value T) (bool, error) {
	if !ix.Supports(q) {
		return false, &UnsupportedQueryError{Query: q, Type: ix.vt.Kind.String()}
	}
	stored, ok := ix.values[id]
	if !ok {
		return false, nil
	}
	return q.Accepts(ix.vt.Compare(stored, value)), nil
}

// InRange reports whether the value indexed for id lies between from and to.
func (ix *Index[T]) InRange(id uint32, from, to T, includeFrom, includeTo bool) bool {
	stored, ok := ix.values[id]
	if !ok {
		return false
	}
	lo := ix.vt.Compare(stored, from)
	hi := ix.vt.Compare(stored, to)
	return (lo > 0 || (includeFrom && lo == 0)) && (hi < 0 || (includeTo && hi == 0))
}

// AppendCacheKey appends a coarsened cache key component for "q value" to dst.
//
// Equality queries encode the value only when it is present; every absent
// value yields the same result and therefore the same key. Ordered queries
// encode the insertion position of the value in the sorted projection instead
// of the value itself, so all constants falling into the same gap between two
// stored values share one cached result.
func (ix *Index[T]) AppendCacheKey(dst []byte, q QueryType, value T) []byte {
	dst = append(dst, byte(q))
	if !q.Ordered() {
		if !ix.ContainsValue(value) {
			return append(dst, 0)
		}
		dst = append(dst, 1)
		return ix.vt.Append(dst, value)
	}

	pos, found := ix.search(value)
	dst = binary.AppendUvarint(dst, uint64(pos))
	if found {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// AppendRangeCacheKey appends the cache key component of a range query: the
// resolved bounds in the sorted projection.
func (ix *Index[T]) AppendRangeCacheKey(dst []byte, from, to T, includeFrom, includeTo bool) []byte {
	dst = binary.AppendUvarint(dst, uint64(ix.lowerBound(from, includeFrom)))
	return binary.AppendUvarint(dst, uint64(ix.upperBound(to, includeTo)))
}
