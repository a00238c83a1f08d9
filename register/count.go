package register

import (
	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/valueindex"
)

// CountEqual returns the number of ids of candidates whose value equals v.
// A nil candidates set counts over the whole index.
func CountEqual[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, v T) int {
	if candidates == nil {
		return ix.CountEqual(v)
	}
	if candidates.IsEmpty() || !ix.ContainsValue(v) {
		return 0
	}

	k := newKey(opCountEqual, candidates.StateID(), ix.StateID())
	k.params = ix.AppendCacheKey(k.params, valueindex.QueryEqual, v)
	return r.count(k, func() int {
		if n := ix.CountEqual(v); n < candidates.Len() {
			hits := 0
			for _, id := range ix.GetIDs(v) {
				if candidates.Has(id) {
					hits++
				}
			}
			return hits
		}
		hits := 0
		for id := range candidates.All() {
			if got, ok := ix.ValueOf(id); ok && got == v {
				hits++
			}
		}
		return hits
	})
}

// CountInRange returns the number of ids of candidates whose value lies
// between from and to. A nil candidates set counts over the whole index.
func CountInRange[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, from, to T, includeFrom, includeTo bool) (int, error) {
	if candidates == nil {
		return ix.CountInRange(from, to, includeFrom, includeTo)
	}
	if !ix.Type().Ordered {
		return 0, &valueindex.UnsupportedQueryError{Query: valueindex.QueryGreaterOrEqual, Type: ix.Type().Kind.String()}
	}
	if candidates.IsEmpty() {
		return 0, nil
	}

	k := newKey(opCountInRange, candidates.StateID(), ix.StateID())
	k.params = ix.AppendRangeCacheKey(k.params, from, to, includeFrom, includeTo)
	return r.count(k, func() int {
		hits := 0
		for id := range candidates.All() {
			if ix.InRange(id, from, to, includeFrom, includeTo) {
				hits++
			}
		}
		return hits
	}), nil
}
