package register

import (
	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/valueindex"
)

// Where returns the ids of candidates whose value in ix satisfies "value q v".
// Ids without a value never match.
func Where[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, q valueindex.QueryType, v T) (*idset.Set, error) {
	if !ix.Supports(q) {
		return nil, &valueindex.UnsupportedQueryError{Query: q, Type: ix.Type().Kind.String()}
	}

	switch candidates.Len() {
	case 0:
		return idset.Empty(), nil
	case 1:
		id, _ := candidates.First()
		ok, err := ix.Match(id, q, v)
		if err != nil || !ok {
			return idset.Empty(), err
		}
		return candidates, nil
	}

	k := newKey(opWhere, candidates.StateID(), ix.StateID())
	k.params = ix.AppendCacheKey(k.params, q, v)
	return r.set(k, func(stamp model.StateID) *idset.Set {
		return where(stamp, ix, candidates, q, v)
	}), nil
}

func where[T comparable](stamp model.StateID, ix *valueindex.Index[T], candidates *idset.Set, q valueindex.QueryType, v T) *idset.Set {
	probe := q == valueindex.QueryEqual && ix.CountEqual(v) < candidates.Len()
	if candidates.Ordered() || !probe && candidates.Len() <= ix.Len() {
		return filter(stamp, candidates, func(id uint32) bool {
			ok, _ := ix.Match(id, q, v)
			return ok
		})
	}

	// Fewer index hits than candidates: probe the hits into the candidates.
	ids, _ := ix.Query(q, v)
	return probeInto(stamp, ids, candidates)
}

func probeInto(stamp model.StateID, ids []uint32, candidates *idset.Set) *idset.Set {
	out := ids[:0]
	for _, id := range ids {
		if candidates.Has(id) {
			out = append(out, id)
		}
	}
	return idset.New(stamp, out)
}

// WhereEqual returns the ids of candidates whose value equals v.
func WhereEqual[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, v T) (*idset.Set, error) {
	return Where(r, ix, candidates, valueindex.QueryEqual, v)
}

// WhereNotEqual returns the ids of candidates that have a value other than v.
func WhereNotEqual[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, v T) (*idset.Set, error) {
	return Where(r, ix, candidates, valueindex.QueryNotEqual, v)
}

// WhereGreater returns the ids of candidates whose value is > v.
func WhereGreater[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, v T) (*idset.Set, error) {
	return Where(r, ix, candidates, valueindex.QueryGreater, v)
}

// WhereGreaterOrEqual returns the ids of candidates whose value is >= v.
func WhereGreaterOrEqual[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, v T) (*idset.Set, error) {
	return Where(r, ix, candidates, valueindex.QueryGreaterOrEqual, v)
}

// WhereLess returns the ids of candidates whose value is < v.
func WhereLess[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, v T) (*idset.Set, error) {
	return Where(r, ix, candidates, valueindex.QueryLess, v)
}

// WhereLessOrEqual returns the ids of candidates whose value is <= v.
func WhereLessOrEqual[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, v T) (*idset.Set, error) {
	return Where(r, ix, candidates, valueindex.QueryLessOrEqual, v)
}

// WhereIn returns the ids of candidates whose value equals any of values.
func WhereIn[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, values []T) *idset.Set {
	if candidates.IsEmpty() || len(values) == 0 {
		return idset.Empty()
	}
	if len(values) == 1 {
		s, _ := WhereEqual(r, ix, candidates, values[0])
		return s
	}

	// Absent values all contribute the same (empty) key component.
	k := newKey(opWhereIn, candidates.StateID(), ix.StateID())
	present := 0
	for _, v := range values {
		if ix.ContainsValue(v) {
			present++
			k.params = ix.AppendCacheKey(k.params, valueindex.QueryEqual, v)
		}
	}
	if present == 0 {
		return idset.Empty()
	}

	return r.set(k, func(stamp model.StateID) *idset.Set {
		wanted := make(map[T]struct{}, len(values))
		for _, v := range values {
			wanted[v] = struct{}{}
		}
		return filter(stamp, candidates, func(id uint32) bool {
			v, ok := ix.ValueOf(id)
			if !ok {
				return false
			}
			_, hit := wanted[v]
			return hit
		})
	})
}

// WhereInRange returns the ids of candidates whose value lies between from
// and to.
func WhereInRange[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set, from, to T, includeFrom, includeTo bool) (*idset.Set, error) {
	if !ix.Type().Ordered {
		return nil, &valueindex.UnsupportedQueryError{Query: valueindex.QueryGreaterOrEqual, Type: ix.Type().Kind.String()}
	}

	switch candidates.Len() {
	case 0:
		return idset.Empty(), nil
	case 1:
		if id, _ := candidates.First(); ix.InRange(id, from, to, includeFrom, includeTo) {
			return candidates, nil
		}
		return idset.Empty(), nil
	}

	k := newKey(opWhereInRange, candidates.StateID(), ix.StateID())
	k.params = ix.AppendRangeCacheKey(k.params, from, to, includeFrom, includeTo)
	return r.set(k, func(stamp model.StateID) *idset.Set {
		if candidates.Ordered() || candidates.Len() <= ix.Len() {
			return filter(stamp, candidates, func(id uint32) bool {
				return ix.InRange(id, from, to, includeFrom, includeTo)
			})
		}
		ids, _ := ix.RangeSearch(from, to, includeFrom, includeTo)
		return probeInto(stamp, ids, candidates)
	}), nil
}

// WhereHasValue returns the ids of candidates that have any value in ix.
func WhereHasValue[T comparable](r *Register, ix *valueindex.Index[T], candidates *idset.Set) *idset.Set {
	switch candidates.Len() {
	case 0:
		return idset.Empty()
	case 1:
		id, _ := candidates.First()
		if _, ok := ix.ValueOf(id); ok {
			return candidates
		}
		return idset.Empty()
	}

	k := newKey(opWhereHasValue, candidates.StateID(), ix.StateID())
	return r.set(k, func(stamp model.StateID) *idset.Set {
		return filter(stamp, candidates, func(id uint32) bool {
			_, ok := ix.ValueOf(id)
			return ok
		})
	})
}
