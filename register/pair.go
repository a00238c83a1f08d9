package register

import (
	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/valueindex"
)

type pairKey struct {
	from, to any
}

// Pair returns the shared range-overlap projection of the start index from
// and the end index to.
func Pair[T comparable](r *Register, from, to *valueindex.Index[T]) (*valueindex.Pair[T], error) {
	k := pairKey{from: from, to: to}
	if p, ok := r.pairs.Load(k); ok {
		return p.(*valueindex.Pair[T]), nil
	}

	p, err := valueindex.NewPair(from, to)
	if err != nil {
		return nil, err
	}
	actual, _ := r.pairs.LoadOrStore(k, p)
	return actual.(*valueindex.Pair[T]), nil
}

// ForgetPairs drops the pair projections of an index that is discarded.
func (r *Register) ForgetPairs(ix any) {
	r.pairs.Range(func(k pairKey, _ any) bool {
		if k.from == ix || k.to == ix {
			r.pairs.Delete(k)
		}
		return true
	})
}

// WhereRangeOverlapsRange returns the ids of candidates whose interval
// [from(id), to(id)] intersects the closed interval [lo, hi].
func WhereRangeOverlapsRange[T comparable](r *Register, from, to *valueindex.Index[T], candidates *idset.Set, lo, hi T) (*idset.Set, error) {
	p, err := Pair(r, from, to)
	if err != nil {
		return nil, err
	}

	switch candidates.Len() {
	case 0:
		return idset.Empty(), nil
	case 1:
		if id, _ := candidates.First(); p.Overlaps(id, lo, hi) {
			return candidates, nil
		}
		return idset.Empty(), nil
	}

	k := newKey(opWhereOverlap, candidates.StateID(), from.StateID(), to.StateID())
	k.params = p.AppendCacheKey(k.params, lo, hi)
	return r.set(k, func(stamp model.StateID) *idset.Set {
		if candidates.Ordered() || candidates.Len() <= from.Len() {
			return filter(stamp, candidates, func(id uint32) bool {
				return p.Overlaps(id, lo, hi)
			})
		}
		return probeInto(stamp, p.Overlapping(lo, hi), candidates)
	}), nil
}
