package register

import (
	"cmp"
	"slices"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/valueindex"
)

// OrderBy returns s ordered by the value of each id in ix, ascending unless
// descending is set. Ids without a value come last in both directions; ties
// are broken by ascending id.
func OrderBy[T comparable](r *Register, ix *valueindex.Index[T], s *idset.Set, descending bool) (*idset.Set, error) {
	if !ix.Type().Ordered {
		return nil, &valueindex.UnsupportedQueryError{Query: valueindex.QueryLess, Type: ix.Type().Kind.String()}
	}
	if s.Len() <= 1 {
		return s, nil
	}

	k := newKey(opOrderBy, s.StateID(), ix.StateID()).flag(descending)
	return r.set(k, func(stamp model.StateID) *idset.Set {
		return orderBy(stamp, ix, s, descending)
	}), nil
}

func orderBy[T comparable](stamp model.StateID, ix *valueindex.Index[T], s *idset.Set, descending bool) *idset.Set {
	// Walking the sorted projection is linear in the index; sorting the set is
	// n log n in the set. Pick the cheaper one.
	if ix.Len() < s.Len()*bitLen(s.Len()) {
		return orderByProjection(stamp, ix, s, descending)
	}
	return orderBySort(stamp, ix, s, descending)
}

func orderBySort[T comparable](stamp model.StateID, ix *valueindex.Index[T], s *idset.Set, descending bool) *idset.Set {
	type item struct {
		id    uint32
		value T
		ok    bool
	}
	items := make([]item, 0, s.Len())
	for id := range s.All() {
		v, ok := ix.ValueOf(id)
		items = append(items, item{id: id, value: v, ok: ok})
	}

	compare := ix.Type().Compare
	slices.SortFunc(items, func(a, b item) int {
		switch {
		case a.ok != b.ok:
			if a.ok {
				return -1
			}
			return 1
		case a.ok:
			c := compare(a.value, b.value)
			if descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.id, b.id)
	})

	ids := make([]uint32, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return idset.NewOrdered(stamp, ids)
}

func orderByProjection[T comparable](stamp model.StateID, ix *valueindex.Index[T], s *idset.Set, descending bool) *idset.Set {
	values := ix.Values()
	ids := make([]uint32, 0, s.Len())
	bucket := make([]uint32, 0, 8)

	emit := func(v T) {
		bucket = bucket[:0]
		for _, id := range ix.GetIDs(v) {
			if s.Has(id) {
				bucket = append(bucket, id)
			}
		}
		slices.Sort(bucket)
		ids = append(ids, bucket...)
	}
	if descending {
		for i := len(values) - 1; i >= 0; i-- {
			emit(values[i])
		}
	} else {
		for _, v := range values {
			emit(v)
		}
	}

	if len(ids) < s.Len() {
		var missing []uint32
		for id := range s.All() {
			if _, ok := ix.ValueOf(id); !ok {
				missing = append(missing, id)
			}
		}
		slices.Sort(missing)
		ids = append(ids, missing...)
	}
	return idset.NewOrdered(stamp, ids)
}

func bitLen(n int) int {
	b := 1
	for n > 1 {
		n >>= 1
		b++
	}
	return b
}
