package register

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/model"
)

// same reports whether a and b are known to hold the same ids without looking
// at them.
func same(a, b *idset.Set) bool {
	return a == b || (a.StateID() == b.StateID() && a.Cacheable())
}

// filter keeps the ids of s accepted by keep, preserving the order of s.
func filter(stamp model.StateID, s *idset.Set, keep func(uint32) bool) *idset.Set {
	var ids []uint32
	for id := range s.All() {
		if keep(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == s.Len() {
		return s
	}
	if s.Ordered() {
		return idset.NewOrdered(stamp, ids)
	}
	return idset.New(stamp, ids)
}

// Intersection returns the ids present in both a and b. The enumeration order
// of an ordered a is preserved.
func (r *Register) Intersection(a, b *idset.Set) *idset.Set {
	switch {
	case a.IsEmpty() || b.IsEmpty():
		return idset.Empty()
	case same(a, b):
		return a
	case a.Len() == 1:
		if id, _ := a.First(); b.Has(id) {
			return a
		}
		return idset.Empty()
	case b.Len() == 1 && !a.Ordered():
		if id, _ := b.First(); a.Has(id) {
			return b
		}
		return idset.Empty()
	}

	var k *key
	if a.Ordered() {
		k = newKey(opIntersection, a.StateID(), b.StateID()).flag(true)
	} else {
		k = newCommutativeKey(opIntersection, a.StateID(), b.StateID()).flag(false)
	}
	return r.set(k, func(stamp model.StateID) *idset.Set {
		return intersect(stamp, a, b)
	})
}

// intersect probes the smaller set into the larger one.
func intersect(stamp model.StateID, a, b *idset.Set) *idset.Set {
	if !a.Ordered() && b.Len() < a.Len() {
		a, b = b, a
	}
	return filter(stamp, a, b.Has)
}

// Union returns the ids present in a or b.
func (r *Register) Union(a, b *idset.Set) *idset.Set {
	switch {
	case a.IsEmpty():
		return b
	case b.IsEmpty() || same(a, b):
		return a
	}

	k := newCommutativeKey(opUnion, a.StateID(), b.StateID())
	return r.set(k, func(stamp model.StateID) *idset.Set {
		return idset.FromBitmap(stamp, roaring.Or(a.Bitmap(), b.Bitmap()))
	})
}

// UnionAll returns the ids present in any of sets.
func (r *Register) UnionAll(sets ...*idset.Set) *idset.Set {
	operands := make([]*idset.Set, 0, len(sets))
	for _, s := range sets {
		if !s.IsEmpty() {
			operands = append(operands, s)
		}
	}
	switch len(operands) {
	case 0:
		return idset.Empty()
	case 1:
		return operands[0]
	case 2:
		return r.Union(operands[0], operands[1])
	}

	states := make([]model.StateID, len(operands))
	for i, s := range operands {
		states[i] = s.StateID()
	}
	k := newCommutativeKey(opUnionAll, states...)
	return r.set(k, func(stamp model.StateID) *idset.Set {
		bitmaps := make([]*roaring.Bitmap, len(operands))
		for i, s := range operands {
			bitmaps[i] = s.Bitmap()
		}
		return idset.FromBitmap(stamp, roaring.FastOr(bitmaps...))
	})
}

// Difference returns the ids of a that are not in b. The enumeration order of
// an ordered a is preserved.
func (r *Register) Difference(a, b *idset.Set) *idset.Set {
	switch {
	case a.IsEmpty() || same(a, b):
		return idset.Empty()
	case b.IsEmpty():
		return a
	case a.Len() == 1:
		if id, _ := a.First(); b.Has(id) {
			return idset.Empty()
		}
		return a
	}

	k := newKey(opDifference, a.StateID(), b.StateID())
	return r.set(k, func(stamp model.StateID) *idset.Set {
		if a.Ordered() || b.Len() <= idset.PromoteThreshold {
			return filter(stamp, a, func(id uint32) bool { return !b.Has(id) })
		}
		return idset.FromBitmap(stamp, roaring.AndNot(a.Bitmap(), b.Bitmap()))
	})
}

// DisjunctiveUnion returns the ids present in exactly one of a and b.
func (r *Register) DisjunctiveUnion(a, b *idset.Set) *idset.Set {
	switch {
	case a.IsEmpty():
		return b
	case b.IsEmpty():
		return a
	case same(a, b):
		return idset.Empty()
	}

	k := newCommutativeKey(opDisjunctiveUnion, a.StateID(), b.StateID())
	return r.set(k, func(stamp model.StateID) *idset.Set {
		return idset.FromBitmap(stamp, roaring.Xor(a.Bitmap(), b.Bitmap()))
	})
}

// Skip drops the first n ids in enumeration order.
func (r *Register) Skip(s *idset.Set, n int) *idset.Set {
	switch {
	case n <= 0:
		return s
	case n >= s.Len():
		return idset.Empty()
	}

	k := newKey(opSkip, s.StateID()).param(uint64(n))
	return r.set(k, func(stamp model.StateID) *idset.Set {
		return slice(stamp, s, n, s.Len())
	})
}

// Take keeps the first n ids in enumeration order.
func (r *Register) Take(s *idset.Set, n int) *idset.Set {
	switch {
	case n >= s.Len():
		return s
	case n <= 0:
		return idset.Empty()
	}

	k := newKey(opTake, s.StateID()).param(uint64(n))
	return r.set(k, func(stamp model.StateID) *idset.Set {
		return slice(stamp, s, 0, n)
	})
}

// Page returns the page with the given zero-based index, each page holding
// size ids in enumeration order.
func (r *Register) Page(s *idset.Set, index, size int) *idset.Set {
	if size <= 0 || index < 0 || index > (s.Len()-1)/size {
		return idset.Empty()
	}
	lo := index * size
	switch {
	case lo >= s.Len():
		return idset.Empty()
	case lo == 0 && size >= s.Len():
		return s
	}

	k := newKey(opPage, s.StateID()).param(uint64(index)).param(uint64(size))
	return r.set(k, func(stamp model.StateID) *idset.Set {
		return slice(stamp, s, lo, min(lo+size, s.Len()))
	})
}

func slice(stamp model.StateID, s *idset.Set, lo, hi int) *idset.Set {
	ids := make([]uint32, 0, hi-lo)
	i := 0
	for id := range s.All() {
		if i >= hi {
			break
		}
		if i >= lo {
			ids = append(ids, id)
		}
		i++
	}
	return idset.NewOrdered(stamp, ids)
}

// CountIntersection returns |a ∩ b|.
func (r *Register) CountIntersection(a, b *idset.Set) int {
	switch {
	case a.IsEmpty() || b.IsEmpty():
		return 0
	case same(a, b):
		return a.Len()
	case a.Len() == 1 || b.Len() == 1:
		return r.Intersection(a, b).Len()
	}

	k := newCommutativeKey(opCountIntersection, a.StateID(), b.StateID())
	return r.count(k, func() int {
		a.Promote()
		b.Promote()
		small, large := a, b
		if large.Len() < small.Len() {
			small, large = large, small
		}
		n := 0
		for id := range small.All() {
			if large.Has(id) {
				n++
			}
		}
		return n
	})
}

// CountUnion returns |a ∪ b|.
func (r *Register) CountUnion(a, b *idset.Set) int {
	switch {
	case a.IsEmpty():
		return b.Len()
	case b.IsEmpty() || same(a, b):
		return a.Len()
	}

	k := newCommutativeKey(opCountUnion, a.StateID(), b.StateID())
	return r.count(k, func() int {
		return int(a.Bitmap().OrCardinality(b.Bitmap()))
	})
}
