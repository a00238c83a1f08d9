package idset

import (
	"iter"
	"slices"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/nodegraph/model"
)

// PromoteThreshold is the size above which membership tests stop scanning the
// id slice and promote the set to a dense or sparse lookup structure.
const PromoteThreshold = 32

// SparseRatio is the (max-min+1)/count ratio above which a set is considered
// sparse and promoted to a hash set instead of a bitset.
const SparseRatio = 2

var empty = &Set{stamp: model.Empty}

// Set is an immutable collection of unique node ids carrying a version stamp.
type Set struct {
	ids     []uint32
	stamp   model.StateID
	ordered bool

	// member is nil until the set is promoted.
	member atomic.Pointer[membership]
}

// Empty returns the empty set.
func Empty() *Set {
	return empty
}

// Single returns the set containing only id.
func Single(id uint32) *Set {
	return &Set{ids: []uint32{id}, stamp: model.SingleValue(id)}
}

// New creates a set from ids. The caller guarantees that ids are unique and
// hands over ownership of the slice.
//
// Empty and single-element sets are normalized to the Empty and SingleValue
// stamps unless stamp is model.Uncacheable.
func New(stamp model.StateID, ids []uint32) *Set {
	return newSet(stamp, ids, false)
}

// NewOrdered is like New but marks the enumeration order of ids as meaningful.
func NewOrdered(stamp model.StateID, ids []uint32) *Set {
	return newSet(stamp, ids, true)
}

// NewUncacheable creates a set whose derived results are never cached.
func NewUncacheable(ids []uint32) *Set {
	return newSet(model.Uncacheable, ids, false)
}

// Collect builds a set from a sequence that may contain duplicates.
func Collect(stamp model.StateID, seq iter.Seq[uint32]) *Set {
	seen := make(map[uint32]struct{})
	var ids []uint32
	for id := range seq {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return New(stamp, ids)
}

// FromBitmap creates a set from a roaring bitmap. Ids are enumerated ascending.
func FromBitmap(stamp model.StateID, bm *roaring.Bitmap) *Set {
	if bm == nil || bm.IsEmpty() {
		return empty
	}
	return New(stamp, bm.ToArray())
}

func newSet(stamp model.StateID, ids []uint32, ordered bool) *Set {
	switch {
	case len(ids) == 0:
		return empty
	case len(ids) == 1 && stamp != model.Uncacheable:
		stamp = model.SingleValue(ids[0])
	}
	return &Set{ids: ids, stamp: stamp, ordered: ordered}
}

// StateID returns the version stamp of the set.
func (s *Set) StateID() model.StateID {
	return s.stamp
}

// Len returns the number of ids in the set.
func (s *Set) Len() int {
	return len(s.ids)
}

// IsEmpty reports whether the set has no ids.
func (s *Set) IsEmpty() bool {
	return len(s.ids) == 0
}

// Ordered reports whether the enumeration order is meaningful (e.g. the set was
// produced by an ordering or paging operation).
func (s *Set) Ordered() bool {
	return s.ordered
}

// Cacheable reports whether results derived from this set may be memoized.
func (s *Set) Cacheable() bool {
	return s.stamp.Cacheable()
}

// First returns the first id in enumeration order.
func (s *Set) First() (uint32, bool) {
	if len(s.ids) == 0 {
		return 0, false
	}
	return s.ids[0], true
}

// All returns an iterator over the ids. The order is unspecified unless the set
// is Ordered.
func (s *Set) All() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for _, id := range s.ids {
			if !yield(id) {
				return
			}
		}
	}
}

// ToSlice returns a copy of the ids.
func (s *Set) ToSlice() []uint32 {
	return slices.Clone(s.ids)
}

// Has reports whether id is a member of the set.
func (s *Set) Has(id uint32) bool {
	if len(s.ids) <= PromoteThreshold {
		return slices.Contains(s.ids, id)
	}
	return s.promote().has(id)
}

// Promote forces the lookup structure to be built. It is a no-op for small
// sets and for sets that were already promoted.
func (s *Set) Promote() {
	s.promote()
}

func (s *Set) promote() *membership {
	if len(s.ids) <= PromoteThreshold {
		return nil
	}
	if m := s.member.Load(); m != nil {
		return m
	}
	m := buildMembership(s.ids)
	// A concurrent promotion may win; both results are equivalent.
	if s.member.CompareAndSwap(nil, m) {
		return m
	}
	return s.member.Load()
}

// Promoted reports whether the set currently uses a lookup structure, and if so
// whether it is the dense (bitset) representation.
func (s *Set) Promoted() (promoted, dense bool) {
	m := s.member.Load()
	if m == nil {
		return false, false
	}
	return true, m.dense != nil
}

// Bitmap returns the ids as a new roaring bitmap.
func (s *Set) Bitmap() *roaring.Bitmap {
	return roaring.BitmapOf(s.ids...)
}

// Equal reports whether a and b contain the same ids, ignoring order and stamps.
func Equal(a, b *Set) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.stamp == b.stamp && a.stamp != model.Uncacheable && a.stamp != model.Empty {
		return true
	}
	for _, id := range a.ids {
		if !b.Has(id) {
			return false
		}
	}
	return true
}
