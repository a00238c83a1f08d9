package valueindex

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/nodegraph/model"
)

// Index is the sorted value index of one node property.
//
// Invariants:
//   - the ids of values equal the union of the ids in single and multi
//   - a value is in single or in multi, never both
//   - every multi bucket holds at least two ids
type Index[T comparable] struct {
	vt    ValueType[T]
	clock *model.Clock
	state model.StateID

	values map[uint32]T
	single map[T]uint32
	multi  map[T]map[uint32]struct{}

	// Cached extremes. A removal of the current extreme only clears the flag;
	// the O(n) recompute happens on the next read.
	extremaMu sync.Mutex
	min, max  T
	hasMin    bool
	hasMax    bool

	// sortMu serializes rebuilds of the sorted projection.
	sortMu sync.Mutex
	sorted atomic.Pointer[projection[T]]
}

// projection is the sorted list of distinct values at a given state.
type projection[T comparable] struct {
	state  model.StateID
	values []T
}

// New creates an empty index for the given value type. The clock supplies the
// version stamps and is usually shared by every index of a store.
func New[T comparable](vt ValueType[T], clock *model.Clock) *Index[T] {
	ix := &Index[T]{
		vt:    vt,
		clock: clock,
	}
	ix.reset()
	return ix
}

func (ix *Index[T]) reset() {
	ix.values = make(map[uint32]T)
	ix.single = make(map[T]uint32)
	ix.multi = make(map[T]map[uint32]struct{})
	ix.hasMin, ix.hasMax = false, false
	ix.sorted.Store(nil)
	ix.state = ix.clock.Next()
}

// Reset discards all entries.
// Thread-safety: Caller must hold the write lock.
func (ix *Index[T]) Reset() {
	ix.reset()
}

// Type returns the value type of the index.
func (ix *Index[T]) Type() ValueType[T] {
	return ix.vt
}

// StateID returns the version stamp of the current content.
func (ix *Index[T]) StateID() model.StateID {
	return ix.state
}

// Len returns the number of indexed ids.
func (ix *Index[T]) Len() int {
	return len(ix.values)
}

// Distinct returns the number of distinct values.
func (ix *Index[T]) Distinct() int {
	return len(ix.single) + len(ix.multi)
}

// Add indexes value for id. The id must not be indexed yet.
// Thread-safety: Caller must hold the write lock.
func (ix *Index[T]) Add(id uint32, value T) error {
	if _, exists := ix.values[id]; exists {
		return integrity("add", id, "id already indexed")
	}

	if other, ok := ix.single[value]; ok {
		delete(ix.single, value)
		ix.multi[value] = map[uint32]struct{}{other: {}, id: {}}
	} else if bucket, ok := ix.multi[value]; ok {
		bucket[id] = struct{}{}
	} else {
		ix.single[value] = id
	}
	ix.values[id] = value

	if len(ix.values) == 1 {
		ix.min, ix.max = value, value
		ix.hasMin, ix.hasMax = true, true
	} else {
		if ix.hasMin && ix.vt.Compare(value, ix.min) < 0 {
			ix.min = value
		}
		if ix.hasMax && ix.vt.Compare(value, ix.max) > 0 {
			ix.max = value
		}
	}

	ix.state = ix.clock.Next()
	return nil
}

// Remove removes the entry (id, value). The entry must exist.
// Thread-safety: Caller must hold the write lock.
func (ix *Index[T]) Remove(id uint32, value T) error {
	current, ok := ix.values[id]
	if !ok {
		return integrity("remove", id, "id not indexed")
	}
	if current != value {
		return integrity("remove", id, "value does not match indexed value")
	}

	// Validate the bucket before touching anything.
	lastHolder := false
	if holder, ok := ix.single[value]; ok {
		if holder != id {
			return integrity("remove", id, "single bucket held by another id")
		}
		lastHolder = true
	} else if bucket, ok := ix.multi[value]; ok {
		if _, ok := bucket[id]; !ok {
			return integrity("remove", id, "id missing from multi bucket")
		}
	} else {
		return integrity("remove", id, "value bucket missing")
	}

	delete(ix.values, id)
	if lastHolder {
		delete(ix.single, value)
	} else {
		bucket := ix.multi[value]
		delete(bucket, id)
		if len(bucket) == 1 {
			delete(ix.multi, value)
			for remaining := range bucket {
				ix.single[value] = remaining
			}
		}
	}

	if len(ix.values) == 0 {
		ix.hasMin, ix.hasMax = false, false
	} else if lastHolder {
		if ix.hasMin && ix.min == value {
			ix.hasMin = false
		}
		if ix.hasMax && ix.max == value {
			ix.hasMax = false
		}
	}

	ix.state = ix.clock.Next()
	return nil
}

// ValueOf returns the value indexed for id.
func (ix *Index[T]) ValueOf(id uint32) (T, bool) {
	v, ok := ix.values[id]
	return v, ok
}

// ContainsValue reports whether any id holds value.
func (ix *Index[T]) ContainsValue(value T) bool {
	if _, ok := ix.single[value]; ok {
		return true
	}
	_, ok := ix.multi[value]
	return ok
}

// CountEqual returns the number of ids holding value.
func (ix *Index[T]) CountEqual(value T) int {
	if _, ok := ix.single[value]; ok {
		return 1
	}
	return len(ix.multi[value])
}

// GetIDs returns the ids holding value.
func (ix *Index[T]) GetIDs(value T) []uint32 {
	return ix.appendIDs(nil, value)
}

func (ix *Index[T]) appendIDs(dst []uint32, value T) []uint32 {
	if id, ok := ix.single[value]; ok {
		return append(dst, id)
	}
	for id := range ix.multi[value] {
		dst = append(dst, id)
	}
	return dst
}

// AllIDs returns every indexed id.
func (ix *Index[T]) AllIDs() []uint32 {
	ids := make([]uint32, 0, len(ix.values))
	for id := range ix.values {
		ids = append(ids, id)
	}
	return ids
}

// MinValue returns the smallest indexed value.
func (ix *Index[T]) MinValue() (T, bool) {
	ix.extremaMu.Lock()
	defer ix.extremaMu.Unlock()

	if len(ix.values) == 0 {
		var zero T
		return zero, false
	}
	if !ix.hasMin {
		ix.min = ix.scanExtreme(-1)
		ix.hasMin = true
	}
	return ix.min, true
}

// MaxValue returns the largest indexed value.
func (ix *Index[T]) MaxValue() (T, bool) {
	ix.extremaMu.Lock()
	defer ix.extremaMu.Unlock()

	if len(ix.values) == 0 {
		var zero T
		return zero, false
	}
	if !ix.hasMax {
		ix.max = ix.scanExtreme(1)
		ix.hasMax = true
	}
	return ix.max, true
}

// scanExtreme finds the minimum (dir < 0) or maximum (dir > 0) value. It uses
// the sorted projection when it is current and scans the buckets otherwise.
func (ix *Index[T]) scanExtreme(dir int) T {
	if p := ix.sorted.Load(); p != nil && p.state == ix.state && len(p.values) > 0 {
		if dir < 0 {
			return p.values[0]
		}
		return p.values[len(p.values)-1]
	}

	var best T
	first := true
	consider := func(v T) {
		if first || ix.vt.Compare(v, best)*dir > 0 {
			best = v
			first = false
		}
	}
	for v := range ix.single {
		consider(v)
	}
	for v := range ix.multi {
		consider(v)
	}
	return best
}

// Check audits the cross-structure invariants. It is O(n) and meant for tests
// and for verification after a restore.
func (ix *Index[T]) Check() error {
	reachable := 0
	for v, id := range ix.single {
		if _, dup := ix.multi[v]; dup {
			return integrity("check", id, "value present in both buckets")
		}
		if stored, ok := ix.values[id]; !ok || stored != v {
			return integrity("check", id, "single bucket disagrees with value map")
		}
		reachable++
	}
	for v, bucket := range ix.multi {
		if len(bucket) < 2 {
			for id := range bucket {
				return integrity("check", id, "multi bucket below two ids")
			}
			return integrity("check", 0, "empty multi bucket")
		}
		for id := range bucket {
			if stored, ok := ix.values[id]; !ok || stored != v {
				return integrity("check", id, "multi bucket disagrees with value map")
			}
			reachable++
		}
	}
	if reachable != len(ix.values) {
		return integrity("check", 0, "value map holds unreachable ids")
	}
	return nil
}
