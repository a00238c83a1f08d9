package valueindex

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/nodegraph/model"
)

// Pair joins two indexes over the same ordered type that hold the start and
// end of an interval property (e.g. valid-from / valid-to).
//
// Overlap queries scan a projection of (start, end, id) triples sorted by
// start. The projection is cached for the current pair of index states.
type Pair[T comparable] struct {
	from *Index[T]
	to   *Index[T]

	mu     sync.Mutex
	cached atomic.Pointer[pairProjection[T]]
}

type pairEntry[T comparable] struct {
	id       uint32
	from, to T
}

type pairProjection[T comparable] struct {
	fromState, toState model.StateID
	entries            []pairEntry[T]
}

// NewPair creates a pair over the start index from and end index to.
func NewPair[T comparable](from, to *Index[T]) (*Pair[T], error) {
	if !from.vt.Ordered || !to.vt.Ordered {
		return nil, fmt.Errorf("%w: range overlap requires an ordered type", ErrUnsupportedQuery)
	}
	return &Pair[T]{from: from, to: to}, nil
}

// From returns the start index.
func (p *Pair[T]) From() *Index[T] { return p.from }

// To returns the end index.
func (p *Pair[T]) To() *Index[T] { return p.to }

func (p *Pair[T]) current(c *pairProjection[T]) bool {
	return c != nil && c.fromState == p.from.state && c.toState == p.to.state
}

func (p *Pair[T]) projection() []pairEntry[T] {
	if c := p.cached.Load(); p.current(c) {
		return c.entries
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c := p.cached.Load(); p.current(c) {
		return c.entries
	}

	entries := make([]pairEntry[T], 0, min(len(p.from.values), len(p.to.values)))
	for id, start := range p.from.values {
		end, ok := p.to.values[id]
		if !ok {
			continue
		}
		entries = append(entries, pairEntry[T]{id: id, from: start, to: end})
	}
	compare := p.from.vt.Compare
	slices.SortFunc(entries, func(a, b pairEntry[T]) int {
		if c := compare(a.from, b.from); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	p.cached.Store(&pairProjection[T]{
		fromState: p.from.state,
		toState:   p.to.state,
		entries:   entries,
	})
	return entries
}

// Overlapping returns the ids whose interval [start, end] intersects the
// closed interval [from, to].
func (p *Pair[T]) Overlapping(from, to T) []uint32 {
	entries := p.projection()
	compare := p.from.vt.Compare

	// First entry whose start is beyond the query end.
	end, _ := slices.BinarySearchFunc(entries, to, func(e pairEntry[T], v T) int {
		if compare(e.from, v) <= 0 {
			return -1
		}
		return 1
	})

	var ids []uint32
	for _, e := range entries[:end] {
		if compare(e.to, from) >= 0 {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// Overlaps reports whether the interval of id intersects [from, to].
func (p *Pair[T]) Overlaps(id uint32, from, to T) bool {
	start, ok := p.from.values[id]
	if !ok {
		return false
	}
	end, ok := p.to.values[id]
	if !ok {
		return false
	}
	compare := p.from.vt.Compare
	return compare(start, to) <= 0 && compare(end, from) >= 0
}

// AppendCacheKey appends the coarsened key of an overlap query: the position of
// the query end among the start values and of the query start among the end
// values.
func (p *Pair[T]) AppendCacheKey(dst []byte, from, to T) []byte {
	dst = p.from.AppendRangeCacheKey(dst, to, to, true, true)
	return p.to.AppendRangeCacheKey(dst, from, from, true, true)
}
