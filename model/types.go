package model

import (
	"fmt"
	"math"
	"sync/atomic"
)

// NodeID is a dense, process-local identifier for a node.
// It is distinct from the externally visible 128-bit node UUID.
type NodeID = uint32

// StateID is a version stamp. Two sets or indexes carrying the same StateID
// have identical content; stamps are never reused for different content.
type StateID uint64

const (
	// Empty is the stamp of every empty set.
	Empty StateID = 0

	// Uncacheable marks content built from a non-deterministic or externally
	// mutable source. Results derived from it are never cached.
	Uncacheable StateID = math.MaxUint64

	// singleValueBase offsets single-value stamps away from Empty.
	singleValueBase StateID = 1

	// clockBase is the first value handed out by a Clock. Everything below it is
	// reserved for single-value stamps, so the two ranges never collide.
	clockBase StateID = singleValueBase + math.MaxUint32 + 1
)

// SingleValue returns the deterministic stamp of the set containing only id.
func SingleValue(id NodeID) StateID {
	return singleValueBase + StateID(id)
}

// IsSingleValue reports whether s was produced by SingleValue.
func (s StateID) IsSingleValue() bool {
	return s >= singleValueBase && s < clockBase
}

// Cacheable reports whether results derived from s may be memoized.
func (s StateID) Cacheable() bool {
	return s != Uncacheable
}

// String returns a string representation of the StateID.
func (s StateID) String() string {
	switch {
	case s == Empty:
		return "State(empty)"
	case s == Uncacheable:
		return "State(uncacheable)"
	case s.IsSingleValue():
		return fmt.Sprintf("State(single:%d)", uint64(s-singleValueBase))
	default:
		return fmt.Sprintf("State(%d)", uint64(s))
	}
}

// Clock hands out monotonically increasing StateIDs.
//
// A Clock is owned by a store and shared by all of its indexes and its register.
// It is safe for concurrent use.
type Clock struct {
	last atomic.Uint64
}

// NewClock creates a new Clock.
func NewClock() *Clock {
	c := &Clock{}
	c.last.Store(uint64(clockBase))
	return c
}

// Next returns a fresh StateID that has never been returned before.
func (c *Clock) Next() StateID {
	return StateID(c.last.Add(1))
}

// Current returns the most recently issued StateID.
func (c *Clock) Current() StateID {
	return StateID(c.last.Load())
}

// Restore advances the clock to at least v. It never moves backwards, so stamps
// issued before a restore stay unique.
func (c *Clock) Restore(v StateID) {
	for {
		cur := c.last.Load()
		if uint64(v) <= cur {
			return
		}
		if c.last.CompareAndSwap(cur, uint64(v)) {
			return
		}
	}
}
