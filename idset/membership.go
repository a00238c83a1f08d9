package idset

import (
	"github.com/bits-and-blooms/bitset"
)

// membership is the promoted lookup structure of a Set. Exactly one of dense or
// sparse is set.
type membership struct {
	min    uint32
	dense  *bitset.BitSet
	sparse map[uint32]struct{}
}

func buildMembership(ids []uint32) *membership {
	lo, hi := ids[0], ids[0]
	for _, id := range ids[1:] {
		lo = min(lo, id)
		hi = max(hi, id)
	}

	span := uint64(hi) - uint64(lo) + 1
	if span > SparseRatio*uint64(len(ids)) {
		sparse := make(map[uint32]struct{}, len(ids))
		for _, id := range ids {
			sparse[id] = struct{}{}
		}
		return &membership{sparse: sparse}
	}

	dense := bitset.New(uint(span))
	for _, id := range ids {
		dense.Set(uint(id - lo))
	}
	return &membership{min: lo, dense: dense}
}

func (m *membership) has(id uint32) bool {
	if m.dense != nil {
		return id >= m.min && m.dense.Test(uint(id-m.min))
	}
	_, ok := m.sparse[id]
	return ok
}
