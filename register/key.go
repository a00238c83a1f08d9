package register

import (
	"encoding/binary"
	"slices"

	"github.com/hupe1980/nodegraph/internal/cache"
	"github.com/hupe1980/nodegraph/model"
)

// op tags the operation that produced a cached result.
type op uint8

const (
	opIntersection op = iota + 1
	opUnion
	opUnionAll
	opDifference
	opDisjunctiveUnion
	opPage
	opSkip
	opTake
	opOrderBy
	opWhere
	opWhereIn
	opWhereInRange
	opWhereOverlap
	opWhereHasValue
	opCountIntersection
	opCountUnion
	opCountEqual
	opCountInRange
)

// key is a cache key under construction.
type key struct {
	op        op
	states    []byte
	params    []byte
	cacheable bool
}

func newKey(o op, states ...model.StateID) *key {
	k := &key{op: o, states: make([]byte, 0, 8*len(states)), cacheable: true}
	for _, s := range states {
		k.state(s)
	}
	return k
}

// newCommutativeKey orders the stamps so that swapped operands share an entry.
func newCommutativeKey(o op, states ...model.StateID) *key {
	states = slices.Clone(states)
	slices.Sort(states)
	return newKey(o, states...)
}

func (k *key) state(s model.StateID) {
	if !s.Cacheable() {
		k.cacheable = false
	}
	k.states = binary.LittleEndian.AppendUint64(k.states, uint64(s))
}

func (k *key) param(v uint64) *key {
	k.params = binary.AppendUvarint(k.params, v)
	return k
}

func (k *key) flag(v bool) *key {
	if v {
		k.params = append(k.params, 1)
	} else {
		k.params = append(k.params, 0)
	}
	return k
}

func (k *key) cacheKey() cache.Key {
	return cache.Key{Op: uint8(k.op), States: string(k.states), Params: string(k.params)}
}
