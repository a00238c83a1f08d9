package register

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/testutil"
	"github.com/hupe1980/nodegraph/valueindex"
)

func newRegister(t *testing.T) *Register {
	t.Helper()
	r, err := New(model.NewClock(), Config{})
	require.NoError(t, err)
	return r
}

func randomSet(r *Register, rng *testutil.RNG, n int, universe int64) (*idset.Set, map[uint32]bool) {
	ref := make(map[uint32]bool)
	ids := make([]uint32, 0, n)
	for len(ids) < n {
		id := uint32(rng.Int63n(universe))
		if !ref[id] {
			ref[id] = true
			ids = append(ids, id)
		}
	}
	return idset.New(r.Clock().Next(), ids), ref
}

func ids(s *idset.Set) []uint32 {
	out := s.ToSlice()
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return out
}

func keys(m map[uint32]bool) []uint32 {
	var out []uint32
	for id, ok := range m {
		if ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func TestSetAlgebraLaws(t *testing.T) {
	r := newRegister(t)
	rng := testutil.NewRNG(1)

	for _, size := range []int{5, 40, 300} {
		a, ra := randomSet(r, rng, size, 1000)
		b, rb := randomSet(r, rng, size/2+1, 1000)

		union := make(map[uint32]bool)
		inter := make(map[uint32]bool)
		diff := make(map[uint32]bool)
		xor := make(map[uint32]bool)
		for id := range ra {
			union[id] = true
			if rb[id] {
				inter[id] = true
			} else {
				diff[id] = true
				xor[id] = true
			}
		}
		for id := range rb {
			union[id] = true
			if !ra[id] {
				xor[id] = true
			}
		}

		assert.Equal(t, keys(inter), ids(r.Intersection(a, b)))
		assert.Equal(t, keys(inter), ids(r.Intersection(b, a)))
		assert.Equal(t, keys(union), ids(r.Union(a, b)))
		assert.Equal(t, keys(diff), ids(r.Difference(a, b)))
		assert.Equal(t, keys(xor), ids(r.DisjunctiveUnion(a, b)))
		assert.Equal(t, len(inter), r.CountIntersection(a, b))
		assert.Equal(t, len(union), r.CountUnion(a, b))

		// Identities
		assert.True(t, idset.Equal(a, r.Intersection(a, a)))
		assert.True(t, idset.Equal(a, r.Union(a, idset.Empty())))
		assert.True(t, r.Difference(a, a).IsEmpty())
		assert.True(t, r.DisjunctiveUnion(a, a).IsEmpty())
		assert.True(t, idset.Equal(
			r.Union(r.Difference(a, b), r.Intersection(a, b)), a))
	}
}

func TestUnionAll(t *testing.T) {
	r := newRegister(t)
	rng := testutil.NewRNG(2)

	want := make(map[uint32]bool)
	var sets []*idset.Set
	for range 5 {
		s, ref := randomSet(r, rng, 50, 500)
		sets = append(sets, s)
		for id := range ref {
			want[id] = true
		}
	}
	sets = append(sets, idset.Empty())

	assert.Equal(t, keys(want), ids(r.UnionAll(sets...)))
	assert.True(t, r.UnionAll().IsEmpty())
	assert.Same(t, sets[0], r.UnionAll(sets[0], idset.Empty()))
}

func TestCacheHit(t *testing.T) {
	r := newRegister(t)
	rng := testutil.NewRNG(3)
	a, _ := randomSet(r, rng, 100, 1000)
	b, _ := randomSet(r, rng, 100, 1000)

	first := r.Intersection(a, b)
	second := r.Intersection(b, a)
	assert.Same(t, first, second, "swapped operands share an entry")
	assert.Equal(t, int64(1), r.Stats().Sets.Hits)

	_ = r.CountUnion(a, b)
	_ = r.CountUnion(a, b)
	assert.Equal(t, int64(1), r.Stats().Counts.Hits)
}

func TestDegenerateShortcuts(t *testing.T) {
	r := newRegister(t)
	big := idset.New(r.Clock().Next(), []uint32{1, 2, 3, 4, 5})
	one := idset.Single(3)
	other := idset.Single(9)

	assert.True(t, r.Intersection(idset.Empty(), big).IsEmpty())
	assert.Same(t, one, r.Intersection(one, big))
	assert.True(t, r.Intersection(other, big).IsEmpty())
	assert.Same(t, big, r.Difference(big, idset.Empty()))
	assert.Same(t, other, r.Difference(other, big))
	assert.Same(t, big, r.Union(idset.Empty(), big))

	st := r.Stats().Sets
	assert.Zero(t, st.Hits+st.Misses, "shortcuts must not touch the cache")
}

func TestUncacheableNeverStored(t *testing.T) {
	r := newRegister(t)
	live := idset.NewUncacheable([]uint32{1, 2, 3, 4})
	b := idset.New(r.Clock().Next(), []uint32{2, 3, 4, 5, 6})

	x := r.Intersection(live, b)
	y := r.Intersection(live, b)
	assert.Equal(t, []uint32{2, 3, 4}, ids(x))
	assert.NotSame(t, x, y)
	assert.False(t, x.Cacheable())
	assert.Zero(t, r.Stats().Sets.Entries)
	assert.Zero(t, r.Stats().Sets.Misses)
}

func TestPaging(t *testing.T) {
	r := newRegister(t)
	s := idset.NewOrdered(r.Clock().Next(), []uint32{9, 8, 7, 6, 5, 4, 3})

	assert.Equal(t, []uint32{6, 5, 4}, r.Page(s, 1, 3).ToSlice())
	assert.Equal(t, []uint32{3}, r.Page(s, 2, 3).ToSlice())
	assert.True(t, r.Page(s, 3, 3).IsEmpty())
	assert.Same(t, s, r.Page(s, 0, 10))
	assert.True(t, r.Page(s, math.MaxInt, 2).IsEmpty())
	assert.True(t, r.Page(s, math.MaxInt/3+1, 3).IsEmpty())
	assert.True(t, r.Page(s, 1, -3).IsEmpty())
	assert.True(t, r.Page(s, -1, 3).IsEmpty())
	assert.Equal(t, []uint32{7, 6, 5, 4, 3}, r.Skip(s, 2).ToSlice())
	assert.Equal(t, []uint32{9, 8}, r.Take(s, 2).ToSlice())
	assert.True(t, r.Skip(s, 7).IsEmpty())
	assert.Same(t, s, r.Take(s, 7))
	assert.True(t, r.Take(s, 2).Ordered())
}

func TestCountIntersectionPromotesOperands(t *testing.T) {
	r := newRegister(t)
	small := make([]uint32, 0, 40)
	large := make([]uint32, 0, 400)
	for i := range uint32(400) {
		large = append(large, i*2)
		if i < 40 {
			small = append(small, i*3)
		}
	}
	a := idset.New(r.Clock().Next(), small)
	b := idset.New(r.Clock().Next(), large)

	promoted, _ := a.Promoted()
	require.False(t, promoted)

	// Multiples of 6 below 120.
	assert.Equal(t, 20, r.CountIntersection(a, b))
	for _, s := range []*idset.Set{a, b} {
		promoted, _ := s.Promoted()
		assert.True(t, promoted)
	}
	assert.Equal(t, 20, r.CountIntersection(b, a))
	assert.Equal(t, int64(1), r.Stats().Counts.Hits)
}

func TestCacheVersioningAfterMutation(t *testing.T) {
	r := newRegister(t)
	ix := valueindex.New(valueindex.Int64, r.Clock())
	for id := uint32(0); id < 100; id++ {
		require.NoError(t, ix.Add(id, int64(id%10)))
	}
	all := idset.New(r.Clock().Next(), ix.AllIDs())

	before, err := WhereEqual(r, ix, all, int64(3))
	require.NoError(t, err)
	assert.Equal(t, 10, before.Len())
	stateBefore := ix.StateID()

	require.NoError(t, ix.Remove(3, 3))
	require.NoError(t, ix.Add(3, 4))
	assert.NotEqual(t, stateBefore, ix.StateID())

	after, err := WhereEqual(r, ix, all, int64(3))
	require.NoError(t, err)
	assert.Equal(t, 9, after.Len())
	assert.False(t, after.Has(3))
	assert.NotEqual(t, before.StateID(), after.StateID())
}

func TestWhereMatchesBruteForce(t *testing.T) {
	r := newRegister(t)
	rng := testutil.NewRNG(4)
	ix := valueindex.New(valueindex.Int64, r.Clock())
	ref := make(map[uint32]int64)
	for id := uint32(0); id < 1000; id++ {
		if rng.Intn(10) == 0 {
			continue // no value
		}
		v := rng.Int63n(100)
		require.NoError(t, ix.Add(id, v))
		ref[id] = v
	}

	small, _ := randomSet(r, rng, 50, 1000)
	large, _ := randomSet(r, rng, 900, 1000)

	queries := []valueindex.QueryType{
		valueindex.QueryEqual, valueindex.QueryNotEqual,
		valueindex.QueryGreater, valueindex.QueryGreaterOrEqual,
		valueindex.QueryLess, valueindex.QueryLessOrEqual,
	}
	for _, candidates := range []*idset.Set{small, large} {
		for _, q := range queries {
			for _, c := range []int64{-1, 0, 50, 99, 150} {
				want := make(map[uint32]bool)
				for id := range candidates.All() {
					if v, ok := ref[id]; ok && q.Accepts(cmpInt(v, c)) {
						want[id] = true
					}
				}
				got, err := Where(r, ix, candidates, q, c)
				require.NoError(t, err)
				require.Equal(t, keys(want), ids(got), "%s %d", q, c)
			}
		}

		want := make(map[uint32]bool)
		for id := range candidates.All() {
			if v, ok := ref[id]; ok && v >= 20 && v < 40 {
				want[id] = true
			}
		}
		got, err := WhereInRange(r, ix, candidates, 20, 40, true, false)
		require.NoError(t, err)
		assert.Equal(t, keys(want), ids(got))

		n, err := CountInRange(r, ix, candidates, 20, 40, true, false)
		require.NoError(t, err)
		assert.Equal(t, len(want), n)

		in := make(map[uint32]bool)
		has := make(map[uint32]bool)
		eq := 0
		for id := range candidates.All() {
			if v, ok := ref[id]; ok {
				has[id] = true
				if v == 5 || v == 7 {
					in[id] = true
				}
				if v == 5 {
					eq++
				}
			}
		}
		assert.Equal(t, keys(in), ids(WhereIn(r, ix, candidates, []int64{5, 7, 1000})))
		assert.Equal(t, keys(has), ids(WhereHasValue(r, ix, candidates)))
		assert.Equal(t, eq, CountEqual(r, ix, candidates, 5))
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func TestWhereCoarsenedKeysShareEntries(t *testing.T) {
	r := newRegister(t)
	ix := valueindex.New(valueindex.Int64, r.Clock())
	for id, v := range []int64{10, 20, 30, 40} {
		require.NoError(t, ix.Add(uint32(id), v))
	}
	all := idset.New(r.Clock().Next(), ix.AllIDs())

	a, err := WhereGreater(r, ix, all, 21)
	require.NoError(t, err)
	b, err := WhereGreater(r, ix, all, 29)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, []uint32{2, 3}, ids(a))

	c, err := WhereGreater(r, ix, all, 30)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, ids(c))
}

func TestWhereUnsupported(t *testing.T) {
	r := newRegister(t)
	ix := valueindex.New(valueindex.Bool, r.Clock())
	s := idset.New(r.Clock().Next(), []uint32{1, 2})

	_, err := WhereGreater(r, ix, s, true)
	require.ErrorIs(t, err, valueindex.ErrUnsupportedQuery)
	_, err = WhereInRange(r, ix, s, false, true, true, true)
	require.ErrorIs(t, err, valueindex.ErrUnsupportedQuery)
	_, err = OrderBy(r, ix, s, false)
	require.ErrorIs(t, err, valueindex.ErrUnsupportedQuery)
}

func TestOrderBy(t *testing.T) {
	r := newRegister(t)
	ix := valueindex.New(valueindex.String, r.Clock())
	for id, v := range map[uint32]string{1: "c", 2: "a", 3: "b", 4: "a", 10: "z"} {
		require.NoError(t, ix.Add(id, v))
	}
	s := idset.New(r.Clock().Next(), []uint32{5, 4, 3, 2, 1})

	asc, err := OrderBy(r, ix, s, false)
	require.NoError(t, err)
	assert.True(t, asc.Ordered())
	assert.Equal(t, []uint32{2, 4, 3, 1, 5}, asc.ToSlice())

	desc, err := OrderBy(r, ix, s, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3, 2, 4, 5}, desc.ToSlice())

	// The projection walk and the sort agree.
	for _, descending := range []bool{false, true} {
		walked := orderByProjection(model.Uncacheable, ix, s, descending)
		sorted := orderBySort(model.Uncacheable, ix, s, descending)
		assert.Equal(t, sorted.ToSlice(), walked.ToSlice())
	}

	// Ordered input survives intersection.
	filter := idset.New(r.Clock().Next(), []uint32{1, 2, 5})
	assert.Equal(t, []uint32{2, 1, 5}, r.Intersection(asc, filter).ToSlice())
}

func TestRangeOverlapsRange(t *testing.T) {
	r := newRegister(t)
	start := valueindex.New(valueindex.Int64, r.Clock())
	end := valueindex.New(valueindex.Int64, r.Clock())
	spans := map[uint32][2]int64{1: {0, 10}, 2: {5, 15}, 3: {20, 30}, 4: {12, 12}}
	for id, s := range spans {
		require.NoError(t, start.Add(id, s[0]))
		require.NoError(t, end.Add(id, s[1]))
	}
	all := idset.New(r.Clock().Next(), []uint32{1, 2, 3, 4})

	got, err := WhereRangeOverlapsRange(r, start, end, all, 11, 19)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 4}, ids(got))

	got, err = WhereRangeOverlapsRange(r, start, end, all, 30, 40)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, ids(got))

	p1, err := Pair(r, start, end)
	require.NoError(t, err)
	p2, err := Pair(r, start, end)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	r.ForgetPairs(start)
	p3, err := Pair(r, start, end)
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)
}

func TestHalveAndClear(t *testing.T) {
	r := newRegister(t)
	rng := testutil.NewRNG(5)
	for range 20 {
		a, _ := randomSet(r, rng, 64, 1000)
		b, _ := randomSet(r, rng, 64, 1000)
		_ = r.Union(a, b)
		_ = r.CountIntersection(a, b)
	}
	st := r.Stats()
	require.Equal(t, 20, st.Sets.Entries)
	require.Equal(t, 20, st.Counts.Entries)

	r.Halve()
	st = r.Stats()
	assert.Less(t, st.Sets.Entries, 20)
	assert.Equal(t, 10, st.Counts.Entries)

	r.Clear()
	st = r.Stats()
	assert.Zero(t, st.Sets.Entries)
	assert.Zero(t, st.Counts.Entries)
	assert.Zero(t, st.Sets.Bytes)
}

func TestEstimateSize(t *testing.T) {
	assert.Equal(t, int64(64), EstimateSize(idset.Empty()))
	assert.Equal(t, int64(3*4*5+64), EstimateSize(idset.New(model.Empty, []uint32{1, 2, 3, 4, 5})))
}
