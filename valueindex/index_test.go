package valueindex

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/testutil"
)

func newIntIndex() *Index[int64] {
	return New(Int64, model.NewClock())
}

func sorted(ids []uint32) []uint32 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

func TestIndex_AddRemoveIntegrity(t *testing.T) {
	ix := newIntIndex()
	require.NoError(t, ix.Add(1, 10))

	err := ix.Add(1, 20)
	require.ErrorIs(t, err, ErrIntegrity)

	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, uint32(1), ie.ID)
	assert.Equal(t, "add", ie.Op)

	require.ErrorIs(t, ix.Remove(2, 10), ErrIntegrity)
	require.ErrorIs(t, ix.Remove(1, 11), ErrIntegrity)

	// Failed operations leave the index untouched.
	v, ok := ix.ValueOf(1)
	require.True(t, ok)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, 1, ix.Len())
	require.NoError(t, ix.Check())
}

func TestIndex_BucketTransitions(t *testing.T) {
	ix := newIntIndex()

	require.NoError(t, ix.Add(1, 7))
	assert.Equal(t, 1, ix.CountEqual(7))
	assert.Len(t, ix.single, 1)

	require.NoError(t, ix.Add(2, 7))
	assert.Empty(t, ix.single)
	assert.Len(t, ix.multi[7], 2)
	require.NoError(t, ix.Check())

	require.NoError(t, ix.Remove(1, 7))
	assert.Empty(t, ix.multi)
	assert.Equal(t, uint32(2), ix.single[7])
	require.NoError(t, ix.Check())

	require.NoError(t, ix.Remove(2, 7))
	assert.Zero(t, ix.Len())
	assert.Zero(t, ix.Distinct())
	assert.False(t, ix.ContainsValue(7))
	require.NoError(t, ix.Check())
}

func TestIndex_StateAdvances(t *testing.T) {
	ix := newIntIndex()
	s0 := ix.StateID()

	require.NoError(t, ix.Add(1, 1))
	s1 := ix.StateID()
	assert.Greater(t, s1, s0)

	require.Error(t, ix.Add(1, 1))
	assert.Equal(t, s1, ix.StateID(), "failed add must not bump state")

	require.NoError(t, ix.Remove(1, 1))
	assert.Greater(t, ix.StateID(), s1)
}

func TestIndex_LazyExtremes(t *testing.T) {
	ix := newIntIndex()
	_, ok := ix.MinValue()
	assert.False(t, ok)

	for i, v := range []int64{5, 3, 9, 3, 9} {
		require.NoError(t, ix.Add(uint32(i), v))
	}

	lo, _ := ix.MinValue()
	hi, _ := ix.MaxValue()
	assert.Equal(t, int64(3), lo)
	assert.Equal(t, int64(9), hi)

	// A shared extreme stays valid.
	require.NoError(t, ix.Remove(1, 3))
	assert.True(t, ix.hasMin)
	lo, _ = ix.MinValue()
	assert.Equal(t, int64(3), lo)

	// Removing the last holder invalidates it until the next read.
	require.NoError(t, ix.Remove(3, 3))
	assert.False(t, ix.hasMin)
	lo, _ = ix.MinValue()
	assert.Equal(t, int64(5), lo)
	assert.True(t, ix.hasMin)

	require.NoError(t, ix.Remove(2, 9))
	require.NoError(t, ix.Remove(4, 9))
	hi, _ = ix.MaxValue()
	assert.Equal(t, int64(5), hi)
}

func TestIndex_RangeSearchMatchesScan(t *testing.T) {
	rng := testutil.NewRNG(42)
	ix := newIntIndex()
	ref := make(map[uint32]int64)

	for id := uint32(0); id < 2000; id++ {
		v := rng.Int63n(500)
		require.NoError(t, ix.Add(id, v))
		ref[id] = v
	}

	check := func(t *testing.T) {
		t.Helper()
		for range 100 {
			a, b := rng.Int63n(520)-10, rng.Int63n(520)-10
			if a > b {
				a, b = b, a
			}
			incF, incT := rng.Intn(2) == 0, rng.Intn(2) == 0

			var want []uint32
			for id, v := range ref {
				if (v > a || (incF && v == a)) && (v < b || (incT && v == b)) {
					want = append(want, id)
				}
			}

			got, err := ix.RangeSearch(a, b, incF, incT)
			require.NoError(t, err)
			require.Equal(t, sorted(want), sorted(got), "range %d..%d (%v,%v)", a, b, incF, incT)

			n, err := ix.CountInRange(a, b, incF, incT)
			require.NoError(t, err)
			require.Equal(t, len(want), n)
		}
	}

	t.Run("initial", check)

	for id, v := range ref {
		if rng.Intn(2) == 0 {
			require.NoError(t, ix.Remove(id, v))
			delete(ref, id)
		}
	}
	require.NoError(t, ix.Check())

	t.Run("after removals", check)
}

func TestIndex_Query(t *testing.T) {
	ix := newIntIndex()
	for i := uint32(0); i < 10; i++ {
		require.NoError(t, ix.Add(i, int64(i%5)))
	}

	tests := []struct {
		q    QueryType
		v    int64
		want int
	}{
		{QueryEqual, 2, 2},
		{QueryEqual, 9, 0},
		{QueryNotEqual, 2, 8},
		{QueryGreater, 2, 4},
		{QueryGreaterOrEqual, 2, 6},
		{QueryLess, 2, 4},
		{QueryLessOrEqual, 2, 6},
		{QueryLess, -1, 0},
		{QueryGreater, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.q.String(), func(t *testing.T) {
			ids, err := ix.Query(tt.q, tt.v)
			require.NoError(t, err)
			assert.Len(t, ids, tt.want)
			for _, id := range ids {
				ok, err := ix.Match(id, tt.q, tt.v)
				require.NoError(t, err)
				assert.True(t, ok)
			}
		})
	}

	_, err := ix.Query(QueryType(0), 1)
	require.ErrorIs(t, err, ErrUnsupportedQuery)
}

func TestIndex_UnorderedType(t *testing.T) {
	ix := New(Bool, model.NewClock())
	require.NoError(t, ix.Add(1, true))
	require.NoError(t, ix.Add(2, false))

	assert.True(t, ix.Supports(QueryEqual))
	assert.False(t, ix.Supports(QueryGreater))

	_, err := ix.GreaterThan(true, false)
	require.ErrorIs(t, err, ErrUnsupportedQuery)
	_, err = ix.Match(1, QueryLess, true)
	require.ErrorIs(t, err, ErrUnsupportedQuery)

	ids, err := ix.Query(QueryNotEqual, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, ids)
}

func TestIndex_CacheKeyCoarsening(t *testing.T) {
	ix := newIntIndex()
	for i, v := range []int64{10, 20, 30} {
		require.NoError(t, ix.Add(uint32(i), v))
	}

	key := func(q QueryType, v int64) string {
		return string(ix.AppendCacheKey(nil, q, v))
	}

	// Every absent constant shares the equality key.
	assert.Equal(t, key(QueryEqual, 11), key(QueryEqual, 999))
	assert.NotEqual(t, key(QueryEqual, 10), key(QueryEqual, 20))
	assert.NotEqual(t, key(QueryEqual, 10), key(QueryEqual, 11))

	// Constants in the same gap share the ordered key.
	assert.Equal(t, key(QueryGreater, 11), key(QueryGreater, 19))
	assert.NotEqual(t, key(QueryGreater, 11), key(QueryGreater, 20))
	assert.NotEqual(t, key(QueryGreater, 19), key(QueryGreater, 21))
	assert.NotEqual(t, key(QueryGreater, 11), key(QueryLess, 11))

	rk := func(a, b int64) string {
		return string(ix.AppendRangeCacheKey(nil, a, b, true, false))
	}
	assert.Equal(t, rk(11, 25), rk(15, 29))
	assert.NotEqual(t, rk(11, 25), rk(11, 31))
}

func TestIndex_ValuesSortedAndCached(t *testing.T) {
	ix := New(String, model.NewClock())
	for i, v := range []string{"pear", "apple", "fig", "apple"} {
		require.NoError(t, ix.Add(uint32(i), v))
	}

	values := ix.Values()
	assert.Equal(t, []string{"apple", "fig", "pear"}, values)

	p := ix.sorted.Load()
	_ = ix.Values()
	assert.Same(t, p, ix.sorted.Load(), "projection must be reused while state is unchanged")

	require.NoError(t, ix.Remove(1, "apple"))
	assert.Equal(t, []string{"apple", "fig", "pear"}, ix.Values())
	require.NoError(t, ix.Remove(3, "apple"))
	assert.Equal(t, []string{"fig", "pear"}, ix.Values())
}

func TestIndex_Reset(t *testing.T) {
	ix := newIntIndex()
	require.NoError(t, ix.Add(1, 1))
	before := ix.StateID()

	ix.Reset()
	assert.Zero(t, ix.Len())
	assert.Greater(t, ix.StateID(), before)
	assert.Empty(t, ix.Values())
}
