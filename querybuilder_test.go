package nodegraph

import (
	"context"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nodegraph/query"
)

// bruteForce evaluates e against every node of typ, one node at a time.
func bruteForce(t *testing.T, s *Store, typ string, e query.Expr) []NodeID {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []NodeID
	s.nodes.Range(func(id NodeID, n *Node) bool {
		if n.Type != typ {
			return true
		}
		ok, err := s.evaluator.Evaluate(e, nodeView{n: n})
		require.NoError(t, err)
		if ok {
			ids = append(ids, id)
		}
		return true
	})
	slices.Sort(ids)
	return ids
}

func TestQueryMatchesBruteForce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ids := populate(t, s, 400)

	for i, id := range ids[:40] {
		require.NoError(t, s.SetLinks(ctx, id, "knows", ids[i%3]))
	}
	for _, id := range ids[350:] {
		require.NoError(t, s.Delete(ctx, id))
	}

	tests := []struct {
		name   string
		where  query.Expr
		native bool
	}{
		{"equal", query.Eq("age", 30), true},
		{"equal missing value", query.Eq("age", 1000), true},
		{"not equal", query.Cmp("age", query.OpNotEqual, 30), true},
		{"greater", query.Cmp("age", query.OpGreater, 40), true},
		{"less or equal float", query.Cmp("score", query.OpLessOrEqual, 12.5), true},
		{"string order", query.Cmp("name", query.OpGreaterOrEqual, "m"), true},
		{"bool", query.Eq("active", true), true},
		{"range", &query.Range{Property: "age", From: 20, To: 30, IncludeFrom: true}, true},
		{"in", &query.In{Property: "name", Values: []any{"a", "e", "z"}}, true},
		{"has value", &query.HasValue{Property: "age"}, true},
		{"not has value", &query.Not{Term: &query.HasValue{Property: "age"}}, true},
		{"overlap", &query.Overlap{Start: "start", End: "end", Lo: 300, Hi: 320}, true},
		{"and", query.AndOf(query.Eq("active", false), query.Cmp("age", query.OpLess, 50)), true},
		{"or", query.OrOf(query.Eq("name", "b"), query.Cmp("score", query.OpGreater, 90.0)), true},
		{"not and", &query.Not{Term: query.AndOf(query.Eq("active", true), query.Cmp("age", query.OpGreater, 10))}, true},
		{"relation", &query.Relation{Name: "knows", Target: ids[1]}, true},
		{"search", &query.Search{Text: "go"}, true},
		{"unindexed remainder", query.AndOf(query.Cmp("age", query.OpGreater, 20), query.Cmp("bio", query.OpContains, "chess")), false},
		{"contains on indexed", query.Cmp("name", query.OpPrefix, "q"), false},
		{"or with remainder", query.OrOf(query.Eq("age", 3), query.Eq("bio", "cooks")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := bruteForce(t, s, "person", tt.where)

			got, err := s.Query("person").Where(tt.where).IDs(ctx)
			require.NoError(t, err)
			if len(want) == 0 {
				assert.Empty(t, got)
			} else {
				assert.ElementsMatch(t, want, got)
			}

			n, err := s.Query("person").Where(tt.where).Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, len(want), n)

			plan, err := s.Query("person").Where(tt.where).Explain()
			require.NoError(t, err)
			assert.Equal(t, tt.native, plan.Remainder == "", "plan %+v", plan)
		})
	}
}

func TestQueryOrderBy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	populate(t, s, 200)

	for _, descending := range []bool{false, true} {
		qb := s.Query("person").Where(query.Eq("active", true))
		if descending {
			qb.OrderByDesc("age")
		} else {
			qb.OrderBy("age")
		}
		nodes, err := qb.Execute(ctx)
		require.NoError(t, err)

		want, err := s.Query("person").Where(query.Eq("active", true)).Count(ctx)
		require.NoError(t, err)
		require.Len(t, nodes, want)

		missing := false
		for i, n := range nodes {
			age, ok := n.Props["age"]
			if !ok {
				missing = true
				continue
			}
			require.False(t, missing, "nodes without a value come last")
			if i == 0 {
				continue
			}
			prev, ok := nodes[i-1].Props["age"]
			require.True(t, ok)
			if descending {
				assert.GreaterOrEqual(t, prev.(int64), age.(int64))
			} else {
				assert.LessOrEqual(t, prev.(int64), age.(int64))
			}
		}
	}
}

func TestQueryPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	populate(t, s, 100)

	all, err := s.Query("person").OrderBy("score").IDs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 100)

	page, err := s.Query("person").OrderBy("score").Page(2, 15).IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, all[30:45], page)

	tail, err := s.Query("person").OrderBy("score").Skip(95).Take(10).IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, all[95:], tail)

	none, err := s.Query("person").Skip(200).IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	first, err := s.Query("person").OrderBy("score").First(ctx)
	require.NoError(t, err)
	assert.Equal(t, all[0], first.ID)

	_, err = s.Query("person").Where(query.Eq("age", 1000)).First(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Query("person").Where(query.Eq("age", 1000)).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Query("person").Where(&query.HasValue{Property: "age"}).Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQueryPageBeyondEnd(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	populate(t, s, 20)

	tests := []struct {
		name        string
		index, size int
	}{
		{"past last page", 4, 5},
		{"overflowing offset", math.MaxInt/2 + 1, 3},
		{"max index", math.MaxInt, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query("person").OrderBy("score").Page(tt.index, tt.size).IDs(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestQueryTerminalsLeaveBuilderUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	populate(t, s, 40)

	want, err := s.Query("person").OrderBy("score").Skip(5).IDs(ctx)
	require.NoError(t, err)
	require.Len(t, want, 35)

	qb := s.Query("person").OrderBy("score").Skip(5)
	first, err := qb.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, want[0], first.ID)

	ok, err := qb.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := qb.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	n, err := qb.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 35, n)

	// An explicit window smaller than one is kept.
	ok, err = s.Query("person").Take(0).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryCountEqualFastPath(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	populate(t, s, 300)

	want := len(bruteForce(t, s, "person", query.Eq("name", "k")))
	require.Positive(t, want)
	for range 3 {
		n, err := s.Query("person").Where(query.Eq("name", "k")).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Positive(t, s.Stats().Cache.Counts.Hits)

	id, err := s.Insert(ctx, "person", map[string]any{"name": "k"}, nil)
	require.NoError(t, err)
	n, err := s.Query("person").Where(query.Eq("name", "k")).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, want+1, n)

	require.NoError(t, s.Delete(ctx, id))
	n, err = s.Query("person").Where(query.Eq("name", "k")).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, n)
}

func TestQueryErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	populate(t, s, 10)

	tests := []struct {
		name string
		qb   *QueryBuilder
		want error
	}{
		{"unknown type", s.Query("robot"), ErrUnknownType},
		{"unknown property", s.Query("person").Where(query.Eq("height", 1)), ErrInvalidArgument},
		{"unknown property in remainder", s.Query("person").Where(query.Cmp("height", query.OpContains, "x")), ErrInvalidArgument},
		{"order by unindexed", s.Query("person").OrderBy("bio"), ErrUnsupported},
		{"order by unknown", s.Query("person").OrderBy("height"), ErrInvalidArgument},
		{"order by unordered", s.Query("person").OrderBy("ref"), ErrUnsupported},
		{"negative page", s.Query("person").Page(-1, 10), ErrInvalidArgument},
		{"zero page size", s.Query("person").Page(0, 0), ErrInvalidArgument},
		{"negative page size", s.Query("person").Page(1, -3), ErrInvalidArgument},
		{"negative skip", s.Query("person").Skip(-1), ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.qb.IDs(ctx)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	for _, qb := range []*QueryBuilder{s.Query("person").Page(-1, 10), s.Query("person").Skip(-2)} {
		_, err := qb.Count(ctx)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = qb.Explain()
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := s.Query("person").IDs(canceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryStream(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	populate(t, s, 50)

	var seen []NodeID
	for n, err := range s.Query("person").OrderByDesc("score").Stream(ctx) {
		require.NoError(t, err)
		seen = append(seen, n.ID)
		if len(seen) == 5 {
			break
		}
	}
	want, err := s.Query("person").OrderByDesc("score").Take(5).IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, seen)

	for _, err := range s.Query("robot").Stream(ctx) {
		assert.ErrorIs(t, err, ErrUnknownType)
	}
}

func TestQueryCachesResults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	populate(t, s, 100)

	where := query.AndOf(query.Cmp("age", query.OpGreater, 30), query.Eq("active", true))
	first, err := s.Query("person").Where(where).IDs(ctx)
	require.NoError(t, err)
	hits := s.Stats().Cache.Sets.Hits

	second, err := s.Query("person").Where(where).IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Greater(t, s.Stats().Cache.Sets.Hits, hits)

	// A mutation bumps the stamps, so the new node is visible.
	id, err := s.Insert(ctx, "person", map[string]any{"age": 31, "active": true}, nil)
	require.NoError(t, err)
	third, err := s.Query("person").Where(where).IDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, third, id)
	assert.Len(t, third, len(first)+1)
}
