package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/register"
	"github.com/hupe1980/nodegraph/testutil"
	"github.com/hupe1980/nodegraph/valueindex"
)

type testNode struct {
	id    uint32
	props map[string]any
}

func (n *testNode) ID() uint32 { return n.id }

func (n *testNode) Value(name string) (any, bool) {
	v, ok := n.props[name]
	return v, ok
}

type fixture struct {
	reg    *register.Register
	nodes  []*testNode
	all    *idset.Set
	schema MapSchema
	p, q   *valueindex.Index[int64]
	flag   *valueindex.Index[bool]
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	clock := model.NewClock()
	reg, err := register.New(clock, register.Config{})
	require.NoError(t, err)

	f := &fixture{
		reg:  reg,
		p:    valueindex.New(valueindex.Int64, clock),
		q:    valueindex.New(valueindex.Int64, clock),
		flag: valueindex.New(valueindex.Bool, clock),
	}
	rng := testutil.NewRNG(11)
	ids := make([]uint32, 0, n)
	for id := uint32(0); id < uint32(n); id++ {
		node := &testNode{id: id, props: map[string]any{}}
		if rng.Intn(8) != 0 {
			v := rng.Int63n(10)
			require.NoError(t, f.p.Add(id, v))
			node.props["p"] = v
		}
		v := rng.Int63n(50)
		require.NoError(t, f.q.Add(id, v))
		node.props["q"] = v
		b := rng.Intn(2) == 0
		require.NoError(t, f.flag.Add(id, b))
		node.props["flag"] = b
		node.props["title"] = []string{"alpha", "beta", "gamma"}[rng.Intn(3)]

		f.nodes = append(f.nodes, node)
		ids = append(ids, id)
	}
	f.all = idset.New(clock.Next(), ids)
	f.schema = MapSchema{
		"p":    Bind("p", f.p, nil),
		"q":    Bind("q", f.q, nil),
		"flag": Bind("flag", f.flag, nil),
	}
	return f
}

func (f *fixture) bruteForce(t *testing.T, e Expr) []uint32 {
	t.Helper()
	ev := &Evaluator{}
	out := []uint32{}
	for _, n := range f.nodes {
		ok, err := ev.Evaluate(e, n)
		require.NoError(t, err)
		if ok {
			out = append(out, n.id)
		}
	}
	return out
}

func sortedIDs(s *idset.Set) []uint32 {
	return idset.Collect(model.Uncacheable, s.All()).Bitmap().ToArray()
}

func TestSplit_PartiallyNative(t *testing.T) {
	f := newFixture(t, 10)
	schema := MapSchema{"p": f.schema["p"]}
	c := NewCompiler(schema, f.reg)

	e := AndOf(Eq("p", 5), Cmp("q", OpGreater, 10))
	assert.False(t, c.CanBeNative(e))

	native, rest, err := c.Split(e)
	require.NoError(t, err)
	require.NotNil(t, native)
	assert.Equal(t, "p = 5", native.String())
	assert.Equal(t, "q > 10", rest.String())

	_, err = c.Lower(e)
	require.ErrorIs(t, err, ErrNotNative)
	require.ErrorIs(t, err, ErrUnknownProperty)
}

func TestSplit_Shapes(t *testing.T) {
	f := newFixture(t, 10)
	c := NewCompiler(f.schema, f.reg)

	native, rest, err := c.Split(Eq("p", 1))
	require.NoError(t, err)
	assert.NotNil(t, native)
	assert.Nil(t, rest)

	unindexed := Eq("title", "alpha")
	native, rest, err = c.Split(unindexed)
	require.NoError(t, err)
	assert.Nil(t, native)
	assert.Same(t, unindexed, rest)

	// Nested conjunctions are flattened before splitting.
	e := &And{Terms: []Expr{&And{Terms: []Expr{Eq("p", 1), unindexed}}, Eq("q", 2)}}
	native, rest, err = c.Split(e)
	require.NoError(t, err)
	assert.Equal(t, "(p = 1 AND q = 2)", native.String())
	assert.Same(t, unindexed, rest)
}

func TestCanBeNative(t *testing.T) {
	f := newFixture(t, 10)
	c := NewCompiler(f.schema, f.reg)

	tests := []struct {
		name string
		e    Expr
		want bool
	}{
		{"const", &Const{Value: true}, true},
		{"indexed equality", Eq("p", 1), true},
		{"unindexed", Eq("title", "x"), false},
		{"unsupported operator", Cmp("p", OpContains, 1), false},
		{"ordered op on unordered index", Cmp("flag", OpGreater, true), false},
		{"uncoercible constant", Eq("p", "five"), false},
		{"range", &Range{Property: "q", From: 1, To: 5}, true},
		{"range on unordered", &Range{Property: "flag", From: false, To: true}, false},
		{"in", &In{Property: "p", Values: []any{1, 2}}, true},
		{"has value", &HasValue{Property: "p"}, true},
		{"overlap", &Overlap{Start: "p", End: "q", Lo: 1, Hi: 2}, true},
		{"overlap mixed types", &Overlap{Start: "p", End: "flag", Lo: 1, Hi: 2}, false},
		{"relation", &Relation{Name: "owner", Target: 1}, true},
		{"search", &Search{Text: "x"}, true},
		{"and all native", AndOf(Eq("p", 1), Eq("q", 2)), true},
		{"or with non-native", OrOf(Eq("p", 1), Eq("title", "x")), false},
		{"not native", &Not{Term: Eq("p", 1)}, true},
		{"not non-native", &Not{Term: Eq("title", "x")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.CanBeNative(tt.e))
		})
	}
}

func TestFilter_MatchesBruteForce(t *testing.T) {
	f := newFixture(t, 1000)
	c := NewCompiler(f.schema, f.reg)

	exprs := []Expr{
		AndOf(Eq("p", 5), Cmp("q", OpGreater, 10)),
		OrOf(Eq("p", 1), Cmp("q", OpLessOrEqual, 3)),
		&Not{Term: Eq("p", 2)},
		AndOf(&Not{Term: OrOf(Eq("flag", true), Cmp("p", OpLess, 3))}, &HasValue{Property: "p"}),
		&Range{Property: "q", From: 10, To: 20, IncludeFrom: true},
		&In{Property: "p", Values: []any{1, 3, 99}},
		&Overlap{Start: "p", End: "q", Lo: 4, Hi: 6},
		OrOf(&Const{Value: false}, Cmp("p", OpNotEqual, 4)),
		OrOf(&Const{Value: true}, Eq("p", 4)),
		AndOf(&Const{Value: false}, Eq("p", 4)),
	}
	for _, e := range exprs {
		t.Run(e.String(), func(t *testing.T) {
			require.True(t, c.CanBeNative(e))
			native, err := c.Lower(e)
			require.NoError(t, err)

			got, err := native.Filter(f.all)
			require.NoError(t, err)
			assert.Equal(t, f.bruteForce(t, e), sortedIDs(got))

			// Repeat hits the register cache and must agree.
			again, err := native.Filter(f.all)
			require.NoError(t, err)
			assert.True(t, idset.Equal(got, again))
		})
	}
}

func TestSplit_RemainderCompletesQuery(t *testing.T) {
	f := newFixture(t, 500)
	c := NewCompiler(f.schema, f.reg)

	e := AndOf(Cmp("q", OpGreaterOrEqual, 25), Cmp("title", OpPrefix, "al"), Eq("flag", true))
	native, rest, err := c.Split(e)
	require.NoError(t, err)

	candidates, err := native.Filter(f.all)
	require.NoError(t, err)

	ev := &Evaluator{}
	var got []uint32
	for id := range candidates.All() {
		ok, err := ev.Evaluate(rest, f.nodes[id])
		require.NoError(t, err)
		if ok {
			got = append(got, id)
		}
	}
	assert.ElementsMatch(t, f.bruteForce(t, e), got)
}

type staticSearcher struct {
	ids   []uint32
	calls int
}

func (s *staticSearcher) Search(string) (*idset.Set, error) {
	s.calls++
	return idset.New(model.StateID(1<<40), s.ids), nil
}

type staticRelations map[string][]uint32

func (r staticRelations) Related(name string, _ any) (*idset.Set, error) {
	return idset.NewUncacheable(r[name]), nil
}

func TestResolvedPredicates(t *testing.T) {
	f := newFixture(t, 100)
	search := &staticSearcher{ids: []uint32{1, 2, 3, 200}}
	c := NewCompiler(f.schema, f.reg,
		WithSearcher(search),
		WithRelations(staticRelations{"owner": {2, 3, 4}}))

	native, err := c.Lower(&Search{Text: "x"})
	require.NoError(t, err)
	got, err := native.Filter(f.all)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, sortedIDs(got))
	assert.False(t, got.Cacheable(), "search results are never cached")

	_, err = native.Filter(f.all)
	require.NoError(t, err)
	assert.Equal(t, 2, search.calls)

	native, err = c.Lower(AndOf(&Search{Text: "x"}, &Relation{Name: "owner", Target: 1}))
	require.NoError(t, err)
	got, err = native.Filter(f.all)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3}, sortedIDs(got))
}

func TestResolvedPredicates_NoResolver(t *testing.T) {
	f := newFixture(t, 10)
	c := NewCompiler(f.schema, f.reg)

	native, err := c.Lower(&Relation{Name: "owner"})
	require.NoError(t, err)
	_, err = native.Filter(f.all)
	require.ErrorIs(t, err, ErrNoResolver)
}

func TestBoundProperty_DequeuesBeforeRead(t *testing.T) {
	clock := model.NewClock()
	reg, err := register.New(clock, register.Config{})
	require.NoError(t, err)

	ix := valueindex.New(valueindex.String, clock)
	buf := valueindex.NewBuffer[string](ix)
	require.NoError(t, buf.Add(1, "x"))
	require.NoError(t, buf.Add(2, "x"))
	require.NoError(t, buf.Remove(2, "x"))

	c := NewCompiler(MapSchema{"s": Bind("s", ix, buf)}, reg)
	native, err := c.Lower(Eq("s", "x"))
	require.NoError(t, err)

	got, err := native.Filter(idset.New(clock.Next(), []uint32{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, sortedIDs(got))
	_, _, pending := buf.Pending()
	assert.False(t, pending)
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		a, b any
		want int
		ok   bool
	}{
		{int64(3), 3, 0, true},
		{int32(2), 2.5, -1, true},
		{3.5, int64(3), 1, true},
		{"a", "b", -1, true},
		{false, true, -1, true},
		{"a", 1, 0, false},
		{1, "a", 0, false},
		{true, 1, 0, false},
	}
	for _, tt := range tests {
		got, ok := compareValues(tt.a, tt.b)
		assert.Equal(t, tt.ok, ok, "%v vs %v", tt.a, tt.b)
		if ok {
			assert.Equal(t, tt.want, got, "%v vs %v", tt.a, tt.b)
		}
	}
}
