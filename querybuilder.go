package nodegraph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/query"
	"github.com/hupe1980/nodegraph/valueindex"
)

// Query creates a fluent query over the nodes of type typ.
//
// Example:
//
//	people, err := db.Query("person").
//	    Where(query.Cmp("age", query.OpGreaterOrEqual, 18)).
//	    OrderByDesc("age").
//	    Take(10).
//	    Execute(ctx)
func (s *Store) Query(typ string) *QueryBuilder {
	return &QueryBuilder{s: s, typ: typ, take: -1}
}

// QueryBuilder is a fluent builder for constructing node queries.
type QueryBuilder struct {
	s     *Store
	typ   string
	where query.Expr

	orderBy    string
	descending bool
	skip       int
	take       int

	err error
}

// Where adds a predicate. Multiple predicates are combined with AND.
func (qb *QueryBuilder) Where(e query.Expr) *QueryBuilder {
	if qb.where == nil {
		qb.where = e
	} else {
		qb.where = query.AndOf(qb.where, e)
	}
	return qb
}

// OrderBy orders the results by an indexed property, ascending. Nodes without
// a value come last.
func (qb *QueryBuilder) OrderBy(property string) *QueryBuilder {
	qb.orderBy, qb.descending = property, false
	return qb
}

// OrderByDesc orders the results by an indexed property, descending. Nodes
// without a value come last.
func (qb *QueryBuilder) OrderByDesc(property string) *QueryBuilder {
	qb.orderBy, qb.descending = property, true
	return qb
}

// Skip drops the first n results. A negative n is rejected by the terminal
// operation with ErrInvalidArgument.
func (qb *QueryBuilder) Skip(n int) *QueryBuilder {
	if n < 0 {
		qb.fail(fmt.Errorf("%w: negative skip %d", ErrInvalidArgument, n))
	}
	qb.skip = n
	return qb
}

// Take keeps at most n results. A negative n removes the limit.
func (qb *QueryBuilder) Take(n int) *QueryBuilder {
	qb.take = n
	return qb
}

// Page selects the zero-based page index of the given size. A negative index
// or a size below one is rejected by the terminal operation with
// ErrInvalidArgument. Pages past the end are empty.
func (qb *QueryBuilder) Page(index, size int) *QueryBuilder {
	if index < 0 || size <= 0 {
		qb.fail(fmt.Errorf("%w: page %d of size %d", ErrInvalidArgument, index, size))
		return qb
	}
	if index > math.MaxInt/size {
		qb.skip = math.MaxInt
	} else {
		qb.skip = index * size
	}
	qb.take = size
	return qb
}

// fail records the first builder error.
func (qb *QueryBuilder) fail(err error) {
	if qb.err == nil {
		qb.err = err
	}
}

// Plan describes how a query is evaluated.
type Plan struct {
	// Native is the part answered through indexes, empty if none.
	Native string
	// Remainder is the part evaluated node by node, empty if none.
	Remainder string
}

// Explain returns the evaluation plan without running the query.
func (qb *QueryBuilder) Explain() (Plan, error) {
	if qb.err != nil {
		return Plan{}, qb.err
	}
	if err := qb.s.rlock(); err != nil {
		return Plan{}, err
	}
	defer qb.s.mu.RUnlock()

	t, err := qb.s.nodeType(qb.typ)
	if err != nil {
		return Plan{}, err
	}
	if qb.where == nil {
		return Plan{}, nil
	}
	if err := t.validate(qb.where); err != nil {
		return Plan{}, err
	}
	native, rest, err := t.compiler.Split(qb.where)
	if err != nil {
		return Plan{}, translateError(err)
	}
	var p Plan
	if native != nil {
		p.Native = native.String()
	}
	if rest != nil {
		p.Remainder = rest.String()
	}
	return p, nil
}

// IDs runs the query and returns the ids of the matching nodes.
func (qb *QueryBuilder) IDs(ctx context.Context) ([]NodeID, error) {
	var ids []NodeID
	err := qb.run(ctx, func(s *idset.Set) error {
		ids = s.ToSlice()
		return nil
	})
	return ids, err
}

// Execute runs the query and returns copies of the matching nodes.
func (qb *QueryBuilder) Execute(ctx context.Context) ([]Node, error) {
	var nodes []Node
	err := qb.run(ctx, func(s *idset.Set) error {
		nodes = make([]Node, 0, s.Len())
		for id := range s.All() {
			if n, ok := qb.s.nodes.Load(id); ok {
				nodes = append(nodes, n.clone())
			}
		}
		return nil
	})
	return nodes, err
}

// Stream returns an iterator over the matching nodes. The ids are resolved
// up front; nodes deleted while iterating are skipped.
func (qb *QueryBuilder) Stream(ctx context.Context) iter.Seq2[Node, error] {
	return func(yield func(Node, error) bool) {
		ids, err := qb.IDs(ctx)
		if err != nil {
			yield(Node{}, err)
			return
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(Node{}, err)
				return
			}
			n, ok := qb.s.nodes.Load(id)
			if !ok {
				continue
			}
			if !yield(n.clone(), nil) {
				return
			}
		}
	}
}

// First returns the first matching node, or ErrNotFound. The builder is left
// unchanged.
func (qb *QueryBuilder) First(ctx context.Context) (Node, error) {
	nodes, err := qb.limited(1).Execute(ctx)
	if err != nil {
		return Node{}, err
	}
	if len(nodes) == 0 {
		return Node{}, ErrNotFound
	}
	return nodes[0], nil
}

// Count returns the number of matching nodes. A single equality predicate on
// an indexed property is answered from the count cache.
func (qb *QueryBuilder) Count(ctx context.Context) (int, error) {
	if qb.err != nil {
		return 0, qb.err
	}
	if c, ok := qb.where.(*query.Compare); ok && c.Op == query.OpEqual && qb.skip <= 0 && qb.take < 0 {
		n, handled, err := qb.countEqual(ctx, c)
		if handled || err != nil {
			return n, err
		}
	}

	count := 0
	err := qb.run(ctx, func(s *idset.Set) error {
		count = s.Len()
		return nil
	})
	return count, err
}

// Exists reports whether at least one node matches. The builder is left
// unchanged.
func (qb *QueryBuilder) Exists(ctx context.Context) (bool, error) {
	n, err := qb.limited(1).Count(ctx)
	return n > 0, err
}

// limited returns a copy of the builder keeping at most n results of its
// current window.
func (qb *QueryBuilder) limited(n int) *QueryBuilder {
	c := *qb
	if c.take < 0 || c.take > n {
		c.take = n
	}
	return &c
}

func (qb *QueryBuilder) countEqual(ctx context.Context, c *query.Compare) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, true, err
	}
	if err := qb.s.rlock(); err != nil {
		return 0, true, err
	}
	defer qb.s.mu.RUnlock()

	t, err := qb.s.nodeType(qb.typ)
	if err != nil {
		return 0, true, err
	}
	p, ok := t.props[c.Property]
	if !ok {
		return 0, false, nil
	}
	n, err := p.CountEqual(qb.s.reg, t.candidates(), c.Value)
	if errors.Is(err, valueindex.ErrTypeMismatch) {
		// Leave constants of the wrong type to the evaluator, like Where does.
		return 0, false, nil
	}
	if err != nil {
		return 0, true, translateError(err)
	}
	return n, true, nil
}

// run resolves the query under the read lock and hands the result to fn.
func (qb *QueryBuilder) run(ctx context.Context, fn func(*idset.Set) error) (err error) {
	start := time.Now()
	results, native := 0, true
	defer func() {
		elapsed := time.Since(start)
		qb.s.metrics.RecordQuery(results, native, elapsed, err)
		where := ""
		if qb.where != nil {
			where = qb.where.String()
		}
		qb.s.logger.LogQuery(ctx, qb.typ, where, results, elapsed, err)
	}()

	if qb.err != nil {
		return qb.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := qb.s.rlock(); err != nil {
		return err
	}
	defer qb.s.mu.RUnlock()

	s, native, err := qb.resolve(ctx)
	if err != nil {
		return translateError(err)
	}
	results = s.Len()
	return fn(s)
}

func (qb *QueryBuilder) resolve(ctx context.Context) (*idset.Set, bool, error) {
	t, err := qb.s.nodeType(qb.typ)
	if err != nil {
		return nil, false, err
	}
	reg := qb.s.reg
	result := t.candidates()
	native := true

	if qb.where != nil {
		if err := t.validate(qb.where); err != nil {
			return nil, false, err
		}
		n, rest, err := t.compiler.Split(qb.where)
		if err != nil {
			return nil, false, err
		}
		if n != nil {
			if result, err = n.Filter(result); err != nil {
				return nil, false, err
			}
		}
		if rest != nil {
			native = false
			if result, err = qb.s.evaluate(ctx, result, rest); err != nil {
				return nil, false, err
			}
		}
	}

	if qb.orderBy != "" {
		p, ok := t.props[qb.orderBy]
		if !ok {
			if _, declared := t.byName[qb.orderBy]; declared {
				return nil, false, fmt.Errorf("%w: order by %q: property is not indexed", ErrUnsupported, qb.orderBy)
			}
			return nil, false, fmt.Errorf("%w: type %q has no property %q", ErrInvalidArgument, t.name, qb.orderBy)
		}
		if result, err = p.OrderBy(reg, result, qb.descending); err != nil {
			return nil, false, err
		}
	}

	result = reg.Skip(result, qb.skip)
	if qb.take >= 0 {
		result = reg.Take(result, qb.take)
	}
	return result, native, nil
}

// evaluate keeps the ids of candidates for which the generic evaluator
// accepts e.
func (s *Store) evaluate(ctx context.Context, candidates *idset.Set, e query.Expr) (*idset.Set, error) {
	var ids []uint32
	i := 0
	for id := range candidates.All() {
		if i++; i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n, ok := s.nodes.Load(id)
		if !ok {
			continue
		}
		match, err := s.evaluator.Evaluate(e, nodeView{n: n})
		if err != nil {
			return nil, err
		}
		if match {
			ids = append(ids, id)
		}
	}
	return idset.NewUncacheable(ids), nil
}

// validate rejects predicates on properties the type does not declare.
func (t *nodeType) validate(e query.Expr) error {
	var names []string
	switch e := e.(type) {
	case *query.And:
		for _, term := range e.Terms {
			if err := t.validate(term); err != nil {
				return err
			}
		}
		return nil
	case *query.Or:
		for _, term := range e.Terms {
			if err := t.validate(term); err != nil {
				return err
			}
		}
		return nil
	case *query.Not:
		return t.validate(e.Term)
	case *query.Compare:
		names = []string{e.Property}
	case *query.Range:
		names = []string{e.Property}
	case *query.In:
		names = []string{e.Property}
	case *query.HasValue:
		names = []string{e.Property}
	case *query.Overlap:
		names = []string{e.Start, e.End}
	}
	for _, name := range names {
		if _, ok := t.byName[name]; !ok {
			return fmt.Errorf("%w: type %q has no property %q", ErrInvalidArgument, t.name, name)
		}
	}
	return nil
}
