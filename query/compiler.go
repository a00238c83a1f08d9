package query

import (
	"fmt"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/register"
)

// RelationResolver returns the ids of the nodes having the relation name
// pointing at target.
type RelationResolver interface {
	Related(name string, target any) (*idset.Set, error)
}

// Searcher returns the ids of the nodes matching a text search.
type Searcher interface {
	Search(text string) (*idset.Set, error)
}

// Compiler lowers expressions over one node type into native index
// operations.
type Compiler struct {
	schema    Schema
	reg       *register.Register
	relations RelationResolver
	searcher  Searcher
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithRelations sets the resolver of Relation predicates.
func WithRelations(r RelationResolver) CompilerOption {
	return func(c *Compiler) { c.relations = r }
}

// WithSearcher sets the resolver of Search predicates.
func WithSearcher(s Searcher) CompilerOption {
	return func(c *Compiler) { c.searcher = s }
}

// NewCompiler creates a compiler for the properties of schema.
func NewCompiler(schema Schema, reg *register.Register, opts ...CompilerOption) *Compiler {
	c := &Compiler{schema: schema, reg: reg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanBeNative reports whether e can be evaluated entirely through indexes.
//
// Combinators are native when every child is. Constants, relation and search
// predicates are always native. A property predicate is native when the
// property is indexed, the index answers the operator and every constant
// converts to the index type.
func (c *Compiler) CanBeNative(e Expr) bool {
	switch e := e.(type) {
	case *And:
		return c.allNative(e.Terms)
	case *Or:
		return c.allNative(e.Terms)
	case *Not:
		return c.CanBeNative(e.Term)
	case *Const, *Relation, *Search:
		return true
	default:
		_, err := c.leaf(e)
		return err == nil
	}
}

func (c *Compiler) allNative(terms []Expr) bool {
	for _, t := range terms {
		if !c.CanBeNative(t) {
			return false
		}
	}
	return true
}

// Lower converts e into a native expression. It fails with ErrNotNative when
// any part of e cannot be evaluated through indexes.
func (c *Compiler) Lower(e Expr) (Native, error) {
	switch e := e.(type) {
	case *And:
		terms, err := c.lowerAll(e.Terms)
		if err != nil {
			return nil, err
		}
		return &nativeAnd{reg: c.reg, terms: terms, desc: e.String()}, nil
	case *Or:
		terms, err := c.lowerAll(e.Terms)
		if err != nil {
			return nil, err
		}
		return &nativeOr{reg: c.reg, terms: terms, desc: e.String()}, nil
	case *Not:
		term, err := c.Lower(e.Term)
		if err != nil {
			return nil, err
		}
		return &nativeNot{reg: c.reg, term: term, desc: e.String()}, nil
	case *Const:
		return nativeConst(e.Value), nil
	case *Relation:
		return &nativeResolved{
			reg: c.reg,
			resolve: func() (*idset.Set, error) {
				if c.relations == nil {
					return nil, fmt.Errorf("%w: relation %q", ErrNoResolver, e.Name)
				}
				return c.relations.Related(e.Name, e.Target)
			},
			desc: e.String(),
		}, nil
	case *Search:
		return &nativeResolved{
			reg: c.reg,
			resolve: func() (*idset.Set, error) {
				if c.searcher == nil {
					return nil, fmt.Errorf("%w: search", ErrNoResolver)
				}
				return c.searcher.Search(e.Text)
			},
			uncacheable: true,
			desc:        e.String(),
		}, nil
	}

	eval, err := c.leaf(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotNative, e, err)
	}
	return &nativeLeaf{reg: c.reg, eval: eval, desc: e.String()}, nil
}

func (c *Compiler) lowerAll(terms []Expr) ([]Native, error) {
	out := make([]Native, len(terms))
	for i, t := range terms {
		n, err := c.Lower(t)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (c *Compiler) property(name string) (IndexedProperty, error) {
	p, ok := c.schema.Property(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	return p, nil
}

// leaf binds a property predicate to its index.
func (c *Compiler) leaf(e Expr) (Leaf, error) {
	switch e := e.(type) {
	case *Compare:
		p, err := c.property(e.Property)
		if err != nil {
			return nil, err
		}
		q, ok := e.Op.QueryType()
		if !ok {
			return nil, fmt.Errorf("operator %s has no index support", e.Op)
		}
		return p.Compare(q, e.Value)
	case *Range:
		p, err := c.property(e.Property)
		if err != nil {
			return nil, err
		}
		return p.Range(e.From, e.To, e.IncludeFrom, e.IncludeTo)
	case *In:
		p, err := c.property(e.Property)
		if err != nil {
			return nil, err
		}
		return p.In(e.Values)
	case *HasValue:
		p, err := c.property(e.Property)
		if err != nil {
			return nil, err
		}
		return p.HasValue(), nil
	case *Overlap:
		start, err := c.property(e.Start)
		if err != nil {
			return nil, err
		}
		end, err := c.property(e.End)
		if err != nil {
			return nil, err
		}
		return start.Overlap(end, e.Lo, e.Hi)
	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
}

// Split separates the native conjuncts of e from the rest.
//
// The returned native expression is nil when no conjunct is native and the
// remainder is nil when e is entirely native. The ids satisfying e are the ids
// passing the native filter for which the remainder evaluates to true.
func (c *Compiler) Split(e Expr) (Native, Expr, error) {
	if c.CanBeNative(e) {
		n, err := c.Lower(e)
		return n, nil, err
	}

	if _, ok := e.(*And); !ok {
		return nil, e, nil
	}

	var native, rest []Expr
	for _, t := range conjuncts(e, nil) {
		if c.CanBeNative(t) {
			native = append(native, t)
		} else {
			rest = append(rest, t)
		}
	}
	if len(native) == 0 {
		return nil, e, nil
	}

	n, err := c.Lower(AndOf(native...))
	if err != nil {
		return nil, nil, err
	}
	return n, AndOf(rest...), nil
}

func conjuncts(e Expr, dst []Expr) []Expr {
	and, ok := e.(*And)
	if !ok {
		return append(dst, e)
	}
	for _, t := range and.Terms {
		dst = conjuncts(t, dst)
	}
	return dst
}
