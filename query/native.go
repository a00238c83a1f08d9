package query

import (
	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/register"
)

// Native is a lowered expression evaluated entirely through indexes and the
// register.
type Native interface {
	// Filter returns the ids of candidates satisfying the expression.
	Filter(candidates *idset.Set) (*idset.Set, error)
	String() string
}

type nativeAnd struct {
	reg   *register.Register
	terms []Native
	desc  string
}

func (n *nativeAnd) Filter(candidates *idset.Set) (*idset.Set, error) {
	cur := candidates
	for _, t := range n.terms {
		if cur.IsEmpty() {
			return cur, nil
		}
		next, err := t.Filter(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func (n *nativeAnd) String() string { return n.desc }

type nativeOr struct {
	reg   *register.Register
	terms []Native
	desc  string
}

func (n *nativeOr) Filter(candidates *idset.Set) (*idset.Set, error) {
	result := idset.Empty()
	remaining := candidates
	for _, t := range n.terms {
		part, err := t.Filter(remaining)
		if err != nil {
			return nil, err
		}
		if part.Len() == remaining.Len() {
			// Every remaining candidate matched.
			return candidates, nil
		}
		result = n.reg.Union(result, part)
		remaining = n.reg.Difference(remaining, part)
	}
	return result, nil
}

func (n *nativeOr) String() string { return n.desc }

type nativeNot struct {
	reg  *register.Register
	term Native
	desc string
}

func (n *nativeNot) Filter(candidates *idset.Set) (*idset.Set, error) {
	matched, err := n.term.Filter(candidates)
	if err != nil {
		return nil, err
	}
	return n.reg.Difference(candidates, matched), nil
}

func (n *nativeNot) String() string { return n.desc }

type nativeConst bool

func (n nativeConst) Filter(candidates *idset.Set) (*idset.Set, error) {
	if n {
		return candidates, nil
	}
	return idset.Empty(), nil
}

func (n nativeConst) String() string {
	if n {
		return "TRUE"
	}
	return "FALSE"
}

// nativeLeaf evaluates a predicate bound to one or two indexes.
type nativeLeaf struct {
	reg  *register.Register
	eval Leaf
	desc string
}

func (n *nativeLeaf) Filter(candidates *idset.Set) (*idset.Set, error) {
	if candidates.IsEmpty() {
		return candidates, nil
	}
	return n.eval(n.reg, candidates)
}

func (n *nativeLeaf) String() string { return n.desc }

// nativeResolved intersects the candidates with a set produced by a resolver.
type nativeResolved struct {
	reg         *register.Register
	resolve     func() (*idset.Set, error)
	uncacheable bool
	desc        string
}

func (n *nativeResolved) Filter(candidates *idset.Set) (*idset.Set, error) {
	if candidates.IsEmpty() {
		return candidates, nil
	}
	s, err := n.resolve()
	if err != nil {
		return nil, err
	}
	if n.uncacheable && s.StateID() != model.Uncacheable && !s.IsEmpty() {
		s = idset.NewUncacheable(s.ToSlice())
	}
	return n.reg.Intersection(candidates, s), nil
}

func (n *nativeResolved) String() string { return n.desc }
