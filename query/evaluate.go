package query

import (
	"fmt"
	"strings"
)

// Node is the per-node view used by the generic evaluator.
type Node interface {
	ID() uint32
	// Value returns the value of property name, or false if it is not set.
	Value(name string) (any, bool)
}

// Evaluator evaluates expressions one node at a time. It handles every
// expression, indexed or not, and is used for the remainder left by Split.
type Evaluator struct {
	Relations RelationResolver
	Searcher  Searcher
}

// Evaluate reports whether n satisfies e.
func (ev *Evaluator) Evaluate(e Expr, n Node) (bool, error) {
	switch e := e.(type) {
	case *And:
		for _, t := range e.Terms {
			ok, err := ev.Evaluate(t, n)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case *Or:
		for _, t := range e.Terms {
			ok, err := ev.Evaluate(t, n)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case *Not:
		ok, err := ev.Evaluate(e.Term, n)
		return !ok && err == nil, err
	case *Const:
		return e.Value, nil
	case *Compare:
		v, ok := n.Value(e.Property)
		if !ok {
			return false, nil
		}
		return compareOp(e.Op, v, e.Value)
	case *Range:
		v, ok := n.Value(e.Property)
		if !ok {
			return false, nil
		}
		return inRange(v, e.From, e.To, e.IncludeFrom, e.IncludeTo), nil
	case *In:
		v, ok := n.Value(e.Property)
		if !ok {
			return false, nil
		}
		for _, c := range e.Values {
			if equalValues(v, c) {
				return true, nil
			}
		}
		return false, nil
	case *HasValue:
		_, ok := n.Value(e.Property)
		return ok, nil
	case *Overlap:
		start, ok := n.Value(e.Start)
		if !ok {
			return false, nil
		}
		end, ok := n.Value(e.End)
		if !ok {
			return false, nil
		}
		lo, ok1 := compareValues(start, e.Hi)
		hi, ok2 := compareValues(end, e.Lo)
		return ok1 && ok2 && lo <= 0 && hi >= 0, nil
	case *Relation:
		if ev.Relations == nil {
			return false, fmt.Errorf("%w: relation %q", ErrNoResolver, e.Name)
		}
		s, err := ev.Relations.Related(e.Name, e.Target)
		if err != nil {
			return false, err
		}
		return s.Has(n.ID()), nil
	case *Search:
		if ev.Searcher == nil {
			return false, fmt.Errorf("%w: search", ErrNoResolver)
		}
		s, err := ev.Searcher.Search(e.Text)
		if err != nil {
			return false, err
		}
		return s.Has(n.ID()), nil
	default:
		return false, fmt.Errorf("query: cannot evaluate %T", e)
	}
}

func compareOp(op Operator, v, c any) (bool, error) {
	switch op {
	case OpEqual:
		return equalValues(v, c), nil
	case OpNotEqual:
		return !equalValues(v, c), nil
	case OpContains, OpPrefix:
		s, ok1 := v.(string)
		sub, ok2 := c.(string)
		if !ok1 || !ok2 {
			return false, nil
		}
		if op == OpContains {
			return strings.Contains(s, sub), nil
		}
		return strings.HasPrefix(s, sub), nil
	}

	q, ok := op.QueryType()
	if !ok {
		return false, fmt.Errorf("query: unknown operator %d", op)
	}
	cmp, ok := compareValues(v, c)
	return ok && q.Accepts(cmp), nil
}

func inRange(v, from, to any, includeFrom, includeTo bool) bool {
	lo, ok1 := compareValues(v, from)
	hi, ok2 := compareValues(v, to)
	if !ok1 || !ok2 {
		return false
	}
	return (lo > 0 || includeFrom && lo == 0) && (hi < 0 || includeTo && hi == 0)
}
