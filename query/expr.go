package query

import (
	"fmt"
	"strings"
)

// Expr is a node of a boolean expression tree.
type Expr interface {
	fmt.Stringer
	expr()
}

// And is true when every term is true. An empty And is true.
type And struct {
	Terms []Expr
}

// Or is true when any term is true. An empty Or is false.
type Or struct {
	Terms []Expr
}

// Not negates Term.
type Not struct {
	Term Expr
}

// Const is a boolean constant.
type Const struct {
	Value bool
}

// Compare compares the value of Property against Value.
type Compare struct {
	Property string
	Op       Operator
	Value    any
}

// Range tests whether the value of Property lies between From and To.
type Range struct {
	Property    string
	From, To    any
	IncludeFrom bool
	IncludeTo   bool
}

// In tests whether the value of Property equals any of Values.
type In struct {
	Property string
	Values   []any
}

// HasValue tests whether Property is set.
type HasValue struct {
	Property string
}

// Overlap tests whether the interval [Start, End] held by two properties of a
// node intersects the closed interval [Lo, Hi].
type Overlap struct {
	Start, End string
	Lo, Hi     any
}

// Relation tests whether a node has a relation Name pointing at Target.
type Relation struct {
	Name   string
	Target any
}

// Search is a text search predicate. Its results are never cached.
type Search struct {
	Text string
}

func (*And) expr()      {}
func (*Or) expr()       {}
func (*Not) expr()      {}
func (*Const) expr()    {}
func (*Compare) expr()  {}
func (*Range) expr()    {}
func (*In) expr()       {}
func (*HasValue) expr() {}
func (*Overlap) expr()  {}
func (*Relation) expr() {}
func (*Search) expr()   {}

func join(terms []Expr, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (e *And) String() string { return join(e.Terms, " AND ") }
func (e *Or) String() string  { return join(e.Terms, " OR ") }
func (e *Not) String() string { return "NOT " + e.Term.String() }
func (e *Const) String() string {
	if e.Value {
		return "TRUE"
	}
	return "FALSE"
}
func (e *Compare) String() string { return fmt.Sprintf("%s %s %v", e.Property, e.Op, e.Value) }
func (e *Range) String() string {
	lo, hi := "(", ")"
	if e.IncludeFrom {
		lo = "["
	}
	if e.IncludeTo {
		hi = "]"
	}
	return fmt.Sprintf("%s IN %s%v, %v%s", e.Property, lo, e.From, e.To, hi)
}
func (e *In) String() string       { return fmt.Sprintf("%s IN %v", e.Property, e.Values) }
func (e *HasValue) String() string { return fmt.Sprintf("HAS %s", e.Property) }
func (e *Overlap) String() string {
	return fmt.Sprintf("[%s, %s] OVERLAPS [%v, %v]", e.Start, e.End, e.Lo, e.Hi)
}
func (e *Relation) String() string { return fmt.Sprintf("%s -> %v", e.Name, e.Target) }
func (e *Search) String() string   { return fmt.Sprintf("SEARCH %q", e.Text) }

// AndOf builds a conjunction, flattening nested conjunctions.
func AndOf(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if a, ok := t.(*And); ok {
			flat = append(flat, a.Terms...)
			continue
		}
		flat = append(flat, t)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &And{Terms: flat}
}

// OrOf builds a disjunction.
func OrOf(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return &Or{Terms: terms}
}

// Eq is shorthand for a Compare with OpEqual.
func Eq(property string, v any) *Compare {
	return &Compare{Property: property, Op: OpEqual, Value: v}
}

// Cmp is shorthand for a Compare.
func Cmp(property string, op Operator, v any) *Compare {
	return &Compare{Property: property, Op: op, Value: v}
}
