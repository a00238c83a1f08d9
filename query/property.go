package query

import (
	"fmt"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/register"
	"github.com/hupe1980/nodegraph/valueindex"
)

// Leaf computes the ids of candidates satisfying one bound predicate.
type Leaf func(r *register.Register, candidates *idset.Set) (*idset.Set, error)

// IndexedProperty is an indexed property with its value type erased. Query
// constants are coerced to the index type when a predicate is bound.
type IndexedProperty interface {
	// Name returns the property name.
	Name() string
	// Kind returns the value kind of the index.
	Kind() valueindex.Kind
	// Supports reports whether the index answers q.
	Supports(q valueindex.QueryType) bool
	// Sync flushes buffered writes so that reads observe every mutation.
	Sync() error

	Compare(q valueindex.QueryType, v any) (Leaf, error)
	Range(from, to any, includeFrom, includeTo bool) (Leaf, error)
	In(values []any) (Leaf, error)
	HasValue() Leaf
	// Overlap binds an interval predicate with this property as the start and
	// end as the end of the interval. Both must share the value type.
	Overlap(end IndexedProperty, lo, hi any) (Leaf, error)

	// OrderBy orders s by the property value.
	OrderBy(r *register.Register, s *idset.Set, descending bool) (*idset.Set, error)
	// CountEqual counts the ids of candidates (all ids when nil) holding v.
	CountEqual(r *register.Register, candidates *idset.Set, v any) (int, error)
	// Value returns the value indexed for id.
	Value(id uint32) (any, bool)
}

// Bound is the IndexedProperty of a typed index and the write buffer in front
// of it.
type Bound[T comparable] struct {
	name string
	ix   *valueindex.Index[T]
	buf  *valueindex.Buffer[T]
}

// Bind erases the type of ix. buf may be nil when writes are not buffered.
func Bind[T comparable](name string, ix *valueindex.Index[T], buf *valueindex.Buffer[T]) *Bound[T] {
	return &Bound[T]{name: name, ix: ix, buf: buf}
}

// Index returns the bound index.
func (b *Bound[T]) Index() *valueindex.Index[T] { return b.ix }

func (b *Bound[T]) Name() string          { return b.name }
func (b *Bound[T]) Kind() valueindex.Kind { return b.ix.Type().Kind }

func (b *Bound[T]) Supports(q valueindex.QueryType) bool {
	return b.ix.Supports(q)
}

func (b *Bound[T]) Sync() error {
	if b.buf == nil {
		return nil
	}
	return b.buf.Dequeue()
}

func (b *Bound[T]) coerce(v any) (T, error) {
	t, err := b.ix.Type().Coerce(v)
	if err != nil {
		return t, fmt.Errorf("property %q: %w", b.name, err)
	}
	return t, nil
}

func (b *Bound[T]) Compare(q valueindex.QueryType, v any) (Leaf, error) {
	if !b.ix.Supports(q) {
		return nil, &valueindex.UnsupportedQueryError{Query: q, Type: b.Kind().String()}
	}
	t, err := b.coerce(v)
	if err != nil {
		return nil, err
	}
	return func(r *register.Register, candidates *idset.Set) (*idset.Set, error) {
		if err := b.Sync(); err != nil {
			return nil, err
		}
		return register.Where(r, b.ix, candidates, q, t)
	}, nil
}

func (b *Bound[T]) Range(from, to any, includeFrom, includeTo bool) (Leaf, error) {
	if !b.ix.Type().Ordered {
		return nil, &valueindex.UnsupportedQueryError{Query: valueindex.QueryGreaterOrEqual, Type: b.Kind().String()}
	}
	lo, err := b.coerce(from)
	if err != nil {
		return nil, err
	}
	hi, err := b.coerce(to)
	if err != nil {
		return nil, err
	}
	return func(r *register.Register, candidates *idset.Set) (*idset.Set, error) {
		if err := b.Sync(); err != nil {
			return nil, err
		}
		return register.WhereInRange(r, b.ix, candidates, lo, hi, includeFrom, includeTo)
	}, nil
}

func (b *Bound[T]) In(values []any) (Leaf, error) {
	typed := make([]T, len(values))
	for i, v := range values {
		t, err := b.coerce(v)
		if err != nil {
			return nil, err
		}
		typed[i] = t
	}
	return func(r *register.Register, candidates *idset.Set) (*idset.Set, error) {
		if err := b.Sync(); err != nil {
			return nil, err
		}
		return register.WhereIn(r, b.ix, candidates, typed), nil
	}, nil
}

func (b *Bound[T]) HasValue() Leaf {
	return func(r *register.Register, candidates *idset.Set) (*idset.Set, error) {
		if err := b.Sync(); err != nil {
			return nil, err
		}
		return register.WhereHasValue(r, b.ix, candidates), nil
	}
}

func (b *Bound[T]) Overlap(end IndexedProperty, lo, hi any) (Leaf, error) {
	other, ok := end.(*Bound[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q and %q have different types", valueindex.ErrTypeMismatch, b.name, end.Name())
	}
	if !b.ix.Type().Ordered {
		return nil, &valueindex.UnsupportedQueryError{Query: valueindex.QueryLessOrEqual, Type: b.Kind().String()}
	}
	from, err := b.coerce(lo)
	if err != nil {
		return nil, err
	}
	to, err := b.coerce(hi)
	if err != nil {
		return nil, err
	}
	return func(r *register.Register, candidates *idset.Set) (*idset.Set, error) {
		if err := b.Sync(); err != nil {
			return nil, err
		}
		if err := other.Sync(); err != nil {
			return nil, err
		}
		return register.WhereRangeOverlapsRange(r, b.ix, other.ix, candidates, from, to)
	}, nil
}

func (b *Bound[T]) OrderBy(r *register.Register, s *idset.Set, descending bool) (*idset.Set, error) {
	if err := b.Sync(); err != nil {
		return nil, err
	}
	return register.OrderBy(r, b.ix, s, descending)
}

func (b *Bound[T]) CountEqual(r *register.Register, candidates *idset.Set, v any) (int, error) {
	t, err := b.coerce(v)
	if err != nil {
		return 0, err
	}
	if err := b.Sync(); err != nil {
		return 0, err
	}
	return register.CountEqual(r, b.ix, candidates, t), nil
}

func (b *Bound[T]) Value(id uint32) (any, bool) {
	v, ok := b.ix.ValueOf(id)
	if !ok {
		return nil, false
	}
	return v, true
}

// Schema resolves the indexed properties of the node type being queried.
type Schema interface {
	// Property returns the indexed property name, or false if the property
	// does not exist or carries no index.
	Property(name string) (IndexedProperty, bool)
}

// MapSchema is a Schema backed by a map.
type MapSchema map[string]IndexedProperty

// Property implements Schema.
func (m MapSchema) Property(name string) (IndexedProperty, bool) {
	p, ok := m[name]
	return p, ok
}
