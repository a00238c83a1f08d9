package nodegraph

import (
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/query"
	"github.com/hupe1980/nodegraph/valueindex"
)

// Kinds of property values.
const (
	KindInt    = valueindex.KindInt
	KindFloat  = valueindex.KindFloat
	KindString = valueindex.KindString
	KindBool   = valueindex.KindBool
	KindUUID   = valueindex.KindUUID
)

// indexedProperty is the store's handle on the index of one property. Writes
// go through the buffer of the embedded query.Bound.
type indexedProperty interface {
	query.IndexedProperty

	add(id model.NodeID, v any) error
	remove(id model.NodeID, v any) error
	pending() bool
	size() int
	check() error
	save(w io.Writer, cp valueindex.Checkpoint) error
	load(r io.Reader, identity uuid.UUID) (valueindex.Checkpoint, error)
	reset()
	index() any
}

type typedProperty[T comparable] struct {
	*query.Bound[T]
	ix  *valueindex.Index[T]
	buf *valueindex.Buffer[T]
}

func newTypedProperty[T comparable](name string, vt valueindex.ValueType[T], clock *model.Clock) *typedProperty[T] {
	ix := valueindex.New(vt, clock)
	buf := valueindex.NewBuffer[T](ix)
	return &typedProperty[T]{Bound: query.Bind(name, ix, buf), ix: ix, buf: buf}
}

// newIndexedProperty is the index factory: it picks the value type for the
// declared kind.
func newIndexedProperty(def PropertyDef, clock *model.Clock) (indexedProperty, error) {
	switch def.Kind {
	case KindInt:
		return newTypedProperty(def.Name, valueindex.Int64, clock), nil
	case KindFloat:
		return newTypedProperty(def.Name, valueindex.Float64, clock), nil
	case KindString:
		return newTypedProperty(def.Name, valueindex.String, clock), nil
	case KindBool:
		return newTypedProperty(def.Name, valueindex.Bool, clock), nil
	case KindUUID:
		return newTypedProperty(def.Name, valueindex.UUID, clock), nil
	default:
		return nil, fmt.Errorf("%w: property %q has invalid kind %s", ErrInvalidArgument, def.Name, def.Kind)
	}
}

func (p *typedProperty[T]) typed(v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	return p.ix.Type().Coerce(v)
}

func (p *typedProperty[T]) add(id model.NodeID, v any) error {
	t, err := p.typed(v)
	if err != nil {
		return err
	}
	return p.buf.Add(id, t)
}

func (p *typedProperty[T]) remove(id model.NodeID, v any) error {
	t, err := p.typed(v)
	if err != nil {
		return err
	}
	return p.buf.Remove(id, t)
}

func (p *typedProperty[T]) pending() bool {
	_, _, ok := p.buf.Pending()
	return ok
}

func (p *typedProperty[T]) size() int    { return p.ix.Len() }
func (p *typedProperty[T]) check() error { return p.ix.Check() }
func (p *typedProperty[T]) reset()       { p.ix.Reset() }
func (p *typedProperty[T]) index() any   { return p.ix }

func (p *typedProperty[T]) save(w io.Writer, cp valueindex.Checkpoint) error {
	return p.ix.SaveState(w, cp)
}

func (p *typedProperty[T]) load(r io.Reader, identity uuid.UUID) (valueindex.Checkpoint, error) {
	return p.ix.ReadState(r, identity)
}

// coerceKind converts v to the Go type stored for kind.
func coerceKind(kind valueindex.Kind, v any) (any, error) {
	switch kind {
	case KindInt:
		return valueindex.Int64.Coerce(v)
	case KindFloat:
		return valueindex.Float64.Coerce(v)
	case KindString:
		return valueindex.String.Coerce(v)
	case KindBool:
		return valueindex.Bool.Coerce(v)
	case KindUUID:
		return valueindex.UUID.Coerce(v)
	default:
		return nil, fmt.Errorf("%w: invalid kind %s", ErrInvalidArgument, kind)
	}
}

// formatValue renders a coerced value in its canonical text form. Integers
// are kept as decimal strings so that codecs without 64-bit integers do not
// lose precision.
func formatValue(kind valueindex.Kind, v any) string {
	switch kind {
	case KindInt:
		return strconv.FormatInt(v.(int64), 10)
	case KindFloat:
		return strconv.FormatFloat(v.(float64), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.(bool))
	case KindUUID:
		return v.(uuid.UUID).String()
	default:
		return v.(string)
	}
}

func parseValue(kind valueindex.Kind, s string) (any, error) {
	switch kind {
	case KindInt:
		return strconv.ParseInt(s, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(s, 64)
	case KindString:
		return s, nil
	case KindBool:
		return strconv.ParseBool(s)
	case KindUUID:
		return uuid.Parse(s)
	default:
		return nil, fmt.Errorf("%w: invalid kind %s", ErrInvalidArgument, kind)
	}
}
