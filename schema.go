package nodegraph

import (
	"fmt"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/query"
	"github.com/hupe1980/nodegraph/valueindex"
)

// PropertyDef declares a property of a node type.
type PropertyDef struct {
	Name string          `json:"name"`
	Kind valueindex.Kind `json:"kind"`
	// Indexed properties get a sorted value index and are answered natively.
	// Other properties are evaluated node by node.
	Indexed bool `json:"indexed"`
}

// Indexed declares an indexed property.
func Indexed(name string, kind valueindex.Kind) PropertyDef {
	return PropertyDef{Name: name, Kind: kind, Indexed: true}
}

// Plain declares a property without an index.
func Plain(name string, kind valueindex.Kind) PropertyDef {
	return PropertyDef{Name: name, Kind: kind}
}

// nodeType holds the schema, indexes and members of one node type.
// Fields other than cand are guarded by the store lock.
type nodeType struct {
	name     string
	defs     []PropertyDef
	byName   map[string]PropertyDef
	props    map[string]indexedProperty
	compiler *query.Compiler

	members *roaring.Bitmap
	state   model.StateID
	cand    atomic.Pointer[memberSet]
}

type memberSet struct {
	state model.StateID
	set   *idset.Set
}

func newNodeType(name string, defs []PropertyDef, s *Store) (*nodeType, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty type name", ErrInvalidArgument)
	}

	t := &nodeType{
		name:    name,
		defs:    append([]PropertyDef(nil), defs...),
		byName:  make(map[string]PropertyDef, len(defs)),
		props:   make(map[string]indexedProperty),
		members: roaring.New(),
		state:   model.Empty,
	}
	schema := make(query.MapSchema)

	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: type %q: empty property name", ErrInvalidArgument, name)
		}
		if _, dup := t.byName[def.Name]; dup {
			return nil, fmt.Errorf("%w: type %q: duplicate property %q", ErrInvalidArgument, name, def.Name)
		}
		if def.Kind < KindInt || def.Kind > KindUUID {
			return nil, fmt.Errorf("%w: type %q: property %q has invalid kind", ErrInvalidArgument, name, def.Name)
		}
		t.byName[def.Name] = def

		if !def.Indexed {
			continue
		}
		p, err := newIndexedProperty(def, s.clock)
		if err != nil {
			return nil, err
		}
		t.props[def.Name] = p
		schema[def.Name] = p
	}

	t.compiler = query.NewCompiler(schema, s.reg,
		query.WithRelations(s.relations),
		query.WithSearcher(s.searcher),
	)
	return t, nil
}

// candidates returns the ids of all nodes of the type. The set is rebuilt
// only after the membership changed.
func (t *nodeType) candidates() *idset.Set {
	if c := t.cand.Load(); c != nil && c.state == t.state {
		return c.set
	}
	c := &memberSet{state: t.state, set: idset.FromBitmap(t.state, t.members.Clone())}
	t.cand.Store(c)
	return c.set
}

// join adds id to the members.
func (t *nodeType) join(id model.NodeID, clock *model.Clock) {
	t.members.Add(id)
	t.state = clock.Next()
}

// leave removes id from the members.
func (t *nodeType) leave(id model.NodeID, clock *model.Clock) {
	t.members.Remove(id)
	t.state = clock.Next()
}

// normalize coerces props to their declared kinds. Nil values are dropped.
func (t *nodeType) normalize(props map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for name, v := range props {
		def, ok := t.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: type %q has no property %q", ErrInvalidArgument, t.name, name)
		}
		if v == nil {
			continue
		}
		c, err := coerceKind(def.Kind, v)
		if err != nil {
			return nil, &ErrTypeMismatch{Property: name, Kind: def.Kind, cause: err}
		}
		out[name] = c
	}
	return out, nil
}
