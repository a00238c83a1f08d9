package nodegraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/internal/conv"
)

// linkResolver answers relation predicates by scanning the links of every
// node. Its results are not cacheable because links carry no version stamp.
type linkResolver struct {
	s *Store
}

func (r *linkResolver) Related(name string, target any) (*idset.Set, error) {
	to, ok := toNodeID(target)
	if !ok {
		return nil, fmt.Errorf("%w: relation %q: target %v is not a node id", ErrInvalidArgument, name, target)
	}

	var ids []uint32
	r.s.nodes.Range(func(id NodeID, n *Node) bool {
		if slices.Contains(n.Links[name], to) {
			ids = append(ids, id)
		}
		return true
	})
	slices.Sort(ids)
	return idset.NewUncacheable(ids), nil
}

// textSearcher answers search predicates with a case-insensitive substring
// match over the string properties of every node.
type textSearcher struct {
	s *Store
}

func (t *textSearcher) Search(text string) (*idset.Set, error) {
	needle := strings.ToLower(text)

	var ids []uint32
	t.s.nodes.Range(func(id NodeID, n *Node) bool {
		for _, v := range n.Props {
			if str, ok := v.(string); ok && strings.Contains(strings.ToLower(str), needle) {
				ids = append(ids, id)
				break
			}
		}
		return true
	})
	slices.Sort(ids)
	return idset.NewUncacheable(ids), nil
}

func toNodeID(v any) (NodeID, bool) {
	var (
		id  NodeID
		err error
	)
	switch x := v.(type) {
	case NodeID:
		return x, true
	case int:
		id, err = conv.IntToUint32(x)
	case int64:
		id, err = conv.Int64ToUint32(x)
	case uint64:
		id, err = conv.Uint64ToUint32(x)
	case Node:
		return x.ID, true
	case *Node:
		return x.ID, true
	default:
		return 0, false
	}
	return id, err == nil
}

// nodeView adapts a node to the generic evaluator.
type nodeView struct {
	n *Node
}

func (v nodeView) ID() uint32 { return v.n.ID }

func (v nodeView) Value(name string) (any, bool) {
	val, ok := v.n.Props[name]
	return val, ok
}
