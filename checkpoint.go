package nodegraph

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/nodegraph/codec"
	"github.com/hupe1980/nodegraph/internal/checkpoint"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/valueindex"
)

const (
	sectionSchema = "schema"
	sectionNodes  = "nodes"
)

func indexSection(typ, prop string) string {
	return "index/" + typ + "/" + prop
}

type schemaRecord struct {
	LastID NodeID       `json:"last_id"`
	Types  []typeRecord `json:"types"`
}

type typeRecord struct {
	Name  string        `json:"name"`
	Props []PropertyDef `json:"props"`
}

// nodeRecord holds property values in their canonical text form.
type nodeRecord struct {
	ID    NodeID              `json:"id"`
	Type  string              `json:"type"`
	Props map[string]string   `json:"props,omitempty"`
	Links map[string][]NodeID `json:"links,omitempty"`
}

type sectionJob struct {
	name   string
	encode func() ([]byte, error)
}

// Checkpoint writes the schema, the nodes and the state of every index to dir.
// The file is replaced atomically; a failed checkpoint leaves the previous one
// intact. Mutations wait until the checkpoint is written.
func (s *Store) Checkpoint(ctx context.Context, dir string) (err error) {
	start := time.Now()
	var written int64
	nodes, sections := 0, 0
	defer func() {
		s.metrics.RecordCheckpoint(written, time.Since(start), err)
		s.logger.LogCheckpoint(ctx, dir, nodes, sections, err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.flushLocked(); err != nil {
		return err
	}

	h := checkpoint.Header{
		Compression: s.opts.compression,
		Codec:       s.opts.codec.Name(),
		Identity:    s.identity,
		Timestamp:   int64(s.clock.Current()),
	}
	cp := valueindex.Checkpoint{Timestamp: h.Timestamp, Identity: h.Identity}

	types := s.sortedTypesLocked()
	jobs := []sectionJob{
		{name: sectionSchema, encode: func() ([]byte, error) { return s.encodeSchema(types) }},
		{name: sectionNodes, encode: s.encodeNodes},
	}
	for _, t := range types {
		for _, name := range slices.Sorted(maps.Keys(t.props)) {
			p := t.props[name]
			jobs = append(jobs, sectionJob{
				name: indexSection(t.name, name),
				encode: func() ([]byte, error) {
					var buf bytes.Buffer
					if err := p.save(&buf, cp); err != nil {
						return nil, err
					}
					return buf.Bytes(), nil
				},
			})
		}
	}

	out := make([]checkpoint.Section, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			if err := s.rc.AcquireBackground(gctx); err != nil {
				return err
			}
			defer s.rc.ReleaseBackground()

			data, err := job.encode()
			if err != nil {
				return fmt.Errorf("encode %s: %w", job.name, err)
			}
			out[i], err = checkpoint.EncodeSection(job.name, data, h.Compression)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := checkpoint.Save(ctx, s.fsys, s.rc, dir, h, out); err != nil {
		return translateError(err)
	}

	for _, sec := range out {
		written += int64(len(sec.Data))
	}
	nodes, sections = s.nodes.Size(), len(out)
	return nil
}

func (s *Store) sortedTypesLocked() []*nodeType {
	var types []*nodeType
	s.types.Range(func(_ string, t *nodeType) bool {
		types = append(types, t)
		return true
	})
	slices.SortFunc(types, func(a, b *nodeType) int { return cmp.Compare(a.name, b.name) })
	return types
}

func (s *Store) encodeSchema(types []*nodeType) ([]byte, error) {
	rec := schemaRecord{LastID: s.lastID, Types: make([]typeRecord, len(types))}
	for i, t := range types {
		rec.Types[i] = typeRecord{Name: t.name, Props: t.defs}
	}
	return s.opts.codec.Marshal(rec)
}

func (s *Store) encodeNodes() ([]byte, error) {
	records := make([]nodeRecord, 0, s.nodes.Size())
	var err error
	s.nodes.Range(func(id NodeID, n *Node) bool {
		t, ok := s.types.Load(n.Type)
		if !ok {
			err = fmt.Errorf("%w: node %d has unknown type %q", ErrIntegrity, id, n.Type)
			return false
		}
		rec := nodeRecord{ID: id, Type: n.Type, Links: n.Links}
		if len(n.Props) > 0 {
			rec.Props = make(map[string]string, len(n.Props))
			for name, v := range n.Props {
				rec.Props[name] = formatValue(t.byName[name].Kind, v)
			}
		}
		records = append(records, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(records, func(a, b nodeRecord) int { return cmp.Compare(a.ID, b.ID) })
	return s.opts.codec.Marshal(records)
}

// Restore replaces the content of the store with the checkpoint in dir.
//
// With WithIdentity the checkpoint must carry the same identity; otherwise the
// store adopts the identity of the checkpoint. Index state missing from the
// checkpoint is rebuilt from the nodes. On error the store is unchanged.
func (s *Store) Restore(ctx context.Context, dir string) (err error) {
	nodeCount := 0
	defer func() {
		s.logger.LogRestore(ctx, dir, nodeCount, err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	h, secs, err := checkpoint.Load(ctx, s.fsys, s.rc, dir)
	if err != nil {
		return translateError(err)
	}
	if s.opts.fixedIdentity && h.Identity != s.identity {
		return fmt.Errorf("%w: checkpoint %s, store %s", ErrIdentityMismatch, h.Identity, s.identity)
	}
	c, ok := codec.ByName(h.Codec)
	if !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrCorrupt, h.Codec)
	}

	byName := make(map[string]checkpoint.Section, len(secs))
	for _, sec := range secs {
		byName[sec.Name] = sec
	}
	decode := func(name string, v any) error {
		sec, ok := byName[name]
		if !ok {
			return fmt.Errorf("%w: missing section %q", ErrCorrupt, name)
		}
		data, err := sec.Decode(h.Compression)
		if err != nil {
			return translateError(err)
		}
		if err := c.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%w: section %q: %w", ErrCorrupt, name, err)
		}
		return nil
	}

	var schema schemaRecord
	if err := decode(sectionSchema, &schema); err != nil {
		return err
	}
	var records []nodeRecord
	if err := decode(sectionNodes, &records); err != nil {
		return err
	}

	types := make(map[string]*nodeType, len(schema.Types))
	for _, tr := range schema.Types {
		if _, dup := types[tr.Name]; dup {
			return fmt.Errorf("%w: duplicate type %q", ErrCorrupt, tr.Name)
		}
		t, err := newNodeType(tr.Name, tr.Props, s)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		types[tr.Name] = t
	}

	nodes := xsync.NewMapOf[NodeID, *Node](xsync.WithPresize(len(records)))
	for _, rec := range records {
		n, err := restoreNode(types, rec)
		if err != nil {
			return err
		}
		if rec.ID == 0 || rec.ID > schema.LastID {
			return fmt.Errorf("%w: node id %d out of range", ErrCorrupt, rec.ID)
		}
		if _, dup := nodes.LoadOrStore(rec.ID, n); dup {
			return fmt.Errorf("%w: duplicate node %d", ErrCorrupt, rec.ID)
		}
		types[rec.Type].members.Add(rec.ID)
	}

	if err := s.restoreIndexes(ctx, h, byName, types, nodes); err != nil {
		return err
	}

	for _, t := range types {
		t.state = s.clock.Next()
		if err := checkType(t, nodes); err != nil {
			return err
		}
	}

	s.swapLocked(types, nodes, schema.LastID)
	s.clock.Restore(model.StateID(h.Timestamp))
	if !s.opts.fixedIdentity {
		s.identity = h.Identity
	}
	nodeCount = len(records)
	return nil
}

func restoreNode(types map[string]*nodeType, rec nodeRecord) (*Node, error) {
	t, ok := types[rec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: node %d has unknown type %q", ErrCorrupt, rec.ID, rec.Type)
	}
	props := make(map[string]any, len(rec.Props))
	for name, raw := range rec.Props {
		def, ok := t.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: node %d: unknown property %q", ErrCorrupt, rec.ID, name)
		}
		v, err := parseValue(def.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d property %q: %w", ErrCorrupt, rec.ID, name, err)
		}
		props[name] = v
	}
	return &Node{ID: rec.ID, Type: rec.Type, Props: props, Links: cloneLinks(rec.Links)}, nil
}

// restoreIndexes loads every index from its section in parallel. Indexes
// without a section are rebuilt from the nodes.
func (s *Store) restoreIndexes(ctx context.Context, h checkpoint.Header, secs map[string]checkpoint.Section,
	types map[string]*nodeType, nodes *xsync.MapOf[NodeID, *Node],
) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range types {
		for name, p := range t.props {
			sec, ok := secs[indexSection(t.name, name)]
			g.Go(func() error {
				if err := s.rc.AcquireBackground(gctx); err != nil {
					return err
				}
				defer s.rc.ReleaseBackground()

				if !ok {
					s.logger.Warn("index state missing, rebuilding", "type", t.name, "property", name)
					return rebuildIndex(p, name, t.members, nodes)
				}
				data, err := sec.Decode(h.Compression)
				if err != nil {
					return translateError(err)
				}
				cp, err := p.load(bytes.NewReader(data), h.Identity)
				if err != nil {
					return translateError(fmt.Errorf("section %q: %w", sec.Name, err))
				}
				if cp.Timestamp != h.Timestamp {
					return fmt.Errorf("%w: section %q taken at %d, checkpoint at %d",
						ErrCorrupt, sec.Name, cp.Timestamp, h.Timestamp)
				}
				return nil
			})
		}
	}
	return g.Wait()
}

func rebuildIndex(p indexedProperty, name string, members *roaring.Bitmap, nodes *xsync.MapOf[NodeID, *Node]) error {
	p.reset()
	for _, id := range members.ToArray() {
		n, ok := nodes.Load(id)
		if !ok {
			continue
		}
		if v, ok := n.Props[name]; ok {
			if err := p.add(id, v); err != nil {
				return translateError(err)
			}
		}
	}
	return nil
}

// swapLocked installs restored state and drops everything cached for the
// previous one.
func (s *Store) swapLocked(types map[string]*nodeType, nodes *xsync.MapOf[NodeID, *Node], lastID NodeID) {
	s.types.Range(func(_ string, t *nodeType) bool {
		for _, p := range t.props {
			s.reg.ForgetPairs(p.index())
		}
		return true
	})

	s.types.Clear()
	for name, t := range types {
		s.types.Store(name, t)
	}
	s.nodes.Clear()
	nodes.Range(func(id NodeID, n *Node) bool {
		s.nodes.Store(id, n)
		return true
	})

	s.lastID = lastID
	s.dirty = false
	s.reg.Clear()
}
