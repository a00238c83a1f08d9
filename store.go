package nodegraph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/hupe1980/nodegraph/internal/fs"
	"github.com/hupe1980/nodegraph/internal/resource"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/query"
	"github.com/hupe1980/nodegraph/register"
)

// NodeID identifies a node within a store.
type NodeID = model.NodeID

// Node is a typed record with properties and named links to other nodes.
type Node struct {
	ID    NodeID
	Type  string
	Props map[string]any
	Links map[string][]NodeID
}

func (n *Node) clone() Node {
	c := Node{ID: n.ID, Type: n.Type, Props: maps.Clone(n.Props)}
	if len(n.Links) > 0 {
		c.Links = make(map[string][]NodeID, len(n.Links))
		for name, targets := range n.Links {
			c.Links[name] = slices.Clone(targets)
		}
	}
	return c
}

// Store is an embedded node store with indexed, cached queries.
//
// Mutations are serialized. Queries run concurrently with each other and see
// every mutation that completed before they started.
type Store struct {
	mu sync.RWMutex

	opts     options
	clock    *model.Clock
	rc       *resource.Controller
	reg      *register.Register
	fsys     fs.FileSystem
	logger   *Logger
	metrics  MetricsCollector
	identity uuid.UUID

	relations query.RelationResolver
	searcher  query.Searcher
	evaluator *query.Evaluator

	types *xsync.MapOf[string, *nodeType]
	nodes *xsync.MapOf[NodeID, *Node]

	lastID NodeID
	dirty  bool // some index buffer holds a pending removal
	closed bool
}

// New creates an empty store.
func New(optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)
	if !o.compression.Valid() {
		return nil, fmt.Errorf("%w: compression %s", ErrInvalidArgument, o.compression)
	}

	workers := o.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:     o.memoryLimit,
		MaxBackgroundWorkers: int64(workers),
		IOLimitBytesPerSec:   o.ioLimit,
	})

	reg, err := register.New(o.clock, register.Config{
		SetCacheBytes:    o.setCacheBytes,
		AggregateEntries: o.aggregateEntries,
		Resource:         rc,
		Logger:           o.logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Store{
		opts:     o,
		clock:    o.clock,
		rc:       rc,
		reg:      reg,
		fsys:     fs.Default,
		logger:   o.logger,
		metrics:  o.metricsCollector,
		identity: o.identity,
		types:    xsync.NewMapOf[string, *nodeType](),
		nodes:    xsync.NewMapOf[NodeID, *Node](),
	}

	s.relations = o.relations
	if s.relations == nil {
		s.relations = &linkResolver{s: s}
	}
	s.searcher = o.searcher
	if s.searcher == nil {
		s.searcher = &textSearcher{s: s}
	}
	s.evaluator = &query.Evaluator{Relations: s.relations, Searcher: s.searcher}

	return s, nil
}

// Identity returns the durability identity of the store.
func (s *Store) Identity() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// DefineType declares a node type and creates the indexes of its indexed
// properties. Types cannot be redefined.
func (s *Store) DefineType(name string, props ...PropertyDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.defineTypeLocked(name, props)
}

func (s *Store) defineTypeLocked(name string, props []PropertyDef) error {
	if _, exists := s.types.Load(name); exists {
		return fmt.Errorf("%w: type %q already defined", ErrInvalidArgument, name)
	}
	t, err := newNodeType(name, props, s)
	if err != nil {
		return err
	}
	s.types.Store(name, t)
	s.logger.Debug("type defined", "type", name, "properties", len(props), "indexes", len(t.props))
	return nil
}

// Types returns the names of the defined types.
func (s *Store) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	s.types.Range(func(name string, _ *nodeType) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

func (s *Store) nodeType(name string) (*nodeType, error) {
	t, ok := s.types.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// Insert adds a node of type typ and returns its id. Every property must be
// declared by the type. Links may point at nodes that do not exist.
func (s *Store) Insert(ctx context.Context, typ string, props map[string]any, links map[string][]NodeID) (id NodeID, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordMutation(MutationInsert, time.Since(start), err)
		s.logger.LogMutation(ctx, MutationInsert, id, err)
	}()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	t, err := s.nodeType(typ)
	if err != nil {
		return 0, err
	}
	values, err := t.normalize(props)
	if err != nil {
		return 0, err
	}
	if s.lastID == ^NodeID(0) {
		return 0, fmt.Errorf("%w: node ids exhausted", ErrInvalidArgument)
	}

	id = s.lastID + 1
	if err := s.indexLocked(t, id, nil, values); err != nil {
		return 0, translateError(err)
	}

	s.lastID = id
	t.join(id, s.clock)
	s.nodes.Store(id, &Node{ID: id, Type: typ, Props: values, Links: cloneLinks(links)})
	return id, nil
}

// Update changes properties of node id. Properties absent from props keep
// their value, a nil value removes the property.
func (s *Store) Update(ctx context.Context, id NodeID, props map[string]any) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordMutation(MutationUpdate, time.Since(start), err)
		s.logger.LogMutation(ctx, MutationUpdate, id, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	n, t, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	values, err := t.normalize(props)
	if err != nil {
		return err
	}

	next := maps.Clone(n.Props)
	if next == nil {
		next = make(map[string]any, len(values))
	}
	for name, v := range props {
		if v == nil {
			delete(next, name)
		} else {
			next[name] = values[name]
		}
	}

	if err := s.indexLocked(t, id, n.Props, next); err != nil {
		return translateError(err)
	}
	s.nodes.Store(id, &Node{ID: id, Type: n.Type, Props: next, Links: n.Links})
	return nil
}

// SetLinks replaces the targets of the link name of node id. An empty target
// list removes the link.
func (s *Store) SetLinks(ctx context.Context, id NodeID, name string, targets ...NodeID) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordMutation(MutationUpdate, time.Since(start), err)
		s.logger.LogMutation(ctx, MutationUpdate, id, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty link name", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	n, _, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	links := cloneLinks(n.Links)
	if len(targets) == 0 {
		delete(links, name)
	} else {
		if links == nil {
			links = make(map[string][]NodeID, 1)
		}
		links[name] = slices.Clone(targets)
	}
	s.nodes.Store(id, &Node{ID: id, Type: n.Type, Props: n.Props, Links: links})
	return nil
}

// Delete removes node id.
func (s *Store) Delete(ctx context.Context, id NodeID) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordMutation(MutationDelete, time.Since(start), err)
		s.logger.LogMutation(ctx, MutationDelete, id, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	n, t, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	if err := s.indexLocked(t, id, n.Props, nil); err != nil {
		return translateError(err)
	}
	t.leave(id, s.clock)
	s.nodes.Delete(id)
	return nil
}

// Get returns a copy of node id.
func (s *Store) Get(id NodeID) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes.Load(id)
	if !ok {
		return Node{}, fmt.Errorf("%w: node %d", ErrNotFound, id)
	}
	return n.clone(), nil
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes.Size()
}

func (s *Store) lookupLocked(id NodeID) (*Node, *nodeType, error) {
	n, ok := s.nodes.Load(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: node %d", ErrNotFound, id)
	}
	t, err := s.nodeType(n.Type)
	if err != nil {
		return nil, nil, err
	}
	return n, t, nil
}

// indexLocked moves the indexed values of id from old to next. Each change is
// a removal of the old value followed by an addition of the new one; the
// buffers cancel pairs that leave a value unchanged.
func (s *Store) indexLocked(t *nodeType, id NodeID, old, next map[string]any) error {
	for name, p := range t.props {
		ov, hadOld := old[name]
		nv, hasNext := next[name]

		if hadOld {
			if err := p.remove(id, ov); err != nil {
				return err
			}
			s.dirty = true
		}
		if hasNext {
			if err := p.add(id, nv); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushLocked applies the pending removals of every buffer.
func (s *Store) flushLocked() error {
	if !s.dirty {
		return nil
	}
	var errs []error
	s.types.Range(func(_ string, t *nodeType) bool {
		for _, p := range t.props {
			if !p.pending() {
				continue
			}
			if err := p.Sync(); err != nil {
				errs = append(errs, err)
			}
		}
		return true
	})
	if err := errors.Join(errs...); err != nil {
		return translateError(err)
	}
	s.dirty = false
	return nil
}

// rlock takes the read lock with every buffer flushed, so that queries never
// write to an index.
func (s *Store) rlock() error {
	for {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			return ErrClosed
		}
		if !s.dirty {
			return nil
		}
		s.mu.RUnlock()

		s.mu.Lock()
		err := s.flushLocked()
		s.mu.Unlock()
		if err != nil {
			return err
		}
	}
}

// Check audits every index against itself and against the node table.
func (s *Store) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	return s.checkLocked()
}

func (s *Store) checkLocked() error {
	var err error
	s.types.Range(func(_ string, t *nodeType) bool {
		err = checkType(t, s.nodes)
		return err == nil
	})
	return err
}

func checkType(t *nodeType, nodes *xsync.MapOf[NodeID, *Node]) error {
	for name, p := range t.props {
		if err := p.check(); err != nil {
			return translateError(fmt.Errorf("type %q property %q: %w", t.name, name, err))
		}

		count := 0
		for _, id := range t.members.ToArray() {
			n, ok := nodes.Load(id)
			if !ok {
				return fmt.Errorf("%w: type %q: member %d has no node", ErrIntegrity, t.name, id)
			}
			want, has := n.Props[name]
			got, indexed := p.Value(id)
			if has != indexed || (has && got != want) {
				return fmt.Errorf("%w: type %q property %q: node %d indexed as %v, stored as %v",
					ErrIntegrity, t.name, name, id, got, want)
			}
			if has {
				count++
			}
		}
		if count != p.size() {
			return fmt.Errorf("%w: type %q property %q: %d indexed values for %d nodes",
				ErrIntegrity, t.name, name, p.size(), count)
		}
	}
	return nil
}

// Stats describes the content of a store.
type Stats struct {
	Nodes       int
	Types       int
	Indexes     int
	Cache       register.Stats
	MemoryUsage int64
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Nodes:       s.nodes.Size(),
		Cache:       s.reg.Stats(),
		MemoryUsage: s.rc.MemoryUsage(),
	}
	s.types.Range(func(_ string, t *nodeType) bool {
		st.Types++
		st.Indexes += len(t.props)
		return true
	})
	return st
}

// ReleaseMemory drops the least recently used half of the query caches.
func (s *Store) ReleaseMemory() {
	s.reg.Halve()
}

func cloneLinks(links map[string][]NodeID) map[string][]NodeID {
	if len(links) == 0 {
		return nil
	}
	out := make(map[string][]NodeID, len(links))
	for name, targets := range links {
		if len(targets) > 0 {
			out[name] = slices.Clone(targets)
		}
	}
	return out
}
