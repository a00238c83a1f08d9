package register

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/hupe1980/nodegraph/idset"
	"github.com/hupe1980/nodegraph/internal/cache"
	"github.com/hupe1980/nodegraph/internal/resource"
	"github.com/hupe1980/nodegraph/model"
)

const (
	// DefaultSetCacheBytes is the default memory budget of the set cache.
	DefaultSetCacheBytes = 64 << 20
	// DefaultAggregateEntries is the default capacity of the count cache.
	DefaultAggregateEntries = 16384

	// entryOverhead is the fixed per-entry part of the set size estimate.
	entryOverhead = 64
)

// Config configures a Register.
type Config struct {
	// SetCacheBytes bounds the estimated memory of cached sets.
	SetCacheBytes int64
	// AggregateEntries bounds the number of cached counts.
	AggregateEntries int
	// Resource, if set, is charged for the memory of cached sets.
	Resource *resource.Controller
	// Logger receives debug output on pressure relief. Optional.
	Logger *slog.Logger
}

// Register is the memoizing set-algebra engine of a store.
// It is safe for concurrent use.
type Register struct {
	clock  *model.Clock
	sets   *cache.Sharded[*idset.Set]
	counts *cache.Aggregate
	pairs  *xsync.MapOf[pairKey, any]
	logger *slog.Logger
}

// Stats holds the counters of both caches.
type Stats struct {
	Sets   cache.Stats
	Counts cache.Stats
}

// EstimateSize returns the memory charged for caching s.
func EstimateSize(s *idset.Set) int64 {
	return 3*4*int64(s.Len()) + entryOverhead
}

// New creates a register drawing result stamps from clock.
func New(clock *model.Clock, cfg Config) (*Register, error) {
	if cfg.SetCacheBytes <= 0 {
		cfg.SetCacheBytes = DefaultSetCacheBytes
	}
	if cfg.AggregateEntries <= 0 {
		cfg.AggregateEntries = DefaultAggregateEntries
	}

	counts, err := cache.NewAggregate(cfg.AggregateEntries)
	if err != nil {
		return nil, fmt.Errorf("register: aggregate cache: %w", err)
	}

	return &Register{
		clock:  clock,
		sets:   cache.NewSharded(cfg.SetCacheBytes, EstimateSize, cfg.Resource),
		counts: counts,
		pairs:  xsync.NewMapOf[pairKey, any](),
		logger: cfg.Logger,
	}, nil
}

// Clock returns the clock result stamps are drawn from.
func (r *Register) Clock() *model.Clock {
	return r.clock
}

// Halve drops the least recently used half of both caches.
func (r *Register) Halve() {
	sets := r.sets.Halve()
	counts := r.counts.Halve()
	if r.logger != nil {
		r.logger.Debug("register caches halved", "sets", sets, "counts", counts)
	}
}

// Clear empties both caches.
func (r *Register) Clear() {
	r.sets.Clear()
	r.counts.Clear()
}

// Stats returns the cache counters.
func (r *Register) Stats() Stats {
	return Stats{Sets: r.sets.Stats(), Counts: r.counts.Stats()}
}

// set returns the cached set for k or computes it. compute must build its
// result with the stamp it is given.
func (r *Register) set(k *key, compute func(stamp model.StateID) *idset.Set) *idset.Set {
	if !k.cacheable {
		return compute(model.Uncacheable)
	}

	ck := k.cacheKey()
	if cached, ok := r.sets.Get(ck); ok {
		if selfCheck {
			checkSet(k.op, cached, compute(model.Uncacheable))
		}
		return cached
	}

	result := compute(r.clock.Next())
	if result.Cacheable() {
		r.sets.Set(ck, result)
	}
	return result
}

// count returns the cached count for k or computes it.
func (r *Register) count(k *key, compute func() int) int {
	if !k.cacheable {
		return compute()
	}

	ck := k.cacheKey()
	if cached, ok := r.counts.Get(ck); ok {
		if selfCheck {
			if fresh := compute(); fresh != cached {
				panic(fmt.Errorf("%w: op %d: cached count %d, recomputed %d", ErrCacheMismatch, k.op, cached, fresh))
			}
		}
		return cached
	}

	n := compute()
	r.counts.Set(ck, n)
	return n
}

func checkSet(o op, cached, fresh *idset.Set) {
	same := idset.Equal(cached, fresh)
	if same && cached.Ordered() {
		same = slices.Equal(cached.ToSlice(), fresh.ToSlice())
	}
	if !same {
		panic(fmt.Errorf("%w: op %d: cached %d ids, recomputed %d ids", ErrCacheMismatch, o, cached.Len(), fresh.Len()))
	}
}
