package nodegraph

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/hupe1980/nodegraph/codec"
	"github.com/hupe1980/nodegraph/internal/checkpoint"
	"github.com/hupe1980/nodegraph/model"
	"github.com/hupe1980/nodegraph/query"
	"github.com/hupe1980/nodegraph/register"
)

// Compression selects how checkpoint sections are compressed.
type Compression = checkpoint.Compression

const (
	CompressionNone = checkpoint.CompressionNone
	CompressionLZ4  = checkpoint.CompressionLZ4
	CompressionZSTD = checkpoint.CompressionZSTD
)

type options struct {
	codec            codec.Codec
	compression      Compression
	metricsCollector MetricsCollector
	logger           *Logger
	clock            *model.Clock
	identity         uuid.UUID
	fixedIdentity    bool
	setCacheBytes    int64
	aggregateEntries int
	memoryLimit      int64
	ioLimit          int64
	workers          int
	relations        query.RelationResolver
	searcher         query.Searcher
}

// Option configures a Store.
type Option func(*options)

// WithCodec configures the codec used for the node records of checkpoints.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures checkpoint section compression.
// The default is CompressionZSTD.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for operations.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithClock shares a version clock with the store. Stores that exchange
// id sets must share one clock.
func WithClock(c *model.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithIdentity fixes the durability identity of the store. Restore rejects
// checkpoints written under a different identity. Without this option the
// store starts with a random identity and adopts the one of a restored
// checkpoint.
func WithIdentity(id uuid.UUID) Option {
	return func(o *options) {
		o.identity = id
		o.fixedIdentity = true
	}
}

// WithSetCacheBytes bounds the estimated memory of cached query sets.
func WithSetCacheBytes(n int64) Option {
	return func(o *options) {
		o.setCacheBytes = n
	}
}

// WithAggregateCacheEntries bounds the number of cached counts.
func WithAggregateCacheEntries(n int) Option {
	return func(o *options) {
		o.aggregateEntries = n
	}
}

// WithMemoryLimit caps the memory all caches of the store may hold.
// Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithCheckpointIOLimit throttles checkpoint reads and writes to the given
// bytes per second. Zero means unlimited.
func WithCheckpointIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithCheckpointWorkers sets how many sections are encoded or decoded in
// parallel. The default is GOMAXPROCS.
func WithCheckpointWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithRelationResolver replaces the default resolver of relation predicates,
// which scans the links of every node.
func WithRelationResolver(r query.RelationResolver) Option {
	return func(o *options) {
		o.relations = r
	}
}

// WithSearcher replaces the default text searcher, which scans the string
// properties of every node.
func WithSearcher(s query.Searcher) Option {
	return func(o *options) {
		o.searcher = s
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		compression:      CompressionZSTD,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		identity:         uuid.New(),
		setCacheBytes:    register.DefaultSetCacheBytes,
		aggregateEntries: register.DefaultAggregateEntries,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.clock == nil {
		o.clock = model.NewClock()
	}
	return o
}
