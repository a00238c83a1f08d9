package nodegraph

import (
	"sync/atomic"
	"time"
)

// Mutation kinds passed to MetricsCollector.RecordMutation.
const (
	MutationInsert = "insert"
	MutationUpdate = "update"
	MutationDelete = "delete"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordQuery is called after each query. results is the number of ids
	// returned and native reports whether the filter ran entirely on indexes.
	RecordQuery(results int, native bool, duration time.Duration, err error)

	// RecordMutation is called after each insert, update and delete.
	RecordMutation(kind string, duration time.Duration, err error)

	// RecordCheckpoint is called after each checkpoint save. bytes is the
	// encoded size of all sections.
	RecordCheckpoint(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordQuery(int, bool, time.Duration, error)  {}
func (NoopMetricsCollector) RecordMutation(string, time.Duration, error)  {}
func (NoopMetricsCollector) RecordCheckpoint(int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryNative      atomic.Int64
	QueryResults     atomic.Int64
	QueryTotalNanos  atomic.Int64
	InsertCount      atomic.Int64
	UpdateCount      atomic.Int64
	DeleteCount      atomic.Int64
	MutationErrors   atomic.Int64
	CheckpointCount  atomic.Int64
	CheckpointErrors atomic.Int64
	CheckpointBytes  atomic.Int64
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(results int, native bool, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.QueryResults.Add(int64(results))
	if native {
		b.QueryNative.Add(1)
	}
}

// RecordMutation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMutation(kind string, duration time.Duration, err error) {
	switch kind {
	case MutationInsert:
		b.InsertCount.Add(1)
	case MutationUpdate:
		b.UpdateCount.Add(1)
	case MutationDelete:
		b.DeleteCount.Add(1)
	}
	if err != nil {
		b.MutationErrors.Add(1)
	}
}

// RecordCheckpoint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheckpoint(bytes int64, duration time.Duration, err error) {
	b.CheckpointCount.Add(1)
	if err != nil {
		b.CheckpointErrors.Add(1)
		return
	}
	b.CheckpointBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		QueryCount:       b.QueryCount.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryNative:      b.QueryNative.Load(),
		QueryResults:     b.QueryResults.Load(),
		InsertCount:      b.InsertCount.Load(),
		UpdateCount:      b.UpdateCount.Load(),
		DeleteCount:      b.DeleteCount.Load(),
		MutationErrors:   b.MutationErrors.Load(),
		CheckpointCount:  b.CheckpointCount.Load(),
		CheckpointErrors: b.CheckpointErrors.Load(),
		CheckpointBytes:  b.CheckpointBytes.Load(),
	}
	if s.QueryCount > 0 {
		s.QueryAvgNanos = b.QueryTotalNanos.Load() / s.QueryCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	QueryCount       int64
	QueryErrors      int64
	QueryNative      int64
	QueryResults     int64
	QueryAvgNanos    int64
	InsertCount      int64
	UpdateCount      int64
	DeleteCount      int64
	MutationErrors   int64
	CheckpointCount  int64
	CheckpointErrors int64
	CheckpointBytes  int64
}
