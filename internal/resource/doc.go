// Package resource implements the store-wide resource controller.
//
// The Controller governs three resource types:
//
//   - Memory: budget shared by the register's result caches (non-blocking, fail-fast)
//   - Concurrency: limit of parallel checkpoint workers
//   - IO: rate limit for checkpoint reads and writes
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                        Controller                           │
//	├─────────────────┬─────────────────┬─────────────────────────┤
//	│  Memory Limit   │  Background     │  IO Rate Limiter        │
//	│  (fail-fast)    │  Workers (sem)  │  (token bucket)         │
//	├─────────────────┼─────────────────┼─────────────────────────┤
//	│  TryAcquire-    │  AcquireBack-   │  AcquireIO              │
//	│  Memory         │  ground         │  RateLimitedWriter      │
//	│  ReleaseMemory  │  Release        │  RateLimitedReader      │
//	└─────────────────┴─────────────────┴─────────────────────────┘
//
// # Memory Management
//
// A cache asks for the estimated size of an entry before storing it. When the
// budget is exhausted the entry is simply not cached; a later lookup recomputes
// it:
//
//	if rc.TryAcquireMemory(size) {
//	    store(entry)
//	}
//	// on eviction
//	rc.ReleaseMemory(size)
//
// # IO Rate Limiting
//
// Checkpoint files are written and read through rate limited wrappers:
//
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//	r := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
