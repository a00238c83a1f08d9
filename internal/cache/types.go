package cache

// Key identifies a cached result: the operation that produced it, the version
// stamps of its operands and its scalar parameters.
//
// States and Params are packed binary strings so that Key stays comparable.
// A result is reachable only while every operand keeps the stamp recorded in
// States; stamps are never reused, so stale entries are never purged explicitly
// and simply age out.
type Key struct {
	Op     uint8
	States string
	Params string
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	// Bytes is the estimated memory held by the entries (0 for count bounded caches).
	Bytes int64
}

func (s Stats) add(o Stats) Stats {
	return Stats{
		Hits:      s.Hits + o.Hits,
		Misses:    s.Misses + o.Misses,
		Evictions: s.Evictions + o.Evictions,
		Entries:   s.Entries + o.Entries,
		Bytes:     s.Bytes + o.Bytes,
	}
}

// SizeFunc estimates the memory held by a cached value in bytes.
type SizeFunc[V any] func(V) int64
