package testutil

import (
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), // nolint gosec
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63n returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63n(n)
}

// Uint32 returns a pseudo-random uint32.
func (r *RNG) Uint32() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint32()
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Shuffle pseudo-randomizes the order of ids in place.
func (r *RNG) Shuffle(ids []uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// DenseIDs returns n unique ids drawn from a span of roughly 1.5*n starting at a
// random offset, in random order. The (max-min+1)/n ratio stays below 2.
func (r *RNG) DenseIDs(n int) []uint32 {
	return r.spreadIDs(n, 1.5)
}

// SparseIDs returns n unique ids spread over a span of spread*n, in random order.
// Use spread > 2 to force the sparse representation of an id set.
func (r *RNG) SparseIDs(n int, spread float64) []uint32 {
	return r.spreadIDs(n, spread)
}

func (r *RNG) spreadIDs(n int, spread float64) []uint32 {
	if n == 0 {
		return nil
	}
	span := int(math.Ceil(float64(n) * spread))
	if span < n {
		span = n
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	offset := uint32(r.rand.Intn(1 << 20))
	if n == 1 {
		return []uint32{offset}
	}

	// Both ends are always present so the observed span is exactly the requested one.
	ids := make([]uint32, 0, n)
	ids = append(ids, offset, offset+uint32(span-1))
	for _, p := range r.rand.Perm(span - 2)[:n-2] {
		ids = append(ids, offset+1+uint32(p))
	}
	r.rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}

// Zipf returns a Zipf-distributed integer in [0, n) with parameter s > 1.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}
	if s <= 1 {
		s = 1.0001
	}
	z := rand.NewZipf(r.rand, s, 1, uint64(n-1))
	return int(z.Uint64())
}

// SparseMetadata returns a presence mask where each entry is missing with the
// given probability.
func (r *RNG) SparseMetadata(n int, missingRate float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	present := make([]bool, n)
	for i := range present {
		present[i] = r.rand.Float64() >= missingRate
	}
	return present
}
