// Package testutil provides testing utilities for nodegraph.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe random source plus generators for node id
// sets and property values.
//
// # Random Id Sets
//
//	rng := testutil.NewRNG(seed)
//	dense := rng.DenseIDs(10_000)          // span ~ count
//	sparse := rng.SparseIDs(10_000, 16)    // span ~ 16 * count
//
// # Skewed Values
//
//	v := rng.Zipf(100, 1.1)                // low-cardinality property values
package testutil
