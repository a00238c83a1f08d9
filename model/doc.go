// Package model defines core types used throughout nodegraph.
//
// # Identity Types
//
//   - NodeID: dense, process-local 32-bit node identifier
//   - StateID: 64-bit version stamp identifying the content of a set or index
//
// # Version Stamps
//
// Every identifier set and every value index carries a StateID. Stamps are drawn
// from a Clock owned by the store and passed to each component at construction:
//
//	clock := model.NewClock()
//	idx := valueindex.New(valueindex.Int64, clock)
//	reg := register.New(clock, register.Config{})
//
// Three stamps are reserved:
//
//   - Empty: the empty set, permanently cacheable
//   - SingleValue(id): a one-element set, derived from the id itself
//   - Uncacheable: results derived from it are never cached
package model
