// Package idset provides the immutable identifier set used by every query
// operation.
//
// A Set is a deduplicated collection of 32-bit node ids plus a version stamp
// (model.StateID). Sets are stored as a plain slice. Once a set grows beyond a
// small threshold, the first membership test promotes it to an auxiliary
// structure chosen from the id distribution:
//
//	ratio := (max - min + 1) / count
//	ratio >  2  →  hash set (sparse)
//	ratio <= 2  →  bitset offset by min (dense)
//
// Promotion is one-way, lazy, and invisible to callers. Sets are safe for
// concurrent reads.
package idset
