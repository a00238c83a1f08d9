// Package hash provides the checksum used to protect checkpoint sections.
//
// Checksums use CRC32-Castagnoli, which the standard library computes with
// hardware instructions where available.
package hash
