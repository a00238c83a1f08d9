// Package checkpoint implements the on-disk checkpoint container.
//
// A checkpoint is a single file of named sections. Each section carries a
// CRC32C of its uncompressed bytes and is compressed with LZ4 or ZSTD when
// that saves at least 10%. Sections are encoded independently, so callers
// can prepare them concurrently before handing them to [Save].
package checkpoint
