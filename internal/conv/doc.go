// Package conv provides bounds-checked integer conversions.
//
// Use it where the value comes from a caller or from disk, for example a node
// id passed as an int to a relation predicate or a section length read from a
// checkpoint. Conversions that are safe by construction use plain casts.
package conv
