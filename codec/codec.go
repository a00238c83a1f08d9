// Package codec encodes the record sections of checkpoints: the schema section
// with the declared node types and the nodes section with every node, its
// properties and its links.
//
// The checkpoint header records the name of the codec that wrote it, and a
// restore looks the codec up by that name.
package codec

import "errors"

// ErrTrailingData is returned when a section holds data after its record.
var ErrTrailingData = errors.New("codec: trailing data after record")

// Codec encodes and decodes one section record.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
