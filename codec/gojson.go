package codec

import (
	"bytes"

	gojson "github.com/goccy/go-json"
)

// GoJSON encodes checkpoint sections with github.com/goccy/go-json. A
// checkpoint written with it can be decoded by [JSON] and the other way
// round, but the header records the codec that wrote it.
type GoJSON struct{}

// Marshal encodes a section record.
func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

// Unmarshal decodes a section into v with the same strictness as [JSON].
func (GoJSON) Unmarshal(data []byte, v any) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}

// Name returns "go-json".
func (GoJSON) Name() string { return "go-json" }
