package codec

import (
	"bytes"
	"encoding/json"
)

// JSON encodes checkpoint sections with encoding/json.
type JSON struct{}

// Marshal encodes a section record.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes a section into v. Fields v does not declare and data
// after the record are rejected.
func (JSON) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}

// Name returns "json".
func (JSON) Name() string { return "json" }

// Default is the codec used for new checkpoints.
var Default Codec = GoJSON{}
