package transport

import (
	"bytes"
	"encoding/gob"
)

// GobCodec is the default pluggable Codec, matching the "single serializer
// per cluster" contract with the simplest thing that can encode every frame
// type without a schema compiler.
type GobCodec struct{}

// Encode implements Codec.
func (GobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (GobCodec) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

var _ Codec = GobCodec{}
