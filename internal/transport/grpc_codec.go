package transport

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// codecName is registered with grpc's encoding package so the Transport
// service can carry plain Go structs instead of protobuf messages, matching
// the "opaque bytes, pluggable serializer" wire contract: gRPC's own framing
// is reused, only its default proto marshaling is swapped out.
const codecName = "quark-frame"

func init() {
	gob.Register(&RequestFrame{})
	gob.Register(&ResponseFrame{})
	gob.Register(&CancelFrame{})
}

// frameCodec implements google.golang.org/grpc/encoding.Codec over gob,
// passing *RequestFrame / *ResponseFrame / *CancelFrame through untouched.
type frameCodec struct{}

// Name implements encoding.Codec.
func (frameCodec) Name() string { return codecName }

// Marshal implements encoding.Codec.
func (frameCodec) Marshal(v any) ([]byte, error) {
	// Encoding &v sends v as an interface value carrying its registered
	// concrete type, which Unmarshal's decode into *any requires.
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("frame codec marshal: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal implements encoding.Codec.
func (frameCodec) Unmarshal(data []byte, v any) error {
	var decoded any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&decoded); err != nil {
		return fmt.Errorf("frame codec unmarshal: %w", err)
	}

	switch dst := v.(type) {
	case *any:
		*dst = decoded
		return nil
	default:
		return fmt.Errorf("frame codec unmarshal: unsupported target %T", v)
	}
}
