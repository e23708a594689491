// Package transport implements the wire contract between silos: the frame
// types and the gRPC-backed Invoke operation used to carry them, plus a
// retrying wrapper over Invoke for transient failures.
package transport

import (
	"time"

	"github.com/quark-run/quark/internal/identity"
)

// ResultKind classifies how an invocation completed.
type ResultKind int

const (
	ResultOk ResultKind = iota
	ResultError
	ResultCancelled
	ResultTimedOut
	ResultNotFound
)

// RequestFrame is sent to invoke one method on one actor.
type RequestFrame struct {
	CorrelationID string
	ActorType     identity.ActorType
	ActorID       identity.ActorID
	MethodName    string
	ArgsBlob      []byte
	Deadline      time.Time
	ChainID       string
}

// ResponseFrame is the reply to a RequestFrame sharing its CorrelationID.
type ResponseFrame struct {
	CorrelationID string
	ResultKind    ResultKind
	ResultBlob    []byte
	ErrorCode     string
	ErrorMessage  string
}

// CancelFrame asks the receiving silo to abandon processing of the request
// with the given CorrelationID, if it hasn't completed yet.
type CancelFrame struct {
	CorrelationID string
}

// Codec (de)serializes frames onto the wire. The default is GobCodec; a
// cluster may swap in another implementation, but every silo in one cluster
// must agree on the same one.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}
