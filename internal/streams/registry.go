package streams

import (
	"context"
	"fmt"

	"github.com/quark-run/quark/internal/host"
	"github.com/quark-run/quark/internal/identity"
)

// ConsumerType is an actor type registered to receive implicit-subscription
// stream messages for a Namespace.
type ConsumerType identity.ActorType

// OnStreamMessageMethod is the well-known method implicit fan-out
// dispatches to.
const OnStreamMessageMethod = "OnStreamMessage"

// StreamEnvelope is the argument delivered to OnStreamMessageMethod.
type StreamEnvelope struct {
	StreamID Namespace
	Payload  any
}

// Registry is the build-time map of Namespace -> the ConsumerTypes that
// implicitly subscribe to it. Entries are added once at startup and never
// mutated afterward, so lookups need no locking; iteration order over a
// namespace's consumers is the order they were registered in, matching the
// deterministic-iteration requirement for implicit fan-out.
type Registry struct {
	order     []Namespace
	consumers map[Namespace][]ConsumerType
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{consumers: make(map[Namespace][]ConsumerType)}
}

// Register associates consumerType with namespace: publishing to
// (namespace, key) will activate the ConsumerType{ActorID: key} actor and
// deliver OnStreamMessageMethod to it.
func (r *Registry) Register(namespace Namespace, consumerType ConsumerType) {
	if _, ok := r.consumers[namespace]; !ok {
		r.order = append(r.order, namespace)
	}
	r.consumers[namespace] = append(r.consumers[namespace], consumerType)
}

// ConsumersOf returns the ConsumerTypes registered for namespace, in
// registration order.
func (r *Registry) ConsumersOf(namespace Namespace) []ConsumerType {
	out := make([]ConsumerType, len(r.consumers[namespace]))
	copy(out, r.consumers[namespace])
	return out
}

// Dispatcher is the narrow host.Host surface implicit fan-out needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv host.Invocation) (host.InvocationResult, error)
}

// PublishImplicit fans payload out to every ConsumerType registered for
// namespace, activating ActorID=key for each and delivering
// OnStreamMessageMethod. argsBlob must already have payload gob-encoded
// into a StreamEnvelope by the caller (kept symmetrical with the explicit
// path's Codec use in internal/proxy).
func (r *Registry) PublishImplicit(ctx context.Context, dispatcher Dispatcher,
	namespace Namespace, key Key, argsBlob []byte) error {

	for _, consumer := range r.consumers[namespace] {
		_, err := dispatcher.Dispatch(ctx, host.Invocation{
			Key: identity.Key{
				Type: identity.ActorType(consumer),
				ID:   identity.ActorID(key),
			},
			Method: OnStreamMessageMethod,
			Args:   argsBlob,
		})
		if err != nil {
			return fmt.Errorf("publish to consumer %s: %w", consumer, err)
		}
	}

	return nil
}
