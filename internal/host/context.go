package host

import (
	"context"

	"github.com/quark-run/quark/internal/identity"
)

// ActorContext is passed to every method handler and to the Factory's
// activation lifecycle hooks. It carries the request-scoped context plus
// the identifiers and host-facing capabilities the component design's
// host-facing API calls for.
type ActorContext struct {
	ctx           context.Context
	host          *Host
	key           identity.Key
	chainID       string
	correlationID string
}

// Context returns the underlying context.Context, which is cancelled when
// either the calling request's deadline expires or the silo shuts down.
func (c *ActorContext) Context() context.Context { return c.ctx }

// ActorType returns the type of the actor handling this call.
func (c *ActorContext) ActorType() identity.ActorType { return c.key.Type }

// ActorID returns the id of the actor handling this call.
func (c *ActorContext) ActorID() identity.ActorID { return c.key.ID }

// ChainID returns the reentrancy chain this invocation belongs to, or "" if
// it was not part of a chained call.
func (c *ActorContext) ChainID() string { return c.chainID }

// CorrelationID returns the end-to-end request correlation id, for tracing
// and logging.
func (c *ActorContext) CorrelationID() string { return c.correlationID }

// Dispatch lets an actor call another actor as part of the same chain,
// marking the call with this context's ChainID so a cycle back into the
// calling actor reenters rather than deadlocking on its own mailbox.
func (c *ActorContext) Dispatch(ctx context.Context, target identity.Key,
	method string, args []byte) (InvocationResult, error) {

	return c.host.Dispatch(ctx, Invocation{
		Key:           target,
		Method:        method,
		Args:          args,
		ChainID:       c.chainID,
		CorrelationID: c.correlationID,
	})
}

// Deactivate requests that this actor be deactivated after the current
// invocation returns.
func (c *ActorContext) Deactivate() {
	key := c.key
	host := c.host
	go func() {
		_ = host.Deactivate(context.Background(), key)
	}()
}
