package host

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/quark-run/quark/internal/actorutil"
	"github.com/quark-run/quark/internal/baselib/actor"
)

// DefaultDeadLetterPoolSize is how many parallel dead-letter workers a Host
// runs by default. A single worker is fine at low activation counts, but a
// silo hosting thousands of activations can have many unrelated mailboxes
// overflow in the same instant (e.g. a downstream dependency stalling),
// and a lone dead-letter actor would then serialize all of that recording
// behind one turn loop.
const DefaultDeadLetterPoolSize = 4

// deadLetterPoolID names the pool for logging and for the synthetic actor
// IDs actorutil.Pool assigns each worker.
const deadLetterPoolID = "host-dead-letters"

// newDeadLetterPool builds the pool of actors that record Invocations the
// host's activations could not deliver, e.g. a Tell refused by a
// non-Block MailboxPolicy. Every activation shares the same pool as its
// DLO rather than getting one of its own, so the number of dead-letter
// workers scales with the Host, not with the activation count.
func newDeadLetterPool(size int) actor.ActorRef[actor.Message, any] {
	if size <= 0 {
		size = DefaultDeadLetterPoolSize
	}

	pool := actorutil.NewPool(actorutil.PoolConfig[actor.Message, any]{
		ID:   deadLetterPoolID,
		Size: size,
		Factory: func(idx int) actor.ActorBehavior[actor.Message, any] {
			return actor.NewFunctionBehavior(
				func(ctx context.Context, msg actor.Message) fn.Result[any] {
					log.WarnS(ctx, "invocation undeliverable",
						"worker", idx, "msg_type", msg.MessageType())
					return fn.Err[any](errors.New(
						"host: message undeliverable: " + msg.MessageType(),
					))
				},
			)
		},
	})

	return actorutil.NewPoolRef(pool)
}
