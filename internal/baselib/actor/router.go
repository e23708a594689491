package actor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrNoActorsAvailable is returned by a RoutingStrategy when there are no
// actors currently registered under the service key a Router was built from.
var ErrNoActorsAvailable = fmt.Errorf("no actors available for routing")

// RoutingStrategy selects one actor reference from a set of candidates to
// receive the next message sent through a Router. Implementations may be
// stateful (e.g. round-robin) or stateless (e.g. random, consistent-hash).
type RoutingStrategy[M Message, R any] interface {
	// Select picks one of the given actors to receive the next message.
	// It returns ErrNoActorsAvailable if actors is empty.
	Select(actors []ActorRef[M, R]) (ActorRef[M, R], error)
}

// roundRobinStrategy cycles through the candidate actors in the order
// FindInReceptionist returns them.
type roundRobinStrategy[M Message, R any] struct {
	next atomic.Uint64
}

// NewRoundRobinStrategy returns a RoutingStrategy that distributes messages
// evenly across all candidate actors in round-robin order.
func NewRoundRobinStrategy[M Message, R any]() RoutingStrategy[M, R] {
	return &roundRobinStrategy[M, R]{}
}

// Select implements RoutingStrategy.
func (s *roundRobinStrategy[M, R]) Select(
	actors []ActorRef[M, R]) (ActorRef[M, R], error) {

	if len(actors) == 0 {
		return nil, ErrNoActorsAvailable
	}

	idx := s.next.Add(1) - 1
	return actors[idx%uint64(len(actors))], nil
}

// Router is a virtual ActorRef that load-balances Tell/Ask calls across every
// actor currently registered under a ServiceKey in the Receptionist. It
// re-resolves the candidate set on every call, so newly registered or
// unregistered actors are picked up without reconstructing the Router.
type Router[M Message, R any] struct {
	id           string
	receptionist *Receptionist
	key          ServiceKey[M, R]
	strategy     RoutingStrategy[M, R]
	deadLetters  ActorRef[Message, any]
}

// NewRouter constructs a Router over every actor registered under key in the
// given receptionist, using strategy to pick a target for each message. If no
// actor is currently registered, Tell messages are forwarded to deadLetters
// and Ask futures fail with ErrNoActorsAvailable.
func NewRouter[M Message, R any](
	receptionist *Receptionist, key ServiceKey[M, R],
	strategy RoutingStrategy[M, R], deadLetters ActorRef[Message, any],
) *Router[M, R] {

	return &Router[M, R]{
		id:           "router:" + key.name,
		receptionist: receptionist,
		key:          key,
		strategy:     strategy,
		deadLetters:  deadLetters,
	}
}

// ID implements BaseActorRef.
func (r *Router[M, R]) ID() string {
	return r.id
}

// selectTarget resolves the current candidate set and asks the strategy to
// pick one of them.
func (r *Router[M, R]) selectTarget() (ActorRef[M, R], error) {
	candidates := FindInReceptionist(r.receptionist, r.key)
	return r.strategy.Select(candidates)
}

// Tell implements TellOnlyRef. If no candidate actor is available, the
// message is forwarded to the dead letter actor instead of being dropped
// silently.
func (r *Router[M, R]) Tell(ctx context.Context, msg M) {
	target, err := r.selectTarget()
	if err != nil {
		if r.deadLetters != nil {
			r.deadLetters.Tell(ctx, msg)
		}
		return
	}

	target.Tell(ctx, msg)
}

// Ask implements ActorRef. If no candidate actor is available, the returned
// Future is completed immediately with ErrNoActorsAvailable.
func (r *Router[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	target, err := r.selectTarget()
	if err != nil {
		return failedFuture[R]{err: err}
	}

	return target.Ask(ctx, msg)
}

// failedFuture is a Future that is already resolved to an error, used by
// Router.Ask when no candidate actor could be selected.
type failedFuture[T any] struct {
	err error
}

func (f failedFuture[T]) Await(context.Context) fn.Result[T] {
	return fn.Err[T](f.err)
}

func (f failedFuture[T]) ThenApply(ctx context.Context, _ func(T) T) Future[T] {
	return f
}

func (f failedFuture[T]) OnComplete(_ context.Context, cb func(fn.Result[T])) {
	cb(fn.Err[T](f.err))
}
