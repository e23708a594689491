package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promiseImpl is the concrete Promise/Future pair that bridges an Ask call's
// caller-side Future with the actor's own turn-loop goroutine, which is the
// only place a response is ever produced. It also doubles as its own Future,
// since the two are completed and observed through the same done channel.
type promiseImpl[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	result    fn.Result[T]
	completed bool
}

// NewPromise creates a new, uncompleted Promise. Of any number of calls to
// Complete, only the first has an effect; this lets both a mailbox overflow
// policy and the original Ask call site race to resolve the same promise
// without double-delivering a result.
func NewPromise[T any]() Promise[T] {
	return &promiseImpl[T]{done: make(chan struct{})}
}

// Complete implements Promise.
func (p *promiseImpl[T]) Complete(result fn.Result[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.completed {
		return false
	}

	p.result = result
	p.completed = true
	close(p.done)

	return true
}

// Future implements Promise.
func (p *promiseImpl[T]) Future() Future[T] {
	return p
}

// Await implements Future.
func (p *promiseImpl[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		return p.snapshot()

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// snapshot returns the completed result under the lock, for use once done is
// known to be closed.
func (p *promiseImpl[T]) snapshot() fn.Result[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.result
}

// ThenApply implements Future.
func (p *promiseImpl[T]) ThenApply(ctx context.Context,
	mapFn func(T) T) Future[T] {

	derived := NewPromise[T]()

	go func() {
		result := p.Await(ctx)

		val, err := result.Unpack()
		if err != nil {
			derived.Complete(fn.Err[T](err))
			return
		}

		derived.Complete(fn.Ok(mapFn(val)))
	}()

	return derived.Future()
}

// OnComplete implements Future.
func (p *promiseImpl[T]) OnComplete(ctx context.Context,
	cb func(fn.Result[T])) {

	go func() {
		cb(p.Await(ctx))
	}()
}
