package host

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/quark-run/quark/internal/baselib/actor"
	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/supervisor"
)

// activation is one live (ActorType, ActorID) instance: a dedicated
// single-threaded turn-loop actor plus the bookkeeping the host needs for
// reentrancy detection and idle deactivation.
type activation struct {
	host    *Host
	key     identity.Key
	factory Factory

	inner *actor.Actor[Invocation, InvocationResult]
	ref   actor.ActorRef[Invocation, InvocationResult]

	// runningChain holds the ChainID of the invocation currently
	// executing on this activation's turn, or "" if idle. It's read by
	// other goroutines (Host.Dispatch checking for reentrancy) so it's
	// stored atomically rather than protected by the turn-loop's own
	// single-threadedness.
	runningChain atomic.Value // string

	idleTimer *time.Timer

	// failureCount is the number of consecutive turns that have failed
	// since the last clean turn or Resume directive. It's only ever
	// touched from within the turn-loop goroutine, so it needs no
	// synchronization of its own.
	failureCount int
}

func newActivation(h *Host, key identity.Key, factory Factory) *activation {
	act := &activation{host: h, key: key, factory: factory}
	act.runningChain.Store("")

	behavior := actor.NewFunctionBehavior(
		func(ctx context.Context, inv Invocation) (res fn.Result[InvocationResult]) {
			act.runningChain.Store(inv.ChainID)
			defer act.runningChain.Store("")

			act.armIdleTimer(h.idleTimeout)

			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic in activation %s: %v", key, r)
					res = errResult(act.handleFailure(ctx, err))
				}
			}()

			result, err := act.callHandler(ctx, inv)
			if err != nil {
				return errResult(act.handleFailure(ctx, err))
			}

			act.failureCount = 0
			return okResult(result)
		},
	)

	act.inner = actor.NewActor(actor.ActorConfig[Invocation, InvocationResult]{
		ID:            key.String(),
		Behavior:      behavior,
		MailboxSize:   64,
		MailboxPolicy: h.mailboxPolicy,
		DLO:           h.deadLetters,
	})
	act.ref = act.inner.Ref()

	return act
}

func (a *activation) start() {
	a.inner.Start()
}

func (a *activation) stop() {
	if a.idleTimer != nil {
		a.idleTimer.Stop()
	}
	a.inner.Stop()
}

func (a *activation) currentChain() string {
	return a.runningChain.Load().(string)
}

// callHandler resolves and invokes the method handler named by inv.
func (a *activation) callHandler(ctx context.Context,
	inv Invocation) (InvocationResult, error) {

	handler, ok := a.factory.Dispatch(inv.Method)
	if !ok {
		return InvocationResult{}, fmt.Errorf("%w: %s.%s",
			ErrUnknownMethod, inv.Key.Type, inv.Method)
	}

	actCtx := &ActorContext{
		ctx:           ctx,
		host:          a.host,
		key:           inv.Key,
		chainID:       inv.ChainID,
		correlationID: inv.CorrelationID,
	}

	payload, err := handler(actCtx, inv.Args)
	if err != nil {
		return InvocationResult{}, err
	}

	return InvocationResult{Payload: payload}, nil
}

// handleFailure consults the host's Supervisor, if one is installed, about a
// turn that just failed with err, and carries out whatever Directive it
// returns. It always returns err unchanged: the Directive governs what
// happens to the activation going forward, not the outcome of the call that
// just failed.
func (a *activation) handleFailure(ctx context.Context, err error) error {
	sup := a.host.supervisor
	if sup == nil {
		return err
	}

	a.failureCount++
	directive := sup.OnChildFailure(ctx, supervisor.FailureContext{
		Child:   a.key,
		Err:     err,
		Attempt: a.failureCount,
	})

	log.DebugS(ctx, "supervisor ruled on child failure",
		"key", a.key.String(), "directive", directive.String(),
		"attempt", a.failureCount, "err", err)

	switch directive {
	case supervisor.Resume:
		a.failureCount = 0

	case supervisor.Restart:
		a.failureCount = 0
		go a.host.restart(a.key)

	case supervisor.Stop:
		go a.host.stopAfterFailure(a.key)

	case supervisor.Escalate:
		log.WarnS(ctx, "activation escalated failure, stopping for lack of a parent supervisor",
			"key", a.key.String(), "err", err)
		go a.host.stopAfterFailure(a.key)
	}

	return err
}

// invokeDirect runs inv synchronously in the calling goroutine, bypassing
// the mailbox entirely. It is only safe to call when the caller's goroutine
// IS this activation's own turn-loop goroutine reentering itself on the
// same ChainID. Host.Dispatch is the sole caller; it checks only that the
// activation's running ChainID equals inv.ChainID, not which goroutine is
// calling.
func (a *activation) invokeDirect(ctx context.Context,
	inv Invocation) (InvocationResult, error) {

	return a.callHandler(ctx, inv)
}

// armIdleTimer (re)starts the idle-deactivation timer. Firing calls
// Host.Deactivate from the timer's own goroutine, so it always goes through
// the same Host.Deactivate path tests and callers rely on.
func (a *activation) armIdleTimer(timeout time.Duration) {
	if a.idleTimer != nil {
		a.idleTimer.Stop()
	}

	if timeout <= 0 {
		return
	}

	key := a.key
	host := a.host
	a.idleTimer = time.AfterFunc(timeout, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = host.Deactivate(ctx, key)
	})
}
