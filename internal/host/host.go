// Package host implements actor activation: the lifecycle layer on top of
// internal/baselib/actor that turns a bare mailbox/turn-loop actor into a
// virtual actor with lazy activation, idle deactivation, and reentrant
// same-chain calls, per the component design's host/activation model.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/quark-run/quark/internal/baselib/actor"
	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/supervisor"
)

// DefaultIdleTimeout is how long an activation may sit without processing a
// message before the host deactivates it.
const DefaultIdleTimeout = 2 * time.Minute

// ErrUnknownActorType is returned when Dispatch is asked to route to a type
// with no registered Factory.
var ErrUnknownActorType = errors.New("host: unknown actor type")

// ErrUnknownMethod is returned when an Invocation names a method the
// target's Factory doesn't recognize.
var ErrUnknownMethod = errors.New("host: unknown method")

// Invocation is one request routed to an activation: the method to call and
// its opaque argument bytes, along with the reentrancy/tracing identifiers
// carried end-to-end through the call graph.
type Invocation struct {
	actor.BaseMessage

	Key           identity.Key
	Method        string
	Args          []byte
	ChainID       string
	CorrelationID string
}

// MessageType implements actor.Message.
func (Invocation) MessageType() string { return "Invocation" }

// InvocationResult is the outcome of dispatching an Invocation.
type InvocationResult struct {
	Payload []byte
}

// MethodHandler implements one RPC method on an activated actor.
type MethodHandler func(ctx *ActorContext, args []byte) ([]byte, error)

// Factory supplies the method dispatch table and lifecycle hooks for one
// ActorType. Implementations are typically generated or hand-written
// per-type registries; the host never uses reflection to find methods.
type Factory interface {
	// Dispatch resolves a method name to its handler.
	Dispatch(method string) (MethodHandler, bool)

	// OnActivate is called once, before the first invocation, to let the
	// actor load its persisted state.
	OnActivate(ctx *ActorContext) error

	// OnDeactivate is called once, after the last invocation, to let the
	// actor flush state or release resources.
	OnDeactivate(ctx *ActorContext) error
}

// Host owns the set of currently-activated actors on this silo and routes
// Invocations to them, activating lazily on first use.
type Host struct {
	siloID   identity.SiloID
	factories map[identity.ActorType]Factory

	mu          sync.Mutex
	activations map[identity.Key]*activation

	idleTimeout time.Duration

	// supervisor, if non-nil, is consulted whenever an activation's turn
	// fails, and rules on whether to resume, restart, stop, or escalate.
	// A nil supervisor means failures simply propagate to the caller with
	// no effect on the activation's lifecycle.
	supervisor supervisor.Supervisor

	// mailboxPolicy governs what each activation's underlying mailbox
	// does when it's full. The zero value is actor.Block.
	mailboxPolicy actor.OverflowPolicy

	// deadLetters receives Invocations an activation's mailbox refused
	// under a non-Block MailboxPolicy. It's shared by every activation on
	// this Host, backed by a small pool so that many activations hitting
	// capacity at once don't serialize behind a single recorder.
	deadLetters actor.ActorRef[actor.Message, any]

	// deadLetterPoolSize overrides DefaultDeadLetterPoolSize when set via
	// WithDeadLetterPoolSize.
	deadLetterPoolSize int
}

// Option configures a Host.
type Option func(*Host)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Host) { h.idleTimeout = d }
}

// WithSupervisor installs the Supervisor consulted on activation failures.
func WithSupervisor(s supervisor.Supervisor) Option {
	return func(h *Host) { h.supervisor = s }
}

// WithMailboxPolicy sets the overflow policy applied to every activation's
// mailbox once it reaches capacity. The default is actor.Block.
func WithMailboxPolicy(p actor.OverflowPolicy) Option {
	return func(h *Host) { h.mailboxPolicy = p }
}

// WithDeadLetterPoolSize overrides DefaultDeadLetterPoolSize for this Host's
// shared dead-letter pool.
func WithDeadLetterPoolSize(size int) Option {
	return func(h *Host) { h.deadLetterPoolSize = size }
}

// New constructs a Host for the given silo.
func New(siloID identity.SiloID, opts ...Option) *Host {
	h := &Host{
		siloID:      siloID,
		factories:   make(map[identity.ActorType]Factory),
		activations: make(map[identity.Key]*activation),
		idleTimeout: DefaultIdleTimeout,
	}

	for _, opt := range opts {
		opt(h)
	}

	h.deadLetters = newDeadLetterPool(h.deadLetterPoolSize)

	return h
}

// Register associates an ActorType with the Factory that serves it. It must
// be called before any Invocation targeting that type is dispatched.
func (h *Host) Register(actorType identity.ActorType, factory Factory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.factories[actorType] = factory
}

// Dispatch routes inv to its target activation, creating the activation if
// this is its first invocation, and re-entering it directly (bypassing the
// mailbox) if the activation's current turn carries the same non-empty
// ChainID as inv. Only the ChainID is compared; the calling goroutine is not
// checked.
func (h *Host) Dispatch(ctx context.Context, inv Invocation) (InvocationResult, error) {
	act, err := h.getOrActivate(inv.Key)
	if err != nil {
		return InvocationResult{}, err
	}

	if inv.ChainID != "" && act.currentChain() == inv.ChainID {
		// Reentrant same-chain call: the activation's turn is already
		// running this chain, so invoke synchronously in the caller's
		// own goroutine instead of enqueueing behind that turn.
		return act.invokeDirect(ctx, inv)
	}

	future := act.ref.Ask(ctx, inv)
	result := future.Await(ctx)
	val, err := result.Unpack()
	if err != nil {
		return InvocationResult{}, err
	}

	return val, nil
}

// getOrActivate returns the activation for key, creating and running
// OnActivate for it if this is the first time key has been seen.
func (h *Host) getOrActivate(key identity.Key) (*activation, error) {
	h.mu.Lock()
	if act, ok := h.activations[key]; ok {
		h.mu.Unlock()
		return act, nil
	}

	factory, ok := h.factories[key.Type]
	if !ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownActorType, key.Type)
	}
	h.mu.Unlock()

	act := newActivation(h, key, factory)

	h.mu.Lock()
	if existing, ok := h.activations[key]; ok {
		// Lost the race to activate; use the winner and let ours be
		// garbage collected without ever starting.
		h.mu.Unlock()
		return existing, nil
	}
	h.activations[key] = act
	h.mu.Unlock()

	actCtx := &ActorContext{
		ctx:  context.Background(),
		host: h,
		key:  key,
	}
	if err := factory.OnActivate(actCtx); err != nil {
		h.mu.Lock()
		delete(h.activations, key)
		h.mu.Unlock()
		return nil, fmt.Errorf("activation failed for %s: %w", key, err)
	}

	act.start()
	act.armIdleTimer(h.idleTimeout)

	return act, nil
}

// Deactivate stops and removes the activation for key, invoking
// OnDeactivate first. It is a no-op if key has no active activation.
func (h *Host) Deactivate(ctx context.Context, key identity.Key) error {
	h.mu.Lock()
	act, ok := h.activations[key]
	if ok {
		delete(h.activations, key)
	}
	h.mu.Unlock()

	if !ok {
		return nil
	}

	actCtx := &ActorContext{ctx: ctx, host: h, key: key}
	if err := act.factory.OnDeactivate(actCtx); err != nil {
		log.WarnS(ctx, "OnDeactivate returned an error",
			"key", key.String(), "err", err)
	}

	act.stop()
	return nil
}

// restart carries out a Restart directive: it deactivates key's activation
// so the next Dispatch targeting it builds a fresh one from OnActivate,
// discarding whatever in-memory state the failed activation held.
func (h *Host) restart(key identity.Key) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.Deactivate(ctx, key); err != nil {
		log.WarnS(ctx, "restart: deactivation failed", "key", key.String(), "err", err)
	}
}

// stopAfterFailure carries out a Stop or Escalate directive: it deactivates
// key's activation and does not reactivate it. A future Dispatch targeting
// the same key will still succeed by lazily activating it again; Stop only
// ends the failed activation's current lifetime, since the host has no
// durable "permanently stopped" marker.
func (h *Host) stopAfterFailure(key identity.Key) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.Deactivate(ctx, key); err != nil {
		log.WarnS(ctx, "stop: deactivation failed", "key", key.String(), "err", err)
	}
}

// ActiveCount returns the number of currently activated actors, mostly for
// diagnostics/tests.
func (h *Host) ActiveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.activations)
}

// Result helpers mirroring fn.Result so activation.go doesn't need to
// import fn directly in more than one place.
func okResult(v InvocationResult) fn.Result[InvocationResult] { return fn.Ok(v) }
func errResult(err error) fn.Result[InvocationResult]         { return fn.Err[InvocationResult](err) }
