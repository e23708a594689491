package actor

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// OverflowPolicy controls what a ChannelMailbox does when Send or TrySend is
// called against a mailbox that is already at capacity.
type OverflowPolicy int

const (
	// Block waits for room to free up, honoring the caller's context and
	// the actor's own lifecycle context, whichever ends first. This is
	// the zero value, matching the mailbox's original behavior.
	Block OverflowPolicy = iota

	// DropOldest evicts the single oldest queued envelope to make room
	// for the incoming one. An evicted envelope that was waiting on an
	// Ask response has its promise completed with ErrMailboxFull so the
	// caller doesn't block forever on a reply that will never arrive.
	DropOldest

	// DropNewest silently refuses the incoming envelope when the mailbox
	// is full, leaving the queue untouched. Tell falls back to routing
	// the refused message to the actor's dead letter office; Ask
	// completes the caller's promise with an error.
	DropNewest

	// FailFast refuses the incoming envelope exactly like DropNewest, but
	// is logged as a rejection rather than a drop: it's meant for callers
	// that deliberately chose a non-blocking policy and want a loud
	// signal when the mailbox can't keep up, rather than the routine
	// backpressure DropNewest represents.
	FailFast
)

// String returns a human-readable name for the policy, used in log output.
func (p OverflowPolicy) String() string {
	switch p {
	case Block:
		return "block"
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	case FailFast:
		return "fail-fast"
	default:
		return "unknown"
	}
}

// ErrMailboxFull is the error used to complete an Ask promise whose envelope
// was evicted or refused by a non-Block overflow policy.
var ErrMailboxFull = errors.New("actor: mailbox full")

// ChannelMailbox is a Mailbox implementation backed by a Go channel. It
// provides thread-safe send and receive operations with support for context
// cancellation.
type ChannelMailbox[M Message, R any] struct {
	// ch is the underlying channel used to store envelopes.
	ch chan envelope[M, R]

	// closed indicates whether the mailbox has been closed. Uses atomic
	// operations for lock-free reads.
	closed atomic.Bool

	// mu protects send operations to prevent sending to a closed channel.
	mu sync.RWMutex

	// closeOnce ensures Close() is executed exactly once.
	closeOnce sync.Once

	// actorCtx is the context governing the actor's lifecycle. When this
	// context is cancelled, receive operations will terminate.
	actorCtx context.Context

	// policy governs what Send/TrySend do when the mailbox is full.
	policy OverflowPolicy
}

// MailboxOption configures a ChannelMailbox at construction time.
type MailboxOption[M Message, R any] func(*ChannelMailbox[M, R])

// WithOverflowPolicy sets the policy applied when the mailbox is full. If
// never supplied, the mailbox uses Block.
func WithOverflowPolicy[M Message, R any](p OverflowPolicy) MailboxOption[M, R] {
	return func(m *ChannelMailbox[M, R]) {
		m.policy = p
	}
}

// NewChannelMailbox creates a new channel-based mailbox with the given
// capacity and actor context. If capacity is 0 or negative, it defaults to 1
// to ensure the mailbox is buffered.
func NewChannelMailbox[M Message, R any](
	actorCtx context.Context, capacity int, opts ...MailboxOption[M, R],
) *ChannelMailbox[M, R] {
	if capacity <= 0 {
		capacity = 1
	}

	m := &ChannelMailbox[M, R]{
		ch:       make(chan envelope[M, R], capacity),
		actorCtx: actorCtx,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Send attempts to send an envelope to the mailbox. Under the Block policy
// (the default) it waits until either the envelope is accepted, the caller's
// context is cancelled, or the actor's context is cancelled. Under any other
// OverflowPolicy it never waits for room: it applies that policy immediately
// against a full mailbox. Returns true if the envelope was successfully sent,
// false otherwise.
func (m *ChannelMailbox[M, R]) Send(ctx context.Context,
	env envelope[M, R],
) bool {
	// Check contexts before acquiring the lock as an optimization. This
	// allows fast-path rejection when contexts are already cancelled,
	// avoiding unnecessary lock acquisition. The select statement below
	// still handles the case where contexts are cancelled after this check.
	if ctx.Err() != nil {
		return false
	}
	if m.actorCtx.Err() != nil {
		return false
	}

	// Hold the read lock for the entire send operation to prevent
	// send-on-closed-channel panics. The read lock allows concurrent sends
	// but blocks when Close() acquires the write lock.
	//
	// Safety: The channel send in the select below cannot panic because:
	// 1. We hold the read lock for the entire operation
	// 2. Close() must acquire the write lock before closing the channel
	// 3. The write lock cannot be acquired while any read lock is held
	// 4. Therefore, the channel cannot be closed while we're in this block
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	switch m.policy {
	case DropOldest:
		return m.sendDropOldest(ctx, env)

	case DropNewest:
		return m.sendNonBlocking(ctx, env, false)

	case FailFast:
		return m.sendNonBlocking(ctx, env, true)

	default:
		return m.sendBlocking(ctx, env)
	}
}

// sendBlocking implements the Block overflow policy: wait for room,
// respecting both the caller's context and the actor's context for
// cancellation. Callers must hold m.mu for reading.
func (m *ChannelMailbox[M, R]) sendBlocking(ctx context.Context,
	env envelope[M, R]) bool {

	select {
	case m.ch <- env:
		log.TraceS(ctx, "Mailbox send succeeded",
			"msg_type", env.message.MessageType(),
			"queue_len", len(m.ch))

		return true

	case <-ctx.Done():
		log.TraceS(ctx, "Mailbox send failed, caller context cancelled",
			"msg_type", env.message.MessageType())

		return false

	case <-m.actorCtx.Done():
		log.TraceS(ctx, "Mailbox send failed, actor context cancelled",
			"msg_type", env.message.MessageType())

		return false
	}
}

// sendNonBlocking implements the DropNewest and FailFast overflow policies,
// which differ only in how loudly the rejection is logged: both refuse the
// incoming envelope outright rather than wait or evict anything. Callers
// must hold m.mu for reading.
func (m *ChannelMailbox[M, R]) sendNonBlocking(ctx context.Context,
	env envelope[M, R], failFast bool) bool {

	select {
	case m.ch <- env:
		return true
	default:
	}

	if failFast {
		log.WarnS(ctx, "Mailbox full, failing fast under FailFast "+
			"overflow policy", "msg_type", env.message.MessageType())
	} else {
		log.DebugS(ctx, "Mailbox full, dropping newest envelope under "+
			"DropNewest overflow policy",
			"msg_type", env.message.MessageType())
	}

	return false
}

// sendDropOldest implements the DropOldest overflow policy: evict the oldest
// queued envelope to make room, completing its promise (if it was an Ask)
// with ErrMailboxFull so its caller doesn't hang. Callers must hold m.mu for
// reading.
func (m *ChannelMailbox[M, R]) sendDropOldest(ctx context.Context,
	env envelope[M, R]) bool {

	for {
		select {
		case m.ch <- env:
			return true
		default:
		}

		select {
		case evicted, ok := <-m.ch:
			if !ok {
				return false
			}

			log.WarnS(ctx, "Mailbox full, evicting oldest envelope "+
				"under DropOldest overflow policy",
				"msg_type", evicted.message.MessageType())

			if evicted.promise != nil {
				evicted.promise.Complete(fn.Err[R](ErrMailboxFull))
			}

		default:
			// Another goroutine drained the slot we were about to
			// evict between our two selects; loop and retry the
			// insert rather than evicting a second envelope.
		}
	}
}

// TrySend attempts to send an envelope to the mailbox without blocking. It
// returns true if the envelope was successfully sent, false if the mailbox is
// full, closed, or the actor has been terminated. The DropOldest policy
// still applies here: a full mailbox evicts its oldest envelope to make room
// rather than simply refusing the new one.
func (m *ChannelMailbox[M, R]) TrySend(env envelope[M, R]) bool {
	// Check if the actor has been terminated before attempting to send.
	// This ensures TrySend respects the actor's lifecycle consistently
	// with Send.
	if m.actorCtx.Err() != nil {
		return false
	}

	// Hold the read lock for the entire send operation to prevent
	// send-on-closed-channel panics.
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	if m.policy == DropOldest {
		return m.sendDropOldest(m.actorCtx, env)
	}

	select {
	case m.ch <- env:
		return true
	default:
		return false
	}
}

// Receive returns an iterator over envelopes in the mailbox. The iterator will
// yield envelopes as they arrive and will stop when the provided context is
// cancelled or when the mailbox is closed and drained.
//
// Context cancellation is checked before each receive attempt to ensure
// deterministic shutdown behavior. This prevents the select statement from
// racing between a ready channel and cancelled context.
func (m *ChannelMailbox[M, R]) Receive(
	ctx context.Context,
) iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		for {
			// Check context first for deterministic shutdown. This
			// ensures we stop receiving as soon as the context is
			// cancelled, rather than racing in the select.
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}

				if !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// Close closes the mailbox, preventing any further sends. This method is safe
// to call multiple times; only the first call will have an effect. The write
// lock blocks concurrent sends, preventing send-on-closed-channel panics.
func (m *ChannelMailbox[M, R]) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		remainingMsgs := len(m.ch)
		log.DebugS(m.actorCtx, "Mailbox closing",
			"remaining_messages", remainingMsgs)

		m.closed.Store(true)
		close(m.ch)
	})
}

// IsClosed returns true if the mailbox has been closed. This method performs a
// lock-free read using atomic operations.
func (m *ChannelMailbox[M, R]) IsClosed() bool {
	return m.closed.Load()
}

// Drain returns an iterator over any remaining envelopes in the mailbox. This
// should only be called after Close() has been invoked. The iterator will
// yield all remaining envelopes and then stop. If the mailbox is not closed,
// it returns immediately without draining.
func (m *ChannelMailbox[M, R]) Drain() iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		// Only drain if the mailbox has been closed.
		if !m.IsClosed() {
			return
		}

		// Drain remaining messages using a non-blocking select to avoid
		// hanging if the channel is empty.
		for {
			select {
			case env, ok := <-m.ch:
				// Channel was closed and fully drained.
				if !ok {
					return
				}

				// Yield the envelope. If yield returns false, the
				// consumer wants to stop early.
				if !yield(env) {
					return
				}

			default:
				// No more messages available, return.
				return
			}
		}
	}
}
