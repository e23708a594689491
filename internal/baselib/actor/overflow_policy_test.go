package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestOverflowPolicyDropNewestRefusesIncoming verifies that DropNewest
// leaves a full mailbox's queue untouched and rejects the envelope that
// didn't fit.
func TestOverflowPolicyDropNewestRefusesIncoming(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailbox := NewChannelMailbox[*testMessage, string](
		actorCtx, 1, WithOverflowPolicy[*testMessage, string](DropNewest),
	)
	defer mailbox.Close()

	first := envelope[*testMessage, string]{message: &testMessage{value: 1}}
	require.True(t, mailbox.Send(context.Background(), first))

	second := envelope[*testMessage, string]{message: &testMessage{value: 2}}
	ok := mailbox.Send(context.Background(), second)
	require.False(t, ok, "DropNewest should refuse the incoming envelope")

	for env := range mailbox.Receive(context.Background()) {
		require.Equal(t, 1, env.message.value,
			"the originally queued envelope should survive untouched")
		break
	}
}

// TestOverflowPolicyFailFastRefusesImmediately verifies FailFast behaves
// like DropNewest in effect (the incoming envelope is rejected, the queue
// untouched) without ever blocking.
func TestOverflowPolicyFailFastRefusesImmediately(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailbox := NewChannelMailbox[*testMessage, string](
		actorCtx, 1, WithOverflowPolicy[*testMessage, string](FailFast),
	)
	defer mailbox.Close()

	first := envelope[*testMessage, string]{message: &testMessage{value: 1}}
	require.True(t, mailbox.Send(context.Background(), first))

	done := make(chan bool, 1)
	go func() {
		second := envelope[*testMessage, string]{message: &testMessage{value: 2}}
		done <- mailbox.Send(context.Background(), second)
	}()

	select {
	case ok := <-done:
		require.False(t, ok, "FailFast should refuse rather than block")
	case <-time.After(time.Second):
		t.Fatal("FailFast Send blocked instead of failing fast")
	}
}

// TestOverflowPolicyDropOldestEvictsQueuedEnvelope verifies that DropOldest
// makes room for the incoming envelope by evicting the oldest queued one,
// and that an evicted Ask envelope's promise is completed with
// ErrMailboxFull rather than left to hang.
func TestOverflowPolicyDropOldestEvictsQueuedEnvelope(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailbox := NewChannelMailbox[*testMessage, string](
		actorCtx, 1, WithOverflowPolicy[*testMessage, string](DropOldest),
	)
	defer mailbox.Close()

	promise := NewPromise[string]()
	oldest := envelope[*testMessage, string]{
		message: &testMessage{value: 1},
		promise: promise,
	}
	require.True(t, mailbox.Send(context.Background(), oldest))

	newest := envelope[*testMessage, string]{message: &testMessage{value: 2}}
	ok := mailbox.Send(context.Background(), newest)
	require.True(t, ok, "DropOldest should make room for the new envelope")

	result := promise.Future().Await(context.Background())
	_, err := result.Unpack()
	require.ErrorIs(t, err, ErrMailboxFull)

	for env := range mailbox.Receive(context.Background()) {
		require.Equal(t, 2, env.message.value,
			"only the newest envelope should remain queued")
		break
	}
}

// TestOverflowPolicyBlockIsDefault verifies the zero-value policy preserves
// the mailbox's historical blocking behavior.
func TestOverflowPolicyBlockIsDefault(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailbox := NewChannelMailbox[*testMessage, string](actorCtx, 1)
	defer mailbox.Close()

	first := envelope[*testMessage, string]{message: &testMessage{value: 1}}
	require.True(t, mailbox.Send(context.Background(), first))

	sendCtx, sendCancel := context.WithTimeout(
		context.Background(), 50*time.Millisecond,
	)
	defer sendCancel()

	second := envelope[*testMessage, string]{message: &testMessage{value: 2}}
	ok := mailbox.Send(sendCtx, second)
	require.False(t, ok, "Block should wait and then fail once sendCtx expires")
}
