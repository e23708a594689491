package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/quark-run/quark/internal/host"
	"github.com/quark-run/quark/internal/identity"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []host.Invocation
	err   error
}

func (d *recordingDispatcher) Dispatch(_ context.Context,
	inv host.Invocation) (host.InvocationResult, error) {

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, inv)
	if d.err != nil {
		return host.InvocationResult{}, d.err
	}
	return host.InvocationResult{}, nil
}

func (d *recordingDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func TestPollerFiresDueReminder(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	q := New(db)
	ctx := context.Background()
	now := time.Now()

	key := identity.Key{Type: "Subscription", ID: "u1"}
	require.NoError(t, q.Register(ctx, key, "renew", now, time.Hour, []byte("hi"), now))

	dispatcher := &recordingDispatcher{}
	poller := NewPoller(q, dispatcher, 100*time.Millisecond)
	poller.pollOnce()

	require.Equal(t, 1, dispatcher.callCount())
	require.Equal(t, OnReminderMethod, dispatcher.calls[0].Method)
	require.Equal(t, key, dispatcher.calls[0].Key)
}

func TestPollerLeavesEntryOnDispatchFailure(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	q := New(db)
	ctx := context.Background()
	now := time.Now()

	key := identity.Key{Type: "Subscription", ID: "u1"}
	require.NoError(t, q.Register(ctx, key, "renew", now, time.Hour, nil, now))

	failing := &recordingDispatcher{err: errBoom}
	poller := NewPoller(q, failing, 100*time.Millisecond)
	poller.pollOnce()

	due, err := q.SelectDue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 1, "entry should remain for retry after failed delivery")
}

var errBoom = &dispatchError{"boom"}

type dispatchError struct{ msg string }

func (e *dispatchError) Error() string { return e.msg }
