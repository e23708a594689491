package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quark-run/quark/internal/identity"
	"github.com/stretchr/testify/require"
)

func key(id string) identity.Key {
	return identity.Key{Type: "Worker", ID: identity.ActorID(id)}
}

func TestOneForOneAffectsOnlyFailedChild(t *testing.T) {
	t.Parallel()

	set := NewChildSet()
	set.Add(key("a"))
	set.Add(key("b"))
	set.Add(key("c"))

	decisions := set.Apply(OneForOne, key("b"), Restart)
	require.Len(t, decisions, 1)
	require.Equal(t, key("b"), decisions[0].Child)
	require.Equal(t, Restart, decisions[0].Directive)
}

func TestAllForOneAffectsEveryChild(t *testing.T) {
	t.Parallel()

	set := NewChildSet()
	set.Add(key("a"))
	set.Add(key("b"))
	set.Add(key("c"))

	decisions := set.Apply(AllForOne, key("b"), Stop)
	require.Len(t, decisions, 3)
	for _, d := range decisions {
		require.Equal(t, Stop, d.Directive)
	}
}

func TestRestForOneAffectsFailedAndLaterChildren(t *testing.T) {
	t.Parallel()

	set := NewChildSet()
	set.Add(key("a"))
	set.Add(key("b"))
	set.Add(key("c"))

	decisions := set.Apply(RestForOne, key("b"), Restart)
	require.Len(t, decisions, 2)
	require.Equal(t, key("b"), decisions[0].Child)
	require.Equal(t, key("c"), decisions[1].Child)
}

func TestChildSetRemovePreservesOrder(t *testing.T) {
	t.Parallel()

	set := NewChildSet()
	set.Add(key("a"))
	set.Add(key("b"))
	set.Add(key("c"))
	set.Remove(key("b"))

	require.Equal(t, []identity.Key{key("a"), key("c")}, set.Children())

	decisions := set.Apply(RestForOne, key("c"), Restart)
	require.Len(t, decisions, 1)
	require.Equal(t, key("c"), decisions[0].Child)
}

func TestRestartGuardPromotesToStopPastThreshold(t *testing.T) {
	t.Parallel()

	guard := NewRestartGuard(time.Minute, 2)
	child := key("a")
	now := time.Now()

	require.Equal(t, Restart, guard.Apply(child, Restart, now))
	require.Equal(t, Restart, guard.Apply(child, Restart, now.Add(time.Second)))
	require.Equal(t, Stop, guard.Apply(child, Restart, now.Add(2*time.Second)))
}

func TestRestartGuardWindowExpires(t *testing.T) {
	t.Parallel()

	guard := NewRestartGuard(10*time.Second, 1)
	child := key("a")
	now := time.Now()

	require.Equal(t, Restart, guard.Apply(child, Restart, now))
	require.Equal(t, Stop, guard.Apply(child, Restart, now.Add(time.Second)))

	// Past the window, the earlier failures no longer count.
	require.Equal(t, Restart, guard.Apply(child, Restart, now.Add(20*time.Second)))
}

func TestRestartGuardPassesThroughNonRestartDirectives(t *testing.T) {
	t.Parallel()

	guard := NewRestartGuard(time.Minute, 0)
	require.Equal(t, Stop, guard.Apply(key("a"), Stop, time.Now()))
	require.Equal(t, Escalate, guard.Apply(key("a"), Escalate, time.Now()))
}

func TestSupervisorFuncAdapter(t *testing.T) {
	t.Parallel()

	called := false
	var fn Supervisor = SupervisorFunc(func(_ context.Context, fc FailureContext) Directive {
		called = true
		require.ErrorIs(t, fc.Err, errBoom)
		return Escalate
	})

	got := fn.OnChildFailure(context.Background(), FailureContext{
		Child: key("a"), Err: errBoom, Attempt: 1,
	})
	require.True(t, called)
	require.Equal(t, Escalate, got)
}

var errBoom = errors.New("boom")
