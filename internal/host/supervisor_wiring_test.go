package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/supervisor"
	"github.com/stretchr/testify/require"
)

var errHandlerFailed = errors.New("handler failed")

// faultyFactory always fails its "Fail" method and panics on "Panic", so
// tests can drive activation.handleFailure deterministically. deactivated
// is signaled on a channel rather than just counted, since Restart/Stop/
// Escalate deactivate asynchronously from a goroutine.
type faultyFactory struct {
	activated   int
	deactivated chan struct{}
}

func newFaultyFactory() *faultyFactory {
	return &faultyFactory{deactivated: make(chan struct{}, 8)}
}

func (f *faultyFactory) OnActivate(*ActorContext) error {
	f.activated++
	return nil
}

func (f *faultyFactory) OnDeactivate(*ActorContext) error {
	f.deactivated <- struct{}{}
	return nil
}

func (f *faultyFactory) Dispatch(method string) (MethodHandler, bool) {
	switch method {
	case "Fail":
		return func(*ActorContext, []byte) ([]byte, error) {
			return nil, errHandlerFailed
		}, true
	case "Panic":
		return func(*ActorContext, []byte) ([]byte, error) {
			panic("boom")
		}, true
	default:
		return nil, false
	}
}

func waitForDeactivation(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected activation to be deactivated")
	}
}

func TestSupervisorResumeLeavesActivationRunning(t *testing.T) {
	t.Parallel()

	var seen supervisor.FailureContext
	sup := supervisor.SupervisorFunc(func(_ context.Context, fc supervisor.FailureContext) supervisor.Directive {
		seen = fc
		return supervisor.Resume
	})

	factory := newFaultyFactory()
	h := New("silo-a", WithIdleTimeout(0), WithSupervisor(sup))
	h.Register("Faulty", factory)

	key := identity.Key{Type: "Faulty", ID: "1"}
	_, err := h.Dispatch(context.Background(), Invocation{Key: key, Method: "Fail"})
	require.ErrorIs(t, err, errHandlerFailed)

	require.Equal(t, key, seen.Child)
	require.Equal(t, 1, seen.Attempt)
	require.ErrorIs(t, seen.Err, errHandlerFailed)

	// Resume: the activation is untouched, still the same one, no
	// deactivation fired.
	require.Equal(t, 1, h.ActiveCount())
	select {
	case <-factory.deactivated:
		t.Fatal("Resume should not deactivate")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSupervisorRestartReactivatesFactory(t *testing.T) {
	t.Parallel()

	sup := supervisor.SupervisorFunc(func(context.Context, supervisor.FailureContext) supervisor.Directive {
		return supervisor.Restart
	})

	factory := newFaultyFactory()
	h := New("silo-a", WithIdleTimeout(0), WithSupervisor(sup))
	h.Register("Faulty", factory)

	key := identity.Key{Type: "Faulty", ID: "1"}
	_, err := h.Dispatch(context.Background(), Invocation{Key: key, Method: "Fail"})
	require.ErrorIs(t, err, errHandlerFailed)

	waitForDeactivation(t, factory.deactivated)
	require.Equal(t, 1, factory.activated)

	// Next dispatch lazily reactivates via OnActivate again.
	_, err = h.Dispatch(context.Background(), Invocation{Key: key, Method: "Fail"})
	require.ErrorIs(t, err, errHandlerFailed)
	require.Equal(t, 2, factory.activated)
}

func TestSupervisorStopDeactivatesActivation(t *testing.T) {
	t.Parallel()

	sup := supervisor.SupervisorFunc(func(context.Context, supervisor.FailureContext) supervisor.Directive {
		return supervisor.Stop
	})

	factory := newFaultyFactory()
	h := New("silo-a", WithIdleTimeout(0), WithSupervisor(sup))
	h.Register("Faulty", factory)

	key := identity.Key{Type: "Faulty", ID: "1"}
	_, err := h.Dispatch(context.Background(), Invocation{Key: key, Method: "Fail"})
	require.ErrorIs(t, err, errHandlerFailed)

	waitForDeactivation(t, factory.deactivated)
}

func TestSupervisorEscalateDeactivatesActivation(t *testing.T) {
	t.Parallel()

	sup := supervisor.SupervisorFunc(func(context.Context, supervisor.FailureContext) supervisor.Directive {
		return supervisor.Escalate
	})

	factory := newFaultyFactory()
	h := New("silo-a", WithIdleTimeout(0), WithSupervisor(sup))
	h.Register("Faulty", factory)

	key := identity.Key{Type: "Faulty", ID: "1"}
	_, err := h.Dispatch(context.Background(), Invocation{Key: key, Method: "Fail"})
	require.ErrorIs(t, err, errHandlerFailed)

	waitForDeactivation(t, factory.deactivated)
}

func TestSupervisorRecoversPanicAsFailure(t *testing.T) {
	t.Parallel()

	var seenErr error
	sup := supervisor.SupervisorFunc(func(_ context.Context, fc supervisor.FailureContext) supervisor.Directive {
		seenErr = fc.Err
		return supervisor.Stop
	})

	factory := newFaultyFactory()
	h := New("silo-a", WithIdleTimeout(0), WithSupervisor(sup))
	h.Register("Faulty", factory)

	key := identity.Key{Type: "Faulty", ID: "1"}
	_, err := h.Dispatch(context.Background(), Invocation{Key: key, Method: "Panic"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	waitForDeactivation(t, factory.deactivated)
	require.Error(t, seenErr)
	require.Contains(t, seenErr.Error(), "boom")
}

func TestNoSupervisorLeavesFailurePlain(t *testing.T) {
	t.Parallel()

	factory := newFaultyFactory()
	h := New("silo-a", WithIdleTimeout(0))
	h.Register("Faulty", factory)

	key := identity.Key{Type: "Faulty", ID: "1"}
	_, err := h.Dispatch(context.Background(), Invocation{Key: key, Method: "Fail"})
	require.ErrorIs(t, err, errHandlerFailed)
	require.Equal(t, 1, h.ActiveCount())
}
