package host

import (
	"context"
	"testing"
	"time"

	"github.com/quark-run/quark/internal/identity"
	"github.com/stretchr/testify/require"
)

// echoFactory is a minimal Factory whose only method echoes its input, and
// whose "self-call" method reenters itself once via ctx.Dispatch on the same
// chain, exercising the reentrancy carve-out.
type echoFactory struct {
	activated   int
	deactivated int
}

func (f *echoFactory) OnActivate(*ActorContext) error {
	f.activated++
	return nil
}

func (f *echoFactory) OnDeactivate(*ActorContext) error {
	f.deactivated++
	return nil
}

func (f *echoFactory) Dispatch(method string) (MethodHandler, bool) {
	switch method {
	case "Echo":
		return func(_ *ActorContext, args []byte) ([]byte, error) {
			return args, nil
		}, true

	case "CallSelf":
		return func(ctx *ActorContext, args []byte) ([]byte, error) {
			result, err := ctx.Dispatch(ctx.Context(), ctx.key, "Echo", args)
			if err != nil {
				return nil, err
			}
			return result.Payload, nil
		}, true

	default:
		return nil, false
	}
}

func TestHostActivatesLazily(t *testing.T) {
	t.Parallel()

	factory := &echoFactory{}
	h := New("silo-a", WithIdleTimeout(0))
	h.Register("Echo", factory)

	require.Equal(t, 0, h.ActiveCount())

	key := identity.Key{Type: "Echo", ID: "1"}
	result, err := h.Dispatch(context.Background(), Invocation{
		Key:    key,
		Method: "Echo",
		Args:   []byte("hello"),
	})
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), result.Payload)
	require.Equal(t, 1, h.ActiveCount())
	require.Equal(t, 1, factory.activated)
}

func TestHostUnknownActorType(t *testing.T) {
	t.Parallel()

	h := New("silo-a")

	_, err := h.Dispatch(context.Background(), Invocation{
		Key:    identity.Key{Type: "Missing", ID: "1"},
		Method: "Echo",
	})
	require.ErrorIs(t, err, ErrUnknownActorType)
}

func TestHostReentrantSameChainDoesNotDeadlock(t *testing.T) {
	t.Parallel()

	factory := &echoFactory{}
	h := New("silo-a", WithIdleTimeout(0))
	h.Register("Echo", factory)

	key := identity.Key{Type: "Echo", ID: "1"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, err := h.Dispatch(context.Background(), Invocation{
			Key:     key,
			Method:  "CallSelf",
			Args:    []byte("reentrant"),
			ChainID: "chain-1",
		})
		require.NoError(t, err)
		require.Equal(t, []byte("reentrant"), result.Payload)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reentrant call deadlocked")
	}
}

func TestHostDeactivateInvokesHook(t *testing.T) {
	t.Parallel()

	factory := &echoFactory{}
	h := New("silo-a", WithIdleTimeout(0))
	h.Register("Echo", factory)

	key := identity.Key{Type: "Echo", ID: "1"}
	_, err := h.Dispatch(context.Background(), Invocation{Key: key, Method: "Echo"})
	require.NoError(t, err)

	require.NoError(t, h.Deactivate(context.Background(), key))
	require.Equal(t, 1, factory.deactivated)
	require.Equal(t, 0, h.ActiveCount())
}
