package streams

import (
	"context"
	"testing"
	"time"

	"github.com/quark-run/quark/internal/baselib/actor"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *Handle {
	t.Helper()

	a := actor.NewActor(actor.ActorConfig[BrokerRequest, BrokerResponse]{
		ID:          "test-broker",
		Behavior:    NewBroker(),
		MailboxSize: 64,
	})
	a.Start()
	t.Cleanup(a.Stop)

	return NewHandle(a.Ref())
}

func TestSubscribePublishDeliversEnvelope(t *testing.T) {
	ctx := context.Background()
	h := newTestBroker(t)

	token, msgs, err := h.Subscribe(ctx, "orders", "o1", DefaultStreamConfig())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	delivered, err := h.Publish(ctx, "orders", "o1", "hello")
	require.NoError(t, err)
	require.Equal(t, 1, delivered)

	select {
	case env := <-msgs:
		require.Equal(t, Namespace("orders"), env.Namespace)
		require.Equal(t, Key("o1"), env.Key)
		require.Equal(t, "hello", env.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	h := newTestBroker(t)

	token, msgs, err := h.Subscribe(ctx, "orders", "o1", DefaultStreamConfig())
	require.NoError(t, err)

	require.NoError(t, h.Unsubscribe(ctx, "orders", "o1", token))

	delivered, err := h.Publish(ctx, "orders", "o1", "hello")
	require.NoError(t, err)
	require.Equal(t, 0, delivered)

	_, ok := <-msgs
	require.False(t, ok, "channel should be closed after unsubscribe")
}

func TestPublishWithNoSubscribersDeliversZero(t *testing.T) {
	ctx := context.Background()
	h := newTestBroker(t)

	delivered, err := h.Publish(ctx, "orders", "missing", "hello")
	require.NoError(t, err)
	require.Equal(t, 0, delivered)
}

func TestDropNewestPolicyDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	h := newTestBroker(t)

	cfg := StreamConfig{BufferSize: 1, Policy: DropNewest}
	_, msgs, err := h.Subscribe(ctx, "prices", "btc", cfg)
	require.NoError(t, err)

	_, err = h.Publish(ctx, "prices", "btc", 1)
	require.NoError(t, err)
	delivered, err := h.Publish(ctx, "prices", "btc", 2)
	require.NoError(t, err)
	require.Equal(t, 0, delivered)

	env := <-msgs
	require.Equal(t, 1, env.Payload)

	m, err := h.Metrics(ctx, "prices", "btc")
	require.NoError(t, err)
	require.EqualValues(t, 1, m.Published)
	require.EqualValues(t, 1, m.Dropped)
}

func TestDropOldestPolicyEvictsOldest(t *testing.T) {
	ctx := context.Background()
	h := newTestBroker(t)

	cfg := StreamConfig{BufferSize: 1, Policy: DropOldest}
	_, msgs, err := h.Subscribe(ctx, "prices", "eth", cfg)
	require.NoError(t, err)

	_, err = h.Publish(ctx, "prices", "eth", 1)
	require.NoError(t, err)
	delivered, err := h.Publish(ctx, "prices", "eth", 2)
	require.NoError(t, err)
	require.Equal(t, 1, delivered)

	env := <-msgs
	require.Equal(t, 2, env.Payload)
}

func TestThrottlePolicyLimitsPerWindow(t *testing.T) {
	ctx := context.Background()
	h := newTestBroker(t)

	cfg := StreamConfig{
		BufferSize:   8,
		Policy:       Throttle,
		MaxPerWindow: 1,
		Window:       time.Minute,
	}
	_, msgs, err := h.Subscribe(ctx, "events", "e1", cfg)
	require.NoError(t, err)

	delivered1, err := h.Publish(ctx, "events", "e1", "a")
	require.NoError(t, err)
	require.Equal(t, 1, delivered1)

	delivered2, err := h.Publish(ctx, "events", "e1", "b")
	require.NoError(t, err)
	require.Equal(t, 0, delivered2)

	m, err := h.Metrics(ctx, "events", "e1")
	require.NoError(t, err)
	require.EqualValues(t, 1, m.Throttled)

	require.Len(t, msgs, 1)
}

func TestBlockPolicyRespectsContextCancellation(t *testing.T) {
	h := newTestBroker(t)
	bgCtx := context.Background()

	cfg := StreamConfig{BufferSize: 1, Policy: Block}
	_, _, err := h.Subscribe(bgCtx, "jobs", "j1", cfg)
	require.NoError(t, err)

	_, err = h.Publish(bgCtx, "jobs", "j1", "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(bgCtx, 50*time.Millisecond)
	defer cancel()

	delivered, err := h.Publish(ctx, "jobs", "j1", "second")
	require.NoError(t, err)
	require.Equal(t, 0, delivered, "blocked send should give up once the caller's deadline expires")
}

func TestMetricsUnknownStreamReturnsZeroValue(t *testing.T) {
	ctx := context.Background()
	h := newTestBroker(t)

	m, err := h.Metrics(ctx, "nothing", "here")
	require.NoError(t, err)
	require.Equal(t, Metrics{}, m)
}
