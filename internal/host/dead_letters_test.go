package host

import (
	"context"
	"testing"

	"github.com/quark-run/quark/internal/baselib/actor"
	"github.com/stretchr/testify/require"
)

// TestNewDeadLetterPoolRecordsUndeliverable verifies the pool accepts and
// responds to messages routed to it as a DLO, the same way the host routes
// an activation's refused Tell.
func TestNewDeadLetterPoolRecordsUndeliverable(t *testing.T) {
	t.Parallel()

	ref := newDeadLetterPool(2)

	future := ref.Ask(context.Background(), Invocation{Method: "Echo"})
	result := future.Await(context.Background())

	_, err := result.Unpack()
	require.Error(t, err)
}

// TestNewDeadLetterPoolDefaultsSize verifies a non-positive size falls back
// to DefaultDeadLetterPoolSize rather than constructing an empty pool (which
// would panic on the modulo-by-zero in Pool.Ask).
func TestNewDeadLetterPoolDefaultsSize(t *testing.T) {
	t.Parallel()

	ref := newDeadLetterPool(0)

	future := ref.Ask(context.Background(), Invocation{Method: "Echo"})
	_, err := future.Await(context.Background()).Unpack()
	require.Error(t, err)
}

// TestHostActivationUsesSharedDeadLetterPool verifies a Host wires its
// activations' DLO to the same pool rather than leaving it nil.
func TestHostActivationUsesSharedDeadLetterPool(t *testing.T) {
	t.Parallel()

	h := New("silo-a", WithIdleTimeout(0), WithDeadLetterPoolSize(1))
	require.NotNil(t, h.deadLetters)

	var zero actor.ActorRef[actor.Message, any]
	require.NotEqual(t, zero, h.deadLetters)
}
