package identity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingOwnerIsDeterministic(t *testing.T) {
	t.Parallel()

	silos := []SiloID{"silo-a", "silo-b", "silo-c"}
	ring := NewRing(silos)

	key := Key{Type: "Account", ID: "123"}
	owner1, ok1 := ring.OwnerOfKey(key)
	owner2, ok2 := ring.OwnerOfKey(key)

	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, owner1, owner2)
}

func TestRingEmpty(t *testing.T) {
	t.Parallel()

	ring := NewRing(nil)
	require.True(t, ring.Empty())

	_, ok := ring.OwnerOfKey(Key{Type: "Account", ID: "1"})
	require.False(t, ok)
}

func TestRingMinimalDisruption(t *testing.T) {
	t.Parallel()

	base := []SiloID{"silo-a", "silo-b", "silo-c", "silo-d"}
	oldRing := NewRing(base)
	newRing := NewRing(append(append([]SiloID{}, base...), "silo-e"))

	var sample []uint64
	for i := 0; i < 2000; i++ {
		sample = append(sample, HashString(fmt.Sprintf("key-%d", i)))
	}

	moved := Diff(oldRing, newRing, sample)

	// Adding a 5th silo to a 4-silo ring should move roughly 1/5th of
	// the keys, not anywhere near all of them.
	require.Less(t, moved, len(sample)/2)
}

func TestRingAllSilosReachable(t *testing.T) {
	t.Parallel()

	silos := []SiloID{"silo-a", "silo-b", "silo-c"}
	ring := NewRing(silos)

	owned := make(map[SiloID]int)
	for i := 0; i < 3000; i++ {
		h := HashString(fmt.Sprintf("key-%d", i))
		owner, ok := ring.Owner(h)
		require.True(t, ok)
		owned[owner]++
	}

	for _, s := range silos {
		require.Greater(t, owned[s], 0, "silo %s received no keys", s)
	}
}
