// Package placement resolves which silo should host a given actor, backed
// by a consistent-hash ring over the current membership view plus a small
// sticky cache so repeated lookups for the same actor don't recompute the
// ring walk.
package placement

import (
	"sync"

	"github.com/quark-run/quark/internal/identity"
)

// Placer resolves actor keys to the silo that currently owns them on the
// ring, and is kept up to date by calling UpdateRing whenever the cluster
// membership watcher observes a change.
type Placer struct {
	mu   sync.RWMutex
	ring *identity.Ring

	// sticky caches the last-resolved owner per key so that, once an
	// actor has been placed and registered in the directory, repeated
	// local placement queries don't need to walk the ring again. It is
	// invalidated wholesale on every ring rebuild, since a rebuild can
	// change any key's owner.
	sticky map[identity.Key]identity.SiloID
}

// NewPlacer constructs a Placer with no silos; it will report every lookup
// as unresolved until UpdateRing is called.
func NewPlacer(opts ...identity.RingOption) *Placer {
	return &Placer{
		ring:   identity.NewRing(nil, opts...),
		sticky: make(map[identity.Key]identity.SiloID),
	}
}

// UpdateRing rebuilds the ring from the given silo set. Any sticky
// placements computed against the old ring are discarded, since the
// membership change may have altered ownership for any key.
func (p *Placer) UpdateRing(silos []identity.SiloID, opts ...identity.RingOption) {
	newRing := identity.NewRing(silos, opts...)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.ring = newRing
	p.sticky = make(map[identity.Key]identity.SiloID)
}

// Resolve returns the silo that should host key: the sticky placement if
// one is recorded, otherwise the ring's current owner for the key's hash.
func (p *Placer) Resolve(key identity.Key) (identity.SiloID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if silo, ok := p.sticky[key]; ok {
		return silo, true
	}

	return p.ring.OwnerOfKey(key)
}

// Pin records a sticky placement for key, overriding the ring's computed
// owner until the next UpdateRing. Callers use this once a directory
// CAS-registration for the actor succeeds, so subsequent calls route to the
// same silo even if the ring's virtual-node layout would otherwise have
// picked a different owner due to a since-reverted membership blip.
func (p *Placer) Pin(key identity.Key, silo identity.SiloID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sticky[key] = silo
}

// Unpin removes a sticky placement, used when an actor deactivates or its
// directory entry is evicted.
func (p *Placer) Unpin(key identity.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.sticky, key)
}

// Silos returns the silos currently on the ring.
func (p *Placer) Silos() []identity.SiloID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.ring.Silos()
}
