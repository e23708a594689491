package membership

import (
	"sync"

	"github.com/quark-run/quark/internal/identity"
)

// AddressBook tracks the transport address of every silo the Watcher has
// observed, implementing proxy.AddressBook so the proxy can reach a remote
// silo once the directory has resolved which one owns a given actor.
type AddressBook struct {
	mu    sync.RWMutex
	addrs map[identity.SiloID]string
}

// NewAddressBook returns an empty AddressBook.
func NewAddressBook() *AddressBook {
	return &AddressBook{addrs: make(map[identity.SiloID]string)}
}

// Lookup implements proxy.AddressBook.
func (b *AddressBook) Lookup(siloID identity.SiloID) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	addr, ok := b.addrs[siloID]
	return addr, ok
}

// ApplyEvent updates the address book from one membership Event: a Joined
// silo's address is recorded, a Left silo's address is forgotten so stale
// entries don't linger and get dialed after the silo is gone.
func (b *AddressBook) ApplyEvent(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	siloID := identity.SiloID(evt.Silo.SiloID)
	switch evt.Kind {
	case SiloJoined:
		b.addrs[siloID] = evt.Silo.Address
	case SiloLeft:
		delete(b.addrs, siloID)
	}
}
