// Package cluster wires membership, placement, and the directory together:
// it drains a membership.Watcher's events, keeps the placement.Placer's ring
// and an AddressBook in sync with the observed cluster, and evicts a
// departed silo's directory entries so its actors get re-placed.
package cluster

import (
	"context"
	"sync"

	"github.com/quark-run/quark/internal/cluster/membership"
	"github.com/quark-run/quark/internal/cluster/placement"
	"github.com/quark-run/quark/internal/directory"
	"github.com/quark-run/quark/internal/identity"
)

// Coordinator drives the cluster-facing plumbing around a running silo.
type Coordinator struct {
	watcher   *membership.Watcher
	placer    *placement.Placer
	addresses *membership.AddressBook
	resolver  *directory.Resolver

	mu    sync.Mutex
	silos map[identity.SiloID]struct{}

	done chan struct{}
}

// NewCoordinator builds a Coordinator over an already-constructed watcher,
// placer, address book, and directory resolver.
func NewCoordinator(watcher *membership.Watcher, placer *placement.Placer,
	addresses *membership.AddressBook, resolver *directory.Resolver) *Coordinator {

	return &Coordinator{
		watcher:   watcher,
		placer:    placer,
		addresses: addresses,
		resolver:  resolver,
		silos:     make(map[identity.SiloID]struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins draining the watcher's event channel on a background
// goroutine until ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	go c.run(ctx)
}

// Wait blocks until the event-draining goroutine has exited.
func (c *Coordinator) Wait() {
	<-c.done
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			c.handleEvent(ctx, evt)
		}
	}
}

func (c *Coordinator) handleEvent(ctx context.Context, evt membership.Event) {
	c.addresses.ApplyEvent(evt)

	siloID := identity.SiloID(evt.Silo.SiloID)

	c.mu.Lock()
	switch evt.Kind {
	case membership.SiloJoined:
		c.silos[siloID] = struct{}{}
	case membership.SiloLeft:
		delete(c.silos, siloID)
	}

	ring := make([]identity.SiloID, 0, len(c.silos))
	for id := range c.silos {
		ring = append(ring, id)
	}
	c.mu.Unlock()

	c.placer.UpdateRing(ring)

	if evt.Kind == membership.SiloLeft {
		if err := c.resolver.EvictBySilo(ctx, siloID); err != nil {
			log.WarnS(ctx, "failed to evict directory entries for departed silo",
				"silo_id", siloID, "err", err)
		}
	}
}
