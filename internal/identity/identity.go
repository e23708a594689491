// Package identity defines the core addressing types used throughout Quark:
// actor identity, silo identity, and the stable hash function the placement
// ring is built on.
package identity

import (
	"errors"

	"github.com/cespare/xxhash/v2"
)

// ErrEmptyIdentifier is returned when an ActorType, ActorID, or SiloID is
// constructed from an empty string.
var ErrEmptyIdentifier = errors.New("identity: identifier must not be empty")

// ActorType names a class of actor (e.g. "Account", "Session"). All actors
// of the same type share a method dispatch table and a placement strategy.
type ActorType string

// NewActorType validates and returns an ActorType.
func NewActorType(s string) (ActorType, error) {
	if s == "" {
		return "", ErrEmptyIdentifier
	}
	return ActorType(s), nil
}

// ActorID uniquely identifies one actor instance within its ActorType.
type ActorID string

// NewActorID validates and returns an ActorID.
func NewActorID(s string) (ActorID, error) {
	if s == "" {
		return "", ErrEmptyIdentifier
	}
	return ActorID(s), nil
}

// SiloID uniquely identifies one silo (runtime process) in the cluster.
type SiloID string

// NewSiloID validates and returns a SiloID.
func NewSiloID(s string) (SiloID, error) {
	if s == "" {
		return "", ErrEmptyIdentifier
	}
	return SiloID(s), nil
}

// String implements fmt.Stringer.
func (t ActorType) String() string { return string(t) }

// String implements fmt.Stringer.
func (id ActorID) String() string { return string(id) }

// String implements fmt.Stringer.
func (s SiloID) String() string { return string(s) }

// Key uniquely names one addressable actor across the whole cluster: its
// type and its instance id.
type Key struct {
	Type ActorType
	ID   ActorID
}

// String renders the key as "type/id", the same form HashKey hashes over.
func (k Key) String() string {
	return string(k.Type) + "/" + string(k.ID)
}

// HashKey computes the stable 64-bit hash of an actor key used to place it
// on the consistent-hash ring. It is deliberately a pure function of
// (actorType, actorID) so every silo computes the same value independent of
// cluster membership.
func HashKey(actorType ActorType, actorID ActorID) uint64 {
	return xxhash.Sum64String(string(actorType) + "/" + string(actorID))
}

// HashString hashes an arbitrary string with the same function used for
// actor keys, for components (e.g. the placement ring's virtual nodes) that
// need the same stable hash over a different kind of input.
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}
