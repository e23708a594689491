// Package proxy implements the client-side call path: resolve an actor's
// owning silo, then either short-circuit straight into the local host or
// invoke it over transport, all behind one generic typed call.
package proxy

import (
	"context"

	"github.com/google/uuid"
	"github.com/quark-run/quark/internal/directory"
	"github.com/quark-run/quark/internal/host"
	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/transport"
)

// AddressBook maps a SiloID to the network address of its transport
// listener, e.g. backed by membership.Store entries.
type AddressBook interface {
	Lookup(siloID identity.SiloID) (addr string, ok bool)
}

// RemoteInvoker is the narrow transport.GrpcTransport surface a Proxy needs,
// so tests can substitute a fake.
type RemoteInvoker interface {
	Invoke(ctx context.Context, addr string, req transport.RequestFrame) (transport.ResponseFrame, error)
}

// Proxy is the per-silo client stub: it knows which silo it's running on
// (for the local short-circuit), how to resolve an actor's owning silo, how
// to reach a remote silo's address, and how to invoke it once resolved.
type Proxy struct {
	LocalSiloID identity.SiloID
	Resolver    *directory.Resolver
	Host        *host.Host
	Addresses   AddressBook
	Remote      RemoteInvoker
	Codec       transport.Codec
}

// New constructs a Proxy. codec defaults to transport.GobCodec{} if nil.
func New(localSiloID identity.SiloID, resolver *directory.Resolver,
	h *host.Host, addresses AddressBook, remote RemoteInvoker,
	codec transport.Codec) *Proxy {

	if codec == nil {
		codec = transport.GobCodec{}
	}

	return &Proxy{
		LocalSiloID: localSiloID,
		Resolver:    resolver,
		Host:        h,
		Addresses:   addresses,
		Remote:      remote,
		Codec:       codec,
	}
}

type chainIDKey struct{}

// WithChainID attaches a reentrancy ChainID to ctx, propagated across
// Dispatch calls so a cycle back into the original caller can be detected
// and invoked directly instead of deadlocking on its own mailbox.
func WithChainID(ctx context.Context, chainID string) context.Context {
	return context.WithValue(ctx, chainIDKey{}, chainID)
}

// chainIDFrom returns the ChainID carried by ctx, generating a fresh one if
// this is the start of a new call chain.
func chainIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(chainIDKey{}).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}
