package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/quark-run/quark/internal/host"
	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/transport"
)

// Dispatch resolves key's owning silo and invokes method on it with args,
// decoding the typed Result. A local resolution short-circuits straight
// into the silo's own host.Host, bypassing transport entirely; a remote
// resolution goes over p.Remote.
func Dispatch[Args any, Result any](ctx context.Context, p *Proxy,
	key identity.Key, method string, args Args) (Result, error) {

	var zero Result

	siloID, err := p.Resolver.Resolve(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("resolve %s: %w", key, err)
	}

	argsBlob, err := p.Codec.Encode(args)
	if err != nil {
		return zero, fmt.Errorf("encode args: %w", err)
	}

	chainID := chainIDFrom(ctx)

	var resultBlob []byte
	if siloID == p.LocalSiloID {
		resultBlob, err = p.dispatchLocal(ctx, key, method, argsBlob, chainID)
	} else {
		resultBlob, err = p.dispatchRemote(ctx, siloID, key, method, argsBlob, chainID)
	}
	if err != nil {
		return zero, err
	}

	var result Result
	if len(resultBlob) == 0 {
		return result, nil
	}
	if err := p.Codec.Decode(resultBlob, &result); err != nil {
		return zero, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}

func (p *Proxy) dispatchLocal(ctx context.Context, key identity.Key,
	method string, argsBlob []byte, chainID string) ([]byte, error) {

	result, err := p.Host.Dispatch(ctx, host.Invocation{
		Key:     key,
		Method:  method,
		Args:    argsBlob,
		ChainID: chainID,
	})
	if err != nil {
		return nil, err
	}
	return result.Payload, nil
}

func (p *Proxy) dispatchRemote(ctx context.Context, siloID identity.SiloID,
	key identity.Key, method string, argsBlob []byte,
	chainID string) ([]byte, error) {

	addr, ok := p.Addresses.Lookup(siloID)
	if !ok {
		return nil, fmt.Errorf("proxy: no known address for silo %s", siloID)
	}

	req := transport.RequestFrame{
		ActorType:  key.Type,
		ActorID:    key.ID,
		MethodName: method,
		ArgsBlob:   argsBlob,
		ChainID:    chainID,
	}
	if deadline, ok := ctx.Deadline(); ok {
		req.Deadline = deadline
	} else {
		req.Deadline = time.Now().Add(30 * time.Second)
	}

	resp, err := p.Remote.Invoke(ctx, addr, req)
	if err != nil {
		return nil, err
	}
	if resp.ResultKind != transport.ResultOk {
		return nil, remoteError(resp)
	}
	return resp.ResultBlob, nil
}
