package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ConnPool hands out one pooled *grpc.ClientConn per remote silo address,
// relying on gRPC's own keepalive/backoff for automatic reconnect.
type ConnPool struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewConnPool returns an empty pool.
func NewConnPool() *ConnPool {
	return &ConnPool{conns: make(map[string]*grpc.ClientConn)}
}

func (p *ConnPool) get(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[addr]; ok {
		return conn, nil
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(frameCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	p.conns[addr] = conn
	return conn, nil
}

// Close tears down every pooled connection.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for addr, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, addr)
	}
	return firstErr
}

// GrpcTransport implements Invoke over the pooled connections in Pool.
type GrpcTransport struct {
	Pool *ConnPool
}

// NewGrpcTransport constructs a GrpcTransport backed by a fresh ConnPool.
func NewGrpcTransport() *GrpcTransport {
	return &GrpcTransport{Pool: NewConnPool()}
}

// Invoke opens a fresh stream to addr, tagged with a new CorrelationID if
// req doesn't already carry one, sends req, and waits for the matching
// ResponseFrame.
func (t *GrpcTransport) Invoke(ctx context.Context, addr string,
	req RequestFrame) (ResponseFrame, error) {

	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	conn, err := t.Pool.get(addr)
	if err != nil {
		return ResponseFrame{}, err
	}

	stream, err := conn.NewStream(ctx, &invokeStreamDesc,
		fmt.Sprintf("/%s/%s", serviceName, streamMethodName))
	if err != nil {
		return ResponseFrame{}, fmt.Errorf("open stream to %s: %w", addr, err)
	}

	if err := stream.SendMsg(&req); err != nil {
		return ResponseFrame{}, fmt.Errorf("send request frame: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return ResponseFrame{}, fmt.Errorf("close send: %w", err)
	}

	var msg any
	if err := stream.RecvMsg(&msg); err != nil {
		return ResponseFrame{}, fmt.Errorf("recv response frame: %w", err)
	}

	resp, ok := msg.(*ResponseFrame)
	if !ok {
		return ResponseFrame{}, fmt.Errorf("unexpected response type %T", msg)
	}

	return *resp, nil
}

// Cancel sends a best-effort CancelFrame for an in-flight invocation. Since
// each Invoke uses its own short-lived stream, cancellation in practice is
// usually achieved by cancelling ctx instead; Cancel exists for transports
// that keep a longer-lived stream open per silo pair.
func (t *GrpcTransport) Cancel(ctx context.Context, addr string, c CancelFrame) error {
	conn, err := t.Pool.get(addr)
	if err != nil {
		return err
	}

	stream, err := conn.NewStream(ctx, &invokeStreamDesc,
		fmt.Sprintf("/%s/%s", serviceName, streamMethodName))
	if err != nil {
		return fmt.Errorf("open stream to %s: %w", addr, err)
	}

	if err := stream.SendMsg(&c); err != nil {
		return fmt.Errorf("send cancel frame: %w", err)
	}
	return stream.CloseSend()
}
