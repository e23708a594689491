package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/keepalive"
)

func init() {
	encoding.RegisterCodec(frameCodec{})
}

// FrameHandler processes one RequestFrame arriving over a transport stream
// and produces the ResponseFrame to send back. Implementations typically
// delegate straight into a local host.Host.Dispatch.
type FrameHandler interface {
	HandleRequest(ctx context.Context, req RequestFrame) ResponseFrame
	HandleCancel(ctx context.Context, cancel CancelFrame)
}

// ServerConfig configures the Transport gRPC server, mirroring the
// keepalive knobs of the teacher's own gRPC server configuration.
type ServerConfig struct {
	ListenAddr string

	ServerPingTime    time.Duration
	ServerPingTimeout time.Duration
}

// DefaultServerConfig returns sane keepalive defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:        "localhost:7420",
		ServerPingTime:    5 * time.Minute,
		ServerPingTimeout: 1 * time.Minute,
	}
}

// Server is the gRPC-backed Transport listener for one silo.
type Server struct {
	cfg     ServerConfig
	handler FrameHandler

	grpcServer *grpc.Server
	listener   net.Listener

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewServer constructs a Transport server that delegates incoming requests
// to handler.
func NewServer(cfg ServerConfig, handler FrameHandler) *Server {
	return &Server{cfg: cfg, handler: handler, quit: make(chan struct{})}
}

func (s *Server) frameHandler() FrameHandler { return s.handler }

// Start binds the listen address and begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("transport server already started")
	}

	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = lis

	s.grpcServer = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    s.cfg.ServerPingTime,
			Timeout: s.cfg.ServerPingTimeout,
		}),
	)
	s.grpcServer.RegisterService(&transportServiceDesc, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.InfoS(context.Background(), "transport server listening",
			"addr", s.cfg.ListenAddr)
		if err := s.grpcServer.Serve(lis); err != nil {
			select {
			case <-s.quit:
			default:
				log.ErrorS(context.Background(),
					"transport server error", err)
			}
		}
	}()

	s.started = true
	return nil
}

// Stop gracefully drains in-flight streams and stops serving.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.quit)
	s.grpcServer.GracefulStop()
	s.wg.Wait()
	s.started = false

	return nil
}

// invokeStreamHandler is the grpc.StreamHandler for the Invoke method. One
// call serves one bidirectional stream and accepts any number of
// RequestFrame/CancelFrame messages on it, each reply carrying its request's
// CorrelationID, with ResponseFrame replies serialized by sendMu since only
// one goroutine may call SendMsg on a grpc.ServerStream at a time.
// GrpcTransport opens a new stream for every Invoke and Cancel call.
func invokeStreamHandler(srv any, stream grpc.ServerStream) error {
	host, ok := srv.(streamHandlerHost)
	if !ok {
		return fmt.Errorf("transport: unexpected handler type %T", srv)
	}
	handler := host.frameHandler()

	var sendMu sync.Mutex
	var wg sync.WaitGroup

	for {
		var msg any
		if err := stream.RecvMsg(&msg); err != nil {
			wg.Wait()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch frame := msg.(type) {
		case *RequestFrame:
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp := handler.HandleRequest(stream.Context(), *frame)

				sendMu.Lock()
				defer sendMu.Unlock()
				_ = stream.SendMsg(&resp)
			}()

		case *CancelFrame:
			handler.HandleCancel(stream.Context(), *frame)

		default:
			log.WarnS(stream.Context(),
				"transport server received unknown frame type",
				"type", fmt.Sprintf("%T", msg))
		}
	}
}
