package transport

import "google.golang.org/grpc"

// serviceName is the gRPC service name the Transport server registers
// under. There's no .proto file generating this — the service carries
// frameCodec-encoded Go structs directly, so only a hand-written
// grpc.ServiceDesc is needed.
const serviceName = "quark.transport.Transport"

// streamMethodName is the single bidirectional-streaming RPC that carries
// RequestFrame/ResponseFrame/CancelFrame messages. GrpcTransport opens one
// stream of it per Invoke or Cancel call.
const streamMethodName = "Invoke"

// invokeStreamDesc registers the Invoke method as a full-duplex stream.
var invokeStreamDesc = grpc.StreamDesc{
	StreamName:    streamMethodName,
	ServerStreams: true,
	ClientStreams: true,
	Handler:       invokeStreamHandler,
}

// transportServiceDesc is the hand-written ServiceDesc passed to
// grpc.Server.RegisterService.
var transportServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*streamHandlerHost)(nil),
	Methods:     nil,
	Streams:     []grpc.StreamDesc{invokeStreamDesc},
	Metadata:    "internal/transport/service_desc.go",
}

// streamHandlerHost is the HandlerType grpc.Server requires; Server itself
// satisfies it trivially since all dispatch happens in invokeStreamHandler.
type streamHandlerHost interface {
	frameHandler() FrameHandler
}
