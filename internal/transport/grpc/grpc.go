// Package grpc implements the gRPC transport for voicerelay.
//
// The transport exposes the server-streaming method voicerelay.v1.Relay/Chat.
// A request {"text": "..."} is answered with one message per stream event,
// encoded with the JSON codec, the last one being {"done": true}. Blank text
// fails with codes.InvalidArgument before anything is streamed.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/voicerelay/internal/event"
	"github.com/nadzzz/voicerelay/internal/relay"
	"github.com/nadzzz/voicerelay/internal/transport"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "voicerelay.v1.Relay"

// ChatRequest is the request message of the Chat method.
type ChatRequest struct {
	Text string `json:"text"`
}

// RelayServer is the server API of the Relay service.
type RelayServer interface {
	Chat(req *ChatRequest, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Chat",
			Handler:       chatHandler,
			ServerStreams: true,
		},
	},
	Metadata: "voicerelay/v1/relay.proto",
}

func chatHandler(srv any, stream grpc.ServerStream) error {
	req := new(ChatRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(RelayServer).Chat(req, stream)
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	t.server = NewServer(handler)

	slog.Info("grpc transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// NewServer returns a gRPC server with the Relay service and the standard
// health service registered.
func NewServer(handler transport.Handler) *grpc.Server {
	s := grpc.NewServer(grpc.ChainStreamInterceptor(logStream))
	s.RegisterService(&serviceDesc, &relayServer{handler: handler})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s
}

type relayServer struct {
	handler transport.Handler
}

func (s *relayServer) Chat(req *ChatRequest, stream grpc.ServerStream) error {
	sink := relay.SinkFunc(func(e event.Event) error { return stream.SendMsg(&e) })

	err := s.handler(stream.Context(), req.Text, sink)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, relay.ErrEmptyInput):
		return status.Error(codes.InvalidArgument, "Empty input")
	case stream.Context().Err() != nil:
		return status.FromContextError(stream.Context().Err()).Err()
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

func logStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	slog.Info("grpc stream finished",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}
