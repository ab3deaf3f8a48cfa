// Package transport defines the interface for pluggable inbound transports.
//
// Each transport (HTTP/SSE/WebSocket, gRPC) accepts user text, runs it
// through the relay and writes the resulting event stream back to its client.
// Transports don't know how the stream is produced; they only own the framing.
package transport

import (
	"context"

	"github.com/nadzzz/voicerelay/internal/relay"
)

// Handler streams the answer to text into sink. The relay's Run method is
// passed to each transport as its Handler.
type Handler func(ctx context.Context, text string, sink relay.Sink) error

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "http", "grpc").
	Name() string

	// Listen starts accepting requests and dispatches them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
