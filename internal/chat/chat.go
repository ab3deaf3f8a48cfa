// Package chat defines the interface for streaming chat completion backends.
//
// A backend turns a system instruction and a user message into an
// incremental sequence of text tokens. voicerelay ships with two backends:
// OpenAI (hosted) and Ollama (self-hosted).
package chat

import "context"

// Request is a single-turn chat completion request.
type Request struct {
	// System is the instruction placed ahead of the user message.
	System string

	// User is the user's text, already trimmed and non-empty.
	User string

	// Model overrides the backend's default model when non-empty.
	Model string
}

// Stream is a finite, non-restartable sequence of tokens.
//
// Usage follows the bufio.Scanner pattern:
//
//	for s.Next() {
//		use(s.Token())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Tokens may be empty; callers skip them. A failure ends iteration and is
// reported by Err; tokens already returned are not retracted. Close releases
// the underlying connection and must be called on every path.
type Stream interface {
	Next() bool
	Token() string
	Err() error
	Close() error
}

// Streamer opens token streams against a chat completion service.
type Streamer interface {
	// Name returns the backend identifier (e.g., "openai", "ollama").
	Name() string

	// Stream starts a completion. An error means no stream was opened.
	Stream(ctx context.Context, req Request) (Stream, error)

	// Close releases any resources held by the backend.
	Close() error
}
