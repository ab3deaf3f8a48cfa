// Package openai implements the chat Streamer using OpenAI's Chat Completions
// API in streaming mode.
package openai

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/nadzzz/voicerelay/internal/chat"
)

// Streamer streams chat completions from OpenAI.
type Streamer struct {
	client openai.Client
	model  string
}

// New creates a Streamer that uses model unless a request overrides it.
func New(client openai.Client, model string) *Streamer {
	return &Streamer{client: client, model: model}
}

// Name returns the backend identifier.
func (s *Streamer) Name() string { return "openai" }

// Stream opens a streaming completion for req.
//
// The SDK issues the HTTP request lazily, so connection and status errors
// surface through Stream.Err rather than here.
func (s *Streamer) Stream(ctx context.Context, req chat.Request) (chat.Stream, error) {
	model := s.model
	if req.Model != "" {
		model = req.Model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	slog.Debug("openai chat stream", "model", model, "text_length", len(req.User))

	raw := s.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	return &stream{raw: raw}, nil
}

// Close is a no-op; the client is shared and owned by the caller.
func (s *Streamer) Close() error { return nil }

// stream adapts an SDK chunk stream to chat.Stream.
type stream struct {
	raw   *ssestream.Stream[openai.ChatCompletionChunk]
	token string
}

func (s *stream) Next() bool {
	s.token = ""
	if !s.raw.Next() {
		return false
	}
	chunk := s.raw.Current()
	if len(chunk.Choices) > 0 {
		s.token = chunk.Choices[0].Delta.Content
	}
	return true
}

func (s *stream) Token() string { return s.token }

func (s *stream) Err() error { return s.raw.Err() }

func (s *stream) Close() error { return s.raw.Close() }
