// Package ollama implements the chat Streamer against a self-hosted Ollama
// server using its native /api/chat endpoint.
//
// Ollama streams newline-delimited JSON objects:
//
//	{"message":{"role":"assistant","content":"Hel"},"done":false}
//	{"message":{"role":"assistant","content":"lo"},"done":false}
//	{"done":true,"done_reason":"stop"}
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nadzzz/voicerelay/internal/chat"
	"github.com/nadzzz/voicerelay/internal/config"
)

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 1 << 20

// Streamer streams chat completions from Ollama.
type Streamer struct {
	endpoint string
	model    string
	client   *http.Client
}

// New creates a new Ollama streamer from config.
func New(cfg config.OllamaConfig) *Streamer {
	model := cfg.Model
	if model == "" {
		model = "llama3"
	}
	return &Streamer{
		endpoint: cfg.Endpoint,
		model:    model,
		client:   &http.Client{},
	}
}

// Name returns the backend identifier.
func (s *Streamer) Name() string { return "ollama" }

// Stream posts req to Ollama and returns the streaming response.
func (s *Streamer) Stream(ctx context.Context, req chat.Request) (chat.Stream, error) {
	model := s.model
	if req.Model != "" {
		model = req.Model
	}

	body := chatRequest{Model: model, Stream: true}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.User})

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("ollama chat stream", "endpoint", s.endpoint, "model", model, "text_length", len(req.User))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama chat request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama chat failed (status %d): %s", resp.StatusCode, respBody)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &stream{body: resp.Body, scanner: scanner}, nil
}

// Close releases idle connections.
func (s *Streamer) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChunk struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

// stream decodes one NDJSON chunk per Next call.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	token   string
	err     error
	done    bool
}

func (s *stream) Next() bool {
	s.token = ""
	if s.done || s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			s.err = fmt.Errorf("decoding ollama chunk: %w", err)
			return false
		}
		if chunk.Error != "" {
			s.err = fmt.Errorf("ollama: %s", chunk.Error)
			return false
		}
		if chunk.Done {
			s.done = true
			if chunk.Message.Content == "" {
				return false
			}
		}
		s.token = chunk.Message.Content
		return true
	}
	if err := s.scanner.Err(); err != nil {
		s.err = fmt.Errorf("reading ollama stream: %w", err)
		return false
	}
	// EOF without a done chunk means the server hung up mid-answer.
	s.err = errors.New("ollama stream ended before completion")
	return false
}

func (s *stream) Token() string { return s.token }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error { return s.body.Close() }
