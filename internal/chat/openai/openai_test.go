package openai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicerelay/internal/chat"
	"github.com/nadzzz/voicerelay/internal/config"
	"github.com/nadzzz/voicerelay/internal/openaiclient"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chunkJSON(content string) string {
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini",`+
		`"choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, content)
}

func newTestStreamer(t *testing.T, handler http.HandlerFunc) *Streamer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := openaiclient.New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	return New(client, "gpt-4o-mini")
}

func collect(t *testing.T, s chat.Stream) ([]string, error) {
	t.Helper()
	defer func() { assert.NoError(t, s.Close()) }()
	var tokens []string
	for s.Next() {
		if tok := s.Token(); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens, s.Err()
}

func TestStreamYieldsTokens(t *testing.T) {
	var got capturedRequest
	streamer := newTestStreamer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Hello", "!", "", " How", " are", " you", "?"} {
			fmt.Fprintf(w, "data: %s\n\n", chunkJSON(tok))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	s, err := streamer.Stream(t.Context(), chat.Request{System: "be brief", User: "Hello! How are you?"})
	require.NoError(t, err)

	tokens, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", "!", " How", " are", " you", "?"}, tokens)

	assert.True(t, got.Stream)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "Hello! How are you?", got.Messages[1].Content)
}

func TestStreamModelOverride(t *testing.T) {
	var got capturedRequest
	streamer := newTestStreamer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	s, err := streamer.Stream(t.Context(), chat.Request{User: "hi", Model: "gpt-4o"})
	require.NoError(t, err)
	_, err = collect(t, s)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 1, "no system message when the instruction is empty")
}

func TestStreamUpstreamError(t *testing.T) {
	var calls atomic.Int32
	streamer := newTestStreamer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	s, err := streamer.Stream(t.Context(), chat.Request{User: "hi"})
	require.NoError(t, err)

	tokens, err := collect(t, s)
	assert.Empty(t, tokens)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "401"), err.Error())
	assert.EqualValues(t, 1, calls.Load(), "requests are never retried")
}

func TestName(t *testing.T) {
	assert.Equal(t, "openai", New(openaiclient.New(config.OpenAIConfig{APIKey: "k"}), "m").Name())
}
