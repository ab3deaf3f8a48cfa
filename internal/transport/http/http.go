// Package http implements the HTTP transport for voicerelay.
//
// It serves the browser client at "/", streams chat answers as Server-Sent
// Events from POST /chat, offers the same stream over a WebSocket at /ws, and
// publishes the OpenAPI document under /swagger/.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/voicerelay/docs" // registers the OpenAPI document
	"github.com/nadzzz/voicerelay/internal/transport"
	"github.com/nadzzz/voicerelay/web"
)

// maxBodySize bounds the JSON request body of POST /chat.
const maxBodySize = 1 << 20

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port   int
	server *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: streams last as long as the upstream answer.
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		_ = t.Close()
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Routes builds the request multiplexer for handler.
func Routes(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handleIndex)

	// POST /chat accepts {"text": "..."} and streams the answer as SSE.
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		handleChat(w, r, handler)
	})

	// GET /ws serves the same stream over a WebSocket, one answer per message.
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, handler)
	})

	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(web.Index)
}

// ErrorResponse is the JSON body of every non-streaming error.
type ErrorResponse struct {
	Error string `json:"error" example:"Empty input"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
