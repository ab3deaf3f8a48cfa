// Package health provides the liveness and readiness endpoints.
//
// Docker and Kubernetes probe /healthz for liveness. /readyz turns 200 once
// the transports are up and reports which chat and speech backends the
// daemon was started with.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Status is the JSON body of both endpoints.
type Status struct {
	Status        string `json:"status"`
	ChatBackend   string `json:"chat_backend,omitempty"`
	TTSBackend    string `json:"tts_backend,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Server is a lightweight HTTP server that exposes /healthz and /readyz.
type Server struct {
	port    int
	chat    string
	tts     string
	started time.Time
	ready   atomic.Bool
	server  *http.Server
}

// New creates a new health check server. tts is empty when speech is disabled.
func New(port int, chat, tts string) *Server {
	return &Server{port: port, chat: chat, tts: tts, started: time.Now()}
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the probe endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Liveness only needs the process to answer.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.write(w, http.StatusOK, "ok")
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			s.write(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		s.write(w, http.StatusOK, "ok")
	})

	return mux
}

func (s *Server) write(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Status{
		Status:        status,
		ChatBackend:   s.chat,
		TTSBackend:    s.tts,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
