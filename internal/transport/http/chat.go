package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nadzzz/voicerelay/internal/event"
	"github.com/nadzzz/voicerelay/internal/relay"
	"github.com/nadzzz/voicerelay/internal/transport"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	// Text is the user's message. Required, must not be blank.
	Text string `json:"text" example:"Hello! How are you?"`
}

// handleChat processes a POST /chat request.
//
// @Summary     Stream a spoken chat answer
// @Description Relays the text to the chat model and streams the answer as Server-Sent Events.
// @Description Each frame is `data: <json>` with one of {"token"}, {"audio_chunk","audio_mime","chunk_id"} or {"error"}.
// @Description chunk_id is omitted for the trailing audio chunk. A successful stream ends with `data: [DONE]`.
// @Tags        chat
// @Accept      json
// @Produce     text/event-stream
// @Param       request  body      ChatRequest    true  "User text"
// @Success     200      {string}  string         "SSE stream"
// @Failure     400      {object}  ErrorResponse  "Missing or blank text"
// @Router      /chat [post]
func handleChat(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sse := &sseWriter{w: w, flusher: flusher}
	err := handler(r.Context(), req.Text, sse)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrEmptyInput) && !sse.started:
		writeJSONError(w, http.StatusBadRequest, "Empty input")
	default:
		// Headers are gone; the client only sees the stream end.
		slog.Warn("chat stream aborted", "error", err, "remote", r.RemoteAddr)
	}
}

// sseWriter is a relay.Sink that frames events as Server-Sent Events.
// Response headers are committed on the first event, so a request rejected
// before streaming can still get a plain status code.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseWriter) Send(e event.Event) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if err := event.WriteSSE(s.w, e); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
