package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nadzzz/voicerelay/internal/event"
	"github.com/nadzzz/voicerelay/internal/relay"
	"github.com/nadzzz/voicerelay/internal/transport"
)

// The page and the socket are served from the same origin in practice; other
// origins are allowed for local development clients.
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// handleWebSocket serves one WebSocket connection.
//
// Each text message {"text": "..."} is answered with the same JSON event
// objects as the SSE stream, ending with {"done": true} instead of [DONE].
// The connection stays open for further messages until the client closes it.
func handleWebSocket(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sink := relay.SinkFunc(func(e event.Event) error { return conn.WriteJSON(e) })

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				_ = conn.WriteJSON(ErrorResponse{Error: "invalid json: " + err.Error()})
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read ended", "error", err)
			}
			return
		}

		err := handler(r.Context(), req.Text, sink)
		switch {
		case err == nil:
		case errors.Is(err, relay.ErrEmptyInput):
			if err := conn.WriteJSON(ErrorResponse{Error: "Empty input"}); err != nil {
				return
			}
		default:
			slog.Warn("websocket stream aborted", "error", err, "remote", r.RemoteAddr)
			return
		}
	}
}
