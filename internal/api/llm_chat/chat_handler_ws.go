package llmChat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/Nexoracode/khadamat/internal/types"
)

const wsWriteTimeout = 5 * time.Second

// TranscriptFeed pushes a session's transcript over a websocket: first the
// current log, then every event as it happens.
func (h *HandlerImpl) TranscriptFeed(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	l := h.logger.With(slog.String("handler", "TranscriptFeed"), slog.String("sessionID", session.ID().String()))

	patterns := h.allowedOrigins
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originHosts(patterns)})
	if err != nil {
		l.ErrorContext(r.Context(), "Failed to accept WebSocket", slog.Any("error", err))
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			l.Debug("Failed to close websocket", slog.Any("error", closeErr))
		}
	}()

	snapshot, events, cancelSub := session.Watch()
	defer cancelSub()

	// the feed is read-only; CloseRead handles pings and the close handshake
	ctx := ws.CloseRead(r.Context())

	for _, msg := range snapshot.Messages {
		if err := writeEvent(ctx, ws, types.SessionEvent{Type: types.EventMessage, Message: &msg}); err != nil {
			return
		}
	}
	if snapshot.Pending {
		if err := writeEvent(ctx, ws, types.SessionEvent{Type: types.EventPending}); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			l.DebugContext(ctx, "WebSocket closed by client")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(ctx, ws, ev); err != nil {
				l.DebugContext(ctx, "WebSocket write failed", slog.Any("error", err))
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, ws *websocket.Conn, ev types.SessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

// originHosts strips schemes, since websocket origin patterns match hosts.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		hosts = append(hosts, o)
	}
	return hosts
}
