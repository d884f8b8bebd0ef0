package host

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/sponsor-eval/internal/models"
)

const (
	eventBuffer = 32
	writeWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventConnected is the first message on every event stream
const EventConnected = "connected"

// handleEvents streams session events to the view over a WebSocket
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan models.SessionEvent, eventBuffer)
	cancel := sess.Subscribe(func(ev models.SessionEvent) {
		select {
		case events <- ev:
		default:
			slog.Warn("event stream is behind, dropping event", "type", ev.Type)
		}
	})
	defer cancel()

	view := sess.View()
	if err := writeEvent(conn, models.SessionEvent{
		Type:    EventConnected,
		State:   view.State,
		Project: view.CurrentProject,
	}); err != nil {
		return
	}

	slog.Debug("event stream connected")

	// The view never sends anything meaningful; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			slog.Debug("event stream disconnected")
			return
		case ev := <-events:
			if err := writeEvent(conn, ev); err != nil {
				slog.Debug("failed to write event", "error", err)
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev models.SessionEvent) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
