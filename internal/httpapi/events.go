// ABOUTME: WebSocket event hub pushing host events to connected clients
// ABOUTME: Session lifecycle and history changes are broadcast as JSON frames

package httpapi

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const eventWriteTimeout = 10 * time.Second

// event is one frame pushed to subscribers.
type event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// Hub fans host events out to websocket subscribers. Slow or broken
// connections are dropped rather than blocking the broadcaster.
type Hub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	logger *slog.Logger
}

func newHub() *Hub {
	return &Hub{
		conns:  make(map[*websocket.Conn]struct{}),
		logger: slog.Default().With("component", "events"),
	}
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(eventType string, payload any) {
	frame := event{Type: eventType, Payload: payload, Time: time.Now().UTC()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			h.logger.Debug("dropping event subscriber", "error", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Close disconnects all subscribers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]struct{})
}

func (h *Hub) register(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// subscriberCount is used by tests.
func (h *Hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

var eventUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The session check already ran in the middleware; same-host pages
	// are the only expected clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents upgrades the request and streams events until the client
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := eventUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	if !s.hub.register(conn) {
		conn.Close()
		return
	}
	s.logger.Debug("event subscriber connected", "remote", r.RemoteAddr)

	// Drain client frames so pings and close frames are processed; the
	// hub only ever writes.
	go func() {
		defer func() {
			s.hub.unregister(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
