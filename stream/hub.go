// Package stream broadcasts rendered frames to websocket clients and
// forwards their control messages.
package stream

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Control is a message a client may send. Nil fields are left unchanged.
type Control struct {
	Jet     *bool `json:"jet,omitempty"`
	Viscous *bool `json:"viscous,omitempty"`
	Paused  *bool `json:"paused,omitempty"`
	Reset   bool  `json:"reset,omitempty"`
}

// Hub fans frames out to connected clients.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	latest  []byte

	controls chan Control
}

// NewHub returns an empty hub. logger may be nil.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:   logger,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
		controls: make(chan Control, 16),
	}
}

// Controls delivers client control messages. Messages are dropped when the
// consumer falls behind.
func (h *Hub) Controls() <-chan Control { return h.controls }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler upgrades requests to websocket connections. New clients receive
// the latest frame immediately.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.serveWS)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = connMu
	latest := h.latest
	h.mu.Unlock()
	defer h.remove(conn)

	if latest != nil {
		connMu.Lock()
		err := conn.WriteMessage(websocket.BinaryMessage, latest)
		connMu.Unlock()
		if err != nil {
			return
		}
	}

	for {
		var msg Control
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read", "err", err)
			}
			return
		}
		select {
		case h.controls <- msg:
		default:
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Broadcast sends an encoded frame to every client and keeps it for late joiners.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	h.latest = frame
	h.mu.Unlock()
	h.send(websocket.BinaryMessage, func(c *websocket.Conn) error {
		return c.WriteMessage(websocket.BinaryMessage, frame)
	})
}

// BroadcastJSON sends v as a text message to every client.
func (h *Hub) BroadcastJSON(v any) {
	h.send(websocket.TextMessage, func(c *websocket.Conn) error {
		return c.WriteJSON(v)
	})
}

func (h *Hub) send(kind int, write func(*websocket.Conn) error) {
	var failed []*websocket.Conn
	h.mu.RLock()
	for c, connMu := range h.clients {
		connMu.Lock()
		err := write(c)
		connMu.Unlock()
		if err != nil {
			h.logger.Debug("websocket write", "kind", kind, "err", err)
			c.Close()
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	if len(failed) > 0 {
		h.mu.Lock()
		for _, c := range failed {
			delete(h.clients, c)
		}
		h.mu.Unlock()
	}
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}
