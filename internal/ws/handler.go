package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Handler upgrades HTTP requests to WebSocket connections feeding from the
// analysis hub.
type Handler struct {
	hub    *AnalysisHub
	logger *log.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *AnalysisHub, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{hub: hub, logger: logger}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[WS] Upgrade error: %v", err)
		return
	}

	h.logger.Printf("[WS] New connection from %s", r.RemoteAddr)
	h.hub.Register(conn)
	go h.readPump(conn)
}

// readPump keeps the connection alive and detects client disconnection.
// Clients are not expected to send anything beyond control frames.
func (h *Handler) readPump(conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	// Pings go through the hub so they share the connection's serialized
	// writer with broadcasts.
	go func() {
		for range ticker.C {
			if err := h.hub.Ping(conn); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Printf("[WS] Read error: %v", err)
			}
			break
		}
	}
}
