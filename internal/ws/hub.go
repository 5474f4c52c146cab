package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// ErrNotRegistered is returned when writing to a connection the hub no
// longer tracks.
var ErrNotRegistered = errors.New("connection not registered")

// client serializes all writes to one connection. gorilla/websocket permits
// at most one concurrent writer per connection, and both broadcasts and
// keepalive pings target the same conn.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// AnalysisHub manages WebSocket connections for live analysis streaming.
// Every completed pipeline run is broadcast to all connected clients.
type AnalysisHub struct {
	clients map[*websocket.Conn]*client
	logger  *log.Logger
	mu      sync.RWMutex
}

// NewAnalysisHub creates a new analysis hub.
func NewAnalysisHub(logger *log.Logger) *AnalysisHub {
	if logger == nil {
		logger = log.Default()
	}
	return &AnalysisHub{
		clients: make(map[*websocket.Conn]*client),
		logger:  logger,
	}
}

// Register adds a connection.
func (h *AnalysisHub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &client{conn: conn}
	h.logger.Printf("[WS] Client registered (total: %d)", len(h.clients))
}

// Unregister removes a connection.
func (h *AnalysisHub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		h.logger.Printf("[WS] Client unregistered (total: %d)", len(h.clients))
	}
}

// ClientCount returns the number of connected clients.
func (h *AnalysisHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Ping sends a keepalive ping through the connection's serialized writer.
func (h *AnalysisHub) Ping(conn *websocket.Conn) error {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return ErrNotRegistered
	}
	return c.write(websocket.PingMessage, nil)
}

// Broadcast sends a message to every connected client. Write failures drop
// the client.
func (h *AnalysisHub) Broadcast(message []byte) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, message); err != nil {
			h.logger.Printf("[WS] Error sending to client: %v", err)
			h.Unregister(c.conn)
			c.conn.Close()
		}
	}
}

// BroadcastAnalysis sends an analysis event to all clients.
func (h *AnalysisHub) BroadcastAnalysis(msg *AnalysisMessage) {
	if h.ClientCount() == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("[WS] Error marshaling analysis message: %v", err)
		return
	}
	h.Broadcast(data)
}
