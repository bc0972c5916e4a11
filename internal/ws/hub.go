// Package ws fans server events out to connected dashboard clients.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"container-request-board/internal/metrics"
)

// Event types pushed to clients. Anything without a recognized type is
// treated by consumers as a request upsert.
const (
	EventDelete          = "delete"
	EventCleanupComplete = "auto_cleanup_complete"
	EventCleanupError    = "auto_cleanup_error"
)

// DeleteEvent announces that the request for a serial number is gone.
type DeleteEvent struct {
	Type     string `json:"type"`
	SerialNo string `json:"serial_no"`
}

// NewDeleteEvent builds the delete announcement for a serial number.
func NewDeleteEvent(serialNo string) DeleteEvent {
	return DeleteEvent{Type: EventDelete, SerialNo: serialNo}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected websocket clients and broadcasts JSON events to
// all of them. Messages received from one client are relayed to the
// others, which lets dashboards announce their own actions.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	metrics *metrics.Metrics
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		metrics: metrics.New(),
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast marshals v and sends it to every connected client.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws: failed to marshal broadcast: %v", err)
		return
	}
	h.broadcastRaw(nil, data)
}

// broadcastRaw sends data to all clients except the originator. Clients
// whose send buffer is full are dropped; a stuck dashboard must not
// stall the hub.
func (h *Hub) broadcastRaw(from *client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c == from {
			continue
		}
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.metrics.SetWSClients(len(h.clients))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.SetWSClients(len(h.clients))
}

// HandleUpgrade upgrades an HTTP request to a websocket connection and
// starts the per-client pumps.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.metrics.SetWSClients(len(h.clients))
	h.mu.Unlock()
	log.Printf("ws: client connected from %s", r.RemoteAddr)

	go h.writer(c)
	go h.reader(c)
}

func (h *Hub) reader(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.broadcastRaw(c, data)
	}
}

func (h *Hub) writer(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
}

// Shutdown closes every client connection. The context bounds nothing
// today; it is accepted so callers can treat the hub like the other
// services during teardown.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
	h.metrics.SetWSClients(0)
}
