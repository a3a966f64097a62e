// Package ws pushes circle events to connected members over WebSocket.
// Clients subscribe to one circle per connection; every notification written
// for that circle is mirrored onto the socket.
package ws

import (
	"encoding/json"
	"sync"

	"mzunguko/internal/models"
)

// Client represents a single WebSocket connection with user context.
type Client struct {
	UserID   uint
	CircleID uint
	Send     chan []byte

	hub    *Hub
	mu     sync.Mutex
	closed bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// Hub maintains circle rooms and fans notifications out to subscribers.
type Hub struct {
	mu sync.RWMutex
	// circleID -> clients subscribed to that circle
	rooms map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uint]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	if h.rooms[c.CircleID] == nil {
		h.rooms[c.CircleID] = make(map[*Client]struct{})
	}
	h.rooms[c.CircleID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.rooms[c.CircleID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.rooms, c.CircleID)
		}
	}
}

// BroadcastToCircle delivers a notification to the notified user's
// connections in the circle's room. Slow clients are skipped, not blocked on.
func (h *Hub) BroadcastToCircle(circleID uint, n *models.Notification) {
	data, _ := json.Marshal(map[string]interface{}{"type": "notification", "notification": n})
	h.mu.RLock()
	m := h.rooms[circleID]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		if c.UserID == n.UserID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range clients {
		select {
		case c.Send <- data:
		default:
		}
	}
}

func (h *Hub) RoomCount(circleID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[circleID])
}
