// Package ws pushes delivery events to connected clients and answers
// presence queries for the fanout ledger. A user may hold several
// connections at once (multiple tabs); presence is "at least one open
// connection".
package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 64
)

// Event is the JSON frame pushed to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Client is one registered connection. Writes go through the Send channel
// so only the write pump touches the connection.
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan Event
	done   chan struct{}
	once   sync.Once
}

// Hub tracks connections per user.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	maxPerUser int
}

// NewHub builds a hub with a per-user connection cap.
func NewHub(maxPerUser int) *Hub {
	if maxPerUser <= 0 {
		maxPerUser = 10
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxPerUser: maxPerUser,
	}
}

// Register adds a connection for the user and starts its pumps. When the
// user is over the connection cap the connection is closed and nil is
// returned.
func (h *Hub) Register(userID string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	if len(set) >= h.maxPerUser {
		h.mu.Unlock()
		log.Printf("ws: user %s over connection cap (%d), rejecting", userID, h.maxPerUser)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"),
			time.Now().Add(writeWait),
		)
		_ = conn.Close()
		return nil
	}

	c := &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	go c.pingPump()
	return c
}

// Unregister drops a client and closes its connection. Safe to call more
// than once for the same client.
func (h *Hub) Unregister(c *Client) {
	if c == nil {
		return
	}
	c.stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
}

// Push queues an event for every connection the user holds. Slow clients
// have the event dropped rather than blocking the caller.
func (h *Hub) Push(userID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- ev:
		default:
			log.Printf("ws: dropping %s event for slow client of %s", ev.Type, userID)
		}
	}
}

// PushAll queues an event for each listed user.
func (h *Hub) PushAll(userIDs []string, ev Event) {
	for _, id := range userIDs {
		h.Push(id, ev)
	}
}

// Online filters userIDs down to those with at least one open connection.
// Order follows the input.
func (h *Hub) Online(userIDs []string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var online []string
	for _, id := range userIDs {
		if len(h.clients[id]) > 0 {
			online = append(online, id)
		}
	}
	return online
}

// ActiveConnections reports how many connections a user holds.
func (h *Hub) ActiveConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (c *Client) stop() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Printf("ws: write to %s: %v", c.userID, err)
				c.stop()
				return
			}
		}
	}
}

func (c *Client) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.stop()
				return
			}
		}
	}
}
