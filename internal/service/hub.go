package service

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hireme/internal/storage"
)

const (
	// Time allowed to write a frame to a client.
	hubWriteWait = 3 * time.Second

	// Ping period; must be less than hubPongWait.
	hubPingPeriod = 20 * time.Second

	// Time allowed to read the next pong.
	hubPongWait = 25 * time.Second

	// Outbound buffer per connection. Slow consumers get events dropped
	// rather than stalling the whole room.
	clientBuffer = 64
)

// Hub tracks every open push connection, grouped into per-user rooms. A user
// with several open sessions (tabs, devices) has several members in the same
// room and each one receives every message involving that user.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*hubClient]struct{}
	closed bool
	logger *slog.Logger
}

// NewHub creates an empty hub. Pass nil logger for the default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*hubClient]struct{}),
		logger: logger.With("component", "hub"),
	}
}

type hubClient struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// Join registers a connection in the user's room and starts its read/write
// loops. The hub owns the connection from here on.
func (h *Hub) Join(userID string, conn *websocket.Conn) {
	client := &hubClient{
		hub:    h,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	if _, ok := h.rooms[userID]; !ok {
		h.rooms[userID] = make(map[*hubClient]struct{})
	}
	h.rooms[userID][client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("session joined", "user_id", userID)

	go client.writeLoop()
	go client.readLoop()
}

// Publish delivers a message to every open session of the given user.
// Non-blocking: a member whose buffer is full misses the event; the client
// recovers it from history on its next conversation open.
func (h *Hub) Publish(userID string, msg storage.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal push event failed", "error", err, "message_id", msg.ID)
		return
	}

	h.mu.RLock()
	members := make([]*hubClient, 0, len(h.rooms[userID]))
	for client := range h.rooms[userID] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		if !client.enqueue(payload) {
			h.logger.Debug("dropped event for slow session",
				"user_id", userID, "message_id", msg.ID)
		}
	}
}

// RoomSize reports the number of open sessions for a user.
func (h *Hub) RoomSize(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Close disconnects every session. Safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var members []*hubClient
	for _, room := range h.rooms {
		for client := range room {
			members = append(members, client)
		}
	}
	h.rooms = make(map[string]map[*hubClient]struct{})
	h.mu.Unlock()

	for _, client := range members {
		client.close()
	}
}

func (h *Hub) drop(client *hubClient) {
	h.mu.Lock()
	room, ok := h.rooms[client.userID]
	if ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.userID)
		}
	}
	h.mu.Unlock()
	client.close()
}

// enqueue hands a frame to the write loop without blocking. The client mutex
// keeps the send channel from closing mid-send.
func (c *hubClient) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *hubClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// readLoop discards inbound frames; the push channel is one-way. Its job is
// noticing the peer went away.
func (c *hubClient) readLoop() {
	defer c.hub.drop(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *hubClient) writeLoop() {
	ticker := time.NewTicker(hubPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.drop(c)
				return
			}
		}
	}
}
