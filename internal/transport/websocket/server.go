package websocket

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 64
)

// Message is one notification pushed to an admin's sockets.
type Message struct {
	UserID  int64  `json:"user_id,omitempty"`
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data"`
}

// Hub fans messages out to every open socket of a user. An admin may keep
// several tabs open; each gets its own Connection.
type Hub struct {
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[int64]map[*Connection]struct{}

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *Message
}

type Connection struct {
	ws     *websocket.Conn
	userID int64
	send   chan *Message
	hub    *Hub
}

// NewHub builds a hub. With no allowed origins every origin is accepted.
func NewHub(allowedOrigins ...string) *Hub {
	h := &Hub{
		connections: make(map[int64]map[*Connection]struct{}),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *Message, 256),
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		if len(allowedOrigins) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range allowedOrigins {
			if o == origin {
				return true
			}
		}
		return false
	}
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.RLock()
			var conns []*Connection
			for _, set := range h.connections {
				for c := range set {
					conns = append(conns, c)
				}
			}
			h.mu.RUnlock()

			// pumps see the closed socket and exit on their own
			for _, c := range conns {
				_ = c.ws.Close()
			}
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.connections[c.userID] == nil {
				h.connections[c.userID] = make(map[*Connection]struct{})
			}
			h.connections[c.userID][c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.connections[msg.UserID] {
				select {
				case c.send <- msg:
				default:
					log.Printf("[WS] user %d socket is not draining, closing it", c.userID)
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *Connection) {
	set, ok := h.connections[c.userID]
	if !ok {
		return
	}
	if _, exists := set[c]; !exists {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.connections, c.userID)
	}
}

// Broadcast queues msg for every socket of userID. A full queue drops the message.
func (h *Hub) Broadcast(userID int64, msg *Message) {
	msg.UserID = userID
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("[WS] broadcast queue is full, dropping %s for user %d", msg.Type, userID)
	}
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID int64) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade user %d: %v", userID, err)
		return
	}

	c := &Connection{
		ws:     ws,
		userID: userID,
		send:   make(chan *Message, sendBuffer),
		hub:    h,
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump only services control frames; admins never send data on the socket.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.ws.Close()
	}()

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read user %d: %v", c.userID, err)
			}
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				log.Printf("[WS] write user %d: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
