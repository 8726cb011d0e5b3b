package websocket

import (
	"context"
	"sync"

	"vidstream/pkg/logger"
)

// Conn is the part of a websocket connection the hub writes to
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Message is the envelope every client receives
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type broadcast struct {
	room    string
	message Message
}

type registration struct {
	conn Conn
	room string
}

// Hub fans progress messages out to clients grouped by room. A room is a
// video id; the empty room receives every video's progress.
type Hub struct {
	rooms      map[string]map[Conn]bool
	register   chan registration
	unregister chan Conn
	broadcast  chan broadcast
	mutex      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[Conn]bool),
		register:   make(chan registration),
		unregister: make(chan Conn),
		broadcast:  make(chan broadcast, 256),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every remaining connection
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case r := <-h.register:
			h.mutex.Lock()
			if h.rooms[r.room] == nil {
				h.rooms[r.room] = make(map[Conn]bool)
			}
			h.rooms[r.room][r.conn] = true
			h.mutex.Unlock()
			logger.Debug("WebSocket client connected", "room", r.room)

		case conn := <-h.unregister:
			h.remove(conn)

		case b := <-h.broadcast:
			h.deliver(b)
		}
	}
}

func (h *Hub) deliver(b broadcast) {
	h.mutex.RLock()
	targets := make([]Conn, 0, len(h.rooms[b.room])+len(h.rooms[""]))
	for conn := range h.rooms[b.room] {
		targets = append(targets, conn)
	}
	if b.room != "" {
		for conn := range h.rooms[""] {
			targets = append(targets, conn)
		}
	}
	h.mutex.RUnlock()

	for _, conn := range targets {
		if err := conn.WriteJSON(b.message); err != nil {
			logger.Debug("WebSocket write failed, dropping client", "error", err)
			h.remove(conn)
		}
	}
}

func (h *Hub) remove(conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for room, clients := range h.rooms {
		if !clients[conn] {
			continue
		}
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
		conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for room, clients := range h.rooms {
		for conn := range clients {
			conn.Close()
		}
		delete(h.rooms, room)
	}
}

func (h *Hub) Register(conn Conn, room string) {
	h.register <- registration{conn: conn, room: room}
}

func (h *Hub) Unregister(conn Conn) {
	h.unregister <- conn
}

// Broadcast queues a message for room. It never blocks the caller: when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(room, messageType string, data any) {
	select {
	case h.broadcast <- broadcast{room: room, message: Message{Type: messageType, Data: data}}:
	default:
		logger.Warn("WebSocket broadcast queue full, dropping message", "room", room)
	}
}

func (h *Hub) RoomClients(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) TotalClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	total := 0
	for _, clients := range h.rooms {
		total += len(clients)
	}
	return total
}
