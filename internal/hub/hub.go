// Package hub provides room-scoped connection management for WebSocket clients.
package hub

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrBufferFull is returned when a connection's send buffer is full.
	ErrBufferFull = errors.New("send buffer full")

	// ErrConnectionNotFound is returned when the target connection is not
	// registered, typically because it already disconnected.
	ErrConnectionNotFound = errors.New("connection not found")
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID     string
	RoomID string
	Conn   *websocket.Conn
	Send   chan []byte
	hub    *Hub
	mu     sync.Mutex
}

// Hub manages all WebSocket connections and their room subscriptions.
// It is deliberately ignorant of event semantics: callers hand it opaque
// frames addressed to a room or a single connection.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Rooms maps room id to set of connection IDs
	rooms map[string]map[string]bool

	// Channels for registration/unregistration
	register   chan *Connection
	unregister chan *Connection

	// Broadcast channel for sending to a room
	broadcast chan *roomMessage

	mu sync.RWMutex
}

// roomMessage is a frame addressed to every member of a room except the
// originator.
type roomMessage struct {
	RoomID    string
	ExcludeID string
	Data      []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *roomMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()
			log.Printf("Connection registered: %s", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				h.leaveRoomLocked(conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Printf("Connection unregistered: %s", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if connIDs, ok := h.rooms[msg.RoomID]; ok {
				for connID := range connIDs {
					if connID == msg.ExcludeID {
						continue
					}
					if conn, exists := h.connections[connID]; exists {
						select {
						case conn.Send <- msg.Data:
						default:
							// Buffer full, close the connection
							log.Printf("Connection %s buffer full, closing", connID)
							go h.Unregister(conn)
						}
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection creates a new connection bound to this hub.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
		hub:  h,
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// JoinRoom subscribes a connection to a room's broadcast group, leaving
// any previous room first.
func (h *Hub) JoinRoom(connID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.connections[connID]
	if !ok {
		return ErrConnectionNotFound
	}

	h.leaveRoomLocked(conn)

	conn.RoomID = roomID
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][conn.ID] = true
	return nil
}

// LeaveRoom unsubscribes a connection from its room's broadcast group.
func (h *Hub) LeaveRoom(connID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.connections[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	h.leaveRoomLocked(conn)
	return nil
}

// leaveRoomLocked removes a connection from its room set. Caller holds h.mu.
func (h *Hub) leaveRoomLocked(conn *Connection) {
	if conn.RoomID == "" {
		return
	}
	if members := h.rooms[conn.RoomID]; members != nil {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(h.rooms, conn.RoomID)
		}
	}
	conn.RoomID = ""
}

// BroadcastToRoom sends a frame to every room member except excludeConnID.
func (h *Hub) BroadcastToRoom(roomID, excludeConnID string, data []byte) {
	h.broadcast <- &roomMessage{
		RoomID:    roomID,
		ExcludeID: excludeConnID,
		Data:      data,
	}
}

// BroadcastJSONToRoom sends a JSON message to every room member except
// excludeConnID.
func (h *Hub) BroadcastJSONToRoom(roomID, excludeConnID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.BroadcastToRoom(roomID, excludeConnID, data)
	return nil
}

// SendToConnection sends a frame to a specific connection. The read
// lock is held across the send: the run loop closes Send only under the
// write lock, so the channel cannot be closed mid-send by a concurrent
// unregister.
func (h *Hub) SendToConnection(connID string, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.connections[connID]
	if !ok {
		return ErrConnectionNotFound
	}

	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(connID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(connID, data)
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// RoomCount returns the number of rooms with at least one live connection.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
