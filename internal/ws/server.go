// Package ws provides WebSocket server functionality for client connections.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/codesync/server/internal/config"
	"github.com/codesync/server/internal/domain"
	"github.com/codesync/server/internal/hub"
	"github.com/codesync/server/internal/protocol"
	"github.com/codesync/server/internal/service"
)

// Server handles WebSocket connections and dispatches inbound events to
// the sync service.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	svc      *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, svc *service.Service) *Server {
	return &Server{
		cfg: cfg,
		hub: h,
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Editor clients are served from arbitrary origins
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	// Create and register connection
	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	// Set up connection parameters
	ws.SetReadLimit(s.cfg.MaxMessageSize)

	// Start reader and writer goroutines
	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection. Any read-loop
// exit tears down the connection's session exactly once before the hub
// forgets the connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.svc.Disconnect(context.Background(), conn.ID)
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
// Malformed payloads are logged and dropped; nothing is echoed back to
// the network for them.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		log.Printf("WARN: dropping invalid JSON frame from %s: %v", conn.ID, err)
		return
	}

	ctx := context.Background()

	switch baseMsg.Type {
	case protocol.TypeJoinRequest:
		var msg protocol.JoinRequestMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.Join(ctx, conn.ID, msg.RoomID, msg.Username)

	case protocol.TypeUserOnline:
		var msg protocol.UserStatusMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.SetUserStatus(conn.ID, msg.ConnID, domain.UserOnline)

	case protocol.TypeUserOffline:
		var msg protocol.UserStatusMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.SetUserStatus(conn.ID, msg.ConnID, domain.UserOffline)

	case protocol.TypeTypingStart:
		var msg protocol.TypingStartMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.TypingStart(conn.ID, msg.CursorPosition)

	case protocol.TypeTypingPause:
		s.svc.TypingPause(conn.ID)

	case protocol.TypeSyncFileStructure:
		var msg protocol.SyncFileStructureMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.SyncFileStructure(conn.ID, msg)

	case protocol.TypeDirectoryCreated:
		var msg protocol.DirectoryCreateMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.CreateDirectory(ctx, conn.ID, msg.ParentDirID, msg.Name)

	case protocol.TypeDirectoryUpdated:
		var msg protocol.DirectoryUpdatedMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.DirectoryUpdated(ctx, conn.ID, msg.DirID, msg.Children)

	case protocol.TypeDirectoryRenamed:
		var msg protocol.DirectoryRenamedMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.RenameDirectory(ctx, conn.ID, msg.DirID, msg.NewName)

	case protocol.TypeDirectoryDeleted:
		var msg protocol.DirectoryDeletedMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.DeleteDirectory(ctx, conn.ID, msg.DirID)

	case protocol.TypeFileCreated:
		var msg protocol.FileCreateMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.CreateFile(ctx, conn.ID, msg.ParentDirID, msg.File)

	case protocol.TypeFileUpdated:
		var msg protocol.FileUpdatedMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.UpdateFile(ctx, conn.ID, msg.FileID, msg.NewContent)

	case protocol.TypeFileRenamed:
		var msg protocol.FileRenamedMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.RenameFile(ctx, conn.ID, msg.FileID, msg.NewName)

	case protocol.TypeFileDeleted:
		var msg protocol.FileDeletedMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.DeleteFile(ctx, conn.ID, msg.FileID)

	case protocol.TypeSendMessage:
		var msg protocol.SendMessageMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.SendMessage(ctx, conn.ID, msg.Sender, msg.Content)

	case protocol.TypeRequestDrawing:
		s.svc.RequestDrawing(ctx, conn.ID)

	case protocol.TypeSyncDrawing:
		var msg protocol.SyncDrawingMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.SyncDrawing(conn.ID, msg.TargetID, msg.DrawingData)

	case protocol.TypeDrawingUpdate:
		var msg protocol.DrawingUpdateMessage
		if !s.decode(conn, data, &msg) {
			return
		}
		s.svc.DrawingUpdate(ctx, conn.ID, msg.Snapshot)

	default:
		log.Printf("WARN: dropping unknown message type %q from %s", baseMsg.Type, conn.ID)
	}
}

// validator is implemented by inbound payloads with required fields.
type validator interface {
	Validate() error
}

// decode unmarshals an inbound payload and checks its required fields.
// A failure logs and reports false so the caller drops the event.
func (s *Server) decode(conn *hub.Connection, data []byte, v validator) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("WARN: dropping malformed payload from %s: %v", conn.ID, err)
		return false
	}
	if err := v.Validate(); err != nil {
		log.Printf("WARN: dropping invalid payload from %s: %v", conn.ID, err)
		return false
	}
	return true
}
