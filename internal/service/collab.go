package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/codesync/server/internal/domain"
	"github.com/codesync/server/internal/protocol"
)

// SendMessage persists a chat message to the sender's room and relays
// it to peers as receive_message.
func (s *Service) SendMessage(ctx context.Context, connID, sender, content string) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}

	message := domain.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
	}
	if err := s.store.CreateMessage(ctx, &message); err != nil {
		log.Printf("ERROR: failed to persist message in room %s: %v", roomID, err)
		return
	}

	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewReceiveMessage(message)); err != nil {
		log.Printf("WARN: failed to broadcast receive_message in room %s: %v", roomID, err)
	}
}

// RequestDrawing asks the sender's room for the current canvas state.
// The relayed request carries the requester's connection id so any peer
// can answer with sync_drawing addressed back to it. A requester with no
// peers is answered from the persisted snapshot instead, since nobody is
// online to relay one.
func (s *Service) RequestDrawing(ctx context.Context, connID string) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}

	if len(s.presence.ListByRoom(roomID)) <= 1 {
		drawing, err := s.store.GetDrawing(ctx, roomID)
		if err != nil {
			log.Printf("ERROR: failed to load drawing for room %s: %v", roomID, err)
			return
		}
		if drawing == nil {
			return
		}
		if err := s.broadcaster.SendJSONToConnection(connID, protocol.NewSyncDrawing(drawing.Snapshot)); err != nil {
			log.Printf("WARN: failed to sync drawing to %s: %v", connID, err)
		}
		return
	}

	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewRequestDrawing(connID)); err != nil {
		log.Printf("WARN: failed to broadcast request_drawing in room %s: %v", roomID, err)
	}
}

// SyncDrawing hands the canvas state to the named target connection.
// Pure relay, no persistence.
func (s *Service) SyncDrawing(connID, targetID string, drawingData json.RawMessage) {
	if _, ok := s.presence.RoomOf(connID); !ok {
		return
	}
	if err := s.broadcaster.SendJSONToConnection(targetID, protocol.NewSyncDrawing(drawingData)); err != nil {
		log.Printf("WARN: failed to sync drawing to %s: %v", targetID, err)
	}
}

// DrawingUpdate replaces the room's persisted canvas snapshot (latest
// wins) and relays it to peers.
func (s *Service) DrawingUpdate(ctx context.Context, connID string, snapshot json.RawMessage) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}
	if err := s.store.UpsertDrawing(ctx, roomID, snapshot); err != nil {
		log.Printf("ERROR: failed to persist drawing in room %s: %v", roomID, err)
		return
	}
	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewDrawingUpdate(snapshot)); err != nil {
		log.Printf("WARN: failed to broadcast drawing_update in room %s: %v", roomID, err)
	}
}
