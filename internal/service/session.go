package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/codesync/server/internal/domain"
	"github.com/codesync/server/internal/protocol"
)

// Join admits a connection into a room under a username. A username
// already online in the room rejects the join with username_exists sent
// to the requesting connection only. On success the room is created
// lazily (with a fresh root directory), peers learn about the new user
// via user_joined, and the new connection alone receives join_accepted
// with the full member list.
func (s *Service) Join(ctx context.Context, connID, roomID, username string) {
	for _, peer := range s.presence.ListByRoom(roomID) {
		if peer.Status == domain.UserOnline && peer.Username == username {
			if err := s.broadcaster.SendJSONToConnection(connID, protocol.NewUsernameExists()); err != nil {
				log.Printf("WARN: failed to send username_exists to %s: %v", connID, err)
			}
			return
		}
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		log.Printf("ERROR: failed to look up room %s: %v", roomID, err)
		return
	}
	if room == nil {
		if _, _, err := s.store.CreateRoomWithRoot(ctx, roomID); err != nil {
			log.Printf("ERROR: failed to bootstrap room %s: %v", roomID, err)
			return
		}
		log.Printf("Room created: %s", roomID)
	}

	session := domain.Session{
		ConnID:   connID,
		Username: username,
		RoomID:   roomID,
		Status:   domain.UserOnline,
	}
	s.presence.Upsert(session)

	if err := s.broadcaster.JoinRoom(connID, roomID); err != nil {
		// The connection dropped before the join completed; undo presence.
		log.Printf("WARN: failed to join broadcast group for %s: %v", connID, err)
		s.presence.Remove(connID)
		return
	}

	// The durable member record is written only once the connection is
	// live in the broadcast group, so a failed join leaves nothing behind.
	user := &domain.User{
		ID:       uuid.New().String(),
		Username: username,
		RoomID:   roomID,
		JoinedAt: time.Now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		log.Printf("ERROR: failed to persist user %s joining room %s: %v", username, roomID, err)
		s.presence.Remove(connID)
		if err := s.broadcaster.LeaveRoom(connID); err != nil {
			log.Printf("WARN: failed to leave broadcast group for %s: %v", connID, err)
		}
		return
	}

	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewUserEvent(protocol.TypeUserJoined, session)); err != nil {
		log.Printf("WARN: failed to broadcast user_joined in room %s: %v", roomID, err)
	}

	users := s.presence.ListByRoom(roomID)
	if err := s.broadcaster.SendJSONToConnection(connID, protocol.NewJoinAccepted(session, users)); err != nil {
		log.Printf("WARN: failed to send join_accepted to %s: %v", connID, err)
	}
	log.Printf("User %s joined room %s (conn %s)", username, roomID, connID)
}

// Disconnect tears down a connection's session. Peers are notified
// before the session is removed so the payload still resolves the user.
// Disconnecting an unknown connection is a no-op, so calling this twice
// is safe.
func (s *Service) Disconnect(ctx context.Context, connID string) {
	session, ok := s.presence.Get(connID)
	if !ok {
		return
	}

	if err := s.broadcaster.BroadcastJSONToRoom(session.RoomID, connID, protocol.NewUserEvent(protocol.TypeUserDisconnected, session)); err != nil {
		log.Printf("WARN: failed to broadcast user_disconnected in room %s: %v", session.RoomID, err)
	}

	s.presence.Remove(connID)
	if err := s.broadcaster.LeaveRoom(connID); err != nil {
		log.Printf("WARN: failed to leave broadcast group for %s: %v", connID, err)
	}
	log.Printf("User %s disconnected from room %s (conn %s)", session.Username, session.RoomID, connID)
}

// SetUserStatus patches the online/offline status of the subject
// connection named in the payload and relays the change to the
// subject's room, excluding the reporting connection.
func (s *Service) SetUserStatus(reporterConnID, subjectConnID string, status domain.UserStatus) {
	session, ok := s.presence.SetStatus(subjectConnID, status)
	if !ok {
		return
	}

	msgType := protocol.TypeUserOnline
	if status == domain.UserOffline {
		msgType = protocol.TypeUserOffline
	}
	if err := s.broadcaster.BroadcastJSONToRoom(session.RoomID, reporterConnID, protocol.NewUserStatus(msgType, subjectConnID)); err != nil {
		log.Printf("WARN: failed to broadcast %s in room %s: %v", msgType, session.RoomID, err)
	}
}

// TypingStart marks the sender as typing at a cursor position and
// relays the patched user record to peers.
func (s *Service) TypingStart(connID string, cursorPosition int) {
	if _, ok := s.presence.SetCursor(connID, cursorPosition); !ok {
		return
	}
	session, ok := s.presence.SetTyping(connID, true)
	if !ok {
		return
	}
	if err := s.broadcaster.BroadcastJSONToRoom(session.RoomID, connID, protocol.NewUserEvent(protocol.TypeTypingStart, session)); err != nil {
		log.Printf("WARN: failed to broadcast typing_start in room %s: %v", session.RoomID, err)
	}
}

// TypingPause clears the sender's typing flag and relays the patched
// user record to peers. The cursor position is left as it was.
func (s *Service) TypingPause(connID string) {
	session, ok := s.presence.SetTyping(connID, false)
	if !ok {
		return
	}
	if err := s.broadcaster.BroadcastJSONToRoom(session.RoomID, connID, protocol.NewUserEvent(protocol.TypeTypingPause, session)); err != nil {
		log.Printf("WARN: failed to broadcast typing_pause in room %s: %v", session.RoomID, err)
	}
}
