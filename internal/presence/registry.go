// Package presence provides the in-memory registry of ephemeral
// per-connection sessions.
package presence

import (
	"sync"

	"github.com/codesync/server/internal/domain"
)

// Registry maps connection ids to live sessions. All methods are safe
// for concurrent use; sessions are copied in and out so callers never
// hold a reference into the map.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	order    []string // connection ids in join order, for deterministic listings
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*domain.Session),
	}
}

// Upsert inserts the session, replacing any existing entry for the same
// connection id.
func (r *Registry) Upsert(session domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ConnID]; !ok {
		r.order = append(r.order, session.ConnID)
	}
	s := session
	r.sessions[session.ConnID] = &s
}

// Remove deletes the session for a connection id. Removing an unknown
// id is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; !ok {
		return
	}
	delete(r.sessions, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the session for a connection id.
func (r *Registry) Get(connID string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	if !ok {
		return domain.Session{}, false
	}
	return *s, true
}

// RoomOf returns the room a connection has joined. A connection with no
// session yields false; callers are expected to no-op rather than fail,
// since presence lookups race naturally against disconnects.
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	if !ok {
		return "", false
	}
	return s.RoomID, true
}

// ListByRoom returns copies of all sessions in a room, in join order.
func (r *Registry) ListByRoom(roomID string) []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []domain.Session
	for _, id := range r.order {
		if s := r.sessions[id]; s != nil && s.RoomID == roomID {
			sessions = append(sessions, *s)
		}
	}
	return sessions
}

// SetStatus patches the status of a session, leaving every other field
// untouched. Returns the patched session.
func (r *Registry) SetStatus(connID string, status domain.UserStatus) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return domain.Session{}, false
	}
	s.Status = status
	return *s, true
}

// SetTyping patches the typing flag of a session.
func (r *Registry) SetTyping(connID string, typing bool) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return domain.Session{}, false
	}
	s.Typing = typing
	return *s, true
}

// SetCursor patches the cursor position of a session.
func (r *Registry) SetCursor(connID string, position int) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return domain.Session{}, false
	}
	s.CursorPosition = position
	return *s, true
}

// SetCurrentFile patches the file a session is focused on.
func (r *Registry) SetCurrentFile(connID, fileID string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return domain.Session{}, false
	}
	s.CurrentFile = fileID
	return *s, true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
