// Package service implements the room synchronization core: session
// lifecycle, document tree mutation and room fan-out of accepted events.
package service

import (
	"github.com/codesync/server/internal/presence"
	store "github.com/codesync/server/internal/repository"
)

// Broadcaster delivers frames to room members or a single connection.
// Delivery is best-effort: no acknowledgement, no retry. The hub
// implements it; tests substitute a recorder.
type Broadcaster interface {
	BroadcastJSONToRoom(roomID, excludeConnID string, v interface{}) error
	SendJSONToConnection(connID string, v interface{}) error
	JoinRoom(connID, roomID string) error
	LeaveRoom(connID string) error
}

// Service orchestrates presence, persistence and fan-out for every
// inbound client event.
type Service struct {
	store       store.Store
	presence    *presence.Registry
	broadcaster Broadcaster
}

// New creates a Service.
func New(st store.Store, reg *presence.Registry, b Broadcaster) *Service {
	return &Service{
		store:       st,
		presence:    reg,
		broadcaster: b,
	}
}
