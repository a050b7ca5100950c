package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/codesync/server/internal/domain"
	"github.com/codesync/server/internal/protocol"
	store "github.com/codesync/server/internal/repository"
)

// Structural mutations follow a single policy: resolve the originating
// room and the parent node, persist, then broadcast. If either lookup
// fails the event is dropped silently — peers never observe a reference
// to a record that was not persisted.

// CreateDirectory creates a directory under parentDirID and announces
// the persisted record to the sender's room.
func (s *Service) CreateDirectory(ctx context.Context, connID, parentDirID, name string) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}

	dir := &domain.Directory{
		ID:        uuid.New().String(),
		Name:      name,
		ParentDir: parentDirID,
	}
	if err := s.store.CreateDirectory(ctx, dir); err != nil {
		if !errors.Is(err, store.ErrParentNotFound) {
			log.Printf("ERROR: failed to create directory %q under %s: %v", name, parentDirID, err)
		}
		return
	}

	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewDirectoryCreated(parentDirID, *dir)); err != nil {
		log.Printf("WARN: failed to broadcast directory_created in room %s: %v", roomID, err)
	}
}

// DirectoryUpdated relays a client-side reordering of a directory's
// children. Child sets are derived from parent links in the store, so
// there is nothing durable to write.
func (s *Service) DirectoryUpdated(ctx context.Context, connID, dirID string, children json.RawMessage) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}
	dir, err := s.store.GetDirectory(ctx, dirID)
	if err != nil {
		log.Printf("ERROR: failed to look up directory %s: %v", dirID, err)
		return
	}
	if dir == nil {
		return
	}
	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewDirectoryUpdated(dirID, children)); err != nil {
		log.Printf("WARN: failed to broadcast directory_updated in room %s: %v", roomID, err)
	}
}

// RenameDirectory renames a directory and relays the change.
func (s *Service) RenameDirectory(ctx context.Context, connID, dirID, newName string) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}
	dir, err := s.store.GetDirectory(ctx, dirID)
	if err != nil {
		log.Printf("ERROR: failed to look up directory %s: %v", dirID, err)
		return
	}
	if dir == nil {
		return
	}
	if err := s.store.RenameDirectory(ctx, dirID, newName); err != nil {
		log.Printf("ERROR: failed to rename directory %s: %v", dirID, err)
		return
	}
	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewDirectoryRenamed(dirID, newName)); err != nil {
		log.Printf("WARN: failed to broadcast directory_renamed in room %s: %v", roomID, err)
	}
}

// DeleteDirectory removes a directory subtree and relays the deletion.
// A room's root directory cannot be deleted.
func (s *Service) DeleteDirectory(ctx context.Context, connID, dirID string) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}
	dir, err := s.store.GetDirectory(ctx, dirID)
	if err != nil {
		log.Printf("ERROR: failed to look up directory %s: %v", dirID, err)
		return
	}
	if dir == nil || dir.ParentDir == "" {
		return
	}
	if err := s.store.DeleteDirectory(ctx, dirID); err != nil {
		log.Printf("ERROR: failed to delete directory %s: %v", dirID, err)
		return
	}
	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewDirectoryDeleted(dirID)); err != nil {
		log.Printf("WARN: failed to broadcast directory_deleted in room %s: %v", roomID, err)
	}
}

// CreateFile creates a file under parentDirID with a client-assigned id
// and announces the persisted record to the sender's room.
func (s *Service) CreateFile(ctx context.Context, connID, parentDirID string, seed protocol.NewFile) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}

	file := &domain.File{
		ID:        seed.ID,
		Name:      seed.Name,
		Content:   seed.Content,
		ParentDir: parentDirID,
	}
	if err := s.store.CreateFile(ctx, file); err != nil {
		if !errors.Is(err, store.ErrParentNotFound) {
			log.Printf("ERROR: failed to create file %q under %s: %v", seed.Name, parentDirID, err)
		}
		return
	}

	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewFileCreated(parentDirID, *file)); err != nil {
		log.Printf("WARN: failed to broadcast file_created in room %s: %v", roomID, err)
	}
}

// UpdateFile replaces a file's content and relays the change. Last
// write durably wins, matching the broadcast path's semantics.
func (s *Service) UpdateFile(ctx context.Context, connID, fileID, newContent string) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}
	if err := s.store.UpdateFileContent(ctx, fileID, newContent); err != nil {
		log.Printf("ERROR: failed to update file %s: %v", fileID, err)
		return
	}
	// The writer's session tracks the file it last edited, so presence
	// relays carry it.
	s.presence.SetCurrentFile(connID, fileID)
	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewFileUpdated(fileID, newContent)); err != nil {
		log.Printf("WARN: failed to broadcast file_updated in room %s: %v", roomID, err)
	}
}

// RenameFile renames a file and relays the change.
func (s *Service) RenameFile(ctx context.Context, connID, fileID, newName string) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}
	if err := s.store.RenameFile(ctx, fileID, newName); err != nil {
		log.Printf("ERROR: failed to rename file %s: %v", fileID, err)
		return
	}
	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewFileRenamed(fileID, newName)); err != nil {
		log.Printf("WARN: failed to broadcast file_renamed in room %s: %v", roomID, err)
	}
}

// DeleteFile removes a file and relays the deletion.
func (s *Service) DeleteFile(ctx context.Context, connID, fileID string) {
	roomID, ok := s.presence.RoomOf(connID)
	if !ok {
		return
	}
	if err := s.store.DeleteFile(ctx, fileID); err != nil {
		log.Printf("ERROR: failed to delete file %s: %v", fileID, err)
		return
	}
	if err := s.broadcaster.BroadcastJSONToRoom(roomID, connID, protocol.NewFileDeleted(fileID)); err != nil {
		log.Printf("WARN: failed to broadcast file_deleted in room %s: %v", roomID, err)
	}
}

// SyncFileStructure hands one client's view of the tree to a named
// target connection. Pure relay, no persistence.
func (s *Service) SyncFileStructure(connID string, msg protocol.SyncFileStructureMessage) {
	if _, ok := s.presence.RoomOf(connID); !ok {
		return
	}
	out := msg
	out.TargetID = ""
	if err := s.broadcaster.SendJSONToConnection(msg.TargetID, out); err != nil {
		log.Printf("WARN: failed to sync file structure to %s: %v", msg.TargetID, err)
	}
}
