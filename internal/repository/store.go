// Package store provides durable persistence for rooms, document trees,
// chat history and canvas snapshots.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/codesync/server/internal/domain"
)

// ErrParentNotFound is returned when a structural insert cannot resolve
// its parent directory. Callers treat it as a silent abort: the parent
// may have been deleted concurrently.
var ErrParentNotFound = errors.New("parent directory not found")

// Store is the durable storage contract used by the sync service.
type Store interface {
	Close() error

	// Users and rooms
	CreateUser(ctx context.Context, user *domain.User) error
	ListRoomUsers(ctx context.Context, roomID string) ([]domain.User, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	CreateRoomWithRoot(ctx context.Context, roomID string) (*domain.Room, *domain.Directory, error)

	// Directories
	GetDirectory(ctx context.Context, dirID string) (*domain.Directory, error)
	CreateDirectory(ctx context.Context, dir *domain.Directory) error
	RenameDirectory(ctx context.Context, dirID, name string) error
	DeleteDirectory(ctx context.Context, dirID string) error
	ListSubdirectories(ctx context.Context, parentID string) ([]domain.Directory, error)

	// Files
	GetFile(ctx context.Context, fileID string) (*domain.File, error)
	CreateFile(ctx context.Context, file *domain.File) error
	UpdateFileContent(ctx context.Context, fileID, content string) error
	RenameFile(ctx context.Context, fileID, name string) error
	DeleteFile(ctx context.Context, fileID string) error
	ListFiles(ctx context.Context, parentID string) ([]domain.File, error)

	// Chat
	CreateMessage(ctx context.Context, message *domain.Message) error
	ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error)

	// Drawing
	UpsertDrawing(ctx context.Context, roomID string, snapshot json.RawMessage) error
	GetDrawing(ctx context.Context, roomID string) (*domain.Drawing, error)
}
