// Package protocol defines the WebSocket message protocol between editor
// clients and the sync server.
package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/codesync/server/internal/domain"
)

// Message types from client to server
const (
	TypeJoinRequest       = "join_request"
	TypeUserOnline        = "user_online"
	TypeUserOffline       = "user_offline"
	TypeTypingStart       = "typing_start"
	TypeTypingPause       = "typing_pause"
	TypeSyncFileStructure = "sync_file_structure"
	TypeDirectoryCreated  = "directory_created"
	TypeDirectoryUpdated  = "directory_updated"
	TypeDirectoryRenamed  = "directory_renamed"
	TypeDirectoryDeleted  = "directory_deleted"
	TypeFileCreated       = "file_created"
	TypeFileUpdated       = "file_updated"
	TypeFileRenamed       = "file_renamed"
	TypeFileDeleted       = "file_deleted"
	TypeSendMessage       = "send_message"
	TypeRequestDrawing    = "request_drawing"
	TypeSyncDrawing       = "sync_drawing"
	TypeDrawingUpdate     = "drawing_update"
)

// Message types from server to client
const (
	TypeJoinAccepted     = "join_accepted"
	TypeUsernameExists   = "username_exists"
	TypeUserJoined       = "user_joined"
	TypeUserDisconnected = "user_disconnected"
	TypeReceiveMessage   = "receive_message"
)

// ErrInvalidPayload is returned when an inbound message misses a
// required field. The caller drops the event without replying.
var ErrInvalidPayload = errors.New("invalid message payload")

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts,omitempty"`
}

func base(msgType string) BaseMessage {
	return BaseMessage{Type: msgType, Ts: time.Now().UnixMilli()}
}

// JoinRequestMessage asks to join a room under a username.
type JoinRequestMessage struct {
	BaseMessage
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

func (m *JoinRequestMessage) Validate() error {
	if m.RoomID == "" || m.Username == "" {
		return ErrInvalidPayload
	}
	return nil
}

// JoinAcceptedMessage confirms a join to the new connection only.
type JoinAcceptedMessage struct {
	BaseMessage
	User  domain.Session   `json:"user"`
	Users []domain.Session `json:"users"`
}

// NewJoinAccepted builds the join confirmation for the joining user.
func NewJoinAccepted(user domain.Session, users []domain.Session) JoinAcceptedMessage {
	return JoinAcceptedMessage{BaseMessage: base(TypeJoinAccepted), User: user, Users: users}
}

// UsernameExistsMessage rejects a join whose username is taken.
type UsernameExistsMessage struct {
	BaseMessage
}

func NewUsernameExists() UsernameExistsMessage {
	return UsernameExistsMessage{BaseMessage: base(TypeUsernameExists)}
}

// UserEventMessage announces a presence change carrying the full user record.
// Used for user_joined, user_disconnected, typing_start and typing_pause.
type UserEventMessage struct {
	BaseMessage
	User domain.Session `json:"user"`
}

func NewUserEvent(msgType string, user domain.Session) UserEventMessage {
	return UserEventMessage{BaseMessage: base(msgType), User: user}
}

// UserStatusMessage carries the subject connection id of an online/offline
// status change. Inbound and room-relayed unchanged.
type UserStatusMessage struct {
	BaseMessage
	ConnID string `json:"conn_id"`
}

func (m *UserStatusMessage) Validate() error {
	if m.ConnID == "" {
		return ErrInvalidPayload
	}
	return nil
}

func NewUserStatus(msgType, connID string) UserStatusMessage {
	return UserStatusMessage{BaseMessage: base(msgType), ConnID: connID}
}

// TypingStartMessage reports that the sender started typing.
type TypingStartMessage struct {
	BaseMessage
	CursorPosition int `json:"cursor_position"`
}

func (m *TypingStartMessage) Validate() error {
	if m.CursorPosition < 0 {
		return ErrInvalidPayload
	}
	return nil
}

// TypingPauseMessage reports that the sender stopped typing.
type TypingPauseMessage struct {
	BaseMessage
}

// SyncFileStructureMessage hands the full editor state to one named
// connection. The server relays it without persistence.
type SyncFileStructureMessage struct {
	BaseMessage
	TargetID      string          `json:"target_id,omitempty"`
	FileStructure json.RawMessage `json:"file_structure"`
	OpenFiles     json.RawMessage `json:"open_files,omitempty"`
	ActiveFile    json.RawMessage `json:"active_file,omitempty"`
}

func (m *SyncFileStructureMessage) Validate() error {
	if m.TargetID == "" || len(m.FileStructure) == 0 {
		return ErrInvalidPayload
	}
	return nil
}

// DirectoryCreateMessage asks to create a directory under a parent.
type DirectoryCreateMessage struct {
	BaseMessage
	ParentDirID string `json:"parent_dir_id"`
	Name        string `json:"name"`
}

func (m *DirectoryCreateMessage) Validate() error {
	if m.ParentDirID == "" || m.Name == "" {
		return ErrInvalidPayload
	}
	return nil
}

// DirectoryCreatedMessage announces a persisted directory to peers.
type DirectoryCreatedMessage struct {
	BaseMessage
	ParentDirID string           `json:"parent_dir_id"`
	Directory   domain.Directory `json:"directory"`
}

func NewDirectoryCreated(parentDirID string, dir domain.Directory) DirectoryCreatedMessage {
	return DirectoryCreatedMessage{BaseMessage: base(TypeDirectoryCreated), ParentDirID: parentDirID, Directory: dir}
}

// DirectoryUpdatedMessage relays a client-side reordering of a
// directory's children.
type DirectoryUpdatedMessage struct {
	BaseMessage
	DirID    string          `json:"dir_id"`
	Children json.RawMessage `json:"children"`
}

func (m *DirectoryUpdatedMessage) Validate() error {
	if m.DirID == "" {
		return ErrInvalidPayload
	}
	return nil
}

func NewDirectoryUpdated(dirID string, children json.RawMessage) DirectoryUpdatedMessage {
	return DirectoryUpdatedMessage{BaseMessage: base(TypeDirectoryUpdated), DirID: dirID, Children: children}
}

// DirectoryRenamedMessage renames a directory. Inbound and room-relayed.
type DirectoryRenamedMessage struct {
	BaseMessage
	DirID   string `json:"dir_id"`
	NewName string `json:"new_name"`
}

func (m *DirectoryRenamedMessage) Validate() error {
	if m.DirID == "" || m.NewName == "" {
		return ErrInvalidPayload
	}
	return nil
}

func NewDirectoryRenamed(dirID, newName string) DirectoryRenamedMessage {
	return DirectoryRenamedMessage{BaseMessage: base(TypeDirectoryRenamed), DirID: dirID, NewName: newName}
}

// DirectoryDeletedMessage deletes a directory subtree. Inbound and room-relayed.
type DirectoryDeletedMessage struct {
	BaseMessage
	DirID string `json:"dir_id"`
}

func (m *DirectoryDeletedMessage) Validate() error {
	if m.DirID == "" {
		return ErrInvalidPayload
	}
	return nil
}

func NewDirectoryDeleted(dirID string) DirectoryDeletedMessage {
	return DirectoryDeletedMessage{BaseMessage: base(TypeDirectoryDeleted), DirID: dirID}
}

// NewFile is the client-assigned seed of a file to create. Clients
// pre-assign the id so their optimistic UI and the broadcast agree.
type NewFile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// FileCreateMessage asks to create a file under a parent directory.
type FileCreateMessage struct {
	BaseMessage
	ParentDirID string  `json:"parent_dir_id"`
	File        NewFile `json:"file"`
}

func (m *FileCreateMessage) Validate() error {
	if m.ParentDirID == "" || m.File.ID == "" || m.File.Name == "" {
		return ErrInvalidPayload
	}
	return nil
}

// FileCreatedMessage announces a persisted file to peers.
type FileCreatedMessage struct {
	BaseMessage
	ParentDirID string      `json:"parent_dir_id"`
	File        domain.File `json:"file"`
}

func NewFileCreated(parentDirID string, file domain.File) FileCreatedMessage {
	return FileCreatedMessage{BaseMessage: base(TypeFileCreated), ParentDirID: parentDirID, File: file}
}

// FileUpdatedMessage replaces a file's content. Inbound and room-relayed.
type FileUpdatedMessage struct {
	BaseMessage
	FileID     string `json:"file_id"`
	NewContent string `json:"new_content"`
}

func (m *FileUpdatedMessage) Validate() error {
	if m.FileID == "" {
		return ErrInvalidPayload
	}
	return nil
}

func NewFileUpdated(fileID, newContent string) FileUpdatedMessage {
	return FileUpdatedMessage{BaseMessage: base(TypeFileUpdated), FileID: fileID, NewContent: newContent}
}

// FileRenamedMessage renames a file. Inbound and room-relayed.
type FileRenamedMessage struct {
	BaseMessage
	FileID  string `json:"file_id"`
	NewName string `json:"new_name"`
}

func (m *FileRenamedMessage) Validate() error {
	if m.FileID == "" || m.NewName == "" {
		return ErrInvalidPayload
	}
	return nil
}

func NewFileRenamed(fileID, newName string) FileRenamedMessage {
	return FileRenamedMessage{BaseMessage: base(TypeFileRenamed), FileID: fileID, NewName: newName}
}

// FileDeletedMessage deletes a file. Inbound and room-relayed.
type FileDeletedMessage struct {
	BaseMessage
	FileID string `json:"file_id"`
}

func (m *FileDeletedMessage) Validate() error {
	if m.FileID == "" {
		return ErrInvalidPayload
	}
	return nil
}

func NewFileDeleted(fileID string) FileDeletedMessage {
	return FileDeletedMessage{BaseMessage: base(TypeFileDeleted), FileID: fileID}
}

// SendMessageMessage posts a chat message to the sender's room.
type SendMessageMessage struct {
	BaseMessage
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

func (m *SendMessageMessage) Validate() error {
	if m.Sender == "" || m.Content == "" {
		return ErrInvalidPayload
	}
	return nil
}

// ReceiveMessageMessage relays a persisted chat message to peers.
type ReceiveMessageMessage struct {
	BaseMessage
	Message domain.Message `json:"message"`
}

func NewReceiveMessage(msg domain.Message) ReceiveMessageMessage {
	return ReceiveMessageMessage{BaseMessage: base(TypeReceiveMessage), Message: msg}
}

// RequestDrawingMessage asks the room for the current canvas. The relayed
// form carries the requester's connection id so a peer can answer it.
type RequestDrawingMessage struct {
	BaseMessage
	ConnID string `json:"conn_id,omitempty"`
}

func NewRequestDrawing(connID string) RequestDrawingMessage {
	return RequestDrawingMessage{BaseMessage: base(TypeRequestDrawing), ConnID: connID}
}

// SyncDrawingMessage hands the canvas state to one named connection.
type SyncDrawingMessage struct {
	BaseMessage
	TargetID    string          `json:"target_id,omitempty"`
	DrawingData json.RawMessage `json:"drawing_data"`
}

func (m *SyncDrawingMessage) Validate() error {
	if m.TargetID == "" || len(m.DrawingData) == 0 {
		return ErrInvalidPayload
	}
	return nil
}

func NewSyncDrawing(drawingData json.RawMessage) SyncDrawingMessage {
	return SyncDrawingMessage{BaseMessage: base(TypeSyncDrawing), DrawingData: drawingData}
}

// DrawingUpdateMessage replaces the room's canvas snapshot. Inbound and
// room-relayed.
type DrawingUpdateMessage struct {
	BaseMessage
	Snapshot json.RawMessage `json:"snapshot"`
}

func (m *DrawingUpdateMessage) Validate() error {
	if len(m.Snapshot) == 0 {
		return ErrInvalidPayload
	}
	return nil
}

func NewDrawingUpdate(snapshot json.RawMessage) DrawingUpdateMessage {
	return DrawingUpdateMessage{BaseMessage: base(TypeDrawingUpdate), Snapshot: snapshot}
}
