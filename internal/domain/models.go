package domain

import (
	"encoding/json"
	"time"
)

// Session is the ephemeral per-connection presence record. It lives only
// in the presence registry and dies with the connection.
type Session struct {
	ConnID         string     `json:"conn_id"`
	Username       string     `json:"username"`
	RoomID         string     `json:"room_id"`
	Status         UserStatus `json:"status"`
	CursorPosition int        `json:"cursor_position"`
	Typing         bool       `json:"typing"`
	CurrentFile    string     `json:"current_file,omitempty"`
}

// User is the durable record of a user having joined a room.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	RoomID   string    `json:"room_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Room is a durable collaboration namespace. It owns one document tree
// rooted at RootDirectoryID. Rooms are created lazily on first join and
// never deleted.
type Room struct {
	ID              string    `json:"id"`
	RootDirectoryID string    `json:"root_directory_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Directory is a node in a room's document tree. ParentDir is empty only
// for the room's root.
type Directory struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ParentDir string `json:"parent_dir,omitempty"`
	RoomID    string `json:"room_id"`
}

// File is a leaf of the document tree. ParentDir is never empty.
type File struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	ParentDir string `json:"parent_dir"`
	RoomID    string `json:"room_id"`
}

// Message is a persisted chat message, scoped to a room.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Drawing is the single latest-wins canvas snapshot for a room. The
// snapshot content is opaque to the server.
type Drawing struct {
	RoomID    string          `json:"room_id"`
	Snapshot  json.RawMessage `json:"snapshot"`
	UpdatedAt time.Time       `json:"updated_at"`
}
