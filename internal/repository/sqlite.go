package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codesync/server/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			root_directory_id TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			room_id TEXT NOT NULL,
			joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_room ON users(room_id, joined_at)`,
		`CREATE TABLE IF NOT EXISTS directories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			parent_dir TEXT,
			room_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_directories_parent ON directories(parent_dir)`,
		`CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			parent_dir TEXT NOT NULL,
			room_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_parent ON files(parent_dir)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS drawings (
			room_id TEXT PRIMARY KEY,
			snapshot TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser persists a durable record of a user joining a room.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, room_id, joined_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, user.RoomID, user.JoinedAt)
	return err
}

// ListRoomUsers retrieves the users that ever joined a room, in join order.
func (s *SQLiteStore) ListRoomUsers(ctx context.Context, roomID string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, room_id, joined_at FROM users WHERE room_id = ? ORDER BY joined_at ASC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.RoomID, &u.JoinedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, root_directory_id, created_at FROM rooms WHERE id = ?`,
		roomID).Scan(&room.ID, &room.RootDirectoryID, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateRoomWithRoot creates a room together with its empty root
// directory. The directory is inserted first because the room row
// references its generated id; the directory's owning room id is
// backfilled once the room row exists.
func (s *SQLiteStore) CreateRoomWithRoot(ctx context.Context, roomID string) (*domain.Room, *domain.Directory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	root := &domain.Directory{
		ID:   uuid.New().String(),
		Name: "root",
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO directories (id, name, parent_dir, room_id) VALUES (?, ?, NULL, '')`,
		root.ID, root.Name); err != nil {
		return nil, nil, err
	}

	room := &domain.Room{
		ID:              roomID,
		RootDirectoryID: root.ID,
		CreatedAt:       now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (id, root_directory_id, created_at) VALUES (?, ?, ?)`,
		room.ID, room.RootDirectoryID, room.CreatedAt); err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE directories SET room_id = ? WHERE id = ?`,
		room.ID, root.ID); err != nil {
		return nil, nil, err
	}
	root.RoomID = room.ID

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return room, root, nil
}

// GetDirectory retrieves a directory by ID.
func (s *SQLiteStore) GetDirectory(ctx context.Context, dirID string) (*domain.Directory, error) {
	var dir domain.Directory
	var parentDir sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, parent_dir, room_id FROM directories WHERE id = ?`,
		dirID).Scan(&dir.ID, &dir.Name, &parentDir, &dir.RoomID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if parentDir.Valid {
		dir.ParentDir = parentDir.String
	}
	return &dir, nil
}

// CreateDirectory inserts a directory after verifying its parent still
// exists. The check and the insert share one transaction so a concurrent
// parent delete cannot slip between them; an unresolved parent yields
// ErrParentNotFound.
func (s *SQLiteStore) CreateDirectory(ctx context.Context, dir *domain.Directory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var roomID string
	err = tx.QueryRowContext(ctx,
		`SELECT room_id FROM directories WHERE id = ?`, dir.ParentDir).Scan(&roomID)
	if err == sql.ErrNoRows {
		return ErrParentNotFound
	}
	if err != nil {
		return err
	}
	dir.RoomID = roomID

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO directories (id, name, parent_dir, room_id) VALUES (?, ?, ?, ?)`,
		dir.ID, dir.Name, dir.ParentDir, dir.RoomID); err != nil {
		return err
	}
	return tx.Commit()
}

// RenameDirectory updates a directory's name. Renaming a missing
// directory is a no-op.
func (s *SQLiteStore) RenameDirectory(ctx context.Context, dirID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE directories SET name = ? WHERE id = ?`, name, dirID)
	return err
}

// DeleteDirectory removes a directory and its entire subtree: every
// descendant file and subdirectory goes with it.
func (s *SQLiteStore) DeleteDirectory(ctx context.Context, dirID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const subtree = `WITH RECURSIVE subtree(id) AS (
		SELECT id FROM directories WHERE id = ?
		UNION ALL
		SELECT d.id FROM directories d JOIN subtree s ON d.parent_dir = s.id
	)`

	if _, err := tx.ExecContext(ctx,
		subtree+` DELETE FROM files WHERE parent_dir IN (SELECT id FROM subtree)`,
		dirID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		subtree+` DELETE FROM directories WHERE id IN (SELECT id FROM subtree)`,
		dirID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListSubdirectories retrieves the immediate subdirectories of a directory.
func (s *SQLiteStore) ListSubdirectories(ctx context.Context, parentID string) ([]domain.Directory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, parent_dir, room_id FROM directories WHERE parent_dir = ? ORDER BY name ASC`,
		parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []domain.Directory
	for rows.Next() {
		var dir domain.Directory
		var parentDir sql.NullString
		if err := rows.Scan(&dir.ID, &dir.Name, &parentDir, &dir.RoomID); err != nil {
			return nil, err
		}
		if parentDir.Valid {
			dir.ParentDir = parentDir.String
		}
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

// GetFile retrieves a file by ID.
func (s *SQLiteStore) GetFile(ctx context.Context, fileID string) (*domain.File, error) {
	var file domain.File
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, parent_dir, room_id FROM files WHERE id = ?`,
		fileID).Scan(&file.ID, &file.Name, &file.Content, &file.ParentDir, &file.RoomID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// CreateFile inserts a file after verifying its parent directory still
// exists, under the same transactional discipline as CreateDirectory.
func (s *SQLiteStore) CreateFile(ctx context.Context, file *domain.File) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var roomID string
	err = tx.QueryRowContext(ctx,
		`SELECT room_id FROM directories WHERE id = ?`, file.ParentDir).Scan(&roomID)
	if err == sql.ErrNoRows {
		return ErrParentNotFound
	}
	if err != nil {
		return err
	}
	file.RoomID = roomID

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO files (id, name, content, parent_dir, room_id) VALUES (?, ?, ?, ?, ?)`,
		file.ID, file.Name, file.Content, file.ParentDir, file.RoomID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateFileContent replaces a file's content. Last write wins; there is
// no merge.
func (s *SQLiteStore) UpdateFileContent(ctx context.Context, fileID, content string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET content = ? WHERE id = ?`, content, fileID)
	return err
}

// RenameFile updates a file's name. Renaming a missing file is a no-op.
func (s *SQLiteStore) RenameFile(ctx context.Context, fileID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET name = ? WHERE id = ?`, name, fileID)
	return err
}

// DeleteFile removes a file by ID.
func (s *SQLiteStore) DeleteFile(ctx context.Context, fileID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM files WHERE id = ?`, fileID)
	return err
}

// ListFiles retrieves the files directly under a directory.
func (s *SQLiteStore) ListFiles(ctx context.Context, parentID string) ([]domain.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, parent_dir, room_id FROM files WHERE parent_dir = ? ORDER BY name ASC`,
		parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []domain.File
	for rows.Next() {
		var file domain.File
		if err := rows.Scan(&file.ID, &file.Name, &file.Content, &file.ParentDir, &file.RoomID); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// CreateMessage persists a chat message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, sender, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		message.ID, message.RoomID, message.Sender, message.Content, message.Timestamp)
	return err
}

// ListMessages retrieves a room's chat history, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	query := `SELECT id, room_id, sender, content, timestamp FROM messages WHERE room_id = ? ORDER BY timestamp ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Sender, &msg.Content, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// UpsertDrawing writes the room's canvas snapshot, replacing any
// previous one. One row per room, latest wins.
func (s *SQLiteStore) UpsertDrawing(ctx context.Context, roomID string, snapshot json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drawings (room_id, snapshot, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		roomID, string(snapshot), time.Now())
	return err
}

// GetDrawing retrieves the room's canvas snapshot.
func (s *SQLiteStore) GetDrawing(ctx context.Context, roomID string) (*domain.Drawing, error) {
	var drawing domain.Drawing
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT room_id, snapshot, updated_at FROM drawings WHERE room_id = ?`,
		roomID).Scan(&drawing.RoomID, &snapshot, &drawing.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	drawing.Snapshot = json.RawMessage(snapshot)
	return &drawing, nil
}
