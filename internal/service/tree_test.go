package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codesync/server/internal/protocol"
)

func TestCreateDirectoryAndFileInOrder(t *testing.T) {
	ctx := context.Background()
	svc, fb, db := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	svc.Join(ctx, "c2", "r1", "bob")
	room, err := db.GetRoom(ctx, "r1")
	assert.NoError(t, err)

	svc.CreateDirectory(ctx, "c1", room.RootDirectoryID, "src")

	created := fb.lastBroadcast(t)
	assert.Equal(t, "r1", created.RoomID)
	assert.Equal(t, "c1", created.Exclude)
	dirMsg, ok := created.Msg.(protocol.DirectoryCreatedMessage)
	assert.True(t, ok)
	assert.Equal(t, room.RootDirectoryID, dirMsg.ParentDirID)
	assert.Equal(t, "src", dirMsg.Directory.Name)
	assert.Equal(t, "r1", dirMsg.Directory.RoomID)

	// Persisted with correct parent linkage
	dir, err := db.GetDirectory(ctx, dirMsg.Directory.ID)
	assert.NoError(t, err)
	assert.NotNil(t, dir)
	assert.Equal(t, room.RootDirectoryID, dir.ParentDir)

	svc.CreateFile(ctx, "c1", dir.ID, protocol.NewFile{ID: "f1", Name: "a.txt"})

	fileMsg, ok := fb.lastBroadcast(t).Msg.(protocol.FileCreatedMessage)
	assert.True(t, ok)
	assert.Equal(t, dir.ID, fileMsg.ParentDirID)
	assert.Equal(t, "a.txt", fileMsg.File.Name)

	file, err := db.GetFile(ctx, "f1")
	assert.NoError(t, err)
	assert.NotNil(t, file)
	assert.Equal(t, dir.ID, file.ParentDir)
	assert.Equal(t, "r1", file.RoomID)
}

func TestCreateDirectoryMissingParentSilent(t *testing.T) {
	ctx := context.Background()
	svc, fb, _ := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	count := fb.broadcastCount()

	svc.CreateDirectory(ctx, "c1", "ghost", "src")
	svc.CreateFile(ctx, "c1", "ghost", protocol.NewFile{ID: "f1", Name: "a.txt"})

	// No broadcast, so peers never observe a dangling reference
	assert.Equal(t, count, fb.broadcastCount())
}

func TestCreateDirectoryWithoutSessionSilent(t *testing.T) {
	ctx := context.Background()
	svc, fb, _ := newTestService(t)

	svc.CreateDirectory(ctx, "ghost", "any", "src")
	assert.Equal(t, 0, fb.broadcastCount())
}

func TestUpdateFileLatestWins(t *testing.T) {
	ctx := context.Background()
	svc, fb, db := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	room, _ := db.GetRoom(ctx, "r1")
	svc.CreateFile(ctx, "c1", room.RootDirectoryID, protocol.NewFile{ID: "f1", Name: "a.txt"})

	svc.UpdateFile(ctx, "c1", "f1", "A")
	svc.UpdateFile(ctx, "c1", "f1", "B")

	file, err := db.GetFile(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, "B", file.Content)

	updated, ok := fb.lastBroadcast(t).Msg.(protocol.FileUpdatedMessage)
	assert.True(t, ok)
	assert.Equal(t, "B", updated.NewContent)
}

func TestUpdateFileTracksCurrentFile(t *testing.T) {
	ctx := context.Background()
	svc, fb, db := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	svc.Join(ctx, "c2", "r1", "bob")
	room, _ := db.GetRoom(ctx, "r1")
	svc.CreateFile(ctx, "c1", room.RootDirectoryID, protocol.NewFile{ID: "f1", Name: "a.txt"})

	svc.UpdateFile(ctx, "c1", "f1", "A")
	svc.TypingStart("c1", 3)

	// Presence relays now carry the file the writer last edited
	event, ok := fb.lastBroadcast(t).Msg.(protocol.UserEventMessage)
	assert.True(t, ok)
	assert.Equal(t, "f1", event.User.CurrentFile)
}

func TestRenameDirectoryPersistsAndRelays(t *testing.T) {
	ctx := context.Background()
	svc, fb, db := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	room, _ := db.GetRoom(ctx, "r1")
	svc.CreateDirectory(ctx, "c1", room.RootDirectoryID, "src")
	dirMsg := fb.lastBroadcast(t).Msg.(protocol.DirectoryCreatedMessage)

	svc.RenameDirectory(ctx, "c1", dirMsg.Directory.ID, "lib")

	dir, err := db.GetDirectory(ctx, dirMsg.Directory.ID)
	assert.NoError(t, err)
	assert.Equal(t, "lib", dir.Name)

	renamed, ok := fb.lastBroadcast(t).Msg.(protocol.DirectoryRenamedMessage)
	assert.True(t, ok)
	assert.Equal(t, "lib", renamed.NewName)
}

func TestRenameMissingDirectorySilent(t *testing.T) {
	ctx := context.Background()
	svc, fb, _ := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	count := fb.broadcastCount()

	svc.RenameDirectory(ctx, "c1", "ghost", "lib")
	assert.Equal(t, count, fb.broadcastCount())
}

func TestDeleteDirectoryCascadesAndRelays(t *testing.T) {
	ctx := context.Background()
	svc, fb, db := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	room, _ := db.GetRoom(ctx, "r1")
	svc.CreateDirectory(ctx, "c1", room.RootDirectoryID, "src")
	dirID := fb.lastBroadcast(t).Msg.(protocol.DirectoryCreatedMessage).Directory.ID
	svc.CreateFile(ctx, "c1", dirID, protocol.NewFile{ID: "f1", Name: "a.txt"})

	svc.DeleteDirectory(ctx, "c1", dirID)

	deleted, ok := fb.lastBroadcast(t).Msg.(protocol.DirectoryDeletedMessage)
	assert.True(t, ok)
	assert.Equal(t, dirID, deleted.DirID)

	dir, _ := db.GetDirectory(ctx, dirID)
	assert.Nil(t, dir)
	file, _ := db.GetFile(ctx, "f1")
	assert.Nil(t, file)
}

func TestDeleteRootDirectoryRefused(t *testing.T) {
	ctx := context.Background()
	svc, fb, db := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	room, _ := db.GetRoom(ctx, "r1")
	count := fb.broadcastCount()

	svc.DeleteDirectory(ctx, "c1", room.RootDirectoryID)

	assert.Equal(t, count, fb.broadcastCount())
	root, _ := db.GetDirectory(ctx, room.RootDirectoryID)
	assert.NotNil(t, root)
}

func TestDeleteFileRelays(t *testing.T) {
	ctx := context.Background()
	svc, fb, db := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	room, _ := db.GetRoom(ctx, "r1")
	svc.CreateFile(ctx, "c1", room.RootDirectoryID, protocol.NewFile{ID: "f1", Name: "a.txt"})

	svc.DeleteFile(ctx, "c1", "f1")

	deleted, ok := fb.lastBroadcast(t).Msg.(protocol.FileDeletedMessage)
	assert.True(t, ok)
	assert.Equal(t, "f1", deleted.FileID)
	file, _ := db.GetFile(ctx, "f1")
	assert.Nil(t, file)
}

func TestDirectoryUpdatedRelayOnly(t *testing.T) {
	ctx := context.Background()
	svc, fb, db := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	room, _ := db.GetRoom(ctx, "r1")

	children := json.RawMessage(`["f2","f1"]`)
	svc.DirectoryUpdated(ctx, "c1", room.RootDirectoryID, children)

	updated, ok := fb.lastBroadcast(t).Msg.(protocol.DirectoryUpdatedMessage)
	assert.True(t, ok)
	assert.Equal(t, room.RootDirectoryID, updated.DirID)
	assert.JSONEq(t, string(children), string(updated.Children))
}

func TestDirectoryUpdatedMissingDirSilent(t *testing.T) {
	ctx := context.Background()
	svc, fb, _ := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	count := fb.broadcastCount()

	svc.DirectoryUpdated(ctx, "c1", "ghost", json.RawMessage(`[]`))
	assert.Equal(t, count, fb.broadcastCount())
}

func TestSyncFileStructureUnicastsToTarget(t *testing.T) {
	ctx := context.Background()
	svc, fb, _ := newTestService(t)

	svc.Join(ctx, "c1", "r1", "alice")
	svc.Join(ctx, "c2", "r1", "bob")

	msg := protocol.SyncFileStructureMessage{
		TargetID:      "c2",
		FileStructure: json.RawMessage(`{"root":{}}`),
		OpenFiles:     json.RawMessage(`[]`),
	}
	msg.Type = protocol.TypeSyncFileStructure
	svc.SyncFileStructure("c1", msg)

	relay := fb.lastUnicast(t)
	assert.Equal(t, "c2", relay.ConnID)
	out, ok := relay.Msg.(protocol.SyncFileStructureMessage)
	assert.True(t, ok)
	assert.JSONEq(t, `{"root":{}}`, string(out.FileStructure))
	assert.Empty(t, out.TargetID)
}
