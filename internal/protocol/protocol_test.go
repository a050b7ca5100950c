package protocol

import (
	"encoding/json"
	"testing"
)

func TestJoinRequestValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"complete", `{"type":"join_request","room_id":"r1","username":"alice"}`, false},
		{"missing room", `{"type":"join_request","username":"alice"}`, true},
		{"missing username", `{"type":"join_request","room_id":"r1"}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var msg JoinRequestMessage
			if err := json.Unmarshal([]byte(tc.payload), &msg); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			err := msg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestStructuralPayloadValidation(t *testing.T) {
	valid := []interface{ Validate() error }{
		&DirectoryCreateMessage{ParentDirID: "d1", Name: "src"},
		&DirectoryRenamedMessage{DirID: "d1", NewName: "lib"},
		&DirectoryDeletedMessage{DirID: "d1"},
		&FileCreateMessage{ParentDirID: "d1", File: NewFile{ID: "f1", Name: "a.txt"}},
		&FileUpdatedMessage{FileID: "f1"},
		&FileRenamedMessage{FileID: "f1", NewName: "b.txt"},
		&FileDeletedMessage{FileID: "f1"},
	}
	for _, msg := range valid {
		if err := msg.Validate(); err != nil {
			t.Fatalf("%T unexpectedly invalid: %v", msg, err)
		}
	}

	invalid := []interface{ Validate() error }{
		&DirectoryCreateMessage{Name: "src"},
		&DirectoryCreateMessage{ParentDirID: "d1"},
		&DirectoryRenamedMessage{DirID: "d1"},
		&DirectoryDeletedMessage{},
		&FileCreateMessage{ParentDirID: "d1", File: NewFile{Name: "a.txt"}},
		&FileCreateMessage{ParentDirID: "d1", File: NewFile{ID: "f1"}},
		&FileUpdatedMessage{},
		&FileRenamedMessage{FileID: "f1"},
		&FileDeletedMessage{},
	}
	for _, msg := range invalid {
		if err := msg.Validate(); err == nil {
			t.Fatalf("%T unexpectedly valid", msg)
		}
	}
}

func TestRelayPayloadValidation(t *testing.T) {
	sync := &SyncFileStructureMessage{TargetID: "c2", FileStructure: json.RawMessage(`{}`)}
	if err := sync.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if err := (&SyncFileStructureMessage{FileStructure: json.RawMessage(`{}`)}).Validate(); err == nil {
		t.Fatal("expected missing target to be invalid")
	}

	if err := (&SyncDrawingMessage{TargetID: "c2", DrawingData: json.RawMessage(`{}`)}).Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if err := (&SyncDrawingMessage{TargetID: "c2"}).Validate(); err == nil {
		t.Fatal("expected missing drawing data to be invalid")
	}

	if err := (&DrawingUpdateMessage{}).Validate(); err == nil {
		t.Fatal("expected empty snapshot to be invalid")
	}
	if err := (&UserStatusMessage{}).Validate(); err == nil {
		t.Fatal("expected missing conn id to be invalid")
	}
	if err := (&TypingStartMessage{CursorPosition: -1}).Validate(); err == nil {
		t.Fatal("expected negative cursor to be invalid")
	}
}

func TestOutboundMessagesStampTimestamp(t *testing.T) {
	msg := NewUsernameExists()
	if msg.Type != TypeUsernameExists {
		t.Fatalf("unexpected type %q", msg.Type)
	}
	if msg.Ts == 0 {
		t.Fatal("expected timestamp to be stamped")
	}
}
