package session

import (
	"errors"
	"strings"
	"testing"
)

func TestOpenGeneratesStableSenderID(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if first.SenderID() == "" {
		t.Fatalf("expected generated sender id")
	}

	second, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if second.SenderID() != first.SenderID() {
		t.Fatalf("expected stable sender id, got %q then %q", first.SenderID(), second.SenderID())
	}
}

func TestJoinAndLeavePersistRoomState(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.CurrentRoomID(); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("expected ErrNoRoom before join, got %v", err)
	}

	if err := store.Join("ABCD1234"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	room, err := reopened.CurrentRoomID()
	if err != nil {
		t.Fatalf("CurrentRoomID failed: %v", err)
	}
	if room != "ABCD1234" {
		t.Fatalf("expected persisted room, got %q", room)
	}

	if err := reopened.Leave(); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if _, err := reopened.CurrentRoomID(); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("expected ErrNoRoom after leave, got %v", err)
	}
	if reopened.SenderID() == "" {
		t.Fatalf("expected sender id to survive leaving the room")
	}
}

func TestJoinRequiresRoomID(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Join(""); err == nil {
		t.Fatalf("expected error for empty room id")
	}
}

func TestGenerateRoomID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		id, err := GenerateRoomID()
		if err != nil {
			t.Fatalf("GenerateRoomID failed: %v", err)
		}
		if len(id) != DefaultRoomIDLength {
			t.Fatalf("expected length %d, got %q", DefaultRoomIDLength, id)
		}
		for _, r := range id {
			if !strings.ContainsRune(roomIDAlphabet, r) {
				t.Fatalf("id %q contains character outside alphabet", id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected distinct generated room ids")
	}
}
