package storage

import "testing"

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func mustInsert(t *testing.T, store *Store, roomID, payload, sender string) *Message {
	t.Helper()

	msg, err := store.InsertMessage(roomID, payload, sender, "")
	if err != nil {
		t.Fatalf("insert message: %v", err)
	}
	return msg
}
