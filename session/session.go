// Package session persists the client's room membership and locally
// generated sender identity as one JSON blob, the counterpart of the
// original browser client's single localStorage key.
package session

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// FileName is the persisted session blob under the app data dir.
	FileName = "session.json"
	// DefaultRoomIDLength is the generated room token length.
	DefaultRoomIDLength = 8
	// roomIDAlphabet omits ambiguous characters (I, O, 0, 1). Its length of
	// 32 makes unbiased random indexing trivial.
	roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// ErrNoRoom indicates no room is currently joined.
var ErrNoRoom = errors.New("session: no room joined")

// State is the persisted session blob.
type State struct {
	CurrentRoomID string `json:"current_room_id"`
	SenderID      string `json:"sender_id"`
	LastActive    int64  `json:"last_active"`
}

// Store persists session state under a fixed path. The sender id is
// generated once per data directory and survives leaving rooms.
type Store struct {
	path  string
	state State
}

// Open loads the session blob from dataDir, creating it with a fresh sender
// id if absent.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	store := &Store{path: filepath.Join(dataDir, FileName)}

	raw, err := os.ReadFile(store.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read session: %w", err)
		}
		store.state = State{SenderID: uuid.NewString()}
		if err := store.save(); err != nil {
			return nil, err
		}
		return store, nil
	}

	if err := json.Unmarshal(raw, &store.state); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if store.state.SenderID == "" {
		store.state.SenderID = uuid.NewString()
		if err := store.save(); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// SenderID returns the locally generated sender identity.
func (s *Store) SenderID() string {
	return s.state.SenderID
}

// CurrentRoomID returns the joined room id, or ErrNoRoom.
func (s *Store) CurrentRoomID() (string, error) {
	if s.state.CurrentRoomID == "" {
		return "", ErrNoRoom
	}
	return s.state.CurrentRoomID, nil
}

// Join records roomID as the active room and persists the blob.
func (s *Store) Join(roomID string) error {
	if roomID == "" {
		return errors.New("session: room id is required")
	}
	s.state.CurrentRoomID = roomID
	s.state.LastActive = time.Now().UnixMilli()
	return s.save()
}

// Leave clears the active room but keeps the sender id.
func (s *Store) Leave() error {
	s.state.CurrentRoomID = ""
	s.state.LastActive = time.Now().UnixMilli()
	return s.save()
}

func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// GenerateRoomID produces a random room token from the unambiguous
// alphabet.
func GenerateRoomID() (string, error) {
	raw := make([]byte, DefaultRoomIDLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate room id: %w", err)
	}

	out := make([]byte, DefaultRoomIDLength)
	for i, b := range raw {
		out[i] = roomIDAlphabet[int(b)%len(roomIDAlphabet)]
	}
	return string(out), nil
}
