package reconcile

import (
	"errors"
	"fmt"

	"roomchat/crypto"
)

// Session carries the per-room identity and key material shared by the
// poller, the sender, and the renderer. It is constructed at room join and
// discarded at leave; nothing in this package holds package-level state.
type Session struct {
	RoomID   string
	SenderID string
	Key      *crypto.RoomKey
}

// NewSession derives the room key and binds it to the local sender identity.
func NewSession(roomID, senderID string) (*Session, error) {
	if senderID == "" {
		return nil, errors.New("reconcile: sender id is required")
	}
	key, err := crypto.DeriveRoomKey(roomID)
	if err != nil {
		return nil, fmt.Errorf("derive room key: %w", err)
	}
	return &Session{
		RoomID:   roomID,
		SenderID: senderID,
		Key:      key,
	}, nil
}
