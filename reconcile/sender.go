package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"roomchat/models"
)

// Poster submits messages and deletions to the chat endpoint.
// *network.Client satisfies it.
type Poster interface {
	Send(ctx context.Context, roomID, payload, messageID, sender string) (*models.SendResponse, error)
	Delete(ctx context.Context, roomID string, ids []string) (*models.DeleteResponse, error)
}

// Sender implements the optimistic send and delete paths for one room
// session: entries are rendered before the network round trip completes.
type Sender struct {
	session    *Session
	poster     Poster
	reconciler *Reconciler
	view       PendingView
}

// NewSender builds a sender for one room session.
func NewSender(session *Session, poster Poster, reconciler *Reconciler, view PendingView) *Sender {
	return &Sender{
		session:    session,
		poster:     poster,
		reconciler: reconciler,
		view:       view,
	}
}

// SendText encrypts and submits one text message. The optimistic entry is
// rendered immediately under a temporary id, then reconciled to the
// server-issued id on success or removed on failure.
func (s *Sender) SendText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("reconcile: message must not be empty")
	}

	payload, err := s.session.Key.EncryptText(text)
	if err != nil {
		return "", fmt.Errorf("encrypt message: %w", err)
	}

	return s.submit(ctx, payload, text)
}

// SendMedia encrypts and submits one media payload. The optimistic entry
// shows the media kind and name until the poll path would otherwise render
// it.
func (s *Sender) SendMedia(ctx context.Context, kind, mime, name string, data []byte) (string, error) {
	payload, err := s.session.Key.EncryptMedia(kind, mime, name, data)
	if err != nil {
		return "", fmt.Errorf("encrypt media: %w", err)
	}

	return s.submit(ctx, payload, fmt.Sprintf("[%s] %s", kind, name))
}

func (s *Sender) submit(ctx context.Context, payload, pendingText string) (string, error) {
	tempID := "temp-" + uuid.NewString()
	s.view.AppendPending(tempID, pendingText)

	resp, err := s.poster.Send(ctx, s.session.RoomID, payload, tempID, s.session.SenderID)
	if err != nil {
		s.view.RemovePending(tempID)
		return "", fmt.Errorf("send message: %w", err)
	}

	s.view.ReconcileID(tempID, resp.ID)
	s.reconciler.MarkProcessed(resp.ID, resp.Timestamp)
	return resp.ID, nil
}

// DeleteMessages removes the ids from the rendered view and records them as
// deleted before the network round trip. A failed round trip is reported but
// not rolled back; the caller warns the user instead.
func (s *Sender) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	for _, id := range ids {
		s.view.Remove(id)
	}
	s.reconciler.MarkDeleted(ids, time.Now().UnixMilli())

	if _, err := s.poster.Delete(ctx, s.session.RoomID, ids); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}
