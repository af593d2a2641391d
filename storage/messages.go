package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultFetchLimit caps each delta batch. A tail beyond the cap is served
// by the next poll because the client advances its watermark only past rows
// it has seen.
const DefaultFetchLimit = 200

// Message is the SQLite representation of one room message row.
type Message struct {
	ID        string
	RoomID    string
	Payload   string
	Sender    string
	CustomID  string
	CreatedAt int64
	Deleted   bool
	UpdatedAt int64
}

// InsertMessage stores one ciphertext payload and returns the row with its
// server-assigned id and creation timestamp.
func (s *Store) InsertMessage(roomID, payload, sender, customID string) (*Message, error) {
	if roomID == "" {
		return nil, errors.New("storage: room_id is required")
	}
	if payload == "" {
		return nil, errors.New("storage: payload is required")
	}

	msg := &Message{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		Payload:  payload,
		Sender:   sender,
		CustomID: customID,
	}
	msg.CreatedAt = s.issueTimestamp()
	msg.UpdatedAt = msg.CreatedAt

	_, err := s.db.Exec(
		`INSERT INTO messages (id, room_id, payload, sender, custom_id, created_at, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		msg.ID, msg.RoomID, msg.Payload, msg.Sender, msg.CustomID, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message into room %q: %w", roomID, err)
	}

	return msg, nil
}

// MessagesSince returns live messages in a room with created_at strictly
// after since, ascending, capped at limit.
func (s *Store) MessagesSince(roomID string, since int64, limit int) ([]Message, error) {
	if roomID == "" {
		return nil, errors.New("storage: room_id is required")
	}
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	rows, err := s.db.Query(
		`SELECT id, room_id, payload, sender, custom_id, created_at, updated_at
		FROM messages
		WHERE room_id = ? AND deleted = 0 AND created_at > ?
		ORDER BY created_at ASC
		LIMIT ?`,
		roomID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages for room %q: %w", roomID, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Payload, &msg.Sender, &msg.CustomID, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	return out, nil
}

// DeletedSince returns soft-deleted messages in a room with updated_at
// strictly after since, ascending, capped at limit.
func (s *Store) DeletedSince(roomID string, since int64, limit int) ([]Message, error) {
	if roomID == "" {
		return nil, errors.New("storage: room_id is required")
	}
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	rows, err := s.db.Query(
		`SELECT id, updated_at
		FROM messages
		WHERE room_id = ? AND deleted = 1 AND updated_at > ?
		ORDER BY updated_at ASC
		LIMIT ?`,
		roomID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query deletions for room %q: %w", roomID, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		msg := Message{RoomID: roomID, Deleted: true}
		if err := rows.Scan(&msg.ID, &msg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan deletion row: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deletion rows: %w", err)
	}

	return out, nil
}

// SoftDelete flips deleted=1 on the given ids, scoped to the room so one
// room can never delete another room's messages. It returns the ids that
// were actually flipped.
func (s *Store) SoftDelete(roomID string, ids []string) ([]string, error) {
	if roomID == "" {
		return nil, errors.New("storage: room_id is required")
	}
	if len(ids) == 0 {
		return nil, errors.New("storage: at least one message id is required")
	}

	updatedAt := s.issueTimestamp()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	args := make([]any, 0, len(ids)+1)
	args = append(args, roomID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := tx.Query(
		`SELECT id FROM messages WHERE room_id = ? AND deleted = 0 AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("select deletable messages: %w", err)
	}
	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan deletable id: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate deletable ids: %w", err)
	}
	rows.Close()

	if len(deleted) > 0 {
		updateArgs := make([]any, 0, len(deleted)+2)
		updateArgs = append(updateArgs, updatedAt, roomID)
		for _, id := range deleted {
			updateArgs = append(updateArgs, id)
		}
		updatePlaceholders := strings.TrimSuffix(strings.Repeat("?,", len(deleted)), ",")
		if _, err := tx.Exec(
			`UPDATE messages SET deleted = 1, updated_at = ? WHERE room_id = ? AND id IN (`+updatePlaceholders+`)`,
			updateArgs...,
		); err != nil {
			return nil, fmt.Errorf("soft delete messages: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete transaction: %w", err)
	}

	return deleted, nil
}

// GetMessage returns one row by id, or ErrNotFound.
func (s *Store) GetMessage(id string) (*Message, error) {
	if id == "" {
		return nil, errors.New("storage: message id is required")
	}

	var msg Message
	var deleted int
	err := s.db.QueryRow(
		`SELECT id, room_id, payload, sender, custom_id, created_at, deleted, updated_at
		FROM messages WHERE id = ?`,
		id,
	).Scan(&msg.ID, &msg.RoomID, &msg.Payload, &msg.Sender, &msg.CustomID, &msg.CreatedAt, &deleted, &msg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message %q: %w", id, err)
	}
	msg.Deleted = deleted == 1

	return &msg, nil
}

// PurgeOlderThan hard-deletes rows created before cutoff, regardless of the
// soft-delete flag. It returns the number of rows removed.
func (s *Store) PurgeOlderThan(cutoff int64) (int64, error) {
	if cutoff <= 0 {
		return 0, errors.New("storage: cutoff timestamp must be > 0")
	}

	res, err := s.db.Exec(`DELETE FROM messages WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old messages: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for purge: %w", err)
	}

	return rowsAffected, nil
}
