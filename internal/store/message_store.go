package store

import (
	"context"
	"fmt"
	"time"

	"github.com/amerhub/amerhub/internal/hub"
)

// MessageStore implements hub.MessageStore backed by SQLite.
type MessageStore struct {
	db *DB
}

// NewMessageStore creates a message store using the given database.
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// SaveMessage persists one delivered message.
func (s *MessageStore) SaveMessage(ctx context.Context, msg hub.StoredMessage) error {
	ts := msg.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, sender_id, sender_name, content, language, origin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Content, msg.Language, msg.Origin,
		ts.UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// History returns up to limit stored messages for a room, oldest first.
func (s *MessageStore) History(ctx context.Context, roomID string, limit int) ([]hub.StoredMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, room_id, sender_id, sender_name, content, language, origin, created_at
		 FROM (
			SELECT * FROM messages WHERE room_id = ? ORDER BY created_at DESC, id LIMIT ?
		 ) ORDER BY created_at, id`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var msgs []hub.StoredMessage
	for rows.Next() {
		var (
			msg hub.StoredMessage
			ts  string
		)
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName,
			&msg.Content, &msg.Language, &msg.Origin, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.CreatedAt, _ = time.Parse(time.DateTime, ts)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
