package store

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) InsertMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (chat_id, session_id, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		m.ChatID, m.SessionID, m.Role, m.Content, formatTime(m.Timestamp))
	if err != nil {
		return fmt.Errorf("insert message for %s: %w", m.ChatID, err)
	}
	return nil
}

// SessionMessages returns a session's turns in chronological order,
// keeping only the most recent limit entries when limit > 0.
func (s *Store) SessionMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	query := `
		SELECT id, chat_id, session_id, role, content, timestamp
		FROM messages WHERE session_id = ? ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session messages %s: %w", sessionID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SessionID, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("session messages %s: %w", sessionID, err)
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// Transcript renders a session's turns as "role: content" lines for
// the extraction passes.
func (s *Store) Transcript(ctx context.Context, sessionID string) (string, int, error) {
	messages, err := s.SessionMessages(ctx, sessionID, 0)
	if err != nil {
		return "", 0, err
	}
	var b []byte
	for i, m := range messages {
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, m.Role...)
		b = append(b, ": "...)
		b = append(b, m.Content...)
	}
	return string(b), len(messages), nil
}

// CountMessagesSince supports the status CLI view.
func (s *Store) CountMessagesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE timestamp >= ?`, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
