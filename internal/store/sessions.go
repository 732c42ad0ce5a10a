package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sessionColumns = `id, chat_id, started_at, ended_at, summary, message_count, extraction_done`

func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, chat_id, started_at) VALUES (?, ?, ?)`,
		sess.ID, sess.ChatID, formatTime(sess.StartedAt))
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	return nil
}

// OpenSession returns the user's session without an end timestamp, or
// (nil, nil) when every session is closed. At most one can exist.
func (s *Store) OpenSession(ctx context.Context, chatID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE chat_id = ? AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`, chatID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open session for %s: %w", chatID, err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess      Session
		startedAt string
		endedAt   sql.NullString
		done      int
	)
	err := row.Scan(&sess.ID, &sess.ChatID, &startedAt, &endedAt,
		&sess.Summary, &sess.MessageCount, &done)
	if err != nil {
		return nil, err
	}
	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if sess.EndedAt, err = parseTimePtr(endedAt); err != nil {
		return nil, err
	}
	sess.ExtractionDone = done != 0
	return &sess, nil
}

func (s *Store) CloseSession(ctx context.Context, id string, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`, formatTime(endedAt), id)
	if err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	return nil
}

func (s *Store) SetSessionSummary(ctx context.Context, id, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("set session summary %s: %w", id, err)
	}
	return nil
}

func (s *Store) MarkExtracted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET extraction_done = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark extracted %s: %w", id, err)
	}
	return nil
}

func (s *Store) IncrementSessionCount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET message_count = message_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment session count %s: %w", id, err)
	}
	return nil
}

// LastSummarizedSession returns the most recent closed session that
// carries a summary, for outreach seeding. (nil, nil) when none exists.
func (s *Store) LastSummarizedSession(ctx context.Context, chatID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE chat_id = ? AND summary != ''
		ORDER BY started_at DESC LIMIT 1`, chatID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last summarized session for %s: %w", chatID, err)
	}
	return sess, nil
}

// UnextractedSessions finds closed sessions whose extraction never
// completed and which have been quiet long enough to retry.
func (s *Store) UnextractedSessions(ctx context.Context, now time.Time, quiet time.Duration, minMessages, limit int) ([]Session, error) {
	cutoff := formatTime(now.Add(-quiet))
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE ended_at IS NOT NULL AND ended_at < ?
		AND extraction_done = 0 AND message_count >= ?
		ORDER BY ended_at ASC LIMIT ?`,
		cutoff, minMessages, limit)
	if err != nil {
		return nil, fmt.Errorf("unextracted sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("unextracted sessions: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// ArchivableSessions returns sessions closed before the retention
// cutoff, oldest first.
func (s *Store) ArchivableSessions(ctx context.Context, cutoff time.Time) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE ended_at IS NOT NULL AND ended_at < ?
		ORDER BY ended_at ASC`, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("archivable sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("archivable sessions: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes one session and its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session messages %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// CountSessions supports the status CLI view.
func (s *Store) CountSessions(ctx context.Context) (total, open int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE ended_at IS NULL)
		FROM sessions`).Scan(&total, &open)
	if err != nil {
		return 0, 0, fmt.Errorf("count sessions: %w", err)
	}
	return total, open, nil
}
