package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = `chat_id, telegram_id, first_name, last_name, username, status,
	email, account_id, ref_code, message_count, trial_messages_remaining,
	created_at, last_message_at, last_outreach_at, hooked_at`

func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (chat_id, telegram_id, first_name, last_name, username,
			status, ref_code, trial_messages_remaining, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ChatID, u.TelegramID, u.FirstName, u.LastName, u.Username,
		u.Status, u.RefCode, u.TrialMessagesRemaining, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.ChatID, err)
	}
	return nil
}

// GetUser returns (nil, nil) when the chat id is unknown.
func (s *Store) GetUser(ctx context.Context, chatID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", chatID, err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u                                      User
		createdAt                              string
		lastMessageAt, lastOutreachAt, hookedAt sql.NullString
	)
	err := row.Scan(&u.ChatID, &u.TelegramID, &u.FirstName, &u.LastName,
		&u.Username, &u.Status, &u.Email, &u.AccountID, &u.RefCode,
		&u.MessageCount, &u.TrialMessagesRemaining,
		&createdAt, &lastMessageAt, &lastOutreachAt, &hookedAt)
	if err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.LastMessageAt, err = parseTimePtr(lastMessageAt); err != nil {
		return nil, err
	}
	if u.LastOutreachAt, err = parseTimePtr(lastOutreachAt); err != nil {
		return nil, err
	}
	if u.HookedAt, err = parseTimePtr(hookedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchUser records one ordinary inbound message: the message counter
// goes up and the activity timestamp moves forward.
func (s *Store) TouchUser(ctx context.Context, chatID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET message_count = message_count + 1, last_message_at = ?
		WHERE chat_id = ?`, formatTime(at), chatID)
	if err != nil {
		return fmt.Errorf("touch user %s: %w", chatID, err)
	}
	return nil
}

// DecrementTrial spends one trial message and returns the remaining
// balance. Never goes below zero.
func (s *Store) DecrementTrial(ctx context.Context, chatID string) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET trial_messages_remaining = trial_messages_remaining - 1
		WHERE chat_id = ? AND trial_messages_remaining > 0`, chatID)
	if err != nil {
		return 0, fmt.Errorf("decrement trial %s: %w", chatID, err)
	}
	var remaining int
	err = s.db.QueryRowContext(ctx,
		`SELECT trial_messages_remaining FROM users WHERE chat_id = ?`, chatID).
		Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("read trial balance %s: %w", chatID, err)
	}
	return remaining, nil
}

func (s *Store) SetStatus(ctx context.Context, chatID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET status = ? WHERE chat_id = ?`, status, chatID)
	if err != nil {
		return fmt.Errorf("set status %s=%s: %w", chatID, status, err)
	}
	return nil
}

// SetEmail captures the user's email and moves them to the
// payment-pending state in one statement.
func (s *Store) SetEmail(ctx context.Context, chatID, email string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, status = ? WHERE chat_id = ?`,
		email, StatusPendingPayment, chatID)
	if err != nil {
		return fmt.Errorf("set email %s: %w", chatID, err)
	}
	return nil
}

// ActivateUser links a billing account and promotes the user to active.
func (s *Store) ActivateUser(ctx context.Context, chatID, accountID, email string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET status = ?, account_id = ?,
			email = CASE WHEN ? != '' THEN ? ELSE email END
		WHERE chat_id = ?`,
		StatusActive, accountID, email, email, chatID)
	if err != nil {
		return fmt.Errorf("activate user %s: %w", chatID, err)
	}
	return nil
}

// MarkHooked stamps the engagement milestone once; later calls are
// no-ops.
func (s *Store) MarkHooked(ctx context.Context, chatID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET hooked_at = ? WHERE chat_id = ? AND hooked_at IS NULL`,
		formatTime(at), chatID)
	if err != nil {
		return fmt.Errorf("mark hooked %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) SetLastOutreach(ctx context.Context, chatID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_outreach_at = ? WHERE chat_id = ?`,
		formatTime(at), chatID)
	if err != nil {
		return fmt.Errorf("set last outreach %s: %w", chatID, err)
	}
	return nil
}

// OutreachCandidates selects users due a proactive check-in: trial or
// active, last heard from more than idleMin but at most idleMax ago,
// and not already contacted since their last message.
func (s *Store) OutreachCandidates(ctx context.Context, now time.Time, idleMin, idleMax time.Duration, limit int) ([]User, error) {
	windowStart := formatTime(now.Add(-idleMax))
	windowEnd := formatTime(now.Add(-idleMin))

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE status IN (?, ?)
		AND last_message_at >= ? AND last_message_at < ?
		AND (last_outreach_at IS NULL OR last_outreach_at < last_message_at)
		ORDER BY last_message_at ASC
		LIMIT ?`,
		StatusTrial, StatusActive, windowStart, windowEnd, limit)
	if err != nil {
		return nil, fmt.Errorf("outreach candidates: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("outreach candidates: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// DemoteIdleUsers applies the housekeeping status decay: engaged users
// idle past the pause threshold become paused, paused users idle past
// the retention window become churned.
func (s *Store) DemoteIdleUsers(ctx context.Context, now time.Time, pauseThreshold, retentionWindow time.Duration) (paused, churned int64, err error) {
	pauseCutoff := formatTime(now.Add(-pauseThreshold))
	churnCutoff := formatTime(now.Add(-retentionWindow))

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET status = ?
		WHERE status IN (?, ?) AND last_message_at < ?`,
		StatusPaused, StatusTrial, StatusActive, pauseCutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("pause idle users: %w", err)
	}
	paused, _ = res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `
		UPDATE users SET status = ?
		WHERE status = ? AND last_message_at < ?`,
		StatusChurned, StatusPaused, churnCutoff)
	if err != nil {
		return paused, 0, fmt.Errorf("churn paused users: %w", err)
	}
	churned, _ = res.RowsAffected()
	return paused, churned, nil
}

// CountUsersByStatus supports the status CLI view.
func (s *Store) CountUsersByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM users GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
