package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// User lifecycle statuses. Status never moves backwards except through
// the housekeeping demotions (paused, churned).
const (
	StatusNew            = "new"
	StatusTrial          = "trial"
	StatusAwaitingEmail  = "awaiting_email"
	StatusPendingPayment = "pending_payment"
	StatusActive         = "active"
	StatusPaused         = "paused"
	StatusChurned        = "churned"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ChatID                 string
	TelegramID             int64
	FirstName              string
	LastName               string
	Username               string
	Status                 string
	Email                  string
	AccountID              string
	RefCode                string
	MessageCount           int
	TrialMessagesRemaining int
	CreatedAt              time.Time
	LastMessageAt          *time.Time
	LastOutreachAt         *time.Time
	HookedAt               *time.Time
}

type Session struct {
	ID             string
	ChatID         string
	StartedAt      time.Time
	EndedAt        *time.Time
	Summary        string
	MessageCount   int
	ExtractionDone bool
}

type Message struct {
	ID        int64
	ChatID    string
	SessionID string
	Role      string
	Content   string
	Timestamp time.Time
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			chat_id TEXT PRIMARY KEY,
			telegram_id INTEGER,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'new',
			email TEXT NOT NULL DEFAULT '',
			account_id TEXT NOT NULL DEFAULT '',
			ref_code TEXT NOT NULL DEFAULT '',
			message_count INTEGER NOT NULL DEFAULT 0,
			trial_messages_remaining INTEGER NOT NULL DEFAULT 25,
			created_at TEXT NOT NULL,
			last_message_at TEXT,
			last_outreach_at TEXT,
			hooked_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			summary TEXT NOT NULL DEFAULT '',
			message_count INTEGER NOT NULL DEFAULT 0,
			extraction_done INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_chat ON sessions(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at)`,
		`CREATE INDEX IF NOT EXISTS idx_users_status ON users(status)`,
		`CREATE INDEX IF NOT EXISTS idx_users_last_message ON users(last_message_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
