package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stellarlinkco/kindred/internal/store"
)

// Manager decides session boundaries. A session's lifetime is measured
// from its start time: the next inbound message after the timeout
// closes it and opens a fresh one, close always preceding open.
type Manager struct {
	store       *store.Store
	log         *zap.SugaredLogger
	timeout     time.Duration
	minMessages int
	onClose     func(chatID, sessionID string)
}

func NewManager(st *store.Store, log *zap.SugaredLogger, timeout time.Duration, minMessages int) *Manager {
	if timeout <= 0 {
		timeout = 45 * time.Minute
	}
	if minMessages <= 0 {
		minMessages = 4
	}
	return &Manager{
		store:       st,
		log:         log,
		timeout:     timeout,
		minMessages: minMessages,
	}
}

// OnClose registers the hook fired after a session is closed with
// enough messages to be worth extracting. The hook must not block.
func (m *Manager) OnClose(fn func(chatID, sessionID string)) {
	m.onClose = fn
}

// Resolve returns the session the next turn belongs to, closing an
// expired one first if needed.
func (m *Manager) Resolve(ctx context.Context, chatID string, now time.Time) (*store.Session, error) {
	open, err := m.store.OpenSession(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if open != nil {
		if now.Sub(open.StartedAt) <= m.timeout {
			return open, nil
		}
		if err := m.close(ctx, open, now); err != nil {
			return nil, err
		}
	}

	fresh := store.Session{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		StartedAt: now,
	}
	if err := m.store.CreateSession(ctx, fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}

func (m *Manager) close(ctx context.Context, sess *store.Session, now time.Time) error {
	if err := m.store.CloseSession(ctx, sess.ID, now); err != nil {
		return fmt.Errorf("close expired session: %w", err)
	}
	if sess.MessageCount < m.minMessages {
		// Too short to extract anything; keep the recovery sweep
		// from picking it up forever.
		if err := m.store.MarkExtracted(ctx, sess.ID); err != nil {
			return err
		}
		return nil
	}
	m.log.Infow("session closed", "chat_id", sess.ChatID, "session_id", sess.ID,
		"messages", sess.MessageCount)
	if m.onClose != nil {
		m.onClose(sess.ChatID, sess.ID)
	}
	return nil
}
