package rhythm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/kindred/internal/blob"
	"github.com/stellarlinkco/kindred/internal/bus"
	"github.com/stellarlinkco/kindred/internal/config"
	"github.com/stellarlinkco/kindred/internal/llm"
	"github.com/stellarlinkco/kindred/internal/memory"
	"github.com/stellarlinkco/kindred/internal/persona"
	"github.com/stellarlinkco/kindred/internal/session"
	"github.com/stellarlinkco/kindred/internal/store"
)

// Sweeps holds the sweep implementations. One user failing mid-batch
// never stops the rest of the batch.
type Sweeps struct {
	store     *store.Store
	codec     *memory.Codec
	blobs     blob.Store
	extractor *session.Extractor
	llm       llm.Completer
	bus       *bus.MessageBus
	log       *zap.SugaredLogger

	idleMin        time.Duration
	idleMax        time.Duration
	outreachBatch  int
	recoveryBatch  int
	recoveryQuiet  time.Duration
	minMessages    int
	pauseThreshold time.Duration
	retention      time.Duration
	outreachTokens int

	rngMu sync.Mutex
	rng   *rand.Rand

	now func() time.Time
}

func NewSweeps(st *store.Store, codec *memory.Codec, blobs blob.Store,
	extractor *session.Extractor, completer llm.Completer, mbus *bus.MessageBus,
	cfg *config.Config, log *zap.SugaredLogger) *Sweeps {
	return &Sweeps{
		store:          st,
		codec:          codec,
		blobs:          blobs,
		extractor:      extractor,
		llm:            completer,
		bus:            mbus,
		log:            log,
		idleMin:        parseDuration(cfg.Rhythm.OutreachIdleMin, 24*time.Hour),
		idleMax:        parseDuration(cfg.Rhythm.OutreachIdleMax, 48*time.Hour),
		outreachBatch:  cfg.Rhythm.OutreachBatch,
		recoveryBatch:  cfg.Rhythm.RecoveryBatch,
		recoveryQuiet:  parseDuration(cfg.Session.RecoveryQuiet, 15*time.Minute),
		minMessages:    cfg.Session.ExtractionMinimum,
		pauseThreshold: parseDuration(cfg.Rhythm.PauseThreshold, 14*24*time.Hour),
		retention:      parseDuration(cfg.Rhythm.RetentionWindow, 30*24*time.Hour),
		outreachTokens: config.DefaultOutreachTokens,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		now:            time.Now,
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SetClock overrides the sweeps' time source, for tests.
func (s *Sweeps) SetClock(now func() time.Time) {
	s.now = now
}

// Outreach sends a proactive check-in to each eligible idle user, at
// most one per idle period.
func (s *Sweeps) Outreach(ctx context.Context) error {
	now := s.now()
	users, err := s.store.OutreachCandidates(ctx, now, s.idleMin, s.idleMax, s.outreachBatch)
	if err != nil {
		return err
	}

	for _, user := range users {
		if err := s.reachOut(ctx, user, now); err != nil {
			s.log.Warnw("outreach failed", "chat_id", user.ChatID, "error", err)
		}
	}
	return nil
}

func (s *Sweeps) reachOut(ctx context.Context, user store.User, now time.Time) error {
	seed, err := s.outreachSeed(ctx, user.ChatID, now)
	if err != nil {
		s.log.Debugw("outreach seed unavailable", "chat_id", user.ChatID, "error", err)
	}

	s.rngMu.Lock()
	system := persona.BuildSystemPrompt(persona.Context{Now: now, UserName: user.FirstName}, s.rng)
	s.rngMu.Unlock()
	system += "\n\n" + persona.OutreachPrompt(user.FirstName, seed)

	reply, err := s.llm.Complete(ctx, system,
		[]llm.Turn{{Role: llm.RoleUser, Content: persona.OutreachUserTurn}}, s.outreachTokens)
	if err != nil {
		return fmt.Errorf("outreach completion: %w", err)
	}

	s.bus.Outbound <- bus.OutboundMessage{ChatID: user.ChatID, Content: reply}
	return s.store.SetLastOutreach(ctx, user.ChatID, s.now())
}

// outreachSeed picks the best hook for a check-in: a due thread, then
// an inside joke, then the last session summary, else nothing.
func (s *Sweeps) outreachSeed(ctx context.Context, chatID string, now time.Time) (string, error) {
	threads, err := s.codec.LoadThreads(ctx, chatID)
	if err != nil {
		return "", err
	}
	for _, t := range threads.ActiveThreads {
		if t.Due(now) {
			return t.Prompt, nil
		}
	}

	rel, err := s.codec.LoadRelationship(ctx, chatID)
	if err != nil {
		return "", err
	}
	if len(rel.InsideJokes) > 0 {
		s.rngMu.Lock()
		joke := rel.InsideJokes[s.rng.Intn(len(rel.InsideJokes))]
		s.rngMu.Unlock()
		return "your inside joke: " + joke.Reference, nil
	}

	sess, err := s.store.LastSummarizedSession(ctx, chatID)
	if err != nil {
		return "", err
	}
	if sess != nil {
		return "your last conversation: " + sess.Summary, nil
	}
	return "", nil
}

type archivedSession struct {
	Session  store.Session   `json:"session"`
	Messages []store.Message `json:"messages"`
}

// Housekeeping archives sessions past the retention window into one
// date-keyed blob, deletes their rows, then applies status decay.
func (s *Sweeps) Housekeeping(ctx context.Context) error {
	now := s.now()

	sessions, err := s.store.ArchivableSessions(ctx, now.Add(-s.retention))
	if err != nil {
		return err
	}

	if len(sessions) > 0 {
		archive := make([]archivedSession, 0, len(sessions))
		for _, sess := range sessions {
			messages, err := s.store.SessionMessages(ctx, sess.ID, 0)
			if err != nil {
				return err
			}
			archive = append(archive, archivedSession{Session: sess, Messages: messages})
		}

		data, err := json.MarshalIndent(archive, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal archive: %w", err)
		}
		key := memory.ArchivePath(now.UTC().Format("2006-01-02"))
		if err := s.blobs.Put(ctx, key, data); err != nil {
			return fmt.Errorf("write archive: %w", err)
		}

		for _, sess := range sessions {
			if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
				s.log.Warnw("archive delete failed", "session_id", sess.ID, "error", err)
			}
		}
		s.log.Infow("sessions archived", "count", len(sessions), "key", key)
	}

	paused, churned, err := s.store.DemoteIdleUsers(ctx, now, s.pauseThreshold, s.retention)
	if err != nil {
		return err
	}
	if paused > 0 || churned > 0 {
		s.log.Infow("users demoted", "paused", paused, "churned", churned)
	}
	return nil
}

// RecoverExtractions retries extraction for closed sessions the
// detached path never finished.
func (s *Sweeps) RecoverExtractions(ctx context.Context) error {
	sessions, err := s.store.UnextractedSessions(ctx, s.now(), s.recoveryQuiet, s.minMessages, s.recoveryBatch)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if err := s.extractor.Run(ctx, sess.ChatID, sess.ID); err != nil {
			s.log.Warnw("extraction recovery failed", "chat_id", sess.ChatID,
				"session_id", sess.ID, "error", err)
		}
	}
	return nil
}
