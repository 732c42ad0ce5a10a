package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/kindred/internal/memory"
	"github.com/stellarlinkco/kindred/internal/store"
)

// Extractor turns a closed session's transcript into memory updates.
// It runs detached from the turn that closed the session; failures are
// left for the recovery sweep to retry.
type Extractor struct {
	store   *store.Store
	engine  *memory.Engine
	log     *zap.SugaredLogger
	timeout time.Duration
}

func NewExtractor(st *store.Store, engine *memory.Engine, log *zap.SugaredLogger) *Extractor {
	return &Extractor{
		store:   st,
		engine:  engine,
		log:     log,
		timeout: 2 * time.Minute,
	}
}

// Enqueue runs extraction for the session in a detached goroutine.
func (e *Extractor) Enqueue(chatID, sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := e.Run(ctx, chatID, sessionID); err != nil {
			e.log.Warnw("detached extraction failed", "chat_id", chatID,
				"session_id", sessionID, "error", err)
		}
	}()
}

// Run performs one extraction and marks the session done on success.
func (e *Extractor) Run(ctx context.Context, chatID, sessionID string) error {
	transcript, count, err := e.store.Transcript(ctx, sessionID)
	if err != nil {
		return err
	}

	result, err := e.engine.Run(ctx, chatID, transcript, count)
	if err != nil {
		return err
	}

	if result.SummaryText != "" {
		if err := e.store.SetSessionSummary(ctx, sessionID, result.SummaryText); err != nil {
			return err
		}
	}
	if err := e.store.MarkExtracted(ctx, sessionID); err != nil {
		return err
	}

	e.log.Infow("extraction complete", "chat_id", chatID, "session_id", sessionID,
		"facts", result.FactsUpdated, "relationship", result.RelationshipUpdated,
		"people", len(result.PeopleUpdated), "summary", result.SummaryStored,
		"threads", result.ThreadsUpdated)
	return nil
}
