package agent

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/kindred/internal/bus"
	"github.com/stellarlinkco/kindred/internal/config"
	"github.com/stellarlinkco/kindred/internal/llm"
	"github.com/stellarlinkco/kindred/internal/memory"
	"github.com/stellarlinkco/kindred/internal/persona"
	"github.com/stellarlinkco/kindred/internal/session"
	"github.com/stellarlinkco/kindred/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AccountLinker starts the external payment flow for a captured email.
// Failures are logged and retried by the human, not by us.
type AccountLinker interface {
	InitiateLink(ctx context.Context, chatID, email string) error
}

// NopLinker satisfies AccountLinker when no billing backend is wired.
type NopLinker struct{}

func (NopLinker) InitiateLink(context.Context, string, string) error { return nil }

// Agent is the per-message orchestrator. All handling for one chat id
// runs serially behind a keyed lock; different chats proceed in
// parallel.
type Agent struct {
	store    *store.Store
	codec    *memory.Codec
	sessions *session.Manager
	llm      llm.Completer
	bus      *bus.MessageBus
	linker   AccountLinker
	log      *zap.SugaredLogger

	character      string
	trialQuota     int
	historyWindow  int
	maxReplyTokens int
	welcomeTokens  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand

	now func() time.Time
}

func New(st *store.Store, codec *memory.Codec, sessions *session.Manager,
	completer llm.Completer, mbus *bus.MessageBus, linker AccountLinker,
	cfg *config.Config, log *zap.SugaredLogger) *Agent {
	if linker == nil {
		linker = NopLinker{}
	}
	return &Agent{
		store:          st,
		codec:          codec,
		sessions:       sessions,
		llm:            completer,
		bus:            mbus,
		linker:         linker,
		log:            log,
		character:      cfg.Character.Name,
		trialQuota:     cfg.Trial.Quota,
		historyWindow:  cfg.Session.HistoryWindow,
		maxReplyTokens: config.DefaultMaxReplyTokens,
		welcomeTokens:  config.DefaultWelcomeTokens,
		locks:          make(map[string]*sync.Mutex),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		now:            time.Now,
	}
}

// SetClock overrides the agent's time source, for tests.
func (a *Agent) SetClock(now func() time.Time) {
	a.now = now
}

// SetRand replaces the activity random source, for tests.
func (a *Agent) SetRand(rng *rand.Rand) {
	a.rngMu.Lock()
	a.rng = rng
	a.rngMu.Unlock()
}

func (a *Agent) chatLock(chatID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[chatID] = l
	}
	return l
}

// HandleMessage processes one inbound message end to end. It never
// panics outward; any failure surfaces as a generic apology.
func (a *Agent) HandleMessage(ctx context.Context, msg bus.InboundMessage) {
	lock := a.chatLock(msg.ChatID)
	lock.Lock()
	defer lock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			a.log.Errorw("panic handling message", "chat_id", msg.ChatID, "panic", r)
			a.send(msg.ChatID, persona.Apology)
		}
	}()

	if err := a.handle(ctx, msg); err != nil {
		a.log.Errorw("message handling failed", "chat_id", msg.ChatID, "error", err)
		a.send(msg.ChatID, persona.Apology)
	}
}

func (a *Agent) handle(ctx context.Context, msg bus.InboundMessage) error {
	now := a.now()

	user, err := a.store.GetUser(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	firstContact := user == nil
	if firstContact {
		created := store.User{
			ChatID:                 msg.ChatID,
			TelegramID:             msg.From.TelegramID,
			FirstName:              msg.From.FirstName,
			LastName:               msg.From.LastName,
			Username:               msg.From.Username,
			Status:                 store.StatusTrial,
			RefCode:                msg.RefCode,
			TrialMessagesRemaining: a.trialQuota,
			CreatedAt:              now,
		}
		if err := a.store.CreateUser(ctx, created); err != nil {
			return err
		}
		if err := a.codec.InitializeUser(ctx, msg.ChatID, msg.From.FirstName); err != nil {
			return err
		}
		user = &created
	}

	if msg.IsStart() {
		return a.welcome(ctx, user, firstContact)
	}

	switch user.Status {
	case store.StatusAwaitingEmail:
		return a.captureEmail(ctx, user, msg.Content)
	case store.StatusPendingPayment:
		a.send(user.ChatID, persona.PaymentPending)
		return nil
	}

	if user.Status == store.StatusTrial && user.TrialMessagesRemaining <= 0 {
		if err := a.store.SetStatus(ctx, user.ChatID, store.StatusAwaitingEmail); err != nil {
			return err
		}
		a.send(user.ChatID, persona.TrialExhausted(user.FirstName))
		return nil
	}

	return a.converse(ctx, user, msg, now)
}

// welcome handles the start sentinel: a generated opening with no
// persistence and no quota spend.
func (a *Agent) welcome(ctx context.Context, user *store.User, firstContact bool) error {
	kind := persona.WelcomeReturning
	switch {
	case firstContact:
		kind = persona.WelcomeFirstTime
	case user.Status == store.StatusActive:
		kind = persona.WelcomeSubscriber
	}

	system := baseWithFragment(persona.WelcomePrompt(user.FirstName, kind), a)
	reply, err := a.llm.Complete(ctx, system,
		[]llm.Turn{{Role: llm.RoleUser, Content: persona.WelcomeUserTurn}}, a.welcomeTokens)
	if err != nil {
		return fmt.Errorf("welcome completion: %w", err)
	}
	a.send(user.ChatID, reply)
	return nil
}

// baseWithFragment builds a minimal persona prompt for the synthetic
// turns (welcome, outreach) that carry no user message to analyze.
func baseWithFragment(fragment string, a *Agent) string {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return persona.BuildSystemPrompt(persona.Context{Now: a.now()}, a.rng) + "\n\n" + fragment
}

// captureEmail runs the email-collection branch. Invalid input is a
// conversational re-prompt, not an error, and is never persisted.
func (a *Agent) captureEmail(ctx context.Context, user *store.User, content string) error {
	candidate := strings.TrimSpace(content)
	if !emailPattern.MatchString(candidate) {
		a.send(user.ChatID, persona.EmailReprompt)
		return nil
	}
	if err := a.store.SetEmail(ctx, user.ChatID, candidate); err != nil {
		return err
	}
	if err := a.linker.InitiateLink(ctx, user.ChatID, candidate); err != nil {
		a.log.Warnw("account link initiation failed", "chat_id", user.ChatID, "error", err)
	}
	a.send(user.ChatID, persona.PaymentPending)
	return nil
}

// converse is the ordinary turn: persist, assemble, complete, persist,
// deliver.
func (a *Agent) converse(ctx context.Context, user *store.User, msg bus.InboundMessage, now time.Time) error {
	sess, err := a.sessions.Resolve(ctx, user.ChatID, now)
	if err != nil {
		return err
	}

	inbound := store.Message{
		ChatID:    user.ChatID,
		SessionID: sess.ID,
		Role:      store.RoleUser,
		Content:   msg.Content,
		Timestamp: now,
	}
	if err := a.store.InsertMessage(ctx, inbound); err != nil {
		return err
	}
	if err := a.store.IncrementSessionCount(ctx, sess.ID); err != nil {
		return err
	}
	if err := a.store.TouchUser(ctx, user.ChatID, now); err != nil {
		return err
	}
	if user.Status == store.StatusTrial {
		if _, err := a.store.DecrementTrial(ctx, user.ChatID); err != nil {
			return err
		}
		if user.MessageCount+1 >= 10 {
			if err := a.store.MarkHooked(ctx, user.ChatID, now); err != nil {
				return err
			}
		}
	}

	reply, err := a.generateReply(ctx, user, sess.ID, msg.Content, now)
	if err != nil {
		return err
	}

	outbound := store.Message{
		ChatID:    user.ChatID,
		SessionID: sess.ID,
		Role:      store.RoleAssistant,
		Content:   reply,
		Timestamp: a.now(),
	}
	if err := a.store.InsertMessage(ctx, outbound); err != nil {
		return err
	}
	if err := a.store.IncrementSessionCount(ctx, sess.ID); err != nil {
		return err
	}

	a.send(user.ChatID, reply)
	return nil
}

func (a *Agent) generateReply(ctx context.Context, user *store.User, sessionID, content string, now time.Time) (string, error) {
	hot, err := a.codec.LoadHot(ctx, user.ChatID)
	if err != nil {
		return "", err
	}

	a.rngMu.Lock()
	system := persona.BuildSystemPrompt(persona.Context{
		Message:      content,
		Now:          now,
		Phase:        hot.Relationship.Phase,
		UserName:     user.FirstName,
		MessageCount: user.MessageCount + 1,
		MemoryDigest: memory.FormatForPrompt(hot, now),
	}, a.rng)
	a.rngMu.Unlock()

	history, err := a.store.SessionMessages(ctx, sessionID, a.historyWindow)
	if err != nil {
		return "", err
	}
	turns := make([]llm.Turn, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == store.RoleAssistant {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Turn{Role: role, Content: m.Content})
	}

	reply, err := a.llm.Complete(ctx, system, turns, a.maxReplyTokens)
	if err != nil {
		return "", fmt.Errorf("reply completion: %w", err)
	}
	return reply, nil
}

// HandleAccountEvent applies an external account activation.
func (a *Agent) HandleAccountEvent(ctx context.Context, ev bus.AccountEvent) {
	lock := a.chatLock(ev.ChatID)
	lock.Lock()
	defer lock.Unlock()

	user, err := a.store.GetUser(ctx, ev.ChatID)
	if err != nil || user == nil {
		a.log.Errorw("account event for unknown user", "chat_id", ev.ChatID, "error", err)
		return
	}
	if err := a.store.ActivateUser(ctx, ev.ChatID, ev.AccountID, ev.Email); err != nil {
		a.log.Errorw("account activation failed", "chat_id", ev.ChatID, "error", err)
		return
	}
	a.send(ev.ChatID, persona.Activated(user.FirstName))
}

func (a *Agent) send(chatID, content string) {
	a.bus.Outbound <- bus.OutboundMessage{ChatID: chatID, Content: content}
}
