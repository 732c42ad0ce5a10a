package rhythm

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stellarlinkco/kindred/internal/bus"
	"github.com/stellarlinkco/kindred/internal/config"
	"github.com/stellarlinkco/kindred/internal/llm"
	"github.com/stellarlinkco/kindred/internal/memory"
	"github.com/stellarlinkco/kindred/internal/platform/logger"
	"github.com/stellarlinkco/kindred/internal/session"
	"github.com/stellarlinkco/kindred/internal/store"
)

var baseTime = time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

type memBlob struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memBlob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	return d, ok, nil
}

func (m *memBlob) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memBlob) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type cannedCompleter struct {
	mu      sync.Mutex
	reply   string
	systems []string
}

func (c *cannedCompleter) Complete(ctx context.Context, system string, turns []llm.Turn, maxTokens int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systems = append(c.systems, system)
	return c.reply, nil
}

func (c *cannedCompleter) CompleteFast(ctx context.Context, system string, turns []llm.Turn, maxTokens int) (string, error) {
	if len(turns) > 0 && strings.Contains(turns[0].Content, "conversation summary") {
		return `{"should_store": true, "summary": {"summary": "recovered session"}}`, nil
	}
	return "{}", nil
}

type fixture struct {
	sweeps    *Sweeps
	store     *store.Store
	blobs     *memBlob
	codec     *memory.Codec
	bus       *bus.MessageBus
	completer *cannedCompleter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs := &memBlob{data: map[string][]byte{}}
	codec := memory.NewCodec(blobs, logger.Nop())
	completer := &cannedCompleter{reply: "hey, thought about you"}
	engine := memory.NewEngine(codec, completer, logger.Nop(), "Sean", 4)
	extractor := session.NewExtractor(st, engine, logger.Nop())
	mbus := bus.NewMessageBus(64)

	sweeps := NewSweeps(st, codec, blobs, extractor, completer, mbus, config.DefaultConfig(), logger.Nop())
	sweeps.SetClock(func() time.Time { return baseTime })

	return &fixture{sweeps: sweeps, store: st, blobs: blobs, codec: codec, bus: mbus, completer: completer}
}

func seedUser(t *testing.T, st *store.Store, chatID, status string, lastMessage time.Time) {
	t.Helper()
	if err := st.CreateUser(context.Background(), store.User{
		ChatID: chatID, FirstName: "Maya", Status: status,
		TrialMessagesRemaining: 25, CreatedAt: baseTime.Add(-60 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("CreateUser(%s) error: %v", chatID, err)
	}
	if !lastMessage.IsZero() {
		if err := st.TouchUser(context.Background(), chatID, lastMessage); err != nil {
			t.Fatalf("TouchUser(%s) error: %v", chatID, err)
		}
	}
}

func TestOutreach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seedUser(t, f.store, "due", store.StatusTrial, baseTime.Add(-30*time.Hour))
	seedUser(t, f.store, "fresh", store.StatusTrial, baseTime.Add(-time.Hour))

	// Give the due user a due thread so the seed comes from it.
	threads := memory.DefaultThreads()
	threads.ActiveThreads = append(threads.ActiveThreads, memory.Thread{
		Topic: "job interview", FollowUpAfter: "2025-08-14",
		Prompt: "Ask how the interview went.",
	})
	if err := f.codec.SaveThreads(ctx, "due", threads); err != nil {
		t.Fatalf("SaveThreads error: %v", err)
	}

	if err := f.sweeps.Outreach(ctx); err != nil {
		t.Fatalf("Outreach error: %v", err)
	}

	select {
	case out := <-f.bus.Outbound:
		if out.ChatID != "due" || out.Content != "hey, thought about you" {
			t.Errorf("outbound = %+v", out)
		}
	default:
		t.Fatal("no outreach message sent")
	}
	select {
	case out := <-f.bus.Outbound:
		t.Fatalf("unexpected second outreach: %+v", out)
	default:
	}

	u, _ := f.store.GetUser(ctx, "due")
	if u.LastOutreachAt == nil {
		t.Error("last_outreach_at not stamped")
	}

	system := f.completer.systems[0]
	if !strings.Contains(system, "Ask how the interview went.") {
		t.Error("outreach prompt not seeded from the due thread")
	}

	// Second sweep in the same idle period is a no-op.
	if err := f.sweeps.Outreach(ctx); err != nil {
		t.Fatalf("second Outreach error: %v", err)
	}
	select {
	case out := <-f.bus.Outbound:
		t.Fatalf("user pinged twice in one idle period: %+v", out)
	default:
	}
}

func TestOutreachSeed_FallbackOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedUser(t, f.store, "c1", store.StatusTrial, baseTime.Add(-30*time.Hour))

	// Nothing stored at all: empty seed.
	seed, err := f.sweeps.outreachSeed(ctx, "c1", baseTime)
	if err != nil {
		t.Fatalf("outreachSeed error: %v", err)
	}
	if seed != "" {
		t.Errorf("seed = %q, want empty", seed)
	}

	// A summarized session becomes the seed.
	if err := f.store.CreateSession(ctx, store.Session{ID: "s1", ChatID: "c1", StartedAt: baseTime.Add(-2 * time.Hour)}); err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if err := f.store.CloseSession(ctx, "s1", baseTime.Add(-time.Hour)); err != nil {
		t.Fatalf("CloseSession error: %v", err)
	}
	if err := f.store.SetSessionSummary(ctx, "s1", "talked about the move"); err != nil {
		t.Fatalf("SetSessionSummary error: %v", err)
	}
	seed, _ = f.sweeps.outreachSeed(ctx, "c1", baseTime)
	if !strings.Contains(seed, "talked about the move") {
		t.Errorf("seed = %q, want last conversation", seed)
	}

	// An inside joke outranks the summary.
	rel := memory.DefaultRelationship(baseTime)
	rel.InsideJokes = append(rel.InsideJokes, memory.InsideJoke{Reference: "the lasagna incident"})
	if err := f.codec.SaveRelationship(ctx, "c1", rel); err != nil {
		t.Fatalf("SaveRelationship error: %v", err)
	}
	seed, _ = f.sweeps.outreachSeed(ctx, "c1", baseTime)
	if !strings.Contains(seed, "the lasagna incident") {
		t.Errorf("seed = %q, want inside joke", seed)
	}

	// A due thread outranks both.
	threads := memory.DefaultThreads()
	threads.ActiveThreads = append(threads.ActiveThreads, memory.Thread{
		Topic: "interview", FollowUpAfter: "2025-08-10", Prompt: "Ask about the interview.",
	})
	if err := f.codec.SaveThreads(ctx, "c1", threads); err != nil {
		t.Fatalf("SaveThreads error: %v", err)
	}
	seed, _ = f.sweeps.outreachSeed(ctx, "c1", baseTime)
	if seed != "Ask about the interview." {
		t.Errorf("seed = %q, want due thread prompt", seed)
	}
}

func TestHousekeeping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedUser(t, f.store, "c1", store.StatusActive, baseTime.Add(-time.Hour))

	old := store.Session{ID: "old", ChatID: "c1", StartedAt: baseTime.Add(-40 * 24 * time.Hour)}
	recent := store.Session{ID: "recent", ChatID: "c1", StartedAt: baseTime.Add(-24 * time.Hour)}
	for _, sess := range []store.Session{old, recent} {
		if err := f.store.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession error: %v", err)
		}
	}
	if err := f.store.CloseSession(ctx, "old", baseTime.Add(-40*24*time.Hour)); err != nil {
		t.Fatalf("CloseSession error: %v", err)
	}
	if err := f.store.CloseSession(ctx, "recent", baseTime.Add(-24*time.Hour)); err != nil {
		t.Fatalf("CloseSession error: %v", err)
	}
	if err := f.store.InsertMessage(ctx, store.Message{
		ChatID: "c1", SessionID: "old", Role: store.RoleUser, Content: "ancient history", Timestamp: baseTime.Add(-40 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("InsertMessage error: %v", err)
	}

	if err := f.sweeps.Housekeeping(ctx); err != nil {
		t.Fatalf("Housekeeping error: %v", err)
	}

	data, ok, _ := f.blobs.Get(ctx, "archives/sessions_2025-08-15.json")
	if !ok {
		t.Fatal("archive blob not written")
	}
	var archived []archivedSession
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatalf("archive is not valid JSON: %v", err)
	}
	if len(archived) != 1 || archived[0].Session.ID != "old" {
		t.Errorf("archived = %+v", archived)
	}
	if len(archived[0].Messages) != 1 || archived[0].Messages[0].Content != "ancient history" {
		t.Errorf("archived messages = %+v", archived[0].Messages)
	}

	if sess, _ := f.store.GetSession(ctx, "old"); sess != nil {
		t.Error("archived session not deleted")
	}
	if sess, _ := f.store.GetSession(ctx, "recent"); sess == nil {
		t.Error("recent session deleted")
	}
}

func TestHousekeeping_DemotesIdleUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedUser(t, f.store, "idle", store.StatusActive, baseTime.Add(-20*24*time.Hour))
	seedUser(t, f.store, "gone", store.StatusPaused, baseTime.Add(-40*24*time.Hour))

	if err := f.sweeps.Housekeeping(ctx); err != nil {
		t.Fatalf("Housekeeping error: %v", err)
	}

	u, _ := f.store.GetUser(ctx, "idle")
	if u.Status != store.StatusPaused {
		t.Errorf("idle user status = %q, want paused", u.Status)
	}
	u, _ = f.store.GetUser(ctx, "gone")
	if u.Status != store.StatusChurned {
		t.Errorf("long-idle user status = %q, want churned", u.Status)
	}
}

func TestRecoverExtractions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedUser(t, f.store, "c1", store.StatusTrial, baseTime.Add(-time.Hour))

	sess := store.Session{ID: "s1", ChatID: "c1", StartedAt: baseTime.Add(-2 * time.Hour)}
	if err := f.store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := f.store.InsertMessage(ctx, store.Message{
			ChatID: "c1", SessionID: "s1", Role: store.RoleUser, Content: "line", Timestamp: baseTime,
		}); err != nil {
			t.Fatalf("InsertMessage error: %v", err)
		}
		if err := f.store.IncrementSessionCount(ctx, "s1"); err != nil {
			t.Fatalf("IncrementSessionCount error: %v", err)
		}
	}
	if err := f.store.CloseSession(ctx, "s1", baseTime.Add(-time.Hour)); err != nil {
		t.Fatalf("CloseSession error: %v", err)
	}

	if err := f.sweeps.RecoverExtractions(ctx); err != nil {
		t.Fatalf("RecoverExtractions error: %v", err)
	}

	got, _ := f.store.GetSession(ctx, "s1")
	if !got.ExtractionDone {
		t.Error("recovered session not marked extracted")
	}
	if got.Summary != "recovered session" {
		t.Errorf("summary = %q", got.Summary)
	}
}
