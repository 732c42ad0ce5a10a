package memory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stellarlinkco/kindred/internal/platform/logger"
)

// fakeBlob is an in-memory blob.Store for tests.
type fakeBlob struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{data: map[string][]byte{}}
}

func (f *fakeBlob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[key]
	return data, ok, nil
}

func (f *fakeBlob) Put(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = data
	return nil
}

func (f *fakeBlob) List(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2025, 8, 15, 10, 30, 0, 0, time.UTC)

func newTestCodec() (*Codec, *fakeBlob) {
	blobs := newFakeBlob()
	codec := NewCodec(blobs, logger.Nop())
	codec.SetClock(fixedClock(testNow))
	return codec, blobs
}

func TestLoadCore_DefaultWhenAbsent(t *testing.T) {
	codec, _ := newTestCodec()

	core, err := codec.LoadCore(context.Background(), "chat1")
	if err != nil {
		t.Fatalf("LoadCore error: %v", err)
	}
	if core.SchemaVersion != SchemaVersion {
		t.Errorf("schema version = %d, want %d", core.SchemaVersion, SchemaVersion)
	}
	if core.Interests == nil || core.Struggles == nil {
		t.Error("list fields should be initialized, not nil")
	}
	if core.Name != "" {
		t.Errorf("default core has name %q", core.Name)
	}
}

func TestSaveCore_StampsVersionAndTimestamp(t *testing.T) {
	codec, blobs := newTestCodec()
	ctx := context.Background()

	core := DefaultCore(testNow)
	core.Name = "Maya"
	core.SchemaVersion = 0
	core.LastUpdated = "stale"
	if err := codec.SaveCore(ctx, "chat1", core); err != nil {
		t.Fatalf("SaveCore error: %v", err)
	}

	data, ok, _ := blobs.Get(ctx, "users/chat1/core.json")
	if !ok {
		t.Fatal("core document not written")
	}
	var stored CoreMemory
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("stored core is not valid JSON: %v", err)
	}
	if stored.SchemaVersion != SchemaVersion {
		t.Errorf("stored schema version = %d, want %d", stored.SchemaVersion, SchemaVersion)
	}
	if stored.LastUpdated != testNow.Format(time.RFC3339) {
		t.Errorf("last_updated = %q, want %q", stored.LastUpdated, testNow.Format(time.RFC3339))
	}

	loaded, err := codec.LoadCore(ctx, "chat1")
	if err != nil {
		t.Fatalf("LoadCore error: %v", err)
	}
	if loaded.Name != "Maya" {
		t.Errorf("round-trip name = %q, want Maya", loaded.Name)
	}
}

func TestLoadCore_RejectsBadChatID(t *testing.T) {
	codec, _ := newTestCodec()

	for _, chatID := range []string{"", "a/b", `a\b`, "../escape"} {
		_, err := codec.LoadCore(context.Background(), chatID)
		if !errors.Is(err, ErrInvalidPathSegment) {
			t.Errorf("chatID %q: error = %v, want ErrInvalidPathSegment", chatID, err)
		}
	}
}

func TestPersonRoundTrip(t *testing.T) {
	codec, _ := newTestCodec()
	ctx := context.Background()

	_, ok, err := codec.LoadPerson(ctx, "chat1", "mike-boss")
	if err != nil {
		t.Fatalf("LoadPerson error: %v", err)
	}
	if ok {
		t.Fatal("unknown person reported as present")
	}

	person := PersonMemory{
		Name:         "Mike",
		Slug:         "mike-boss",
		Sentiment:    "negative",
		KeyFacts:     []string{"micromanages"},
		MentionCount: 1,
	}
	if err := codec.SavePerson(ctx, "chat1", person); err != nil {
		t.Fatalf("SavePerson error: %v", err)
	}

	loaded, ok, err := codec.LoadPerson(ctx, "chat1", "mike-boss")
	if err != nil || !ok {
		t.Fatalf("LoadPerson after save: ok=%v err=%v", ok, err)
	}
	if loaded.Name != "Mike" || loaded.Sentiment != "negative" {
		t.Errorf("loaded person = %+v", loaded)
	}

	slugs, err := codec.ListPeople(ctx, "chat1")
	if err != nil {
		t.Fatalf("ListPeople error: %v", err)
	}
	if len(slugs) != 1 || slugs[0] != "mike-boss" {
		t.Errorf("slugs = %v, want [mike-boss]", slugs)
	}
}

func TestAppendConversation_BucketsByMonth(t *testing.T) {
	codec, blobs := newTestCodec()
	ctx := context.Background()

	first := ConversationSummary{ID: "a", Date: "2025-08-01", Time: "09:00:00", Summary: "first"}
	second := ConversationSummary{ID: "b", Date: "2025-08-14", Time: "12:00:00", Summary: "second"}
	other := ConversationSummary{ID: "c", Date: "2025-07-20", Time: "15:00:00", Summary: "july"}

	for _, s := range []ConversationSummary{first, second, other} {
		if err := codec.AppendConversation(ctx, "chat1", s); err != nil {
			t.Fatalf("AppendConversation(%s) error: %v", s.ID, err)
		}
	}

	if _, ok, _ := blobs.Get(ctx, "users/chat1/expansion/2025-08.json"); !ok {
		t.Error("august bucket not written")
	}
	if _, ok, _ := blobs.Get(ctx, "users/chat1/expansion/2025-07.json"); !ok {
		t.Error("july bucket not written")
	}

	august, err := codec.LoadExpansion(ctx, "chat1", "2025-08")
	if err != nil {
		t.Fatalf("LoadExpansion error: %v", err)
	}
	if len(august.Conversations) != 2 {
		t.Fatalf("august conversations = %d, want 2", len(august.Conversations))
	}
}

func TestAppendConversation_MalformedDate(t *testing.T) {
	codec, _ := newTestCodec()

	err := codec.AppendConversation(context.Background(), "chat1", ConversationSummary{Date: "bad"})
	if err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestSearchExpansion_NewestFirst(t *testing.T) {
	codec, _ := newTestCodec()
	ctx := context.Background()

	summaries := []ConversationSummary{
		{ID: "a", Date: "2025-07-20", Time: "15:00:00"},
		{ID: "b", Date: "2025-08-14", Time: "12:00:00"},
		{ID: "c", Date: "2025-08-14", Time: "18:00:00"},
		{ID: "d", Date: "2025-08-01", Time: "09:00:00"},
	}
	for _, s := range summaries {
		if err := codec.AppendConversation(ctx, "chat1", s); err != nil {
			t.Fatalf("AppendConversation error: %v", err)
		}
	}

	results, err := codec.SearchExpansion(ctx, "chat1", 2)
	if err != nil {
		t.Fatalf("SearchExpansion error: %v", err)
	}
	gotIDs := make([]string, len(results))
	for i, r := range results {
		gotIDs[i] = r.ID
	}
	want := []string{"c", "b", "d", "a"}
	if len(gotIDs) != len(want) {
		t.Fatalf("results = %v, want %v", gotIDs, want)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("results = %v, want %v", gotIDs, want)
		}
	}
}

func TestLoadHot_TruncatesRecent(t *testing.T) {
	codec, _ := newTestCodec()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		s := ConversationSummary{
			ID:   string(rune('a' + i)),
			Date: "2025-08-10",
			Time: time.Date(2025, 8, 10, i, 0, 0, 0, time.UTC).Format("15:04:05"),
		}
		if err := codec.AppendConversation(ctx, "chat1", s); err != nil {
			t.Fatalf("AppendConversation error: %v", err)
		}
	}

	hot, err := codec.LoadHot(ctx, "chat1")
	if err != nil {
		t.Fatalf("LoadHot error: %v", err)
	}
	if len(hot.RecentConversations) != 5 {
		t.Errorf("recent conversations = %d, want 5", len(hot.RecentConversations))
	}
	if hot.Relationship.Phase != PhaseNew {
		t.Errorf("default phase = %q, want %q", hot.Relationship.Phase, PhaseNew)
	}
}

func TestInitializeUser(t *testing.T) {
	codec, blobs := newTestCodec()
	ctx := context.Background()

	if err := codec.InitializeUser(ctx, "chat1", "Maya"); err != nil {
		t.Fatalf("InitializeUser error: %v", err)
	}

	for _, key := range []string{
		"users/chat1/core.json",
		"users/chat1/relationship.json",
		"users/chat1/threads.json",
	} {
		if _, ok, _ := blobs.Get(ctx, key); !ok {
			t.Errorf("%s not seeded", key)
		}
	}

	core, err := codec.LoadCore(ctx, "chat1")
	if err != nil {
		t.Fatalf("LoadCore error: %v", err)
	}
	if core.Name != "Maya" {
		t.Errorf("seeded name = %q, want Maya", core.Name)
	}

	// Second call must not clobber existing memory.
	core.Name = "Changed"
	if err := codec.SaveCore(ctx, "chat1", core); err != nil {
		t.Fatalf("SaveCore error: %v", err)
	}
	if err := codec.InitializeUser(ctx, "chat1", "Maya"); err != nil {
		t.Fatalf("second InitializeUser error: %v", err)
	}
	core, _ = codec.LoadCore(ctx, "chat1")
	if core.Name != "Changed" {
		t.Errorf("re-initialization clobbered core, name = %q", core.Name)
	}
}

func TestThreadDue(t *testing.T) {
	now := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		thread Thread
		want   bool
	}{
		{Thread{FollowUpAfter: "2025-08-14"}, true},
		{Thread{FollowUpAfter: "2025-08-15"}, true},
		{Thread{FollowUpAfter: "2025-08-16"}, false},
		{Thread{FollowUpAfter: "2025-08-14", Resolved: true}, false},
		{Thread{FollowUpAfter: "not-a-date"}, false},
	}
	for _, tc := range cases {
		if got := tc.thread.Due(now); got != tc.want {
			t.Errorf("Due(%q resolved=%v) = %v, want %v",
				tc.thread.FollowUpAfter, tc.thread.Resolved, got, tc.want)
		}
	}
}
