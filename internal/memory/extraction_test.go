package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stellarlinkco/kindred/internal/llm"
	"github.com/stellarlinkco/kindred/internal/platform/logger"
)

// scriptedCompleter answers each extraction pass by matching a marker
// substring in the prompt. Unmatched passes get an empty JSON object.
type scriptedCompleter struct {
	responses map[string]string
	errs      map[string]error
	calls     int
}

var passMarkers = map[string]string{
	"facts":        "extracting facts",
	"relationship": "updating the relationship profile",
	"people":       "people mentioned in a conversation",
	"summary":      "creating a conversation summary",
	"threads":      "detecting follow-up opportunities",
}

func (f *scriptedCompleter) Complete(ctx context.Context, system string, turns []llm.Turn, maxTokens int) (string, error) {
	return f.CompleteFast(ctx, system, turns, maxTokens)
}

func (f *scriptedCompleter) CompleteFast(ctx context.Context, system string, turns []llm.Turn, maxTokens int) (string, error) {
	f.calls++
	if len(turns) == 0 {
		return "{}", nil
	}
	prompt := turns[len(turns)-1].Content
	for pass, marker := range passMarkers {
		if !strings.Contains(prompt, marker) {
			continue
		}
		if err, ok := f.errs[pass]; ok {
			return "", err
		}
		if resp, ok := f.responses[pass]; ok {
			return resp, nil
		}
		return "{}", nil
	}
	return "{}", nil
}

func newTestEngine(completer llm.Completer) (*Engine, *Codec) {
	codec, _ := newTestCodec()
	engine := NewEngine(codec, completer, logger.Nop(), "Sean", 4)
	engine.SetClock(fixedClock(testNow))
	return engine, codec
}

func TestRun_SkipsBelowMinimum(t *testing.T) {
	completer := &scriptedCompleter{}
	engine, _ := newTestEngine(completer)

	result, err := engine.Run(context.Background(), "chat1", "user: hi\nassistant: hey", 3)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if completer.calls != 0 {
		t.Errorf("model called %d times for a below-minimum session", completer.calls)
	}
	if result.FactsUpdated || result.SummaryStored {
		t.Errorf("result = %+v, want all-zero", result)
	}
}

func TestRun_NoOpPassesWriteNothing(t *testing.T) {
	completer := &scriptedCompleter{}
	engine, codec := newTestEngine(completer)
	ctx := context.Background()

	result, err := engine.Run(ctx, "chat1", "transcript", 6)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.FactsUpdated || result.RelationshipUpdated || result.ThreadsUpdated || result.SummaryStored {
		t.Errorf("empty responses produced updates: %+v", result)
	}

	slugs, _ := codec.ListPeople(ctx, "chat1")
	if len(slugs) != 0 {
		t.Errorf("people written without extraction output: %v", slugs)
	}
}

func TestRun_AppliesFacts(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"facts": `{"updates": {"name": "Maya", "age": 31, "location": "Chicago",
			"job": {"title": "nurse", "feelings": "exhausted"},
			"new_struggles": ["night shifts"], "new_interests": ["pottery"]}}`,
	}}
	engine, codec := newTestEngine(completer)
	ctx := context.Background()

	result, err := engine.Run(ctx, "chat1", "transcript", 6)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !result.FactsUpdated {
		t.Fatal("FactsUpdated = false")
	}

	core, err := codec.LoadCore(ctx, "chat1")
	if err != nil {
		t.Fatalf("LoadCore error: %v", err)
	}
	if core.Name != "Maya" || core.Age != 31 || core.Location != "Chicago" {
		t.Errorf("core = %+v", core)
	}
	if core.Job.Title != "nurse" || core.Job.Feelings != "exhausted" {
		t.Errorf("job = %+v", core.Job)
	}
	if len(core.Struggles) != 1 || core.Struggles[0] != "night shifts" {
		t.Errorf("struggles = %v", core.Struggles)
	}
}

func TestRun_FactsAccumulate(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"facts": `{"updates": {"new_interests": ["climbing"]}}`,
	}}
	engine, codec := newTestEngine(completer)
	ctx := context.Background()

	seed := DefaultCore(testNow)
	seed.Name = "Maya"
	seed.Interests = []string{"pottery"}
	if err := codec.SaveCore(ctx, "chat1", seed); err != nil {
		t.Fatalf("SaveCore error: %v", err)
	}

	if _, err := engine.Run(ctx, "chat1", "transcript", 6); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	core, _ := codec.LoadCore(ctx, "chat1")
	if core.Name != "Maya" {
		t.Errorf("existing scalar lost: name = %q", core.Name)
	}
	if len(core.Interests) != 2 {
		t.Errorf("interests = %v, want pottery + climbing", core.Interests)
	}
}

func TestRun_AppliesRelationship(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"relationship": `{"phase_change": "building", "vibe_update": "warming up",
			"new_inside_jokes": [{"reference": "the lasagna incident", "context": "cooking fail"}],
			"new_highlights": [{"moment": "opened up about dad", "significance": "high"}]}`,
	}}
	engine, codec := newTestEngine(completer)
	ctx := context.Background()

	result, err := engine.Run(ctx, "chat1", "transcript", 6)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !result.RelationshipUpdated {
		t.Fatal("RelationshipUpdated = false")
	}

	rel, _ := codec.LoadRelationship(ctx, "chat1")
	if rel.Phase != PhaseBuilding || rel.Vibe != "warming up" {
		t.Errorf("rel = phase %q vibe %q", rel.Phase, rel.Vibe)
	}
	if len(rel.InsideJokes) != 1 || rel.InsideJokes[0].Created == "" {
		t.Errorf("inside jokes = %+v", rel.InsideJokes)
	}
	if len(rel.Highlights) != 1 || rel.Highlights[0].Date != "2025-08-15" {
		t.Errorf("highlights = %+v", rel.Highlights)
	}
}

func TestRun_PeopleNewAndExisting(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"people": `{"people": [
			{"name": "Mike", "slug": "mike-boss", "is_new": true, "relationship_to_user": "boss",
			 "sentiment": "negative", "facts_learned": ["micromanages"], "context": "work vent"},
			{"name": "", "slug": "", "sentiment": "positive"}
		]}`,
	}}
	engine, codec := newTestEngine(completer)
	ctx := context.Background()

	result, err := engine.Run(ctx, "chat1", "transcript", 6)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.PeopleUpdated) != 1 || result.PeopleUpdated[0] != "mike-boss" {
		t.Fatalf("PeopleUpdated = %v", result.PeopleUpdated)
	}

	person, ok, _ := codec.LoadPerson(ctx, "chat1", "mike-boss")
	if !ok {
		t.Fatal("person not written")
	}
	if person.MentionCount != 1 || person.Sentiment != "negative" {
		t.Errorf("person = %+v", person)
	}

	// Second run: facts append, mention count climbs, neutral sentiment
	// does not clobber the stored one.
	completer.responses["people"] = `{"people": [
		{"name": "Mike", "slug": "mike-boss", "sentiment": "neutral",
		 "facts_learned": ["got promoted"], "context": "update"}]}`
	if _, err := engine.Run(ctx, "chat1", "transcript", 6); err != nil {
		t.Fatalf("second Run error: %v", err)
	}

	person, _, _ = codec.LoadPerson(ctx, "chat1", "mike-boss")
	if person.MentionCount != 2 {
		t.Errorf("mention count = %d, want 2", person.MentionCount)
	}
	if person.Sentiment != "negative" {
		t.Errorf("neutral sentiment overwrote stored value: %q", person.Sentiment)
	}
	if len(person.KeyFacts) != 2 {
		t.Errorf("key facts = %v", person.KeyFacts)
	}
	if len(person.NotableConversations) != 2 {
		t.Errorf("notable conversations = %v", person.NotableConversations)
	}
}

func TestRun_StoresSummary(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"summary": `{"should_store": true, "summary": {
			"summary": "Maya vented about her boss.",
			"people_mentioned": ["mike-boss"], "topics": ["work"],
			"emotional_tone": "frustrated", "vibe": "supportive", "notable": ""}}`,
	}}
	engine, codec := newTestEngine(completer)
	ctx := context.Background()

	result, err := engine.Run(ctx, "chat1", "transcript", 7)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !result.SummaryStored {
		t.Fatal("SummaryStored = false")
	}
	if result.SummaryText != "Maya vented about her boss." {
		t.Errorf("SummaryText = %q", result.SummaryText)
	}

	stored, err := codec.SearchExpansion(ctx, "chat1", 1)
	if err != nil {
		t.Fatalf("SearchExpansion error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored summaries = %d, want 1", len(stored))
	}
	if stored[0].MessageCount != 7 || stored[0].Date != "2025-08-15" {
		t.Errorf("summary = %+v", stored[0])
	}
	if stored[0].ID == "" || !strings.HasPrefix(stored[0].ID, "chat1_") {
		t.Errorf("summary id = %q", stored[0].ID)
	}
}

func TestRun_SummaryNotStoredWhenDeclined(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"summary": `{"should_store": false, "summary": {"summary": "nothing happened"}}`,
	}}
	engine, codec := newTestEngine(completer)

	result, err := engine.Run(context.Background(), "chat1", "transcript", 6)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.SummaryStored {
		t.Error("declined summary was stored")
	}
	stored, _ := codec.SearchExpansion(context.Background(), "chat1", 1)
	if len(stored) != 0 {
		t.Errorf("stored summaries = %d, want 0", len(stored))
	}
}

func TestRun_ThreadLifecycle(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"threads": `{"new_threads": [{"topic": "job interview", "follow_up_after": "2025-08-20",
			"prompt": "Ask how it went."}]}`,
	}}
	engine, codec := newTestEngine(completer)
	ctx := context.Background()

	if _, err := engine.Run(ctx, "chat1", "transcript", 6); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	threads, _ := codec.LoadThreads(ctx, "chat1")
	if len(threads.ActiveThreads) != 1 || threads.ActiveThreads[0].Topic != "job interview" {
		t.Fatalf("threads = %+v", threads.ActiveThreads)
	}

	// Resolving prunes the thread from the stored file.
	completer.responses["threads"] = `{"resolved_threads": ["job interview"]}`
	if _, err := engine.Run(ctx, "chat1", "transcript", 6); err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	threads, _ = codec.LoadThreads(ctx, "chat1")
	if len(threads.ActiveThreads) != 0 {
		t.Errorf("resolved thread not pruned: %+v", threads.ActiveThreads)
	}
}

func TestRun_FaultIsolation(t *testing.T) {
	completer := &scriptedCompleter{
		responses: map[string]string{
			"facts":        `{"updates": {"location": "Chicago"}}`,
			"relationship": `not json at all`,
		},
		errs: map[string]error{
			"threads": errors.New("model unavailable"),
		},
	}
	engine, codec := newTestEngine(completer)
	ctx := context.Background()

	result, err := engine.Run(ctx, "chat1", "transcript", 6)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !result.FactsUpdated {
		t.Error("healthy pass blocked by failed siblings")
	}
	if result.RelationshipUpdated || result.ThreadsUpdated {
		t.Errorf("failed passes reported updates: %+v", result)
	}

	core, _ := codec.LoadCore(ctx, "chat1")
	if core.Location != "Chicago" {
		t.Errorf("location = %q, want Chicago", core.Location)
	}
}

func TestRun_ToleratesCodeFences(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"facts": "```json\n{\"updates\": {\"name\": \"Maya\"}}\n```",
	}}
	engine, codec := newTestEngine(completer)

	result, err := engine.Run(context.Background(), "chat1", "transcript", 6)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !result.FactsUpdated {
		t.Fatal("fenced JSON rejected")
	}
	core, _ := codec.LoadCore(context.Background(), "chat1")
	if core.Name != "Maya" {
		t.Errorf("name = %q", core.Name)
	}
}
