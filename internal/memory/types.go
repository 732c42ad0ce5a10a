package memory

import "time"

// SchemaVersion is stamped into every stored document so field
// presence never has to be guessed when the shapes evolve.
const SchemaVersion = 1

// CoreMemory holds slowly-changing facts about one user. Scalar fields
// are set or overwritten with newer values; list fields only grow.
type CoreMemory struct {
	SchemaVersion      int      `json:"schema_version"`
	Name               string   `json:"name,omitempty"`
	Age                int      `json:"age,omitempty"`
	Location           string   `json:"location,omitempty"`
	Job                Job      `json:"job"`
	RelationshipStatus string   `json:"relationship_status,omitempty"`
	LivingSituation    string   `json:"living_situation,omitempty"`
	Interests          []string `json:"interests"`
	Struggles          []string `json:"struggles"`
	Joys               []string `json:"joys"`
	Goals              []string `json:"goals"`
	Quirks             []string `json:"quirks"`
	CommunicationStyle string   `json:"communication_style,omitempty"`
	LastUpdated        string   `json:"last_updated"`
}

type Job struct {
	Title    string `json:"title,omitempty"`
	Field    string `json:"field,omitempty"`
	Feelings string `json:"feelings,omitempty"`
}

// Relationship phases. Extraction may assert any value; transitions are
// suggestions, not a strict automaton.
const (
	PhaseNew      = "new"
	PhaseBuilding = "building"
	PhaseClose    = "close"
	PhaseDrifting = "drifting"
)

type RelationshipMemory struct {
	SchemaVersion   int          `json:"schema_version"`
	FirstContact    string       `json:"first_contact"`
	Phase           string       `json:"phase"`
	Vibe            string       `json:"vibe"`
	TrustIndicators []string     `json:"trust_indicators"`
	InsideJokes     []InsideJoke `json:"inside_jokes"`
	PatternsNoticed []string     `json:"patterns_noticed"`
	Highlights      []Highlight  `json:"highlights"`
	LastUpdated     string       `json:"last_updated"`
}

type InsideJoke struct {
	Reference string `json:"reference"`
	Context   string `json:"context"`
	Created   string `json:"created"`
}

type Highlight struct {
	Moment       string `json:"moment"`
	Date         string `json:"date"`
	Significance string `json:"significance"` // low | medium | high
}

// PersonMemory tracks a third party the user talks about, keyed by a
// human-readable slug such as "mike-boss".
type PersonMemory struct {
	SchemaVersion        int                   `json:"schema_version"`
	Name                 string                `json:"name"`
	Slug                 string                `json:"slug"`
	RelationshipToUser   string                `json:"relationship_to_user"`
	Sentiment            string                `json:"sentiment"` // positive | negative | neutral | mixed
	KeyFacts             []string              `json:"key_facts"`
	NotableConversations []NotableConversation `json:"notable_conversations"`
	FirstMentioned       string                `json:"first_mentioned"`
	LastMentioned        string                `json:"last_mentioned"`
	MentionCount         int                   `json:"mention_count"`
}

type NotableConversation struct {
	Date    string `json:"date"`
	Summary string `json:"summary"`
}

// ConversationSummary is the durable digest of one closed session.
// Append-only; never mutated after creation.
type ConversationSummary struct {
	ID              string   `json:"id"`
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	Summary         string   `json:"summary"`
	PeopleMentioned []string `json:"people_mentioned"`
	Topics          []string `json:"topics"`
	EmotionalTone   string   `json:"emotional_tone"`
	Vibe            string   `json:"vibe"`
	Notable         string   `json:"notable,omitempty"`
	MessageCount    int      `json:"message_count"`
}

// ExpansionFile buckets conversation summaries by month ("2025-01").
type ExpansionFile struct {
	SchemaVersion int                   `json:"schema_version"`
	Month         string                `json:"month"`
	Conversations []ConversationSummary `json:"conversations"`
}

// Thread is a tracked follow-up opportunity with a target date.
type Thread struct {
	Topic         string `json:"topic"`
	Created       string `json:"created"`
	FollowUpAfter string `json:"follow_up_after"` // YYYY-MM-DD
	Prompt        string `json:"prompt"`
	Resolved      bool   `json:"resolved,omitempty"`
}

// Due reports whether the thread is unresolved and its follow-up date
// is today or earlier.
func (t Thread) Due(now time.Time) bool {
	if t.Resolved {
		return false
	}
	followUp, err := time.Parse("2006-01-02", t.FollowUpAfter)
	if err != nil {
		return false
	}
	return !followUp.After(now)
}

type ThreadsFile struct {
	SchemaVersion int      `json:"schema_version"`
	ActiveThreads []Thread `json:"active_threads"`
}

// HotMemory is the bounded snapshot every prompt-assembly call
// consumes. It is never re-derived from raw message history.
type HotMemory struct {
	Core                CoreMemory
	Relationship        RelationshipMemory
	Threads             ThreadsFile
	RecentConversations []ConversationSummary
}

func DefaultCore(now time.Time) CoreMemory {
	return CoreMemory{
		SchemaVersion: SchemaVersion,
		Interests:     []string{},
		Struggles:     []string{},
		Joys:          []string{},
		Goals:         []string{},
		Quirks:        []string{},
		LastUpdated:   now.UTC().Format(time.RFC3339),
	}
}

func DefaultRelationship(now time.Time) RelationshipMemory {
	stamp := now.UTC().Format(time.RFC3339)
	return RelationshipMemory{
		SchemaVersion:   SchemaVersion,
		FirstContact:    stamp,
		Phase:           PhaseNew,
		Vibe:            "new",
		TrustIndicators: []string{},
		InsideJokes:     []InsideJoke{},
		PatternsNoticed: []string{},
		Highlights:      []Highlight{},
		LastUpdated:     stamp,
	}
}

func DefaultThreads() ThreadsFile {
	return ThreadsFile{
		SchemaVersion: SchemaVersion,
		ActiveThreads: []Thread{},
	}
}

func DefaultExpansion(month string) ExpansionFile {
	return ExpansionFile{
		SchemaVersion: SchemaVersion,
		Month:         month,
		Conversations: []ConversationSummary{},
	}
}
