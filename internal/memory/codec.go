package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/kindred/internal/blob"
)

// Codec is the typed load/save layer over the blob store. Loads return
// a constructed default when no document exists yet, so first-contact
// users always see a valid empty memory model.
type Codec struct {
	store blob.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewCodec(store blob.Store, log *zap.SugaredLogger) *Codec {
	return &Codec{store: store, log: log, now: time.Now}
}

// SetClock overrides the codec's time source, for tests.
func (c *Codec) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Codec) LoadCore(ctx context.Context, chatID string) (CoreMemory, error) {
	key, err := userPath(chatID, "core.json")
	if err != nil {
		return CoreMemory{}, err
	}
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return CoreMemory{}, fmt.Errorf("load core: %w", err)
	}
	if !ok {
		return DefaultCore(c.now()), nil
	}
	core := DefaultCore(c.now())
	if err := json.Unmarshal(data, &core); err != nil {
		return CoreMemory{}, fmt.Errorf("parse core: %w", err)
	}
	return core, nil
}

func (c *Codec) SaveCore(ctx context.Context, chatID string, core CoreMemory) error {
	key, err := userPath(chatID, "core.json")
	if err != nil {
		return err
	}
	core.SchemaVersion = SchemaVersion
	core.LastUpdated = c.now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(core, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal core: %w", err)
	}
	return c.store.Put(ctx, key, data)
}

func (c *Codec) LoadRelationship(ctx context.Context, chatID string) (RelationshipMemory, error) {
	key, err := userPath(chatID, "relationship.json")
	if err != nil {
		return RelationshipMemory{}, err
	}
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return RelationshipMemory{}, fmt.Errorf("load relationship: %w", err)
	}
	if !ok {
		return DefaultRelationship(c.now()), nil
	}
	rel := DefaultRelationship(c.now())
	if err := json.Unmarshal(data, &rel); err != nil {
		return RelationshipMemory{}, fmt.Errorf("parse relationship: %w", err)
	}
	return rel, nil
}

func (c *Codec) SaveRelationship(ctx context.Context, chatID string, rel RelationshipMemory) error {
	key, err := userPath(chatID, "relationship.json")
	if err != nil {
		return err
	}
	rel.SchemaVersion = SchemaVersion
	rel.LastUpdated = c.now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(rel, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal relationship: %w", err)
	}
	return c.store.Put(ctx, key, data)
}

func (c *Codec) LoadThreads(ctx context.Context, chatID string) (ThreadsFile, error) {
	key, err := userPath(chatID, "threads.json")
	if err != nil {
		return ThreadsFile{}, err
	}
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return ThreadsFile{}, fmt.Errorf("load threads: %w", err)
	}
	if !ok {
		return DefaultThreads(), nil
	}
	threads := DefaultThreads()
	if err := json.Unmarshal(data, &threads); err != nil {
		return ThreadsFile{}, fmt.Errorf("parse threads: %w", err)
	}
	return threads, nil
}

func (c *Codec) SaveThreads(ctx context.Context, chatID string, threads ThreadsFile) error {
	key, err := userPath(chatID, "threads.json")
	if err != nil {
		return err
	}
	threads.SchemaVersion = SchemaVersion
	data, err := json.MarshalIndent(threads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal threads: %w", err)
	}
	return c.store.Put(ctx, key, data)
}

// LoadPerson returns ok=false when the slug is unknown.
func (c *Codec) LoadPerson(ctx context.Context, chatID, slug string) (PersonMemory, bool, error) {
	key, err := personPath(chatID, slug)
	if err != nil {
		return PersonMemory{}, false, err
	}
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return PersonMemory{}, false, fmt.Errorf("load person %s: %w", slug, err)
	}
	if !ok {
		return PersonMemory{}, false, nil
	}
	var person PersonMemory
	if err := json.Unmarshal(data, &person); err != nil {
		return PersonMemory{}, false, fmt.Errorf("parse person %s: %w", slug, err)
	}
	return person, true, nil
}

func (c *Codec) SavePerson(ctx context.Context, chatID string, person PersonMemory) error {
	key, err := personPath(chatID, person.Slug)
	if err != nil {
		return err
	}
	person.SchemaVersion = SchemaVersion
	data, err := json.MarshalIndent(person, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal person %s: %w", person.Slug, err)
	}
	return c.store.Put(ctx, key, data)
}

// ListPeople enumerates known person slugs by prefix scan over the
// store's key namespace.
func (c *Codec) ListPeople(ctx context.Context, chatID string) ([]string, error) {
	prefix, err := peoplePrefix(chatID)
	if err != nil {
		return nil, err
	}
	keys, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	slugs := make([]string, 0, len(keys))
	for _, key := range keys {
		slug := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".json")
		slugs = append(slugs, slug)
	}
	return slugs, nil
}

func (c *Codec) LoadExpansion(ctx context.Context, chatID, month string) (ExpansionFile, error) {
	key, err := expansionPath(chatID, month)
	if err != nil {
		return ExpansionFile{}, err
	}
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return ExpansionFile{}, fmt.Errorf("load expansion %s: %w", month, err)
	}
	if !ok {
		return DefaultExpansion(month), nil
	}
	expansion := DefaultExpansion(month)
	if err := json.Unmarshal(data, &expansion); err != nil {
		return ExpansionFile{}, fmt.Errorf("parse expansion %s: %w", month, err)
	}
	return expansion, nil
}

// AppendConversation files a summary into the month bucket matching its
// date. Summaries are append-only; the bucket is rewritten whole.
func (c *Codec) AppendConversation(ctx context.Context, chatID string, summary ConversationSummary) error {
	if len(summary.Date) < 7 {
		return fmt.Errorf("conversation summary has malformed date %q", summary.Date)
	}
	month := summary.Date[:7]
	expansion, err := c.LoadExpansion(ctx, chatID, month)
	if err != nil {
		return err
	}
	expansion.Conversations = append(expansion.Conversations, summary)

	key, err := expansionPath(chatID, month)
	if err != nil {
		return err
	}
	expansion.SchemaVersion = SchemaVersion
	data, err := json.MarshalIndent(expansion, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal expansion %s: %w", month, err)
	}
	return c.store.Put(ctx, key, data)
}

// SearchExpansion collects summaries from the most recent N month
// buckets, newest first.
func (c *Codec) SearchExpansion(ctx context.Context, chatID string, months int) ([]ConversationSummary, error) {
	if months <= 0 {
		months = 3
	}
	now := c.now()
	var results []ConversationSummary
	for i := 0; i < months; i++ {
		month := now.AddDate(0, -i, -now.Day()+1).Format("2006-01")
		expansion, err := c.LoadExpansion(ctx, chatID, month)
		if err != nil {
			return nil, err
		}
		results = append(results, expansion.Conversations...)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Date != results[j].Date {
			return results[i].Date > results[j].Date
		}
		return results[i].Time > results[j].Time
	})
	return results, nil
}

// LoadHot fetches the bounded aggregate snapshot used for every prompt
// assembly: core + relationship + threads + the last two months of
// summaries, truncated to the five most recent.
func (c *Codec) LoadHot(ctx context.Context, chatID string) (HotMemory, error) {
	var hot HotMemory
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hot.Core, err = c.LoadCore(gctx, chatID)
		return err
	})
	g.Go(func() error {
		var err error
		hot.Relationship, err = c.LoadRelationship(gctx, chatID)
		return err
	})
	g.Go(func() error {
		var err error
		hot.Threads, err = c.LoadThreads(gctx, chatID)
		return err
	})
	g.Go(func() error {
		recent, err := c.SearchExpansion(gctx, chatID, 2)
		if err != nil {
			return err
		}
		if len(recent) > 5 {
			recent = recent[:5]
		}
		hot.RecentConversations = recent
		return nil
	})
	if err := g.Wait(); err != nil {
		return HotMemory{}, err
	}
	return hot, nil
}

// InitializeUser seeds default memory documents at first contact, with
// the user's given name as the core name. No-op if core already exists.
func (c *Codec) InitializeUser(ctx context.Context, chatID, firstName string) error {
	key, err := userPath(chatID, "core.json")
	if err != nil {
		return err
	}
	_, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("check existing core: %w", err)
	}
	if ok {
		return nil
	}

	core := DefaultCore(c.now())
	core.Name = firstName
	if err := c.SaveCore(ctx, chatID, core); err != nil {
		return err
	}
	if err := c.SaveRelationship(ctx, chatID, DefaultRelationship(c.now())); err != nil {
		return err
	}
	return c.SaveThreads(ctx, chatID, DefaultThreads())
}
