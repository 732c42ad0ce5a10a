package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/kindred/internal/llm"
)

const extractionTokens = 500

// Engine runs the post-session extraction passes that turn a raw
// transcript into durable memory. Each pass is independent: one
// malformed model response costs that pass only, never the run.
type Engine struct {
	codec       *Codec
	llm         llm.Completer
	log         *zap.SugaredLogger
	character   string
	minMessages int
	now         func() time.Time
}

func NewEngine(codec *Codec, completer llm.Completer, log *zap.SugaredLogger, character string, minMessages int) *Engine {
	if minMessages <= 0 {
		minMessages = 4
	}
	return &Engine{
		codec:       codec,
		llm:         completer,
		log:         log,
		character:   character,
		minMessages: minMessages,
		now:         time.Now,
	}
}

// SetClock overrides the engine's time source, for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Result reports which memory layers a run actually touched.
type Result struct {
	FactsUpdated        bool
	RelationshipUpdated bool
	PeopleUpdated       []string
	SummaryStored       bool
	SummaryText         string
	ThreadsUpdated      bool
}

type factUpdates struct {
	Name               string   `json:"name"`
	Age                int      `json:"age"`
	Location           string   `json:"location"`
	Job                Job      `json:"job"`
	RelationshipStatus string   `json:"relationship_status"`
	LivingSituation    string   `json:"living_situation"`
	NewInterests       []string `json:"new_interests"`
	NewStruggles       []string `json:"new_struggles"`
	NewJoys            []string `json:"new_joys"`
	NewGoals           []string `json:"new_goals"`
	NewQuirks          []string `json:"new_quirks"`
	CommunicationStyle string   `json:"communication_style"`
}

type factPass struct {
	Updates factUpdates `json:"updates"`
}

type relationshipPass struct {
	PhaseChange        string   `json:"phase_change"`
	VibeUpdate         string   `json:"vibe_update"`
	NewTrustIndicators []string `json:"new_trust_indicators"`
	NewInsideJokes     []struct {
		Reference string `json:"reference"`
		Context   string `json:"context"`
	} `json:"new_inside_jokes"`
	NewPatterns   []string `json:"new_patterns"`
	NewHighlights []struct {
		Moment       string `json:"moment"`
		Significance string `json:"significance"`
	} `json:"new_highlights"`
}

type peoplePass struct {
	People []struct {
		Name               string   `json:"name"`
		Slug               string   `json:"slug"`
		IsNew              bool     `json:"is_new"`
		RelationshipToUser string   `json:"relationship_to_user"`
		Sentiment          string   `json:"sentiment"`
		FactsLearned       []string `json:"facts_learned"`
		Context            string   `json:"context"`
	} `json:"people"`
}

type summaryPass struct {
	ShouldStore bool `json:"should_store"`
	Summary     struct {
		Summary         string   `json:"summary"`
		PeopleMentioned []string `json:"people_mentioned"`
		Topics          []string `json:"topics"`
		EmotionalTone   string   `json:"emotional_tone"`
		Vibe            string   `json:"vibe"`
		Notable         string   `json:"notable"`
	} `json:"summary"`
}

type threadPass struct {
	NewThreads []struct {
		Topic         string `json:"topic"`
		FollowUpAfter string `json:"follow_up_after"`
		Prompt        string `json:"prompt"`
	} `json:"new_threads"`
	ResolvedThreads []string `json:"resolved_threads"`
	UpdatedThreads  []struct {
		Topic   string `json:"topic"`
		NewDate string `json:"new_date"`
	} `json:"updated_threads"`
}

// Run executes all five extraction passes against the transcript and
// merges their output into stored memory. Conversations below the
// message minimum are skipped wholesale.
func (e *Engine) Run(ctx context.Context, chatID, transcript string, messageCount int) (Result, error) {
	var result Result
	if messageCount < e.minMessages {
		return result, nil
	}

	var (
		core         CoreMemory
		relationship RelationshipMemory
		knownPeople  []string
		threads      ThreadsFile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		core, err = e.codec.LoadCore(gctx, chatID)
		return err
	})
	g.Go(func() error {
		var err error
		relationship, err = e.codec.LoadRelationship(gctx, chatID)
		return err
	})
	g.Go(func() error {
		var err error
		knownPeople, err = e.codec.ListPeople(gctx, chatID)
		return err
	})
	g.Go(func() error {
		var err error
		threads, err = e.codec.LoadThreads(gctx, chatID)
		return err
	})
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("load memory for extraction: %w", err)
	}

	var (
		facts   *factPass
		rel     *relationshipPass
		people  *peoplePass
		summary *summaryPass
		thread  *threadPass
		wg      sync.WaitGroup
	)
	wg.Add(5)
	go func() {
		defer wg.Done()
		facts = runPass[factPass](ctx, e, "facts", e.factPrompt(core, transcript))
	}()
	go func() {
		defer wg.Done()
		rel = runPass[relationshipPass](ctx, e, "relationship", e.relationshipPrompt(relationship, transcript))
	}()
	go func() {
		defer wg.Done()
		people = runPass[peoplePass](ctx, e, "people", e.peoplePrompt(knownPeople, transcript))
	}()
	go func() {
		defer wg.Done()
		summary = runPass[summaryPass](ctx, e, "summary", fmt.Sprintf(summaryExtractionPrompt, transcript))
	}()
	go func() {
		defer wg.Done()
		thread = runPass[threadPass](ctx, e, "threads", e.threadPrompt(threads, transcript))
	}()
	wg.Wait()

	var errs []error
	if facts != nil {
		updated, err := e.applyFacts(ctx, chatID, core, facts.Updates)
		if err != nil {
			errs = append(errs, err)
		}
		result.FactsUpdated = updated
	}
	if rel != nil {
		updated, err := e.applyRelationship(ctx, chatID, relationship, *rel)
		if err != nil {
			errs = append(errs, err)
		}
		result.RelationshipUpdated = updated
	}
	if people != nil {
		slugs, err := e.applyPeople(ctx, chatID, *people)
		if err != nil {
			errs = append(errs, err)
		}
		result.PeopleUpdated = slugs
	}
	if summary != nil && summary.ShouldStore && summary.Summary.Summary != "" {
		if err := e.applySummary(ctx, chatID, *summary, messageCount); err != nil {
			errs = append(errs, err)
		} else {
			result.SummaryStored = true
			result.SummaryText = summary.Summary.Summary
		}
	}
	if thread != nil {
		updated, err := e.applyThreads(ctx, chatID, threads, *thread)
		if err != nil {
			errs = append(errs, err)
		}
		result.ThreadsUpdated = updated
	}

	return result, errors.Join(errs...)
}

func (e *Engine) factPrompt(core CoreMemory, transcript string) string {
	profile, _ := json.MarshalIndent(core, "", "  ")
	return fmt.Sprintf(factExtractionPrompt, profile, transcript)
}

func (e *Engine) relationshipPrompt(rel RelationshipMemory, transcript string) string {
	state, _ := json.MarshalIndent(rel, "", "  ")
	return fmt.Sprintf(relationshipExtractionPrompt, e.character, state, transcript)
}

func (e *Engine) peoplePrompt(known []string, transcript string) string {
	list := strings.Join(known, ", ")
	if list == "" {
		list = "none yet"
	}
	return fmt.Sprintf(peopleExtractionPrompt, list, transcript)
}

func (e *Engine) threadPrompt(threads ThreadsFile, transcript string) string {
	var lines []string
	for _, t := range threads.ActiveThreads {
		if !t.Resolved {
			lines = append(lines, fmt.Sprintf("- %s (follow up after %s)", t.Topic, t.FollowUpAfter))
		}
	}
	active := strings.Join(lines, "\n")
	if active == "" {
		active = "none"
	}
	return fmt.Sprintf(threadExtractionPrompt, active, transcript, e.character)
}

// runPass calls the extraction model and decodes its JSON answer. A
// failed call or unparseable answer returns nil and is logged; the
// other passes proceed untouched.
func runPass[T any](ctx context.Context, e *Engine, name, prompt string) *T {
	resp, err := e.llm.CompleteFast(ctx, "", []llm.Turn{{Role: llm.RoleUser, Content: prompt}}, extractionTokens)
	if err != nil {
		e.log.Warnw("extraction pass failed", "pass", name, "error", err)
		return nil
	}
	var out T
	if err := json.Unmarshal([]byte(stripFences(resp)), &out); err != nil {
		e.log.Warnw("extraction pass returned malformed json", "pass", name, "error", err)
		return nil
	}
	return &out
}

// stripFences tolerates models that wrap JSON in a markdown code block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func (e *Engine) applyFacts(ctx context.Context, chatID string, core CoreMemory, updates factUpdates) (bool, error) {
	changed := false
	setString := func(dst *string, src string) {
		if src != "" {
			*dst = src
			changed = true
		}
	}
	setString(&core.Name, updates.Name)
	if updates.Age > 0 {
		core.Age = updates.Age
		changed = true
	}
	setString(&core.Location, updates.Location)
	setString(&core.Job.Title, updates.Job.Title)
	setString(&core.Job.Field, updates.Job.Field)
	setString(&core.Job.Feelings, updates.Job.Feelings)
	setString(&core.RelationshipStatus, updates.RelationshipStatus)
	setString(&core.LivingSituation, updates.LivingSituation)
	setString(&core.CommunicationStyle, updates.CommunicationStyle)

	appendAll := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = append(*dst, src...)
			changed = true
		}
	}
	appendAll(&core.Interests, updates.NewInterests)
	appendAll(&core.Struggles, updates.NewStruggles)
	appendAll(&core.Joys, updates.NewJoys)
	appendAll(&core.Goals, updates.NewGoals)
	appendAll(&core.Quirks, updates.NewQuirks)

	if !changed {
		return false, nil
	}
	if err := e.codec.SaveCore(ctx, chatID, core); err != nil {
		return false, fmt.Errorf("apply facts: %w", err)
	}
	return true, nil
}

func (e *Engine) applyRelationship(ctx context.Context, chatID string, rel RelationshipMemory, pass relationshipPass) (bool, error) {
	changed := false
	if pass.PhaseChange != "" {
		rel.Phase = pass.PhaseChange
		changed = true
	}
	if pass.VibeUpdate != "" {
		rel.Vibe = pass.VibeUpdate
		changed = true
	}
	if len(pass.NewTrustIndicators) > 0 {
		rel.TrustIndicators = append(rel.TrustIndicators, pass.NewTrustIndicators...)
		changed = true
	}
	if len(pass.NewInsideJokes) > 0 {
		stamp := e.now().UTC().Format(time.RFC3339)
		for _, joke := range pass.NewInsideJokes {
			rel.InsideJokes = append(rel.InsideJokes, InsideJoke{
				Reference: joke.Reference,
				Context:   joke.Context,
				Created:   stamp,
			})
		}
		changed = true
	}
	if len(pass.NewPatterns) > 0 {
		rel.PatternsNoticed = append(rel.PatternsNoticed, pass.NewPatterns...)
		changed = true
	}
	if len(pass.NewHighlights) > 0 {
		date := e.now().UTC().Format("2006-01-02")
		for _, h := range pass.NewHighlights {
			rel.Highlights = append(rel.Highlights, Highlight{
				Moment:       h.Moment,
				Date:         date,
				Significance: h.Significance,
			})
		}
		changed = true
	}

	if !changed {
		return false, nil
	}
	if err := e.codec.SaveRelationship(ctx, chatID, rel); err != nil {
		return false, fmt.Errorf("apply relationship: %w", err)
	}
	return true, nil
}

func (e *Engine) applyPeople(ctx context.Context, chatID string, pass peoplePass) ([]string, error) {
	var updated []string
	var errs []error
	now := e.now().UTC()
	stamp := now.Format(time.RFC3339)
	date := now.Format("2006-01-02")

	for _, p := range pass.People {
		if p.Slug == "" {
			continue
		}
		existing, ok, err := e.codec.LoadPerson(ctx, chatID, p.Slug)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			existing.KeyFacts = append(existing.KeyFacts, p.FactsLearned...)
			existing.NotableConversations = append(existing.NotableConversations, NotableConversation{
				Date:    date,
				Summary: p.Context,
			})
			existing.LastMentioned = stamp
			existing.MentionCount++
			if p.Sentiment != "" && p.Sentiment != "neutral" {
				existing.Sentiment = p.Sentiment
			}
			if err := e.codec.SavePerson(ctx, chatID, existing); err != nil {
				errs = append(errs, err)
				continue
			}
		} else {
			person := PersonMemory{
				SchemaVersion:      SchemaVersion,
				Name:               p.Name,
				Slug:               p.Slug,
				RelationshipToUser: p.RelationshipToUser,
				Sentiment:          p.Sentiment,
				KeyFacts:           p.FactsLearned,
				NotableConversations: []NotableConversation{{
					Date:    date,
					Summary: p.Context,
				}},
				FirstMentioned: stamp,
				LastMentioned:  stamp,
				MentionCount:   1,
			}
			if err := e.codec.SavePerson(ctx, chatID, person); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		updated = append(updated, p.Slug)
	}
	return updated, errors.Join(errs...)
}

func (e *Engine) applySummary(ctx context.Context, chatID string, pass summaryPass, messageCount int) error {
	now := e.now().UTC()
	summary := ConversationSummary{
		ID:              fmt.Sprintf("%s_%d", chatID, now.UnixMilli()),
		Date:            now.Format("2006-01-02"),
		Time:            now.Format("15:04:05"),
		Summary:         pass.Summary.Summary,
		PeopleMentioned: pass.Summary.PeopleMentioned,
		Topics:          pass.Summary.Topics,
		EmotionalTone:   pass.Summary.EmotionalTone,
		Vibe:            pass.Summary.Vibe,
		Notable:         pass.Summary.Notable,
		MessageCount:    messageCount,
	}
	if summary.PeopleMentioned == nil {
		summary.PeopleMentioned = []string{}
	}
	if summary.Topics == nil {
		summary.Topics = []string{}
	}
	if err := e.codec.AppendConversation(ctx, chatID, summary); err != nil {
		return fmt.Errorf("apply summary: %w", err)
	}
	return nil
}

func (e *Engine) applyThreads(ctx context.Context, chatID string, threads ThreadsFile, pass threadPass) (bool, error) {
	changed := false
	for _, t := range pass.NewThreads {
		threads.ActiveThreads = append(threads.ActiveThreads, Thread{
			Topic:         t.Topic,
			Created:       e.now().UTC().Format(time.RFC3339),
			FollowUpAfter: t.FollowUpAfter,
			Prompt:        t.Prompt,
		})
		changed = true
	}
	for _, topic := range pass.ResolvedThreads {
		for i := range threads.ActiveThreads {
			if threads.ActiveThreads[i].Topic == topic {
				threads.ActiveThreads[i].Resolved = true
			}
		}
		changed = true
	}
	for _, u := range pass.UpdatedThreads {
		for i := range threads.ActiveThreads {
			if threads.ActiveThreads[i].Topic == u.Topic {
				threads.ActiveThreads[i].FollowUpAfter = u.NewDate
			}
		}
		changed = true
	}

	if !changed {
		return false, nil
	}

	kept := threads.ActiveThreads[:0]
	for _, t := range threads.ActiveThreads {
		if !t.Resolved {
			kept = append(kept, t)
		}
	}
	threads.ActiveThreads = kept

	if err := e.codec.SaveThreads(ctx, chatID, threads); err != nil {
		return false, fmt.Errorf("apply threads: %w", err)
	}
	return true, nil
}
