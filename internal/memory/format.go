package memory

import (
	"fmt"
	"strings"
	"time"
)

// FormatForPrompt renders the hot snapshot as a compact digest for
// system-prompt injection. Section order is fixed so prompt caching
// stays stable across turns; empty sections are omitted entirely.
func FormatForPrompt(hot HotMemory, now time.Time) string {
	var b strings.Builder

	core := hot.Core
	if core.Name != "" || core.Location != "" || core.Job.Title != "" ||
		len(core.Struggles) > 0 || len(core.Joys) > 0 {
		b.WriteString("\n\nTHIS PERSON:")
		if core.Name != "" {
			fmt.Fprintf(&b, " %s.", core.Name)
		}
		if core.Location != "" {
			fmt.Fprintf(&b, " %s.", core.Location)
		}
		if core.Job.Title != "" {
			fmt.Fprintf(&b, " Works as %s", core.Job.Title)
			if core.Job.Feelings != "" {
				fmt.Fprintf(&b, " (%s)", core.Job.Feelings)
			}
			b.WriteString(".")
		}
		if len(core.Struggles) > 0 {
			fmt.Fprintf(&b, " Dealing with: %s.", strings.Join(head(core.Struggles, 3), ", "))
		}
		if len(core.Joys) > 0 {
			fmt.Fprintf(&b, " Finds joy in: %s.", strings.Join(head(core.Joys, 3), ", "))
		}
		if len(core.Interests) > 0 {
			fmt.Fprintf(&b, " Into: %s.", strings.Join(head(core.Interests, 3), ", "))
		}
	}

	rel := hot.Relationship
	if len(rel.InsideJokes) > 0 || len(rel.PatternsNoticed) > 0 {
		b.WriteString("\n\nYOUR HISTORY:")
		if len(rel.InsideJokes) > 0 {
			quoted := make([]string, len(rel.InsideJokes))
			for i, joke := range rel.InsideJokes {
				quoted[i] = fmt.Sprintf("%q", joke.Reference)
			}
			fmt.Fprintf(&b, " Inside jokes: %s.", strings.Join(quoted, ", "))
		}
		if len(rel.PatternsNoticed) > 0 {
			fmt.Fprintf(&b, " You've noticed: %s.", strings.Join(head(rel.PatternsNoticed, 2), "; "))
		}
	}

	if len(hot.RecentConversations) > 0 {
		b.WriteString("\n\nPAST CONVERSATIONS (reference only if they bring it up):")
		for _, conv := range hot.RecentConversations {
			fmt.Fprintf(&b, "\n- %s: %s", conv.Date, conv.Summary)
			if conv.Notable != "" {
				fmt.Fprintf(&b, " [%s]", conv.Notable)
			}
		}
	}

	var due []Thread
	for _, thread := range hot.Threads.ActiveThreads {
		if thread.Due(now) {
			due = append(due, thread)
		}
	}
	if len(due) > 0 {
		b.WriteString("\n\nMAYBE ASK ABOUT:")
		for _, thread := range due[:min(2, len(due))] {
			fmt.Fprintf(&b, " %s", thread.Prompt)
		}
	}

	return b.String()
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
