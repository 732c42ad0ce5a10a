package persona

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Context carries everything the prompt builder needs for one turn.
// The builder is a pure function of this context plus the random
// source, which keeps the rendered prompt reproducible under test.
type Context struct {
	Message      string
	Now          time.Time
	Phase        string
	UserName     string
	MessageCount int
	MemoryDigest string
}

// DetectInvestment classifies how much effort the user is putting in.
func DetectInvestment(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))
	length := len(message)

	lowEffort := []string{"nm", "not much", "idk", "whatever", "same", "k", "ok", "lol",
		"haha", "nice", "cool", "yeah", "nah", "sup", "hey", "hi", "chillin"}
	highEffort := []string{"been thinking", "can i be honest", "real talk", "actually",
		"i need", "help me", "struggling", "finally", "been meaning to",
		"want to tell you", "my part", "i realize"}

	for _, p := range lowEffort {
		if lower == p || lower == p+"?" {
			return "minimal"
		}
	}
	if length < 20 {
		return "minimal"
	}
	if length > 80 {
		return "full"
	}
	for _, p := range highEffort {
		if strings.Contains(lower, p) {
			return "full"
		}
	}
	return "medium"
}

// DetectTopics returns the guidance for the highest-weighted matching
// topics, at most two, heaviest first.
func DetectTopics(message string) []string {
	lower := strings.ToLower(message)
	var matched []topicEntry
	for _, topic := range topics {
		for _, trigger := range topic.triggers {
			if strings.Contains(lower, trigger) {
				matched = append(matched, topic)
				break
			}
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].weight > matched[j].weight
	})
	if len(matched) > 2 {
		matched = matched[:2]
	}
	guidance := make([]string, len(matched))
	for i, m := range matched {
		guidance[i] = m.guidance
	}
	return guidance
}

func detectAdjustment(message string, entries []adjustmentEntry) string {
	lower := strings.ToLower(message)
	for _, e := range entries {
		for _, trigger := range e.triggers {
			if strings.Contains(lower, trigger) {
				return e.adjustment
			}
		}
	}
	return ""
}

// DetectEmotion returns a tone adjustment, or "" when nothing matches.
func DetectEmotion(message string) string {
	return detectAdjustment(message, emotions)
}

// DetectFlow returns a flow adjustment, or "" when nothing matches.
func DetectFlow(message string) string {
	return detectAdjustment(message, flows)
}

// BuildSystemPrompt assembles the full system prompt for one turn:
// base character, user context, current activity, relationship phase,
// investment level, then topic/emotion/flow fragments.
func BuildSystemPrompt(ctx Context, rng *rand.Rand) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if ctx.UserName != "" || ctx.MemoryDigest != "" {
		b.WriteString("\n\n## USER CONTEXT")
		if ctx.UserName != "" {
			fmt.Fprintf(&b, "\nName: %s", ctx.UserName)
		}
		if ctx.MessageCount > 0 {
			fmt.Fprintf(&b, "\nMessages exchanged: %d", ctx.MessageCount)
		}
		if ctx.MemoryDigest != "" {
			b.WriteString(ctx.MemoryDigest)
		}
	}

	fmt.Fprintf(&b, "\n\n## RIGHT NOW\n%s", generateActivity(rng, timeKey(ctx.Now)))

	if phase, ok := phases[ctx.Phase]; ok {
		b.WriteString("\n\n")
		b.WriteString(phase)
	} else {
		b.WriteString("\n\n")
		b.WriteString(phases["new"])
	}

	b.WriteString("\n\n")
	b.WriteString(investmentLevels[DetectInvestment(ctx.Message)])

	for _, guidance := range DetectTopics(ctx.Message) {
		b.WriteString("\n\n")
		b.WriteString(guidance)
	}
	if emotion := DetectEmotion(ctx.Message); emotion != "" {
		b.WriteString("\n\n")
		b.WriteString(emotion)
	}
	if flow := DetectFlow(ctx.Message); flow != "" {
		b.WriteString("\n\n")
		b.WriteString(flow)
	}

	return b.String()
}
