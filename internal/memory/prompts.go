package memory

const factExtractionPrompt = `You are extracting facts from a conversation for memory storage.

CURRENT USER PROFILE:
%s

CONVERSATION:
%s

Extract any NEW facts about the user. Only include things explicitly stated or strongly implied. Do not assume or infer beyond what's said.

Return JSON only:
{
  "updates": {
    "name": "if mentioned and different from current",
    "age": number or null,
    "location": "if mentioned",
    "job": { "title": "", "field": "", "feelings": "" },
    "relationship_status": "if mentioned",
    "living_situation": "if mentioned",
    "new_interests": ["newly mentioned interests"],
    "new_struggles": ["newly mentioned challenges"],
    "new_joys": ["things that made them happy"],
    "new_goals": ["aspirations mentioned"],
    "new_quirks": ["personality traits shown"],
    "communication_style": "if clear pattern emerges"
  }
}

Only include fields with actual new information. If nothing new: { "updates": {} }`

const relationshipExtractionPrompt = `You are updating the relationship profile between %s and this user.

CURRENT RELATIONSHIP STATE:
%s

CONVERSATION:
%s

Look for:
- Trust signals (opening up, vulnerability, asking personal questions)
- Inside jokes forming or being referenced
- Patterns in when/how they reach out
- Meaningful moments worth remembering
- Phase indicators (are they becoming closer, drifting, etc.)

Return JSON only:
{
  "phase_change": "new" | "building" | "close" | "drifting" | null,
  "vibe_update": "updated vibe description or null",
  "new_trust_indicators": ["moments of vulnerability or trust"],
  "new_inside_jokes": [{ "reference": "short label", "context": "what it means" }],
  "new_patterns": ["patterns noticed"],
  "new_highlights": [{ "moment": "what happened", "significance": "low|medium|high" }]
}

If nothing notable: { "phase_change": null, "vibe_update": null, "new_trust_indicators": [], "new_inside_jokes": [], "new_patterns": [], "new_highlights": [] }`

const peopleExtractionPrompt = `You are extracting information about people mentioned in a conversation.

KNOWN PEOPLE (slugs):
%s

CONVERSATION:
%s

For each person mentioned:
- Are they new or already known?
- What's their relationship to the user?
- What was said about them?
- How does the user feel about them?

Create slugs in format: "name-relationship" (e.g., "mike-boss", "sarah-friend", "mom")

Return JSON only:
{
  "people": [
    {
      "name": "the name used",
      "slug": "lowercase-slug",
      "is_new": true | false,
      "relationship_to_user": "boss, mom, friend, ex, coworker, etc",
      "sentiment": "positive" | "negative" | "neutral" | "mixed",
      "facts_learned": ["facts from this conversation"],
      "context": "one line about what was said"
    }
  ]
}

If no people mentioned: { "people": [] }`

const summaryExtractionPrompt = `You are creating a conversation summary for long-term memory storage.

CONVERSATION:
%s

Create a summary that captures what matters. Another AI will read this months later to remember what happened.

Return JSON only:
{
  "should_store": true | false,
  "summary": {
    "summary": "2-3 sentence summary of what happened",
    "people_mentioned": ["slugs of people mentioned"],
    "topics": ["relevant topic tags"],
    "emotional_tone": "primary emotional tone",
    "vibe": "playful | deep | heavy | casual | venting | celebrating",
    "notable": "what makes this worth remembering, or null"
  }
}

Guidelines:
- should_store = false for trivial exchanges ("hey" "hey" "nm" "same")
- should_store = true for anything with substance
- Be concise but capture the essence
- Include emotional context, how did they seem?`

const threadExtractionPrompt = `You are detecting follow-up opportunities from a conversation.

CURRENT ACTIVE THREADS:
%s

CONVERSATION:
%s

Look for things worth following up on:
- Events happening soon ("interview Thursday", "party this weekend")
- Decisions pending ("thinking about quitting", "might try X")
- Situations unresolved ("waiting to hear back")
- Emotional states to check on ("been really stressed about...")

Return JSON only:
{
  "new_threads": [
    {
      "topic": "short description",
      "follow_up_after": "YYYY-MM-DD",
      "prompt": "what %s should ask about"
    }
  ],
  "resolved_threads": ["topics that are now resolved"],
  "updated_threads": [
    {
      "topic": "existing topic",
      "new_date": "YYYY-MM-DD",
      "reason": "why date changed"
    }
  ]
}

If nothing to track: { "new_threads": [], "resolved_threads": [], "updated_threads": [] }`
