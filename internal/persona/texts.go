package persona

import "fmt"

// WelcomeKind selects the opening fragment for the start sentinel.
type WelcomeKind int

const (
	WelcomeFirstTime WelcomeKind = iota
	WelcomeReturning
	WelcomeSubscriber
)

// WelcomePrompt renders the system-prompt fragment for a welcome
// message. The reply itself still comes from the model.
func WelcomePrompt(userName string, kind WelcomeKind) string {
	name := userName
	if name == "" {
		name = "Someone"
	}
	switch kind {
	case WelcomeFirstTime:
		return fmt.Sprintf(`
## FIRST MEETING
%s just clicked your link. First time meeting you.

Send an opening that:
- Introduces yourself naturally
- Shows your personality - warm, real, approachable
- Opens conversation without pressure
- Is 2-3 sentences max

Like:
"hey. Sean. what's going on"
"Sean here. what brought you my way"

NOT like:
"Welcome! I'm so excited to help you transform your relationships!"
"Hello! I'm Sean Brennan, relationship expert!"
`, name)
	case WelcomeSubscriber:
		return fmt.Sprintf(`
## SUBSCRIBER BACK
%s is back. They're a paying member, you know each other well.

Send a casual return message:
- Like picking a conversation back up with a friend
- Reference something from past conversations if relevant
- Easy, no ceremony

1-2 sentences.
`, name)
	default:
		return fmt.Sprintf(`
## RETURNING USER
%s is back.

Send a casual return message:
- Acknowledge you remember them
- Reference something from past conversations if relevant
- Warm and easy

1-2 sentences. Like texting a friend.
`, name)
	}
}

// WelcomeUserTurn is the synthetic user turn sent with a welcome
// prompt.
const WelcomeUserTurn = "[SYSTEM: User just started a chat. Send your opening message.]"

// OutreachUserTurn is the synthetic user turn for proactive check-ins.
const OutreachUserTurn = "[SYSTEM: Generate proactive outreach]"

// OutreachPrompt renders the check-in instruction, seeded by the best
// available hook.
func OutreachPrompt(userName, seed string) string {
	name := userName
	if name == "" {
		name = "them"
	}
	if seed != "" {
		return fmt.Sprintf("Based on this: %q, send a brief, natural check-in to %s.", seed, name)
	}
	return fmt.Sprintf("Send a brief, natural check-in message to %s.", name)
}

// Fixed conversational texts for the trial and payment states. These
// are deliberate literals, not completions: the gating flow must never
// depend on the model.
func TrialExhausted(firstName string) string {
	return fmt.Sprintf("hey %s - that's the end of the free messages. if you want to keep going, drop me the email you want on your account and I'll get you set up.", firstName)
}

const EmailReprompt = "that doesn't look like an email. send me the address you want on the account."

const PaymentPending = "you're all set on my end - just waiting on the payment link to clear. check your email."

func Activated(firstName string) string {
	return fmt.Sprintf("good to go, %s. we're back on. so where were we", firstName)
}

// Apology is the generic failure reply when a turn blows up.
const Apology = "ah, something glitched on my end. say that again?"
