package bus

import "time"

// StartSentinel is the distinguished inbound content that selects the
// welcome path instead of ordinary message handling.
const StartSentinel = "__START__"

type Identity struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
}

type InboundMessage struct {
	ChatID    string
	Content   string
	From      Identity
	RefCode   string
	Timestamp time.Time
}

func (m *InboundMessage) IsStart() bool {
	return m.Content == StartSentinel
}

type OutboundMessage struct {
	ChatID  string
	Content string
}

// AccountEvent arrives out of band when an external payment or
// account-link flow completes for a chat.
type AccountEvent struct {
	ChatID    string
	AccountID string
	Email     string
}
