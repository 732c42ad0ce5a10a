package bus

import "context"

// MessageBus carries traffic between the channel layer and the
// orchestrator. Outbound delivery is fan-out to a single subscriber
// (the Telegram channel); failures are logged by the subscriber and
// never retried here.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage
	Account  chan AccountEvent

	deliver func(OutboundMessage)
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &MessageBus{
		Inbound:  make(chan InboundMessage, bufSize),
		Outbound: make(chan OutboundMessage, bufSize),
		Account:  make(chan AccountEvent, bufSize),
	}
}

// SubscribeOutbound registers the delivery function. Last registration
// wins; there is a single conversational transport.
func (b *MessageBus) SubscribeOutbound(fn func(OutboundMessage)) {
	b.deliver = fn
}

// DispatchOutbound pumps outbound messages to the subscriber until the
// context is cancelled.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			if b.deliver != nil {
				b.deliver(msg)
			}
		case <-ctx.Done():
			return
		}
	}
}
