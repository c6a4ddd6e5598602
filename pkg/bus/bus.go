// Package bus funnels every transport's inbound messages into a single
// stream. The dispatcher is the only consumer, so all state-mutating
// message handling is naturally serialized without per-structure locking.
package bus

import (
	"context"
	"sync"
)

// MessageBus carries inbound messages from transports to the dispatcher.
type MessageBus struct {
	inbound   chan InboundMessage
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewMessageBus creates a bus with a bounded inbound buffer.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound: make(chan InboundMessage, 100),
	}
}

// PublishInbound enqueues a message. Transports call this from their own
// callback goroutines; publishing never blocks them. When the buffer is
// full the oldest queued message is dropped; forwarding is best-effort
// and a stalled consumer must not wedge the transport.
func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.mu.RLock()
	if mb.closed {
		mb.mu.RUnlock()
		return
	}
	mb.mu.RUnlock()

	select {
	case mb.inbound <- msg:
	default:
		// Channel full, drop oldest and retry
		select {
		case <-mb.inbound:
		default:
		}
		select {
		case mb.inbound <- msg:
		default:
		}
	}
}

// ConsumeInbound blocks until a message is available or ctx is done.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-mb.inbound:
		return msg, ok
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// Close shuts the bus down. Publishes after Close are dropped.
func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		mb.mu.Lock()
		mb.closed = true
		mb.mu.Unlock()
		close(mb.inbound)
	})
}
