package forward

import (
	"context"
	"sync"

	"github.com/relayclaw/relayclaw/pkg/bus"
	"github.com/relayclaw/relayclaw/pkg/logger"
	"github.com/relayclaw/relayclaw/pkg/rules"
)

// Router fans one inbound message out to every matching rule's sink.
type Router struct {
	store    *rules.Store
	sinks    map[rules.DestinationKind]Sink
	mu       sync.Mutex
	forwards int64 // delivery attempts, for the shutdown summary
}

// NewRouter creates a router over the rule store and one sink per
// destination kind.
func NewRouter(store *rules.Store, channelSink, webhookSink Sink) *Router {
	sinks := make(map[rules.DestinationKind]Sink, 2)
	if channelSink != nil {
		sinks[rules.KindChannel] = channelSink
	}
	if webhookSink != nil {
		sinks[rules.KindWebhook] = webhookSink
	}
	return &Router{store: store, sinks: sinks}
}

// Forward matches the message's origin channel against a freshly loaded
// rule set and dispatches delivery per matching rule. Rules deliver
// concurrently and independently: one failing destination never blocks
// the others. Errors are logged, never returned; forwarding must not
// visibly fail back into the source channel. Returns the number of
// delivery attempts.
func (r *Router) Forward(ctx context.Context, msg bus.InboundMessage) int {
	set, err := r.store.Load()
	if err != nil {
		logger.ErrorCF("forward", "Cannot load rules, message not forwarded", map[string]interface{}{
			"channel": msg.Channel,
			"error":   err.Error(),
		})
		return 0
	}

	matched := set.Match(msg.Channel)
	if len(matched) == 0 {
		return 0
	}

	payload := BuildPayload(msg)

	// Rules with no sink for their kind are skipped, not attempted.
	attempts := 0
	var wg sync.WaitGroup
	for _, rule := range matched {
		sink, ok := r.sinks[rule.Kind]
		if !ok {
			logger.WarnCF("forward", "No sink for destination kind", map[string]interface{}{
				"kind": string(rule.Kind),
			})
			continue
		}

		attempts++
		wg.Add(1)
		go func(rule rules.ForwardRule) {
			defer wg.Done()
			if err := sink.Deliver(ctx, rule, payload); err != nil {
				logger.ErrorCF("forward", "Delivery failed", map[string]interface{}{
					"source":      rule.Source,
					"kind":        string(rule.Kind),
					"destination": rule.Destination(),
					"error":       err.Error(),
				})
				return
			}
			logger.DebugCF("forward", "Delivered", map[string]interface{}{
				"source":      rule.Source,
				"destination": rule.Destination(),
			})
		}(rule)
	}
	wg.Wait()

	r.mu.Lock()
	r.forwards += int64(attempts)
	r.mu.Unlock()
	return attempts
}

// DeliveryAttempts returns the total delivery attempts since start.
func (r *Router) DeliveryAttempts() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forwards
}
