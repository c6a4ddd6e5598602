package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/relayclaw/relayclaw/pkg/channels"
	"github.com/relayclaw/relayclaw/pkg/rules"
)

// Sink delivers a payload to one rule's destination. Implementations
// return an error for the router to log; they never retry.
type Sink interface {
	Deliver(ctx context.Context, rule rules.ForwardRule, payload Payload) error
}

// ---------------------------------------------------------------------------
// Channel sink
// ---------------------------------------------------------------------------

// ChannelSink posts forwarded messages to a destination channel through
// the transport.
type ChannelSink struct {
	transport channels.Transport
}

// NewChannelSink creates a sink over the given transport.
func NewChannelSink(transport channels.Transport) *ChannelSink {
	return &ChannelSink{transport: transport}
}

// Deliver posts the rendered message to the rule's target channel.
func (s *ChannelSink) Deliver(ctx context.Context, rule rules.ForwardRule, payload Payload) error {
	if err := s.transport.Send(ctx, rule.Target, payload.ChannelText()); err != nil {
		return fmt.Errorf("send to channel %s: %w", rule.Target, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Webhook sink
// ---------------------------------------------------------------------------

// webhookBody is the JSON document POSTed to webhook destinations.
type webhookBody struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

// WebhookSink POSTs forwarded messages to an external HTTP endpoint.
type WebhookSink struct {
	client *http.Client
}

// DefaultWebhookTimeout bounds a single webhook POST so a dead endpoint
// cannot stall delivery indefinitely.
const DefaultWebhookTimeout = 10 * time.Second

// NewWebhookSink creates a sink with the default timeout. A nil client
// gets a fresh one.
func NewWebhookSink(client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: DefaultWebhookTimeout}
	}
	return &WebhookSink{client: client}
}

// Deliver POSTs {content, username} to the rule's webhook URL. Any status
// other than 200 or 204 is a delivery error.
func (s *WebhookSink) Deliver(ctx context.Context, rule rules.ForwardRule, payload Payload) error {
	body, err := json.Marshal(webhookBody{
		Content:  payload.WebhookContent(),
		Username: payload.DisplayName,
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rule.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
