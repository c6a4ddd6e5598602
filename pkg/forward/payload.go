// Package forward matches inbound messages against the rule set and
// delivers them to each matching destination. Delivery is best-effort,
// at most once per rule per message, and never reports back into the
// source channel.
package forward

import (
	"fmt"
	"strings"

	"github.com/relayclaw/relayclaw/pkg/bus"
)

// Payload is the transport-neutral shape of one forwarded message. Built
// fresh per message, never stored.
type Payload struct {
	DisplayName string
	Handle      string
	Body        string
	Attachments []string
}

// BuildPayload extracts the forwarded fields from an inbound message.
// The body is carried unmodified; attachment order is preserved.
func BuildPayload(msg bus.InboundMessage) Payload {
	return Payload{
		DisplayName: msg.DisplayName,
		Handle:      msg.Handle,
		Body:        msg.Content,
		Attachments: msg.Attachments,
	}
}

// ChannelText renders the single-message form posted to a destination
// channel: a header line followed by one attachment URL per line.
func (p Payload) ChannelText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (@%s): %s", p.DisplayName, p.Handle, p.Body)
	for _, att := range p.Attachments {
		b.WriteByte('\n')
		b.WriteString(att)
	}
	return b.String()
}

// WebhookContent renders the content field of a webhook payload: the body
// with attachments appended line by line, or the attachments alone when
// the body is empty.
func (p Payload) WebhookContent() string {
	if p.Body == "" {
		return strings.Join(p.Attachments, "\n")
	}
	if len(p.Attachments) == 0 {
		return p.Body
	}
	return p.Body + "\n" + strings.Join(p.Attachments, "\n")
}
