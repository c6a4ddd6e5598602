package bus

import "github.com/relayclaw/relayclaw/pkg/rules"

// InboundMessage is a message received from the chat platform, normalized
// to what classification and forwarding need. Transports construct these;
// the dispatcher is the single consumer.
type InboundMessage struct {
	Channel     rules.ChannelID `json:"channel"`
	MessageID   string          `json:"message_id"`
	SenderID    string          `json:"sender_id"`
	DisplayName string          `json:"display_name"`
	Handle      string          `json:"handle"`
	Content     string          `json:"content"`
	Attachments []string        `json:"attachments,omitempty"`

	// FromSelf marks messages authored by the bot account itself.
	FromSelf bool `json:"from_self"`
}
