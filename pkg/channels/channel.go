// Package channels defines the transport abstraction the relay core talks
// through. Concrete platforms live in subpackages (discord, telegram);
// the core never imports a platform SDK directly.
package channels

import (
	"context"
	"errors"

	"github.com/relayclaw/relayclaw/pkg/bus"
	"github.com/relayclaw/relayclaw/pkg/rules"
)

// ErrChannelNotFound means a channel ID does not exist on the platform or
// the bot account has no access to it.
var ErrChannelNotFound = errors.New("channel not found")

// ChannelInfo describes a resolved channel.
type ChannelInfo struct {
	ID   rules.ChannelID
	Name string
	Kind string // platform-specific: "text", "dm", "group", ...
}

// Transport is a connection to one chat platform. Implementations publish
// every received message to the bus handed to them at construction and
// must set InboundMessage.FromSelf on their own account's messages.
type Transport interface {
	// Name identifies the platform ("discord", "telegram") for logging.
	Name() string

	// Connect opens the platform session and starts delivering inbound
	// messages. It returns once the session is established.
	Connect(ctx context.Context) error

	// Disconnect closes the platform session.
	Disconnect(ctx context.Context) error

	// Send posts text to a channel.
	Send(ctx context.Context, channel rules.ChannelID, text string) error

	// Reply posts text to the channel a message arrived in, referencing
	// the original message where the platform supports it.
	Reply(ctx context.Context, msg bus.InboundMessage, text string) error

	// ResolveChannel looks a channel up. It returns an error wrapping
	// ErrChannelNotFound when the channel does not exist or is
	// inaccessible.
	ResolveChannel(ctx context.Context, channel rules.ChannelID) (ChannelInfo, error)
}
