// Package discord implements the Discord transport on top of discordgo.
package discord

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/relayclaw/relayclaw/pkg/bus"
	"github.com/relayclaw/relayclaw/pkg/channels"
	"github.com/relayclaw/relayclaw/pkg/logger"
	"github.com/relayclaw/relayclaw/pkg/rules"
)

// Transport is a Discord gateway connection publishing inbound messages
// to the bus.
type Transport struct {
	token   string
	session *discordgo.Session
	mb      *bus.MessageBus
}

// New creates a Discord transport. Connect must be called before use.
func New(token string, mb *bus.MessageBus) *Transport {
	return &Transport{token: token, mb: mb}
}

// Name implements channels.Transport.
func (t *Transport) Name() string { return "discord" }

// Connect opens the gateway session and registers the message handler.
func (t *Transport) Connect(ctx context.Context) error {
	session, err := discordgo.New("Bot " + t.token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	session.AddHandler(t.onMessageCreate)
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.InfoCF("discord", "Bot logged in", map[string]interface{}{
			"user": r.User.Username,
		})
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	t.session = session
	return nil
}

// Disconnect closes the gateway session.
func (t *Transport) Disconnect(ctx context.Context) error {
	if t.session == nil {
		return nil
	}
	return t.session.Close()
}

// onMessageCreate normalizes a gateway event and publishes it.
func (t *Transport) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	channelID, err := strconv.ParseInt(m.ChannelID, 10, 64)
	if err != nil {
		logger.WarnCF("discord", "Unparseable channel ID", map[string]interface{}{
			"channel_id": m.ChannelID,
		})
		return
	}

	attachments := make([]string, 0, len(m.Attachments))
	for _, att := range m.Attachments {
		attachments = append(attachments, att.URL)
	}

	t.mb.PublishInbound(bus.InboundMessage{
		Channel:     rules.ChannelID(channelID),
		MessageID:   m.ID,
		SenderID:    m.Author.ID,
		DisplayName: displayName(m),
		Handle:      m.Author.Username,
		Content:     m.Content,
		Attachments: attachments,
		FromSelf:    s.State.User != nil && m.Author.ID == s.State.User.ID,
	})
}

// displayName picks the richest name available: server nick, then global
// display name, then the plain username.
func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// Send posts text to a channel.
func (t *Transport) Send(ctx context.Context, channel rules.ChannelID, text string) error {
	_, err := t.session.ChannelMessageSend(channel.String(), text)
	return err
}

// Reply posts text to the origin channel, referencing the original
// message so the conversation stays threaded.
func (t *Transport) Reply(ctx context.Context, msg bus.InboundMessage, text string) error {
	_, err := t.session.ChannelMessageSendReply(msg.Channel.String(), text, &discordgo.MessageReference{
		MessageID: msg.MessageID,
		ChannelID: msg.Channel.String(),
	})
	return err
}

// ResolveChannel looks a channel up, preferring the gateway state cache
// and falling back to the REST API.
func (t *Transport) ResolveChannel(ctx context.Context, channel rules.ChannelID) (channels.ChannelInfo, error) {
	ch, err := t.session.State.Channel(channel.String())
	if err != nil {
		ch, err = t.session.Channel(channel.String())
		if err != nil {
			return channels.ChannelInfo{}, fmt.Errorf("%w: %s: %v", channels.ErrChannelNotFound, channel, err)
		}
	}

	name := ch.Name
	if name == "" && ch.Type == discordgo.ChannelTypeDM {
		name = "DM"
	}
	return channels.ChannelInfo{
		ID:   channel,
		Name: name,
		Kind: kindName(ch.Type),
	}, nil
}

func kindName(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeDM:
		return "dm"
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeGuildNews:
		return "news"
	default:
		return "other"
	}
}

// Compile-time verification
var _ channels.Transport = (*Transport)(nil)
