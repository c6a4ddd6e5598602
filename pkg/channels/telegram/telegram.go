// Package telegram implements the Telegram transport on top of telego.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/relayclaw/relayclaw/pkg/bus"
	"github.com/relayclaw/relayclaw/pkg/channels"
	"github.com/relayclaw/relayclaw/pkg/logger"
	"github.com/relayclaw/relayclaw/pkg/rules"
)

// Transport is a Telegram long-polling connection publishing inbound
// messages to the bus.
type Transport struct {
	token  string
	bot    *telego.Bot
	selfID int64
	mb     *bus.MessageBus
	cancel context.CancelFunc
}

// New creates a Telegram transport. Connect must be called before use.
func New(token string, mb *bus.MessageBus) *Transport {
	return &Transport{token: token, mb: mb}
}

// Name implements channels.Transport.
func (t *Transport) Name() string { return "telegram" }

// Connect authenticates and starts the long-polling loop.
func (t *Transport) Connect(ctx context.Context) error {
	bot, err := telego.NewBot(t.token, telego.WithDiscardLogger())
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	t.bot = bot
	t.selfID = me.ID
	logger.InfoCF("telegram", "Bot logged in", map[string]interface{}{
		"user": me.Username,
	})

	pollCtx, cancel := context.WithCancel(context.Background())
	updates, err := bot.UpdatesViaLongPolling(pollCtx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("telegram long polling: %w", err)
	}
	t.cancel = cancel

	go func() {
		for update := range updates {
			if update.Message != nil {
				t.publish(pollCtx, update.Message)
			}
		}
	}()
	return nil
}

// Disconnect stops the long-polling loop.
func (t *Transport) Disconnect(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// publish normalizes a Telegram message and publishes it to the bus.
func (t *Transport) publish(ctx context.Context, m *telego.Message) {
	if m.From == nil {
		return
	}

	body := m.Text
	if body == "" {
		body = m.Caption
	}

	t.mb.PublishInbound(bus.InboundMessage{
		Channel:     rules.ChannelID(m.Chat.ID),
		MessageID:   strconv.Itoa(m.MessageID),
		SenderID:    strconv.FormatInt(m.From.ID, 10),
		DisplayName: displayName(m.From),
		Handle:      handle(m.From),
		Content:     body,
		Attachments: t.attachmentURLs(ctx, m),
		FromSelf:    m.From.ID == t.selfID,
	})
}

func displayName(u *telego.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = handle(u)
	}
	return name
}

func handle(u *telego.User) string {
	if u.Username != "" {
		return u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

// attachmentURLs resolves message media to downloadable URLs. Telegram
// hands out file IDs, not URLs, so each attachment costs a getFile call.
func (t *Transport) attachmentURLs(ctx context.Context, m *telego.Message) []string {
	var fileIDs []string
	if m.Document != nil {
		fileIDs = append(fileIDs, m.Document.FileID)
	}
	if len(m.Photo) > 0 {
		// Photo sizes are ordered smallest to largest; take the largest.
		fileIDs = append(fileIDs, m.Photo[len(m.Photo)-1].FileID)
	}

	var urls []string
	for _, id := range fileIDs {
		file, err := t.bot.GetFile(ctx, &telego.GetFileParams{FileID: id})
		if err != nil {
			logger.WarnCF("telegram", "Cannot resolve attachment", map[string]interface{}{
				"file_id": id,
				"error":   err.Error(),
			})
			continue
		}
		urls = append(urls, t.bot.FileDownloadURL(file.FilePath))
	}
	return urls
}

// Send posts text to a chat.
func (t *Transport) Send(ctx context.Context, channel rules.ChannelID, text string) error {
	_, err := t.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: int64(channel)},
		Text:   text,
	})
	return err
}

// Reply posts text to the origin chat, referencing the original message.
func (t *Transport) Reply(ctx context.Context, msg bus.InboundMessage, text string) error {
	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: int64(msg.Channel)},
		Text:   text,
	}
	if id, err := strconv.Atoi(msg.MessageID); err == nil {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: id}
	}
	_, err := t.bot.SendMessage(ctx, params)
	return err
}

// ResolveChannel looks a chat up via getChat.
func (t *Transport) ResolveChannel(ctx context.Context, channel rules.ChannelID) (channels.ChannelInfo, error) {
	chat, err := t.bot.GetChat(ctx, &telego.GetChatParams{
		ChatID: telego.ChatID{ID: int64(channel)},
	})
	if err != nil {
		return channels.ChannelInfo{}, fmt.Errorf("%w: %s: %v", channels.ErrChannelNotFound, channel, err)
	}

	name := chat.Title
	if name == "" {
		name = chat.Username
	}
	if name == "" {
		name = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}
	return channels.ChannelInfo{
		ID:   channel,
		Name: name,
		Kind: chat.Type,
	}, nil
}

// Compile-time verification
var _ channels.Transport = (*Transport)(nil)
