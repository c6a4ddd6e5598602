// Package dispatch classifies every inbound message and routes it: bot
// self-messages are dropped, the menu trigger opens a dialog, direct
// commands mutate rules in one shot, dialog replies advance the caller's
// open session, and everything else goes to the forwarding router.
package dispatch

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/relayclaw/relayclaw/pkg/app"
	"github.com/relayclaw/relayclaw/pkg/bus"
	"github.com/relayclaw/relayclaw/pkg/channels"
	"github.com/relayclaw/relayclaw/pkg/forward"
	"github.com/relayclaw/relayclaw/pkg/logger"
	"github.com/relayclaw/relayclaw/pkg/session"
)

// Command tokens. A command token always pre-empts an open dialog.
const (
	cmdMenu   = "+menu"
	cmdAdd    = "+add"
	cmdRemove = "+remove"
	cmdList   = "+list"
	cmdCancel = "+cancel"
)

const menuText = "**Message Forwarding Menu**\n\n" +
	"1. Add forward - Add a new channel forward\n" +
	"2. Remove forward - Remove an existing forward\n" +
	"3. List forwards - Show all active forwards\n\n" +
	"Reply with the number (1-3) to select an option, or +cancel to exit."

const addPromptText = "**Add Forward**\n\n" +
	"Please provide a source channel ID and a destination, separated by a space.\n" +
	"Format: `source_channel_id target_channel_id` or `source_channel_id webhook_url`\n\n" +
	"Messages from the source channel will be forwarded to the destination."

// Dispatcher wires classification to the session tracker, the relay
// service, and the forwarding router.
type Dispatcher struct {
	tracker   *session.Tracker
	relay     *app.RelayService
	router    *forward.Router
	transport channels.Transport
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(tracker *session.Tracker, relay *app.RelayService, router *forward.Router, transport channels.Transport) *Dispatcher {
	return &Dispatcher{tracker: tracker, relay: relay, router: router, transport: transport}
}

// Run consumes the bus until ctx is done. All session and store mutation
// happens on this goroutine, one message at a time.
func (d *Dispatcher) Run(ctx context.Context, mb *bus.MessageBus) {
	logger.InfoC("dispatch", "Dispatcher running")
	for {
		msg, ok := mb.ConsumeInbound(ctx)
		if !ok {
			logger.InfoC("dispatch", "Dispatcher stopped")
			return
		}
		d.Handle(ctx, msg)
	}
}

// Handle classifies and processes one inbound message. Classification
// order: self-message, menu trigger, direct command, dialog reply,
// ordinary message.
func (d *Dispatcher) Handle(ctx context.Context, msg bus.InboundMessage) {
	if msg.FromSelf {
		return
	}

	text := strings.TrimSpace(msg.Content)

	if strings.HasPrefix(text, "+") {
		if d.handleCommand(ctx, msg, text) {
			return
		}
		// Unknown + token: not a command, not a dialog reply. It is
		// forwarded like any ordinary message.
		d.router.Forward(ctx, msg)
		return
	}

	out := d.tracker.Advance(msg.SenderID, text)
	if out.Kind == session.OutcomeNoSession {
		d.router.Forward(ctx, msg)
		return
	}
	d.handleDialog(ctx, msg, out)
}

// ---------------------------------------------------------------------------
// Direct commands
// ---------------------------------------------------------------------------

// handleCommand executes a known command token. Returns false when the
// token is not part of the command grammar.
func (d *Dispatcher) handleCommand(ctx context.Context, msg bus.InboundMessage, text string) bool {
	token, rest, _ := strings.Cut(text, " ")

	switch token {
	case cmdMenu:
		// Exact match only: "+menu foo" is an ordinary message.
		if rest != "" {
			return false
		}
		d.openMenu(ctx, msg)
	case cmdAdd:
		rule, err := session.ParseAddInput(rest)
		if err != nil {
			d.reply(ctx, msg, err.Error())
			return true
		}
		d.reply(ctx, msg, d.relay.AddForward(ctx, rule))
	case cmdRemove:
		index, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			d.reply(ctx, msg, "Usage: +remove <number> — see +list for numbers.")
			return true
		}
		d.reply(ctx, msg, d.relay.RemoveForward(ctx, index))
	case cmdList:
		d.reply(ctx, msg, d.relay.ListForwards(ctx))
	case cmdCancel:
		if d.tracker.End(msg.SenderID) {
			d.reply(ctx, msg, "Dialog cancelled.")
		} else {
			d.reply(ctx, msg, "You have no active dialog.")
		}
	default:
		return false
	}
	return true
}

// openMenu starts a menu dialog for the sender.
func (d *Dispatcher) openMenu(ctx context.Context, msg bus.InboundMessage) {
	_, err := d.tracker.Start(msg.SenderID, msg.Channel)
	if errors.Is(err, session.ErrSessionActive) {
		d.reply(ctx, msg, "You already have an active menu. Please complete or cancel it first.")
		return
	}
	d.reply(ctx, msg, menuText)
}

// ---------------------------------------------------------------------------
// Dialog replies
// ---------------------------------------------------------------------------

func (d *Dispatcher) handleDialog(ctx context.Context, msg bus.InboundMessage, out session.Outcome) {
	switch out.Kind {
	case session.OutcomeRetry, session.OutcomeAbort:
		d.reply(ctx, msg, out.Guidance)

	case session.OutcomeMenuChoice:
		d.handleMenuChoice(ctx, msg, out.Option)

	case session.OutcomeAddRule:
		d.reply(ctx, msg, d.relay.AddForward(ctx, out.Rule))

	case session.OutcomeRemoveIndex:
		// The index was valid against the snapshot; RemoveForward
		// re-checks it against the live store before committing.
		d.reply(ctx, msg, d.relay.RemoveForward(ctx, out.Index))
	}
}

func (d *Dispatcher) handleMenuChoice(ctx context.Context, msg bus.InboundMessage, option session.MenuOption) {
	switch option {
	case session.OptionAdd:
		d.tracker.Transition(msg.SenderID, session.StageAddForward, nil)
		d.reply(ctx, msg, addPromptText)

	case session.OptionRemove:
		text, snapshot, ok := d.relay.RemovePrompt(ctx)
		if !ok {
			d.tracker.End(msg.SenderID)
			d.reply(ctx, msg, text)
			return
		}
		d.tracker.Transition(msg.SenderID, session.StageRemoveForward, snapshot)
		d.reply(ctx, msg, text)

	case session.OptionList:
		d.tracker.End(msg.SenderID)
		d.reply(ctx, msg, d.relay.ListForwards(ctx))
	}
}

// reply sends text back to the channel the triggering message arrived in.
// A failed reply is logged; there is nowhere else to surface it.
func (d *Dispatcher) reply(ctx context.Context, msg bus.InboundMessage, text string) {
	if err := d.transport.Reply(ctx, msg, text); err != nil {
		logger.ErrorCF("dispatch", "Reply failed", map[string]interface{}{
			"channel": msg.Channel,
			"error":   err.Error(),
		})
	}
}
