// Package app provides the relay application service: the configuration
// use cases (add, remove, list) shared by the menu dialog and the direct
// command path. The service owns the user-facing reply texts; callers
// just send whatever string comes back to the origin channel.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/relayclaw/relayclaw/pkg/channels"
	"github.com/relayclaw/relayclaw/pkg/logger"
	"github.com/relayclaw/relayclaw/pkg/rules"
)

// RelayService orchestrates rule-store mutations with channel resolution
// and renders the outcome for the initiating user.
type RelayService struct {
	store     *rules.Store
	transport channels.Transport
}

// NewRelayService creates the service.
func NewRelayService(store *rules.Store, transport channels.Transport) *RelayService {
	return &RelayService{store: store, transport: transport}
}

// ---------------------------------------------------------------------------
// Use cases
// ---------------------------------------------------------------------------

// AddForward verifies the rule's channels, commits it, and renders the
// outcome. Configuration errors are recovered here and reported as reply
// text; nothing is committed when verification or persistence fails.
func (s *RelayService) AddForward(ctx context.Context, rule rules.ForwardRule) string {
	source, err := s.transport.ResolveChannel(ctx, rule.Source)
	if errors.Is(err, channels.ErrChannelNotFound) {
		return fmt.Sprintf("Source channel %s not found or bot doesn't have access.", rule.Source)
	}
	if err != nil {
		logger.ErrorCF("relay", "Source resolution failed", map[string]interface{}{"error": err.Error()})
		return fmt.Sprintf("Could not verify channel %s, please try again.", rule.Source)
	}

	var target channels.ChannelInfo
	if rule.Kind == rules.KindChannel {
		target, err = s.transport.ResolveChannel(ctx, rule.Target)
		if errors.Is(err, channels.ErrChannelNotFound) {
			return fmt.Sprintf("Target channel %s not found or bot doesn't have access.", rule.Target)
		}
		if err != nil {
			logger.ErrorCF("relay", "Target resolution failed", map[string]interface{}{"error": err.Error()})
			return fmt.Sprintf("Could not verify channel %s, please try again.", rule.Target)
		}
	}

	if rule.Kind == rules.KindChannel && rule.Source == rule.Target {
		// Known gap: self-loops are accepted and can re-forward their own
		// output. Flagged at add time so the operator sees what they did.
		logger.WarnCF("relay", "Self-loop forward added", map[string]interface{}{
			"channel": rule.Source,
		})
	}

	if err := s.store.Add(rule); err != nil {
		switch {
		case errors.Is(err, rules.ErrDuplicateRule):
			return "This forward already exists!"
		case errors.Is(err, rules.ErrStorageUnavailable):
			logger.ErrorCF("relay", "Add not committed", map[string]interface{}{"error": err.Error()})
			return "Could not save the forward. Nothing was changed, please try again."
		default:
			logger.ErrorCF("relay", "Add failed", map[string]interface{}{"error": err.Error()})
			return fmt.Sprintf("Error adding forward: %v", err)
		}
	}

	logger.InfoCF("relay", "Forward added", map[string]interface{}{
		"source":      rule.Source,
		"kind":        string(rule.Kind),
		"destination": rule.Destination(),
	})

	if rule.Kind == rules.KindWebhook {
		return fmt.Sprintf("✅ Forward added successfully!\nSource: %s (%s)\nTarget: webhook %s",
			source.Name, rule.Source, rule.Webhook)
	}
	return fmt.Sprintf("✅ Forward added successfully!\nSource: %s (%s)\nTarget: %s (%s)",
		source.Name, rule.Source, target.Name, rule.Target)
}

// RemoveForward removes the rule at the given 1-based index. The store
// re-validates the index against the live set, so a listing that went
// stale between prompt and reply yields a clean out-of-range message
// instead of removing the wrong rule.
func (s *RelayService) RemoveForward(ctx context.Context, index int) string {
	removed, err := s.store.RemoveAt(index)
	if err != nil {
		switch {
		case errors.Is(err, rules.ErrIndexOutOfRange):
			return "That forward no longer exists. Use +list to see the current forwards."
		case errors.Is(err, rules.ErrStorageUnavailable):
			logger.ErrorCF("relay", "Remove not committed", map[string]interface{}{"error": err.Error()})
			return "Could not save the change. Nothing was removed, please try again."
		default:
			logger.ErrorCF("relay", "Remove failed", map[string]interface{}{"error": err.Error()})
			return fmt.Sprintf("Error removing forward: %v", err)
		}
	}

	logger.InfoCF("relay", "Forward removed", map[string]interface{}{
		"source":      removed.Source,
		"destination": removed.Destination(),
	})
	return fmt.Sprintf("✅ Removed forward: %s → %s",
		s.channelName(ctx, removed.Source), s.destinationName(ctx, removed))
}

// ListForwards renders the numbered rule list.
func (s *RelayService) ListForwards(ctx context.Context) string {
	set, err := s.store.Load()
	if err != nil {
		logger.ErrorCF("relay", "List failed", map[string]interface{}{"error": err.Error()})
		return "Could not read the forward list, please try again."
	}
	if len(set) == 0 {
		return "No active forwards."
	}
	return s.renderList(ctx, set)
}

// RemovePrompt renders the numbered list together with the snapshot the
// removal reply must be validated against. ok is false when there is
// nothing to remove.
func (s *RelayService) RemovePrompt(ctx context.Context) (text string, snapshot rules.RuleSet, ok bool) {
	set, err := s.store.Load()
	if err != nil {
		logger.ErrorCF("relay", "Remove prompt failed", map[string]interface{}{"error": err.Error()})
		return "Could not read the forward list, please try again.", nil, false
	}
	if len(set) == 0 {
		return "No forwards to remove.", nil, false
	}

	text = s.renderList(ctx, set) + "\nReply with the number of the forward to remove."
	return text, set.Clone(), true
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func (s *RelayService) renderList(ctx context.Context, set rules.RuleSet) string {
	var b strings.Builder
	b.WriteString("**Active Forwards:**\n\n")
	for i, rule := range set {
		fmt.Fprintf(&b, "%d. %s → %s\n",
			i+1, s.channelName(ctx, rule.Source), s.destinationName(ctx, rule))
	}
	return b.String()
}

// channelName resolves a channel's display name, falling back to
// "Unknown (id)" so an inaccessible channel still lists usefully.
func (s *RelayService) channelName(ctx context.Context, id rules.ChannelID) string {
	if info, err := s.transport.ResolveChannel(ctx, id); err == nil {
		return info.Name
	}
	return fmt.Sprintf("Unknown (%s)", id)
}

func (s *RelayService) destinationName(ctx context.Context, rule rules.ForwardRule) string {
	if rule.Kind == rules.KindWebhook {
		return "webhook " + rule.Webhook
	}
	return s.channelName(ctx, rule.Target)
}
