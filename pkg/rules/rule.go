// Package rules defines the forwarding-rule domain: the ForwardRule value
// object, the ordered RuleSet, the persisted wire format, and the Store
// that owns all mutation.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrDuplicateRule means an identical (source, kind, destination)
	// tuple is already stored.
	ErrDuplicateRule = errors.New("forward already exists")

	// ErrIndexOutOfRange means a 1-based removal index does not address a
	// stored rule at commit time.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrStorageUnavailable means the backing medium could not be read or
	// written. A mutation that hits this error is not committed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidRule means a rule's fields do not agree with its kind.
	ErrInvalidRule = errors.New("invalid forward rule")
)

// ---------------------------------------------------------------------------
// Value objects
// ---------------------------------------------------------------------------

// ChannelID identifies a chat channel on the transport platform.
type ChannelID int64

// String implements fmt.Stringer.
func (id ChannelID) String() string { return fmt.Sprintf("%d", int64(id)) }

// DestinationKind tags the two destination variants of a forward rule.
type DestinationKind string

const (
	KindChannel DestinationKind = "channel"
	KindWebhook DestinationKind = "webhook"
)

// ForwardRule pairs a source channel with a single destination.
// Rules are immutable once created; changing one means remove + re-add.
type ForwardRule struct {
	Source ChannelID
	Kind   DestinationKind

	// Exactly one of the following is set, matching Kind.
	Target  ChannelID // Kind == KindChannel
	Webhook string    // Kind == KindWebhook
}

// NewChannelForward creates a channel-to-channel rule.
func NewChannelForward(source, target ChannelID) ForwardRule {
	return ForwardRule{Source: source, Kind: KindChannel, Target: target}
}

// NewWebhookForward creates a channel-to-webhook rule.
func NewWebhookForward(source ChannelID, url string) ForwardRule {
	return ForwardRule{Source: source, Kind: KindWebhook, Webhook: url}
}

// Destination renders the destination side for display and logging.
func (r ForwardRule) Destination() string {
	if r.Kind == KindWebhook {
		return r.Webhook
	}
	return r.Target.String()
}

// Equal reports identity over the full (source, kind, destination) tuple.
func (r ForwardRule) Equal(other ForwardRule) bool {
	return r.Source == other.Source && r.Kind == other.Kind &&
		r.Target == other.Target && r.Webhook == other.Webhook
}

// Validate checks that the rule's fields agree with its kind.
func (r ForwardRule) Validate() error {
	switch r.Kind {
	case KindChannel:
		if r.Target == 0 || r.Webhook != "" {
			return ErrInvalidRule
		}
	case KindWebhook:
		if r.Webhook == "" || r.Target != 0 {
			return ErrInvalidRule
		}
	default:
		return ErrInvalidRule
	}
	if r.Source == 0 {
		return ErrInvalidRule
	}
	return nil
}

// ---------------------------------------------------------------------------
// Wire format
//
// The persisted document is {"forwards":[...]} where each entry is either
// {"source":N,"target":N} or {"source":N,"webhook":"URL"}. The two shapes
// coexist in one list; presence of "target" vs "webhook" disambiguates.
// ---------------------------------------------------------------------------

type ruleWire struct {
	Source  int64   `json:"source"`
	Target  *int64  `json:"target,omitempty"`
	Webhook *string `json:"webhook,omitempty"`
}

// MarshalJSON implements json.Marshaler using the dual wire shape.
func (r ForwardRule) MarshalJSON() ([]byte, error) {
	w := ruleWire{Source: int64(r.Source)}
	switch r.Kind {
	case KindChannel:
		t := int64(r.Target)
		w.Target = &t
	case KindWebhook:
		u := r.Webhook
		w.Webhook = &u
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, r.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, accepting both wire shapes.
func (r *ForwardRule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Target != nil && w.Webhook != nil:
		return fmt.Errorf("%w: both target and webhook present", ErrInvalidRule)
	case w.Target != nil:
		*r = NewChannelForward(ChannelID(w.Source), ChannelID(*w.Target))
	case w.Webhook != nil:
		*r = NewWebhookForward(ChannelID(w.Source), *w.Webhook)
	default:
		return fmt.Errorf("%w: neither target nor webhook present", ErrInvalidRule)
	}
	return nil
}

// document is the top-level persisted schema.
type document struct {
	Forwards []ForwardRule `json:"forwards"`
}

// ---------------------------------------------------------------------------
// RuleSet
// ---------------------------------------------------------------------------

// RuleSet is the ordered collection of forward rules. Insertion order is
// preserved and is the order used for display numbering and delivery.
type RuleSet []ForwardRule

// Match returns all rules listening on the given source channel, in
// stored order.
func (rs RuleSet) Match(source ChannelID) []ForwardRule {
	var out []ForwardRule
	for _, r := range rs {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

// Contains reports whether an identical rule is already in the set.
func (rs RuleSet) Contains(rule ForwardRule) bool {
	for _, r := range rs {
		if r.Equal(rule) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy, safe to hand out as a snapshot.
func (rs RuleSet) Clone() RuleSet {
	out := make(RuleSet, len(rs))
	copy(out, rs)
	return out
}
