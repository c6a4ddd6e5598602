package session

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relayclaw/relayclaw/pkg/logger"
	"github.com/relayclaw/relayclaw/pkg/rules"
)

var (
	// ErrSessionActive means the user already has an open dialog.
	ErrSessionActive = errors.New("session already active")
)

// OutcomeKind classifies what Advance decided about a reply.
type OutcomeKind int

const (
	// OutcomeNoSession: the user has no open dialog; the message is an
	// ordinary message, not a dialog reply.
	OutcomeNoSession OutcomeKind = iota
	// OutcomeRetry: invalid input at a stage that re-prompts; the session
	// is unchanged and Guidance should be sent back.
	OutcomeRetry
	// OutcomeAbort: invalid input at a stage that ends the dialog; the
	// session is destroyed and Guidance should be sent back.
	OutcomeAbort
	// OutcomeMenuChoice: a valid menu option was picked. The session is
	// still open at StageMenu; the caller transitions or ends it.
	OutcomeMenuChoice
	// OutcomeAddRule: valid add input parsed into Rule. Terminal: the
	// session is destroyed, the caller commits the rule.
	OutcomeAddRule
	// OutcomeRemoveIndex: valid removal index within the snapshot bound.
	// Terminal: the session is destroyed, the caller commits the removal
	// after re-checking the live bound.
	OutcomeRemoveIndex
)

// Outcome is the result of feeding a dialog reply to the tracker.
type Outcome struct {
	Kind     OutcomeKind
	Origin   rules.ChannelID
	Option   MenuOption        // Kind == OutcomeMenuChoice
	Rule     rules.ForwardRule // Kind == OutcomeAddRule
	Index    int               // Kind == OutcomeRemoveIndex, 1-based
	Guidance string            // Kind == OutcomeRetry | OutcomeAbort
}

// ---------------------------------------------------------------------------
// Tracker
// ---------------------------------------------------------------------------

// Tracker is the session table: at most one open Session per user.
// All access goes through the mutex; sessions handed out are owned by the
// tracker and must not be mutated by callers.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewTracker creates an empty session tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*Session)}
}

// Start opens a dialog for the user at StageMenu. A second Start while a
// session is open fails with ErrSessionActive and leaves the existing
// session untouched.
func (t *Tracker) Start(userID string, origin rules.ChannelID) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[userID]; ok {
		return nil, ErrSessionActive
	}
	s := newSession(userID, origin)
	t.sessions[userID] = s
	logger.InfoCF("session", "Dialog started", map[string]interface{}{
		"session": s.ID,
		"user":    userID,
	})
	return s, nil
}

// Active reports whether the user has an open session.
func (t *Tracker) Active(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[userID]
	return ok
}

// Transition moves an open session to a new stage, capturing the snapshot
// the next reply will be validated against.
func (t *Tracker) Transition(userID string, stage Stage, snapshot rules.RuleSet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[userID]; ok {
		s.Stage = stage
		s.Snapshot = snapshot
	}
}

// End destroys the user's session, if any. Returns whether one existed.
func (t *Tracker) End(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[userID]
	if ok {
		delete(t.sessions, userID)
		logDialogEnd(s)
	}
	return ok
}

// Advance feeds a dialog reply to the user's open session and applies the
// stage grammar. Terminal and aborting outcomes destroy the session before
// returning, so no dialog ever outlives its one transaction.
func (t *Tracker) Advance(userID, reply string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[userID]
	if !ok {
		return Outcome{Kind: OutcomeNoSession}
	}

	switch s.Stage {
	case StageMenu:
		return t.advanceMenu(s, reply)
	case StageAddForward:
		delete(t.sessions, userID)
		logDialogEnd(s)
		return advanceAdd(s, reply)
	case StageRemoveForward:
		delete(t.sessions, userID)
		logDialogEnd(s)
		return advanceRemove(s, reply)
	default:
		// Unreachable stage means a corrupted session; drop it.
		delete(t.sessions, userID)
		logDialogEnd(s)
		return Outcome{Kind: OutcomeNoSession}
	}
}

func logDialogEnd(s *Session) {
	logger.InfoCF("session", "Dialog ended", map[string]interface{}{
		"session": s.ID,
		"user":    s.UserID,
		"age":     time.Since(s.StartedAt).Round(time.Millisecond),
	})
}

// advanceMenu validates a menu choice. Bad input re-prompts without
// destroying the session.
func (t *Tracker) advanceMenu(s *Session, reply string) Outcome {
	switch strings.TrimSpace(reply) {
	case "1":
		return Outcome{Kind: OutcomeMenuChoice, Origin: s.Origin, Option: OptionAdd}
	case "2":
		return Outcome{Kind: OutcomeMenuChoice, Origin: s.Origin, Option: OptionRemove}
	case "3":
		return Outcome{Kind: OutcomeMenuChoice, Origin: s.Origin, Option: OptionList}
	default:
		return Outcome{
			Kind:     OutcomeRetry,
			Origin:   s.Origin,
			Guidance: "Invalid option. Please reply with 1, 2, or 3.",
		}
	}
}

// advanceAdd parses "<source> <destination>" input. One malformed reply
// aborts the whole dialog rather than re-prompting.
func advanceAdd(s *Session, reply string) Outcome {
	rule, err := ParseAddInput(reply)
	if err != nil {
		return Outcome{Kind: OutcomeAbort, Origin: s.Origin, Guidance: err.Error()}
	}
	return Outcome{Kind: OutcomeAddRule, Origin: s.Origin, Rule: rule}
}

// advanceRemove parses a 1-based index against the snapshot bound shown
// at prompt time.
func advanceRemove(s *Session, reply string) Outcome {
	index, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return Outcome{
			Kind:     OutcomeAbort,
			Origin:   s.Origin,
			Guidance: "Please provide a valid number.",
		}
	}
	if index < 1 || index > len(s.Snapshot) {
		return Outcome{
			Kind:   OutcomeAbort,
			Origin: s.Origin,
			Guidance: fmt.Sprintf("Invalid number. Please choose between 1 and %d.",
				len(s.Snapshot)),
		}
	}
	return Outcome{Kind: OutcomeRemoveIndex, Origin: s.Origin, Index: index}
}

// ---------------------------------------------------------------------------
// Input grammar
// ---------------------------------------------------------------------------

// ParseAddInput parses add-forward input: exactly two whitespace-separated
// tokens, a numeric source channel ID and either a numeric target channel
// ID or an http(s) webhook URL. Shared by the dialog and the +add command.
func ParseAddInput(input string) (rules.ForwardRule, error) {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) != 2 {
		return rules.ForwardRule{}, errors.New(
			"Invalid format. Please provide a source channel ID and a destination, separated by a space.")
	}

	source, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return rules.ForwardRule{}, errors.New(
			"Invalid channel IDs. Please provide valid numeric channel IDs.")
	}

	if target, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
		return rules.NewChannelForward(rules.ChannelID(source), rules.ChannelID(target)), nil
	}

	if u, err := url.Parse(parts[1]); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return rules.NewWebhookForward(rules.ChannelID(source), parts[1]), nil
	}

	return rules.ForwardRule{}, errors.New(
		"Invalid destination. Provide a numeric channel ID or an http(s) webhook URL.")
}
