// Package session tracks per-user configuration dialogs. Each user has at
// most one open session at a time; a session walks a small state machine
// (menu choice → add/remove input) and never survives a restart.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/relayclaw/relayclaw/pkg/rules"
)

// Stage is the dialog step a session is waiting on.
type Stage string

const (
	// StageMenu awaits a numeric menu choice (1-3).
	StageMenu Stage = "menu"
	// StageAddForward awaits "<source> <target-or-url>" input.
	StageAddForward Stage = "add_forward"
	// StageRemoveForward awaits the number of the rule to remove.
	StageRemoveForward Stage = "remove_forward"
)

// MenuOption is a validated top-level menu selection.
type MenuOption int

const (
	OptionAdd MenuOption = iota + 1
	OptionRemove
	OptionList
)

// Session is one user's open configuration dialog.
type Session struct {
	ID     string
	UserID string
	Origin rules.ChannelID // channel replies are addressed to
	Stage  Stage

	// Snapshot of the rule list shown when the session entered
	// StageRemoveForward. The reply is validated against this bound first;
	// the live store bound is re-checked at commit time.
	Snapshot rules.RuleSet

	StartedAt time.Time
}

func newSession(userID string, origin rules.ChannelID) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Origin:    origin,
		Stage:     StageMenu,
		StartedAt: time.Now().UTC(),
	}
}
