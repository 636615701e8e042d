package domain

import "time"

// PendingKind identifies what a suspended choice is waiting on.
type PendingKind string

const (
	// PendingDiscoveryConfirm waits on the acting player accepting or
	// declining a rolled discovery.
	PendingDiscoveryConfirm PendingKind = "discovery_confirm"
	// PendingPuzzleApproval waits on out-of-band human approval of a
	// puzzle offering.
	PendingPuzzleApproval PendingKind = "puzzle_approval"
)

// PendingChoice is a suspended continuation on the expedition. A choice is
// resolved either by an incoming command or by the timeout sweep, which
// applies the deterministic default (decline).
type PendingChoice struct {
	Kind           PendingKind `json:"kind"`
	CharacterIndex int         `json:"characterIndex"`
	// LogIndex points at the progress log entry awaiting confirmation.
	LogIndex  int       `json:"logIndex"`
	Square    string    `json:"square"`
	Quadrant  string    `json:"quadrant"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the choice has passed its deadline.
func (p *PendingChoice) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
