package domain

import (
	"strings"
	"time"
)

// Confirmation tracks whether a logged discovery has been accepted by the
// acting player. Only confirmed discoveries count toward the square cap and
// are mirrored to the shared map.
type Confirmation string

const (
	ConfirmationNone      Confirmation = ""
	ConfirmationPending   Confirmation = "pending"
	ConfirmationConfirmed Confirmation = "confirmed"
	ConfirmationDeclined  Confirmation = "declined"
)

// LogEntry is an append-only audit record on the expedition. The log is
// player-facing history and is also queried for discovery counts and
// anti-repeat decisions.
type LogEntry struct {
	At            time.Time    `json:"at"`
	CharacterName string       `json:"characterName"`
	Outcome       string       `json:"outcome"`
	Message       string       `json:"message,omitempty"`
	Loot          []string     `json:"loot,omitempty"`
	StaminaCost   int          `json:"staminaCost,omitempty"`
	HeartCost     int          `json:"heartCost,omitempty"`
	Square        string       `json:"square,omitempty"`
	Quadrant      string       `json:"quadrant,omitempty"`
	Confirmation  Confirmation `json:"confirmation,omitempty"`
}

// AppendLog appends an entry with the expedition's current location filled
// in when the entry does not carry one.
func (e *Expedition) AppendLog(entry LogEntry) {
	if entry.Square == "" {
		entry.Square = e.Square
	}
	if entry.Quadrant == "" {
		entry.Quadrant = e.Quadrant
	}
	e.ProgressLog = append(e.ProgressLog, entry)
}

// LastOutcomeAt returns the outcome of the most recent log entry at the
// exact location, or "" when the location has no logged outcome.
func (e *Expedition) LastOutcomeAt(square, quadrant string) string {
	for i := len(e.ProgressLog) - 1; i >= 0; i-- {
		entry := e.ProgressLog[i]
		if strings.EqualFold(entry.Square, square) && strings.EqualFold(entry.Quadrant, quadrant) {
			return entry.Outcome
		}
	}
	return ""
}

// ConfirmedDiscoveriesAt counts confirmed counted-discovery entries logged
// at the given square during this run.
func (e *Expedition) ConfirmedDiscoveriesAt(square string) int {
	count := 0
	for _, entry := range e.ProgressLog {
		if !strings.EqualFold(entry.Square, square) {
			continue
		}
		if entry.Confirmation != ConfirmationConfirmed {
			continue
		}
		if DiscoveryType(entry.Outcome).Counted() {
			count++
		}
	}
	return count
}

// LoggedGrottoAt reports whether a grotto discovery was logged at the
// square this run, pending or confirmed.
func (e *Expedition) LoggedGrottoAt(square string) bool {
	for _, entry := range e.ProgressLog {
		if !strings.EqualFold(entry.Square, square) {
			continue
		}
		if entry.Outcome == string(DiscoveryGrotto) && entry.Confirmation != ConfirmationDeclined {
			return true
		}
	}
	return false
}

// RelicFoundBy reports whether the character already logged a relic
// discovery this expedition, pending or confirmed.
func (e *Expedition) RelicFoundBy(characterName string) bool {
	for _, entry := range e.ProgressLog {
		if !strings.EqualFold(entry.CharacterName, characterName) {
			continue
		}
		if entry.Outcome == string(DiscoveryRelic) && entry.Confirmation != ConfirmationDeclined {
			return true
		}
	}
	return false
}

// PruneUnconfirmedAt drops declined and still-pending discovery entries
// logged at the square. Entries already mirrored to the shared map are the
// caller's responsibility to exclude by confirming them first. It returns
// how many entries were removed.
func (e *Expedition) PruneUnconfirmedAt(square string) int {
	kept := e.ProgressLog[:0]
	removed := 0
	for _, entry := range e.ProgressLog {
		drop := strings.EqualFold(entry.Square, square) &&
			DiscoveryType(entry.Outcome).Counted() &&
			(entry.Confirmation == ConfirmationPending || entry.Confirmation == ConfirmationDeclined)
		if drop {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	e.ProgressLog = kept
	return removed
}
