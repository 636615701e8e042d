// Package discovery enforces the discovery caps that bound what an
// expedition may find: at most three counted discoveries per square, one
// grotto per square, and one relic per character per expedition.
//
// The tracker reconciles against both the party's own progress log and the
// shared world map, since either side may be ahead of the other after a
// best-effort mirror write.
package discovery

import (
	"math/rand"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/expedition/outcome"
)

// Tracker is a snapshot of discovery state at the party's current location,
// used as the outcome roller's gate.
type Tracker struct {
	// Cap is the maximum counted discoveries per square.
	Cap int
	// KeepChance is the probability a counted discovery stands when the
	// square already holds at least one.
	KeepChance float64

	CountedOnSquare   int
	SquareHasGrotto   bool
	CharacterHasRelic bool
	PreviousOutcome   string
}

// Snapshot builds a tracker for the acting character at the expedition's
// current location. The square may be nil when the map store has no record
// yet; the log alone governs in that case.
func Snapshot(exp *domain.Expedition, square *domain.Square, characterName string, cap int, keepChance float64) Tracker {
	tracker := Tracker{
		Cap:               cap,
		KeepChance:        keepChance,
		CharacterHasRelic: exp.RelicFoundBy(characterName),
		PreviousOutcome:   exp.LastOutcomeAt(exp.Square, exp.Quadrant),
	}

	// The map and the log can each be ahead of the other: a confirmed
	// discovery may not have mirrored yet, and another party may have
	// written the map since this run's log entries. Take the larger count.
	logged := exp.ConfirmedDiscoveriesAt(exp.Square)
	mapped := 0
	grotto := exp.LoggedGrottoAt(exp.Square)
	if square != nil {
		mapped = square.CountedDiscoveries()
		grotto = grotto || square.HasGrotto()
	}
	if mapped > logged {
		tracker.CountedOnSquare = mapped
	} else {
		tracker.CountedOnSquare = logged
	}
	tracker.SquareHasGrotto = grotto
	return tracker
}

// Allow implements outcome.Gate. The rng carries the roller's stream so the
// independent keep-chance flip stays deterministic under a fixed seed.
func (t Tracker) Allow(kind outcome.Kind, rng *rand.Rand) bool {
	if kind == outcome.KindExplored && t.PreviousOutcome == string(outcome.KindExplored) {
		return false
	}
	if !kind.Counted() {
		return true
	}
	if t.CountedOnSquare >= t.Cap {
		return false
	}
	if kind == outcome.KindGrotto && t.SquareHasGrotto {
		return false
	}
	if kind == outcome.KindRelic && t.CharacterHasRelic {
		return false
	}
	if t.CountedOnSquare >= 1 && rng.Float64() >= t.KeepChance {
		return false
	}
	return true
}
