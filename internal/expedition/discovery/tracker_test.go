package discovery

import (
	"math/rand"
	"testing"
	"time"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/expedition/outcome"
)

func fixedRng() *rand.Rand { return rand.New(rand.NewSource(1)) }

func TestAllowRejectsRepeatedExplored(t *testing.T) {
	tracker := Tracker{Cap: 3, KeepChance: 0.25, PreviousOutcome: "explored"}
	if tracker.Allow(outcome.KindExplored, fixedRng()) {
		t.Fatal("expected repeated explored to be rejected")
	}
	tracker.PreviousOutcome = "item"
	if !tracker.Allow(outcome.KindExplored, fixedRng()) {
		t.Fatal("expected explored after non-explored to pass")
	}
}

func TestAllowRejectsAtCap(t *testing.T) {
	tracker := Tracker{Cap: 3, KeepChance: 1.0, CountedOnSquare: 3}
	if tracker.Allow(outcome.KindRuins, fixedRng()) {
		t.Fatal("expected counted discovery at cap to be rejected")
	}
	if !tracker.Allow(outcome.KindItem, fixedRng()) {
		t.Fatal("uncounted outcomes are exempt from the cap")
	}
}

func TestAllowRejectsSecondGrotto(t *testing.T) {
	tracker := Tracker{Cap: 3, KeepChance: 1.0, SquareHasGrotto: true}
	if tracker.Allow(outcome.KindGrotto, fixedRng()) {
		t.Fatal("expected second grotto to be rejected")
	}
	if !tracker.Allow(outcome.KindRuins, fixedRng()) {
		t.Fatal("other counted discoveries remain allowed")
	}
}

func TestAllowRejectsSecondRelicForCharacter(t *testing.T) {
	tracker := Tracker{Cap: 3, KeepChance: 1.0, CharacterHasRelic: true}
	if tracker.Allow(outcome.KindRelic, fixedRng()) {
		t.Fatal("expected second relic to be rejected")
	}
}

func TestAllowAppliesKeepChance(t *testing.T) {
	// KeepChance 0 always drops counted discoveries once the square has one.
	tracker := Tracker{Cap: 3, KeepChance: 0, CountedOnSquare: 1}
	if tracker.Allow(outcome.KindRuins, fixedRng()) {
		t.Fatal("keep chance 0 must reject")
	}
	// KeepChance 1 always keeps.
	tracker.KeepChance = 1.0
	if !tracker.Allow(outcome.KindRuins, fixedRng()) {
		t.Fatal("keep chance 1 must keep")
	}
	// An empty square skips the flip entirely.
	tracker = Tracker{Cap: 3, KeepChance: 0, CountedOnSquare: 0}
	if !tracker.Allow(outcome.KindRuins, fixedRng()) {
		t.Fatal("first counted discovery needs no keep flip")
	}
}

func TestSnapshotMergesLogAndMap(t *testing.T) {
	now := time.Now()
	exp := domain.Expedition{Square: "D4", Quadrant: "Q1"}
	exp.AppendLog(domain.LogEntry{CharacterName: "Ayla", Outcome: "ruins", Confirmation: domain.ConfirmationConfirmed})
	exp.AppendLog(domain.LogEntry{CharacterName: "Ayla", Outcome: "relic", Confirmation: domain.ConfirmationPending})

	square := &domain.Square{
		ID: "D4",
		Quadrants: []domain.Quadrant{
			{ID: "Q1", Discoveries: []domain.Discovery{
				{Type: domain.DiscoveryRuins, DiscoveredAt: now},
				{Type: domain.DiscoveryMonsterCamp, DiscoveredAt: now},
				{Type: domain.DiscoveryGrotto, DiscoveredAt: now},
			}},
		},
	}

	tracker := Snapshot(&exp, square, "Ayla", 3, 0.25)
	// Map count (3) exceeds the confirmed log count (1); take the max.
	if tracker.CountedOnSquare != 3 {
		t.Fatalf("counted = %d, want 3", tracker.CountedOnSquare)
	}
	if !tracker.SquareHasGrotto {
		t.Fatal("expected grotto from the map")
	}
	if !tracker.CharacterHasRelic {
		t.Fatal("expected pending relic to count against the character")
	}
}

func TestSnapshotWithoutSquareUsesLogOnly(t *testing.T) {
	exp := domain.Expedition{Square: "D4", Quadrant: "Q1"}
	exp.AppendLog(domain.LogEntry{Outcome: "grotto", Confirmation: domain.ConfirmationConfirmed})

	tracker := Snapshot(&exp, nil, "Ayla", 3, 0.25)
	if tracker.CountedOnSquare != 1 {
		t.Fatalf("counted = %d, want 1", tracker.CountedOnSquare)
	}
	if !tracker.SquareHasGrotto {
		t.Fatal("expected grotto from the log")
	}
}
