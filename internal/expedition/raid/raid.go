// Package raid handles the expedition side of raid escalation: deciding
// when an encounter escalates and resolving retreat attempts with an
// escalating success chance.
package raid

import (
	"math/rand"

	"github.com/louisbranch/veilwood.quest/internal/storage"
	"github.com/louisbranch/veilwood.quest/internal/tuning"
)

// ShouldEscalate reports whether a monster encounter hands off to the raid
// service instead of the simple combat resolver.
func ShouldEscalate(monster storage.Monster, raidTier int) bool {
	return monster.Tier >= raidTier
}

// SuccessChance returns the retreat success probability after the given
// number of failed attempts. The chance is non-decreasing in the attempt
// count and never exceeds the cap.
func SuccessChance(odds tuning.RetreatOdds, failedAttempts int) float64 {
	if failedAttempts < 0 {
		failedAttempts = 0
	}
	chance := odds.Base + odds.Step*float64(failedAttempts)
	if chance > odds.Cap {
		chance = odds.Cap
	}
	return chance
}

// AttemptRetreat flips against the current success chance.
func AttemptRetreat(rng *rand.Rand, odds tuning.RetreatOdds, failedAttempts int) bool {
	return rng.Float64() < SuccessChance(odds, failedAttempts)
}
