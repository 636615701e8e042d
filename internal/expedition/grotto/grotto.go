// Package grotto implements the trial sub-state-machines a party enters
// after cleansing a grotto discovery: blessing, target practice, puzzle,
// maze, and test of power.
//
// Resolvers here are pure; the service layer owns persistence and resource
// payment. Every trial is terminal once CompletedAt is set and exclusive
// per square per expedition.
package grotto

import (
	"math/rand"
	"time"

	"github.com/louisbranch/veilwood.quest/internal/core/dice"
	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
)

// CleanseItem is the designated consumable a cleanse requires.
const CleanseItem = "Warding Salt"

// Reward is granted to every party member when a trial succeeds.
type Reward struct {
	Hearts  int
	Stamina int
	Items   []string
}

// BlessingReward is the fixed reward of a blessing trial.
var BlessingReward = Reward{Hearts: 1, Stamina: 1}

// TrialReward is granted when target practice, a puzzle, or a maze is
// completed.
var TrialReward = Reward{Hearts: 1, Stamina: 2}

// DrawTrial picks a trial type uniformly from the roller's stream.
func DrawTrial(rng *rand.Rand) domain.TrialType {
	result, err := dice.RollWithRng(rng, []dice.Spec{{Sides: len(domain.TrialTypes), Count: 1}})
	if err != nil {
		// Unreachable: the spec is constant and valid.
		return domain.TrialBlessing
	}
	return domain.TrialTypes[result.Total-1]
}

// New creates a grotto record for a freshly cleansed discovery, with the
// sub-state for the drawn trial initialized.
func New(square, quadrant, expeditionID string, trial domain.TrialType, modifier int, now time.Time) domain.Grotto {
	grotto := domain.Grotto{
		Square:       square,
		Quadrant:     quadrant,
		ExpeditionID: expeditionID,
		TrialType:    trial,
		CreatedAt:    now.UTC(),
	}
	switch trial {
	case domain.TrialTargetPractice:
		grotto.TargetPractice = &domain.TargetPracticeState{Modifier: modifier}
	case domain.TrialPuzzle:
		grotto.Puzzle = &domain.PuzzleState{}
	case domain.TrialMaze:
		grotto.Maze = &domain.MazeState{}
	case domain.TrialBlessing, domain.TrialTestOfPower:
		// No sub-state: blessing is immediate, test of power delegates to
		// the raid service.
	}
	return grotto
}

// Complete marks the trial terminal.
func Complete(grotto *domain.Grotto, now time.Time) {
	at := now.UTC()
	grotto.CompletedAt = &at
}

// Seal closes the trial for this run without completing it.
func Seal(grotto *domain.Grotto) {
	grotto.Sealed = true
}
