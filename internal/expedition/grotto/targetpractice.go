package grotto

import (
	"math/rand"

	"github.com/louisbranch/veilwood.quest/internal/core/dice"
	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
)

// Target practice bands for a d100 roll. The equipment/job modifier widens
// the success band by lowering the success threshold.
const (
	targetPracticeFailBelow = 25
	targetPracticeSuccessAt = 60
)

// TargetBand classifies one target practice roll.
type TargetBand string

const (
	TargetFail    TargetBand = "fail"
	TargetMiss    TargetBand = "miss"
	TargetSuccess TargetBand = "success"
)

// TargetPracticeResult captures one resolved target practice turn.
type TargetPracticeResult struct {
	Roll      int
	Band      TargetBand
	Completed bool
	Sealed    bool
	State     domain.TargetPracticeState
}

// ResolveTargetPractice rolls one d100 against the fail/miss/success bands.
// The trial completes after neededSuccesses flawless successes; a single
// fail seals it for the run. Misses neither progress nor seal.
func ResolveTargetPractice(state domain.TargetPracticeState, neededSuccesses int, rng *rand.Rand) TargetPracticeResult {
	roll, err := dice.RollWithRng(rng, []dice.Spec{{Sides: 100, Count: 1}})
	if err != nil {
		// Unreachable: the spec is constant and valid.
		return TargetPracticeResult{State: state, Band: TargetMiss}
	}

	result := TargetPracticeResult{Roll: roll.Total, State: state}
	successAt := targetPracticeSuccessAt - state.Modifier
	if successAt <= targetPracticeFailBelow {
		successAt = targetPracticeFailBelow + 1
	}

	switch {
	case roll.Total < targetPracticeFailBelow:
		result.Band = TargetFail
		result.Sealed = true
	case roll.Total >= successAt:
		result.Band = TargetSuccess
		result.State.Successes++
		result.Completed = result.State.Successes >= neededSuccesses
	default:
		result.Band = TargetMiss
	}
	return result
}
