package grotto

import (
	"strings"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
)

// SubmitOffering records a puzzle offering and suspends the trial pending
// out-of-band human approval. The offering is consumed regardless of the
// eventual verdict.
func SubmitOffering(state *domain.PuzzleState, items []string, description string) error {
	if state.Submitted {
		return apperrors.New(apperrors.CodeGrottoTrialPending,
			"puzzle offering already awaits review")
	}
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return apperrors.New(apperrors.CodeInvariantViolation,
			"puzzle offering needs at least one item")
	}
	state.Offering = cleaned
	state.Description = strings.TrimSpace(description)
	state.Submitted = true
	return nil
}

// ResolvePuzzle applies the reviewer's verdict. Approval completes the
// trial and rewards the party; denial seals it. Either way the offering
// stays consumed.
func ResolvePuzzle(grotto *domain.Grotto, approved bool) error {
	if grotto.TrialType != domain.TrialPuzzle || grotto.Puzzle == nil {
		return apperrors.New(apperrors.CodeGrottoWrongTrial, "grotto has no puzzle trial")
	}
	if !grotto.Puzzle.Submitted {
		return apperrors.New(apperrors.CodeInvariantViolation,
			"puzzle has no offering to review")
	}
	if !grotto.Active() {
		return apperrors.New(apperrors.CodeGrottoSealed, "puzzle trial already closed")
	}
	if !approved {
		Seal(grotto)
	}
	return nil
}
