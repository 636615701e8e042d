// Package turn tracks whose turn it is on an expedition.
//
// Each expedition is a serially-accessed state machine: a single actor at a
// time, validated before any resource is spent and advanced exactly once
// after every resource- or turn-consuming action succeeds.
package turn

import (
	"fmt"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
)

// Validate fails with NOT_YOUR_TURN unless the turn pointer matches the
// acting character's roster index. Validation never mutates the expedition.
func Validate(exp *domain.Expedition, characterIndex int) error {
	if characterIndex < 0 || characterIndex >= len(exp.Members) {
		return apperrors.New(apperrors.CodeNotYourTurn,
			fmt.Sprintf("character index %d is outside the roster", characterIndex))
	}
	if exp.CurrentTurn != characterIndex {
		return apperrors.WithMetadata(apperrors.CodeNotYourTurn,
			fmt.Sprintf("it is %s's turn", exp.Members[exp.CurrentTurn].Name),
			map[string]string{"currentCharacter": exp.Members[exp.CurrentTurn].Name},
		)
	}
	return nil
}

// Advance moves the turn pointer to the next roster slot, wrapping at the
// end of the roster.
func Advance(exp *domain.Expedition) {
	if len(exp.Members) == 0 {
		return
	}
	exp.CurrentTurn = (exp.CurrentTurn + 1) % len(exp.Members)
}
