package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/expedition/raid"
	"github.com/louisbranch/veilwood.quest/internal/expedition/turn"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
	"github.com/louisbranch/veilwood.quest/internal/storage"
)

// secureMaterials are the two crafting resources a secure action consumes,
// drawn from any member's loadout.
var secureMaterials = []string{"Timber", "Rope"}

// SecureOutput reports a secure action.
type SecureOutput struct {
	Quadrant string
	Failed   bool
}

// Secure fortifies the current explored quadrant: 5 stamina plus the two
// crafting materials, drawn from any member's loadout.
func (s *Service) Secure(ctx context.Context, cmd Command) (SecureOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.secure", cmd.ExpeditionID)
	defer span.End()

	var out SecureOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := s.guardAction(ctx, &exp, index); err != nil {
		return out, err
	}
	if err := s.ensureCache(ctx, &exp); err != nil {
		return out, err
	}

	q := exp.CachedQuadrant(exp.Quadrant)
	if q == nil || q.Status == domain.QuadrantUnexplored {
		return out, apperrors.New(apperrors.CodeInvariantViolation,
			fmt.Sprintf("quadrant %s must be explored before it can be secured", exp.Quadrant))
	}
	if q.Status != domain.QuadrantExplored {
		return out, apperrors.New(apperrors.CodeInvariantViolation,
			fmt.Sprintf("quadrant %s is already %s", exp.Quadrant, q.Status))
	}

	// Materials are checked before anything is spent.
	type pick struct {
		member int
		name   string
	}
	picks := make([]pick, 0, len(secureMaterials))
	for _, material := range secureMaterials {
		mi, ii := findCarrier(&exp, material)
		if mi == -1 {
			return out, apperrors.WithMetadata(apperrors.CodeItemNotCarried,
				fmt.Sprintf("nobody carries %s", material),
				map[string]string{"item": material})
		}
		picks = append(picks, pick{member: mi, name: exp.Members[mi].Items[ii].Name})
	}

	payment, err := s.payCost(&exp, index, s.tables.Costs.Secure)
	if err != nil {
		return out, err
	}
	for _, p := range picks {
		exp.Members[p.member].RemoveItem(p.name)
	}

	s.markQuadrant(ctx, &exp, exp.Quadrant, domain.QuadrantSecured)
	exp.AppendLog(domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "secure",
		Message:       fmt.Sprintf("quadrant %s secured", exp.Quadrant),
		StaminaCost:   payment.StaminaPaid,
		HeartCost:     payment.HeartsPaid,
	})
	out.Quadrant = exp.Quadrant
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}

// MoveOutput reports a move action.
type MoveOutput struct {
	Square   string
	Quadrant string
	// Pruned counts unconfirmed discovery log entries dropped on leaving
	// the previous square.
	Pruned int
	Failed bool
}

// Move walks the party to another quadrant, in the current square or an
// adjacent one. The cost follows the destination quadrant's status. A
// square cannot be left until every quadrant is resolved, unless the
// destination is the party's home quadrant or a fully resolved square.
func (s *Service) Move(ctx context.Context, cmd Command, square, quadrant string) (MoveOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.move", cmd.ExpeditionID)
	defer span.End()

	var out MoveOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := s.guardAction(ctx, &exp, index); err != nil {
		return out, err
	}
	if err := s.ensureCache(ctx, &exp); err != nil {
		return out, err
	}

	if square == "" {
		square = exp.Square
	}
	quadrant = strings.ToUpper(strings.TrimSpace(quadrant))
	if !validQuadrantID(quadrant) {
		return out, apperrors.New(apperrors.CodeInvalidLocation,
			fmt.Sprintf("quadrant %q is not on the map", quadrant))
	}

	sameSquare := strings.EqualFold(square, exp.Square)
	if sameSquare && strings.EqualFold(quadrant, exp.Quadrant) {
		return out, apperrors.New(apperrors.CodeInvalidLocation,
			"the party is already there")
	}

	var status domain.QuadrantStatus
	if sameSquare {
		status = domain.QuadrantUnexplored
		if q := exp.CachedQuadrant(quadrant); q != nil {
			status = q.Status
		}
	} else {
		if _, _, err := domain.ParseSquareID(square); err != nil {
			return out, apperrors.New(apperrors.CodeInvalidLocation, err.Error())
		}
		if !domain.SquaresAdjacent(exp.Square, square) {
			return out, apperrors.New(apperrors.CodeInvalidLocation,
				fmt.Sprintf("%s is not adjacent to %s", square, exp.Square))
		}
		destResolved, destStatus := s.destinationStatus(ctx, square, quadrant)
		status = destStatus

		goingHome := strings.EqualFold(square, exp.HomeSquare) &&
			strings.EqualFold(quadrant, exp.HomeQuadrant)
		if !exp.CacheResolved() && !goingHome && !destResolved {
			return out, apperrors.New(apperrors.CodeInvariantViolation,
				fmt.Sprintf("unresolved quadrants remain in %s", exp.Square))
		}
	}
	if status == domain.QuadrantInaccessible {
		return out, apperrors.New(apperrors.CodeInvalidLocation,
			fmt.Sprintf("quadrant %s of %s is inaccessible", quadrant, square))
	}

	cost := s.tables.Costs.MoveUnexplored
	switch status {
	case domain.QuadrantExplored:
		cost = s.tables.Costs.MoveExplored
	case domain.QuadrantSecured:
		cost = s.tables.Costs.MoveSecured
	}
	payment, err := s.payCost(&exp, index, cost)
	if err != nil {
		return out, err
	}

	if !sameSquare {
		// guardAction already settled or rejected any pending choice, so
		// only the unconfirmed log entries need pruning here.
		out.Pruned = exp.PruneUnconfirmedAt(exp.Square)
		exp.Square = square
		exp.Quadrant = quadrant
		if err := s.mapSync.Reconcile(ctx, &exp); err != nil {
			return out, err
		}
	} else {
		exp.Quadrant = quadrant
	}

	exp.AppendLog(domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "move",
		Message:       fmt.Sprintf("moved to %s %s", exp.Square, exp.Quadrant),
		StaminaCost:   payment.StaminaPaid,
		HeartCost:     payment.HeartsPaid,
	})
	out.Square = exp.Square
	out.Quadrant = exp.Quadrant
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}

// destinationStatus reads the destination square from the map and reports
// whether it is fully resolved and the target quadrant's status. Unknown
// squares are unresolved and unexplored.
func (s *Service) destinationStatus(ctx context.Context, square, quadrant string) (bool, domain.QuadrantStatus) {
	record, err := s.worldMap.GetSquare(ctx, square)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("read destination square %s: %v", square, err)
		}
		return false, domain.QuadrantUnexplored
	}
	status := domain.QuadrantUnexplored
	if q := record.QuadrantByID(quadrant); q != nil {
		status = q.Status
	}
	return record.FullyResolved(), status
}

func validQuadrantID(quadrant string) bool {
	switch quadrant {
	case "Q1", "Q2", "Q3", "Q4":
		return true
	}
	return false
}

// itemEffects maps consumables to their expedition effect, keyed by
// lowercased canonical name.
var itemEffects = map[string]struct{ Hearts, Stamina int }{
	"fairy tonic":   {Hearts: 1},
	"trail rations": {Stamina: 1},
	"honeyed bread": {Stamina: 2},
}

// ItemOutput reports an item use.
type ItemOutput struct {
	Item    string
	Hearts  int
	Stamina int
}

// Item consumes one of the acting character's carried consumables. Item use
// is a free action: it never costs resources and never advances the turn.
func (s *Service) Item(ctx context.Context, cmd Command, itemName string) (ItemOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.item", cmd.ExpeditionID)
	defer span.End()

	var out ItemOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}

	slot := &exp.Members[index]
	itemIndex := matchItem(slot.Items, itemName)
	if itemIndex == -1 {
		return out, apperrors.WithMetadata(apperrors.CodeItemNotCarried,
			fmt.Sprintf("%s does not carry %s", cmd.CharacterName, itemName),
			map[string]string{"item": itemName})
	}
	name := slot.Items[itemIndex].Name
	effect, ok := itemEffects[strings.ToLower(name)]
	if !ok {
		return out, apperrors.New(apperrors.CodeInvariantViolation,
			fmt.Sprintf("%s has no use on an expedition", name))
	}

	slot.RemoveItem(name)
	adjustVitals(&exp, index, effect.Hearts, effect.Stamina)
	exp.AppendLog(domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "item_use",
		Message:       fmt.Sprintf("used %s", name),
	})

	if err := s.mirrorVitals(ctx, &exp); err != nil {
		return out, err
	}
	out = ItemOutput{Item: name, Hearts: effect.Hearts, Stamina: effect.Stamina}
	return out, s.save(ctx, &exp)
}

// CampOutput reports a camp rest.
type CampOutput struct {
	StaminaRestored int
	Failed          bool
}

// Camp spends a turn resting at a safe haven found on the current quadrant.
func (s *Service) Camp(ctx context.Context, cmd Command) (CampOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.camp", cmd.ExpeditionID)
	defer span.End()

	var out CampOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := s.guardAction(ctx, &exp, index); err != nil {
		return out, err
	}
	if exp.LastOutcomeAt(exp.Square, exp.Quadrant) != "camp" {
		return out, apperrors.New(apperrors.CodeInvariantViolation,
			"there is no safe haven here")
	}

	for i := range exp.Members {
		adjustVitals(&exp, i, 0, s.tables.CampRecovery)
	}
	exp.AppendLog(domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "camp",
		Message:       "the party rests at camp",
	})
	out.StaminaRestored = s.tables.CampRecovery * len(exp.Members)
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}

// RetreatOutput reports a retreat attempt.
type RetreatOutput struct {
	Success bool
	Chance  float64
	Failed  bool
}

// Retreat attempts to disengage from the expedition's active raid. It costs
// 1 resource and succeeds with an escalating chance; each failure raises
// the next attempt's odds through the raid record's counter.
func (s *Service) Retreat(ctx context.Context, cmd Command) (RetreatOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.retreat", cmd.ExpeditionID)
	defer span.End()

	var out RetreatOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if exp.ActiveRaidID == "" {
		return out, apperrors.New(apperrors.CodeInvariantViolation,
			"there is no raid to retreat from")
	}
	if err := s.settlePending(ctx, &exp); err != nil {
		return out, err
	}
	if err := turn.Validate(&exp, index); err != nil {
		return out, err
	}

	session, err := s.raids.Get(ctx, exp.ActiveRaidID)
	if err != nil {
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"load raid session", err)
	}
	payment, err := s.payCost(&exp, index, s.tables.Costs.Retreat)
	if err != nil {
		return out, err
	}

	rng, _, err := s.seededRng()
	if err != nil {
		return out, err
	}
	out.Chance = raid.SuccessChance(s.tables.Retreat, session.FailedAttempts)
	out.Success = raid.AttemptRetreat(rng, s.tables.Retreat, session.FailedAttempts)

	entry := domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "retreat",
		StaminaCost:   payment.StaminaPaid,
		HeartCost:     payment.HeartsPaid,
	}
	if out.Success {
		if err := s.raids.EndAsRetreat(ctx, exp.ActiveRaidID); err != nil {
			return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				"end raid as retreat", err)
		}
		exp.ActiveRaidID = ""
		entry.Message = fmt.Sprintf("the party slips away from the %s", session.Monster.Name)
	} else {
		if err := s.raids.RecordRetreatFailure(ctx, exp.ActiveRaidID); err != nil {
			return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				"record retreat failure", err)
		}
		entry.Message = fmt.Sprintf("the %s blocks the escape", session.Monster.Name)
	}
	exp.AppendLog(entry)
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}
