package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/veilwood.quest/internal/expedition/discovery"
	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/expedition/outcome"
	"github.com/louisbranch/veilwood.quest/internal/expedition/raid"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
	"github.com/louisbranch/veilwood.quest/internal/storage"
)

// RollOutput reports what an advance action produced.
type RollOutput struct {
	Outcome outcome.Kind
	Rerolls int
	// Exhausted is set when the reroll loop hit its cap and fell back to a
	// plain item find.
	Exhausted bool
	Monster   *storage.Monster
	RaidID    string
	Loot      []string
	// PendingConfirm is set when the outcome is a counted discovery waiting
	// on the acting player's accept/decline.
	PendingConfirm bool
	// Failed is set when the action drained the pooled hearts and the
	// expedition ran its failure terminal transition.
	Failed bool
}

// Roll executes the advance action: pay the quadrant cost, draw an outcome
// through the discovery gate and dispatch it.
func (s *Service) Roll(ctx context.Context, cmd Command) (RollOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.roll", cmd.ExpeditionID)
	defer span.End()

	var out RollOutput
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

	cost := s.tables.Costs.RollUnexplored
	if q := exp.CachedQuadrant(exp.Quadrant); q != nil {
		switch q.Status {
		case domain.QuadrantExplored:
			cost = s.tables.Costs.RollExplored
		case domain.QuadrantSecured:
			cost = s.tables.Costs.RollSecured
		case domain.QuadrantInaccessible:
			return out, apperrors.New(apperrors.CodeInvalidLocation,
				fmt.Sprintf("quadrant %s is inaccessible", exp.Quadrant))
		}
	}
	payment, err := s.payCost(&exp, index, cost)
	if err != nil {
		return out, err
	}

	rng, seed, err := s.seededRng()
	if err != nil {
		return out, err
	}
	square := s.currentSquare(ctx, &exp)
	gate := discovery.Snapshot(&exp, square, cmd.CharacterName,
		s.tables.DiscoveryCapPerSquare, s.tables.DiscoveryKeepChance)
	roller := outcome.NewRoller(s.outcomes, s.tables.RerollCap, rng)
	result := roller.Roll(gate)
	out.Outcome = result.Kind
	out.Rerolls = result.Rerolls
	out.Exhausted = result.Exhausted

	entry := domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       string(result.Kind),
		StaminaCost:   payment.StaminaPaid,
		HeartCost:     payment.HeartsPaid,
	}

	switch result.Kind {
	case outcome.KindMonster:
		monster, err := s.monsters.RandomMonster(ctx, seed)
		if err != nil {
			return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				"draw monster", err)
		}
		out.Monster = &monster
		if raid.ShouldEscalate(monster, s.tables.RaidTier) {
			start, err := s.raids.Start(ctx, monster, cmd.CharacterName, exp.Village, exp.ID)
			if err != nil {
				return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
					"start raid", err)
			}
			if !start.Success {
				return out, apperrors.New(apperrors.CodeRaidCooldownActive,
					fmt.Sprintf("%s cannot be raided yet", monster.Name))
			}
			exp.ActiveRaidID = start.RaidID
			out.RaidID = start.RaidID
			entry.Message = fmt.Sprintf("%s (tier %d) escalates into a raid", monster.Name, monster.Tier)
		} else {
			combat, err := s.combat.Resolve(ctx, monster, exp.Members[index], seed)
			if err != nil {
				return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
					"resolve combat", err)
			}
			before := exp.Members[index].CurrentHearts
			adjustVitals(&exp, index, -combat.HeartsLost, 0)
			for _, item := range combat.Loot {
				addItem(&exp.Members[index], item, true)
			}
			out.Loot = combat.Loot
			entry.Loot = combat.Loot
			// Hearts clamp at zero, so the log records what was left to lose.
			entry.HeartCost += before - exp.Members[index].CurrentHearts
			entry.Message = fmt.Sprintf("fought a %s", monster.Name)
		}

	case outcome.KindItem:
		item, err := s.loot.RandomItem(ctx, seed)
		if err != nil {
			return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				"draw loot", err)
		}
		addItem(&exp.Members[index], item, true)
		out.Loot = []string{item}
		entry.Loot = out.Loot

	case outcome.KindExplored:
		s.markQuadrant(ctx, &exp, exp.Quadrant, domain.QuadrantExplored)
		entry.Message = fmt.Sprintf("quadrant %s explored", exp.Quadrant)

	case outcome.KindFairy:
		adjustVitals(&exp, index, 1, 0)
		entry.Message = "a fairy mends a heart"

	case outcome.KindChest:
		item, err := s.loot.RandomItem(ctx, seed)
		if err != nil {
			return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				"draw chest loot", err)
		}
		addItem(&exp.Members[index], item, true)
		adjustVitals(&exp, index, 0, 1)
		out.Loot = []string{item}
		entry.Loot = out.Loot
		entry.Message = "pried open a hidden chest"

	case outcome.KindOldMap:
		if revealed := s.revealFromOldMap(ctx, &exp); revealed != "" {
			entry.Message = fmt.Sprintf("an old map reveals quadrant %s", revealed)
		} else {
			entry.Message = "an old map shows nothing new"
		}

	case outcome.KindCamp:
		for i := range exp.Members {
			adjustVitals(&exp, i, 0, s.tables.CampRecovery)
		}
		entry.Message = "found a safe haven to camp in"

	case outcome.KindRuins, outcome.KindRelic, outcome.KindMonsterCamp, outcome.KindGrotto:
		entry.Confirmation = domain.ConfirmationPending
		entry.Message = fmt.Sprintf("stumbled on a %s", result.Kind)
		exp.AppendLog(entry)
		exp.Pending = &domain.PendingChoice{
			Kind:           domain.PendingDiscoveryConfirm,
			CharacterIndex: index,
			LogIndex:       len(exp.ProgressLog) - 1,
			Square:         exp.Square,
			Quadrant:       exp.Quadrant,
			ExpiresAt:      s.now().UTC().Add(s.tables.PendingChoiceTimeout),
		}
		out.PendingConfirm = true
		out.Failed, err = s.completeAction(ctx, &exp)
		return out, err
	}

	exp.AppendLog(entry)
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}

// revealFromOldMap marks the first other unexplored quadrant of the current
// square as explored and returns its id, or "".
func (s *Service) revealFromOldMap(ctx context.Context, exp *domain.Expedition) string {
	for i := range exp.SquareCache {
		q := &exp.SquareCache[i]
		if q.Status != domain.QuadrantUnexplored || strings.EqualFold(q.ID, exp.Quadrant) {
			continue
		}
		s.markQuadrant(ctx, exp, q.ID, domain.QuadrantExplored)
		return q.ID
	}
	return ""
}
