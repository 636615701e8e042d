package service

import (
	"context"
	"fmt"
	"log"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
)

// StartExpeditionInput describes an expedition start request.
type StartExpeditionInput struct {
	Village  string
	Region   string
	Square   string
	Quadrant string
	Members  []domain.CharacterSlot
}

// Start creates and persists a new expedition. One active expedition per
// roster is assumed to be enforced by the caller's party session; the
// engine only rejects empty rosters and malformed locations.
func (s *Service) Start(ctx context.Context, input StartExpeditionInput) (domain.Expedition, error) {
	ctx, span := s.startSpan(ctx, "expedition.start", "")
	defer span.End()

	exp, err := domain.CreateExpedition(domain.CreateExpeditionInput{
		Village:  input.Village,
		Region:   input.Region,
		Square:   input.Square,
		Quadrant: input.Quadrant,
		Members:  input.Members,
	}, s.now, nil)
	if err != nil {
		switch err {
		case domain.ErrEmptyVillage:
			return domain.Expedition{}, apperrors.New(apperrors.CodeExpeditionEmptyVillage, err.Error())
		case domain.ErrEmptyRoster:
			return domain.Expedition{}, apperrors.New(apperrors.CodeExpeditionEmptyRoster, err.Error())
		}
		return domain.Expedition{}, apperrors.New(apperrors.CodeInvalidLocation, err.Error())
	}
	if err := s.mapSync.Reconcile(ctx, &exp); err != nil {
		return domain.Expedition{}, err
	}
	if err := s.save(ctx, &exp); err != nil {
		return domain.Expedition{}, err
	}
	return exp, nil
}

// EndOutput reports the success terminal transition's resource split.
type EndOutput struct {
	Hearts  []int
	Stamina []int
}

// End completes the expedition at the party's home quadrant: pooled hearts
// and stamina split as evenly as possible (remainder to the earliest
// indices), items returned to their owners, home locations updated.
func (s *Service) End(ctx context.Context, cmd Command) (EndOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.end", cmd.ExpeditionID)
	defer span.End()

	var out EndOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := s.guardAction(ctx, &exp, index); err != nil {
		return out, err
	}
	if !exp.AtHome() {
		return out, apperrors.New(apperrors.CodeInvalidLocation,
			fmt.Sprintf("the party must return home to %s %s first", exp.HomeSquare, exp.HomeQuadrant))
	}

	out.Hearts = splitEvenly(exp.TotalHearts, len(exp.Members))
	out.Stamina = splitEvenly(exp.TotalStamina, len(exp.Members))
	for i := range exp.Members {
		member := &exp.Members[i]
		member.CurrentHearts = out.Hearts[i]
		member.CurrentStamina = out.Stamina[i]
		if err := s.characters.UpdateVitals(ctx, member.CharacterID, member.CurrentHearts, member.CurrentStamina); err != nil {
			return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				fmt.Sprintf("persist vitals for %s", member.Name), err)
		}
		if err := s.characters.SetVillage(ctx, member.CharacterID, exp.Village); err != nil {
			return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				fmt.Sprintf("update home for %s", member.Name), err)
		}
		if len(member.Items) > 0 {
			if err := s.characters.AddItems(ctx, member.CharacterID, member.Items); err != nil {
				return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
					fmt.Sprintf("return items to %s", member.Name), err)
			}
			member.Items = nil
		}
	}
	exp.RecomputeTotals()
	exp.Status = domain.StatusCompleted
	exp.Pending = nil
	exp.AppendLog(domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "end",
		Message:       "the expedition returns home",
	})
	return out, s.save(ctx, &exp)
}

// failExpedition runs the failure terminal transition: the party is knocked
// out, relocated to the region's starting village with a recovery debuff,
// expedition-only items are discarded and this run's explored quadrants are
// rolled back on the shared map.
func (s *Service) failExpedition(ctx context.Context, exp *domain.Expedition) error {
	now := s.now().UTC()
	debuffUntil := now.Add(s.tables.RecoveryDebuff)

	for i := range exp.Members {
		member := &exp.Members[i]
		member.CurrentHearts = 0
		member.CurrentStamina = 0
		if err := s.characters.UpdateVitals(ctx, member.CharacterID, 0, 0); err != nil {
			return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				fmt.Sprintf("persist knockout for %s", member.Name), err)
		}
		if err := s.characters.SetVillage(ctx, member.CharacterID, exp.Village); err != nil {
			return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				fmt.Sprintf("relocate %s", member.Name), err)
		}
		if err := s.characters.SetRecoveryDebuff(ctx, member.CharacterID, debuffUntil); err != nil {
			return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				fmt.Sprintf("apply recovery debuff to %s", member.Name), err)
		}
		kept := make([]domain.CarriedItem, 0, len(member.Items))
		for _, item := range member.Items {
			if !item.ExpeditionOnly {
				kept = append(kept, item)
			}
		}
		if len(kept) > 0 {
			if err := s.characters.AddItems(ctx, member.CharacterID, kept); err != nil {
				return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
					fmt.Sprintf("return items to %s", member.Name), err)
			}
		}
		member.Items = nil
	}
	exp.RecomputeTotals()

	if err := s.mapSync.Rollback(ctx, exp.ExploredThisRun); err != nil {
		log.Printf("expedition %s: %v", exp.ID, err)
	}

	exp.Status = domain.StatusCompleted
	exp.Pending = nil
	exp.ActiveRaidID = ""
	exp.AppendLog(domain.LogEntry{
		At:      now,
		Outcome: "knockout",
		Message: fmt.Sprintf("the party is knocked out and carried back to %s", exp.Village),
	})
	return s.save(ctx, exp)
}

// splitEvenly divides total across count shares, remainder to the earliest
// indices.
func splitEvenly(total, count int) []int {
	if count <= 0 {
		return nil
	}
	shares := make([]int, count)
	base, remainder := total/count, total%count
	for i := range shares {
		shares[i] = base
		if i < remainder {
			shares[i]++
		}
	}
	return shares
}
