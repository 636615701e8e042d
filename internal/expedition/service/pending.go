package service

import (
	"context"
	"fmt"
	"log"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/expedition/grotto"
	"github.com/louisbranch/veilwood.quest/internal/expedition/outcome"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
)

// PendingOutput reports a resolved discovery confirmation.
type PendingOutput struct {
	Accepted bool
	// Outcome is the discovery kind the choice was about.
	Outcome string
}

// ResolvePending applies the acting player's accept/decline to the
// expedition's suspended discovery choice. Confirmed discoveries count
// toward the square cap and are mirrored to the shared map; declined ones
// stay in the log until pruned on square leave.
func (s *Service) ResolvePending(ctx context.Context, cmd Command, accept bool) (PendingOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.resolve_pending", cmd.ExpeditionID)
	defer span.End()

	var out PendingOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	pending := exp.Pending
	if pending == nil {
		return out, apperrors.New(apperrors.CodeNoPendingChoice,
			"nothing awaits a decision")
	}
	if pending.Kind != domain.PendingDiscoveryConfirm {
		return out, apperrors.New(apperrors.CodePendingChoiceMismatch,
			"the pending choice is awaiting an outside review")
	}
	if pending.CharacterIndex != index {
		return out, apperrors.New(apperrors.CodePendingChoiceMismatch,
			fmt.Sprintf("the choice belongs to %s", exp.Members[pending.CharacterIndex].Name))
	}
	if pending.Expired(s.now()) {
		s.applyPendingDefault(ctx, &exp)
		if err := s.save(ctx, &exp); err != nil {
			return out, err
		}
		return PendingOutput{Accepted: false}, nil
	}
	if pending.LogIndex < 0 || pending.LogIndex >= len(exp.ProgressLog) {
		exp.Pending = nil
		return out, apperrors.New(apperrors.CodeInvariantViolation,
			"the pending choice points at a missing log entry")
	}

	entry := &exp.ProgressLog[pending.LogIndex]
	out.Outcome = entry.Outcome
	if accept {
		entry.Confirmation = domain.ConfirmationConfirmed
		if discoveryType, counted := outcome.Kind(entry.Outcome).DiscoveryType(); counted {
			key, err := domain.NewID()
			if err != nil {
				return out, apperrors.Wrap(apperrors.CodeUnknown, "generate discovery key", err)
			}
			mirror := domain.Discovery{
				Type:         discoveryType,
				DiscoveredBy: entry.CharacterName,
				DiscoveredAt: s.now().UTC(),
				Key:          key,
			}
			if err := s.mapSync.MirrorDiscovery(ctx, pending.Square, pending.Quadrant, mirror); err != nil {
				log.Printf("expedition %s: %v", exp.ID, err)
			}
		}
		out.Accepted = true
	} else {
		entry.Confirmation = domain.ConfirmationDeclined
	}
	exp.Pending = nil
	return out, s.save(ctx, &exp)
}

// applyPendingDefault resolves an expired pending choice with its timeout
// default: discoveries are declined, puzzle offerings are denied.
func (s *Service) applyPendingDefault(ctx context.Context, exp *domain.Expedition) {
	pending := exp.Pending
	exp.Pending = nil
	if pending == nil {
		return
	}
	switch pending.Kind {
	case domain.PendingDiscoveryConfirm:
		if pending.LogIndex >= 0 && pending.LogIndex < len(exp.ProgressLog) {
			exp.ProgressLog[pending.LogIndex].Confirmation = domain.ConfirmationDeclined
		}
	case domain.PendingPuzzleApproval:
		record, err := s.grottos.GetUnsealed(ctx, pending.Square, exp.ID)
		if err != nil {
			log.Printf("expedition %s: load puzzle grotto: %v", exp.ID, err)
			return
		}
		if err := grotto.ResolvePuzzle(&record, false); err != nil {
			log.Printf("expedition %s: deny puzzle: %v", exp.ID, err)
			return
		}
		if err := s.grottos.Put(ctx, record); err != nil {
			log.Printf("expedition %s: save denied puzzle: %v", exp.ID, err)
		}
	}
}

// SweepPending applies timeout defaults across every active expedition. It
// is run periodically by the entrypoint. Returns how many choices were
// settled.
func (s *Service) SweepPending(ctx context.Context) (int, error) {
	ctx, span := s.startSpan(ctx, "expedition.sweep_pending", "")
	defer span.End()

	active, err := s.expeditions.ListActive(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"list active expeditions", err)
	}
	swept := 0
	for i := range active {
		exp := active[i]
		if exp.Pending == nil || !exp.Pending.Expired(s.now()) {
			continue
		}
		s.applyPendingDefault(ctx, &exp)
		if err := s.save(ctx, &exp); err != nil {
			log.Printf("expedition %s: sweep save: %v", exp.ID, err)
			continue
		}
		swept++
	}
	return swept, nil
}
