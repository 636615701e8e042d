// Package mapsync propagates quadrant transitions and discoveries to the
// shared world-map store and reconciles party-local state against it.
//
// Map writes are best-effort from the caller's perspective: the action's
// primary effect (resource deduction, turn advance) commits even when a
// mirror write fails. Failures surface as EXTERNAL_COLLABORATOR_FAILURE so
// callers can log and continue.
package mapsync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
	"github.com/louisbranch/veilwood.quest/internal/storage"
)

// Synchronizer writes through to the shared world-map store.
type Synchronizer struct {
	store storage.WorldMapStore
}

// New creates a synchronizer over the given map store.
func New(store storage.WorldMapStore) *Synchronizer {
	return &Synchronizer{store: store}
}

// MarkStatus writes a quadrant status transition through to the map.
// "Matched but not modified" (the quadrant was already in the target state)
// is success. "No square matched" is logged as a warning and swallowed; the
// map record may simply not exist yet for frontier squares.
func (s *Synchronizer) MarkStatus(ctx context.Context, squareID, quadrantID string, status domain.QuadrantStatus) error {
	result, err := s.store.UpdateQuadrantStatus(ctx, squareID, quadrantID, status)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			fmt.Sprintf("mark %s/%s %s", squareID, quadrantID, status), err)
	}
	if !result.Matched {
		log.Printf("mapsync: no square matched %s/%s while marking %s", squareID, quadrantID, status)
	}
	return nil
}

// MirrorDiscovery appends a confirmed discovery to the map.
func (s *Synchronizer) MirrorDiscovery(ctx context.Context, squareID, quadrantID string, discovery domain.Discovery) error {
	result, err := s.store.AddDiscovery(ctx, squareID, quadrantID, discovery)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			fmt.Sprintf("mirror %s discovery to %s/%s", discovery.Type, squareID, quadrantID), err)
	}
	if !result.Matched {
		log.Printf("mapsync: no square matched %s/%s while mirroring %s", squareID, quadrantID, discovery.Type)
	}
	return nil
}

// Reconcile refreshes the expedition's local quadrant cache from the map's
// canonical state on square entry. The map is authoritative for
// explored/secured; the progress log remains authoritative only for
// turn-scoped facts. Squares absent from the store start unexplored.
func (s *Synchronizer) Reconcile(ctx context.Context, exp *domain.Expedition) error {
	square, err := s.store.GetSquare(ctx, exp.Square)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			exp.SquareCache = domain.DefaultQuadrants()
			return nil
		}
		return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			fmt.Sprintf("reconcile square %s", exp.Square), err)
	}
	exp.SquareCache = append([]domain.Quadrant(nil), square.Quadrants...)
	return nil
}

// Rollback reverts every quadrant this run explored back to unexplored on
// the shared map. Unlike mirror writes, rollback is part of the failure
// terminal transition and its errors propagate.
func (s *Synchronizer) Rollback(ctx context.Context, refs []domain.QuadrantRef) error {
	if len(refs) == 0 {
		return nil
	}
	if err := s.store.RollbackQuadrants(ctx, refs); err != nil {
		return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"rollback explored quadrants", err)
	}
	return nil
}
