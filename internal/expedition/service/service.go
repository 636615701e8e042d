// Package service orchestrates expedition commands over the domain
// resolvers and the store/collaborator interfaces.
//
// Every command resolves (expedition id, character name) to an active
// expedition and an owned roster slot before any core logic runs. Primary
// effects (resource payment, expedition save) are all-or-nothing; shared-map
// mirror writes are best-effort and logged on failure. Slot vitals are
// mirrored to the authoritative character records before the expedition
// document is saved.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/expedition/ledger"
	"github.com/louisbranch/veilwood.quest/internal/expedition/mapsync"
	"github.com/louisbranch/veilwood.quest/internal/expedition/outcome"
	"github.com/louisbranch/veilwood.quest/internal/expedition/turn"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
	"github.com/louisbranch/veilwood.quest/internal/random"
	"github.com/louisbranch/veilwood.quest/internal/storage"
	"github.com/louisbranch/veilwood.quest/internal/tuning"
)

// Command identifies the actor of an incoming expedition command.
type Command struct {
	ExpeditionID  string
	UserID        string
	CharacterName string
}

// Config wires the service's stores, collaborators and tuning tables.
type Config struct {
	Expeditions storage.ExpeditionStore
	WorldMap    storage.WorldMapStore
	Grottos     storage.GrottoStore
	Characters  storage.CharacterStore
	Raids       storage.RaidService
	Combat      storage.CombatResolver
	Mazes       storage.MazeGenerator
	Loot        storage.LootTable
	Monsters    storage.MonsterTable
	Tables      tuning.Tables

	// Now and NewSeed default to the wall clock and crypto seeds; tests
	// substitute deterministic values.
	Now     func() time.Time
	NewSeed func() (int64, error)
}

// Service executes expedition commands.
type Service struct {
	expeditions storage.ExpeditionStore
	worldMap    storage.WorldMapStore
	grottos     storage.GrottoStore
	characters  storage.CharacterStore
	raids       storage.RaidService
	combat      storage.CombatResolver
	mazes       storage.MazeGenerator
	loot        storage.LootTable
	monsters    storage.MonsterTable

	mapSync  *mapsync.Synchronizer
	tables   tuning.Tables
	outcomes outcome.Table

	now     func() time.Time
	newSeed func() (int64, error)
	tracer  trace.Tracer
}

// New creates a service. The outcome weight table is validated here so a
// bad tuning override fails at startup, not mid-expedition.
func New(cfg Config) (*Service, error) {
	table, err := outcome.NewTable(cfg.Tables.Outcomes)
	if err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewSeed == nil {
		cfg.NewSeed = random.NewSeed
	}
	return &Service{
		expeditions: cfg.Expeditions,
		worldMap:    cfg.WorldMap,
		grottos:     cfg.Grottos,
		characters:  cfg.Characters,
		raids:       cfg.Raids,
		combat:      cfg.Combat,
		mazes:       cfg.Mazes,
		loot:        cfg.Loot,
		monsters:    cfg.Monsters,
		mapSync:     mapsync.New(cfg.WorldMap),
		tables:      cfg.Tables,
		outcomes:    table,
		now:         cfg.Now,
		newSeed:     cfg.NewSeed,
		tracer:      otel.Tracer("veilwood.quest/expedition/service"),
	}, nil
}

func (s *Service) startSpan(ctx context.Context, name, expeditionID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("expedition.id", expeditionID),
	))
}

// resolve loads the expedition and locates the acting character's slot. A
// non-empty user id must own the slot.
func (s *Service) resolve(ctx context.Context, cmd Command) (domain.Expedition, int, error) {
	exp, err := s.expeditions.Get(ctx, cmd.ExpeditionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Expedition{}, 0, apperrors.New(apperrors.CodeExpeditionNotFound,
				fmt.Sprintf("expedition %s not found", cmd.ExpeditionID))
		}
		return domain.Expedition{}, 0, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"load expedition", err)
	}
	if exp.Status != domain.StatusStarted {
		return domain.Expedition{}, 0, apperrors.New(apperrors.CodeExpeditionCompleted,
			fmt.Sprintf("expedition %s is already completed", exp.ID))
	}
	index, err := exp.MemberIndexByName(cmd.CharacterName)
	if err != nil {
		return domain.Expedition{}, 0, apperrors.New(apperrors.CodeCharacterNotOwned,
			fmt.Sprintf("%s is not on this expedition", cmd.CharacterName))
	}
	if cmd.UserID != "" && exp.Members[index].UserID != cmd.UserID {
		return domain.Expedition{}, 0, apperrors.New(apperrors.CodeCharacterNotOwned,
			fmt.Sprintf("%s belongs to another player", cmd.CharacterName))
	}
	return exp, index, nil
}

// blockDuringRaid guards normal turn actions while the expedition's raid is
// active; only retreat, item use and pending resolution pass.
func (s *Service) blockDuringRaid(exp *domain.Expedition) error {
	if exp.ActiveRaidID == "" {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeRaidActive,
		"the party is engaged in a raid",
		map[string]string{"raidId": exp.ActiveRaidID})
}

// settlePending applies the timeout default to an expired pending choice
// and rejects the command when a live one still waits.
func (s *Service) settlePending(ctx context.Context, exp *domain.Expedition) error {
	if exp.Pending == nil {
		return nil
	}
	if exp.Pending.Expired(s.now()) {
		s.applyPendingDefault(ctx, exp)
		return nil
	}
	return apperrors.New(apperrors.CodePendingChoiceActive,
		"a pending choice awaits resolution")
}

func (s *Service) guardAction(ctx context.Context, exp *domain.Expedition, actingIndex int) error {
	if err := s.blockDuringRaid(exp); err != nil {
		return err
	}
	if err := s.settlePending(ctx, exp); err != nil {
		return err
	}
	return turn.Validate(exp, actingIndex)
}

// payCost plans and applies a stamina payment with heart struggle fallback.
// Nothing is deducted when the plan fails.
func (s *Service) payCost(exp *domain.Expedition, actingIndex, amount int) (ledger.Payment, error) {
	payment, err := ledger.Plan(exp.Members, actingIndex, amount)
	if err != nil {
		return ledger.Payment{}, err
	}
	ledger.Apply(exp, payment)
	return payment, nil
}

// adjustVitals applies heart/stamina deltas to one slot, clamping at zero,
// and refreshes the pool totals.
func adjustVitals(exp *domain.Expedition, index, hearts, stamina int) {
	member := &exp.Members[index]
	member.CurrentHearts += hearts
	if member.CurrentHearts < 0 {
		member.CurrentHearts = 0
	}
	member.CurrentStamina += stamina
	if member.CurrentStamina < 0 {
		member.CurrentStamina = 0
	}
	exp.RecomputeTotals()
}

// mirrorVitals writes every slot's vitals through to the authoritative
// character records.
func (s *Service) mirrorVitals(ctx context.Context, exp *domain.Expedition) error {
	for _, member := range exp.Members {
		if err := s.characters.UpdateVitals(ctx, member.CharacterID, member.CurrentHearts, member.CurrentStamina); err != nil {
			return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				fmt.Sprintf("persist vitals for %s", member.Name), err)
		}
	}
	return nil
}

func (s *Service) save(ctx context.Context, exp *domain.Expedition) error {
	exp.UpdatedAt = s.now().UTC()
	if err := s.expeditions.Put(ctx, *exp); err != nil {
		return apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"save expedition", err)
	}
	return nil
}

// completeAction finishes a successful turn-consuming action: vitals are
// mirrored, the turn pointer advances and the expedition is saved. When the
// pooled hearts hit zero the failure terminal transition runs instead and
// the returned flag is set.
func (s *Service) completeAction(ctx context.Context, exp *domain.Expedition) (bool, error) {
	exp.RecomputeTotals()
	if exp.TotalHearts <= 0 {
		return true, s.failExpedition(ctx, exp)
	}
	if err := s.mirrorVitals(ctx, exp); err != nil {
		return false, err
	}
	turn.Advance(exp)
	return false, s.save(ctx, exp)
}

// seededRng draws a fresh crypto seed and returns the rng stream plus the
// seed for collaborator calls that take one.
func (s *Service) seededRng() (*rand.Rand, int64, error) {
	seed, err := s.newSeed()
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeUnknown, "generate seed", err)
	}
	return rand.New(rand.NewSource(seed)), seed, nil
}

// markQuadrant applies a status transition to the local cache and mirrors
// it to the shared map. Mirror failures are logged, not fatal.
func (s *Service) markQuadrant(ctx context.Context, exp *domain.Expedition, quadrantID string, status domain.QuadrantStatus) {
	if q := exp.CachedQuadrant(quadrantID); q != nil && q.Status.CanTransition(status) {
		q.Status = status
	}
	if status == domain.QuadrantExplored {
		exp.MarkExplored(exp.Square, quadrantID)
	}
	if err := s.mapSync.MarkStatus(ctx, exp.Square, quadrantID, status); err != nil {
		log.Printf("expedition %s: %v", exp.ID, err)
	}
}

// currentSquare fetches the shared-map record for the party's square, or
// nil when the map has none yet. Read failures degrade to nil with a log
// line; the party's own log still governs.
func (s *Service) currentSquare(ctx context.Context, exp *domain.Expedition) *domain.Square {
	square, err := s.worldMap.GetSquare(ctx, exp.Square)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("expedition %s: read square %s: %v", exp.ID, exp.Square, err)
		}
		return nil
	}
	return &square
}

// ensureCache populates the local quadrant cache on first use.
func (s *Service) ensureCache(ctx context.Context, exp *domain.Expedition) error {
	if len(exp.SquareCache) > 0 {
		return nil
	}
	return s.mapSync.Reconcile(ctx, exp)
}
