// Package storage defines the persistence and collaborator interfaces the
// expedition engine consumes. Implementations live in subpackages (SQLite)
// or in other services (characters, raids, maze generation, loot).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ExpeditionStore persists expedition session documents.
type ExpeditionStore interface {
	Put(ctx context.Context, exp domain.Expedition) error
	Get(ctx context.Context, id string) (domain.Expedition, error)
	// ListActive returns every started expedition, used by the pending
	// choice timeout sweep.
	ListActive(ctx context.Context) ([]domain.Expedition, error)
}

// UpdateResult reports what a map write matched. "Matched but not modified"
// (already in the target state) is success; "no square matched" is a
// warning condition for the caller, never a fatal error.
type UpdateResult struct {
	Matched  bool
	Modified bool
}

// WorldMapStore persists the shared map of squares. Squares are shared
// across all expeditions, so every write must be document-level atomic.
type WorldMapStore interface {
	GetSquare(ctx context.Context, squareID string) (domain.Square, error)
	PutSquare(ctx context.Context, square domain.Square) error
	// UpdateQuadrantStatus writes a status transition through to the
	// square matched case-insensitively by id, filtering on quadrant id.
	// Only forward transitions are written; a regression reports Matched
	// without Modified. The failure rollback goes through
	// RollbackQuadrants instead.
	UpdateQuadrantStatus(ctx context.Context, squareID, quadrantID string, status domain.QuadrantStatus) (UpdateResult, error)
	// AddDiscovery appends a discovery to the matched quadrant.
	AddDiscovery(ctx context.Context, squareID, quadrantID string, discovery domain.Discovery) (UpdateResult, error)
	// RollbackQuadrants reverts the listed quadrants to unexplored as part
	// of the expedition-failure terminal transition.
	RollbackQuadrants(ctx context.Context, refs []domain.QuadrantRef) error
}

// GrottoStore persists grotto trial records keyed by square, quadrant and
// expedition.
type GrottoStore interface {
	Put(ctx context.Context, grotto domain.Grotto) error
	Get(ctx context.Context, square, quadrant, expeditionID string) (domain.Grotto, error)
	// GetUnsealed returns the square's unsealed, uncompleted grotto for
	// the expedition, or ErrNotFound.
	GetUnsealed(ctx context.Context, square, expeditionID string) (domain.Grotto, error)
}

// CharacterStore mirrors expedition slot mutations back to the
// authoritative character records.
type CharacterStore interface {
	UpdateVitals(ctx context.Context, characterID string, hearts, stamina int) error
	SetVillage(ctx context.Context, characterID, village string) error
	// SetRecoveryDebuff blocks the character from expeditions and healing
	// until the deadline.
	SetRecoveryDebuff(ctx context.Context, characterID string, until time.Time) error
	AddItems(ctx context.Context, characterID string, items []domain.CarriedItem) error
}

// Monster describes an encountered monster. Tier is its difficulty class.
type Monster struct {
	Name string
	Tier int
}

// RaidStart is the raid service's response to an escalation.
type RaidStart struct {
	Success bool
	RaidID  string
	Data    map[string]string
}

// RaidSession is the engine's view of an external raid record.
type RaidSession struct {
	ID             string
	ExpeditionID   string
	Monster        Monster
	FailedAttempts int
	Active         bool
}

// RaidService escalates tier-5+ encounters into external raid sessions.
type RaidService interface {
	Start(ctx context.Context, monster Monster, actorName, village, expeditionID string) (RaidStart, error)
	Get(ctx context.Context, raidID string) (RaidSession, error)
	// RecordRetreatFailure increments the raid's failed attempt counter.
	RecordRetreatFailure(ctx context.Context, raidID string) error
	EndAsRetreat(ctx context.Context, raidID string) error
}

// CombatResolver resolves simple (non-raid) monster fights. The formula is
// a black box owned by the combat service.
type CombatResolver interface {
	Resolve(ctx context.Context, monster Monster, actor domain.CharacterSlot, seed int64) (CombatResult, error)
}

// CombatResult is the outcome of a simple fight.
type CombatResult struct {
	HeartsLost int
	Loot       []string
}

// MazeLayout is a generated maze grid.
type MazeLayout struct {
	Matrix     [][]domain.MazeCell
	PathCells  []domain.QuadrantPos
	EntryNodes []domain.QuadrantPos
}

// MazeGenerator produces maze grids for grotto maze trials. The generation
// algorithm is a black box.
type MazeGenerator interface {
	Generate(ctx context.Context, width, height int, entryType string) (MazeLayout, error)
}

// LootTable draws random and monster-specific loot.
type LootTable interface {
	RandomItem(ctx context.Context, seed int64) (string, error)
	MonsterLoot(ctx context.Context, monsterName string, seed int64) ([]string, error)
}

// MonsterTable draws a random monster for encounter outcomes.
type MonsterTable interface {
	RandomMonster(ctx context.Context, seed int64) (Monster, error)
}
