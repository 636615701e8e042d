package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status describes the lifecycle state of an expedition.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
)

var (
	// ErrEmptyVillage indicates a missing home village.
	ErrEmptyVillage = errors.New("home village is required")
	// ErrEmptyRoster indicates an expedition with no character slots.
	ErrEmptyRoster = errors.New("at least one character slot is required")
	// ErrMemberNotFound indicates a character name absent from the roster.
	ErrMemberNotFound = errors.New("character is not on the expedition roster")
)

// CarriedItem is an item held inside an expedition slot.
type CarriedItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	// ExpeditionOnly items are discarded on failure instead of being
	// returned to the owner's personal inventory.
	ExpeditionOnly bool `json:"expeditionOnly,omitempty"`
}

// CharacterSlot is a denormalized snapshot of a character inside the
// expedition. The slot is the source of truth for turn logic while the
// expedition is active; every mutation is mirrored back to the
// authoritative character record through the character store.
type CharacterSlot struct {
	CharacterID    string        `json:"characterId"`
	Name           string        `json:"name"`
	UserID         string        `json:"userId"`
	Job            string        `json:"job,omitempty"`
	CurrentHearts  int           `json:"currentHearts"`
	CurrentStamina int           `json:"currentStamina"`
	Items          []CarriedItem `json:"items,omitempty"`
}

// ItemIndex returns the index of the named item in the slot, or -1.
// Matching is case-insensitive.
func (s *CharacterSlot) ItemIndex(name string) int {
	for i, item := range s.Items {
		if strings.EqualFold(item.Name, name) {
			return i
		}
	}
	return -1
}

// RemoveItem removes one unit of the named item from the slot and reports
// whether the item was present.
func (s *CharacterSlot) RemoveItem(name string) bool {
	i := s.ItemIndex(name)
	if i == -1 {
		return false
	}
	if s.Items[i].Quantity > 1 {
		s.Items[i].Quantity--
		return true
	}
	s.Items = append(s.Items[:i], s.Items[i+1:]...)
	return true
}

// Expedition is one cooperative exploration run by a party of characters.
// It is owned exclusively by its session: at most one actor mutates it at a
// time, enforced by the turn pointer.
type Expedition struct {
	ID           string          `json:"id"`
	Village      string          `json:"village"`
	Region       string          `json:"region"`
	Square       string          `json:"square"`
	Quadrant     string          `json:"quadrant"`
	HomeSquare   string          `json:"homeSquare"`
	HomeQuadrant string          `json:"homeQuadrant"`
	Status       Status          `json:"status"`
	Members      []CharacterSlot `json:"members"`
	TotalHearts  int             `json:"totalHearts"`
	TotalStamina int             `json:"totalStamina"`
	CurrentTurn  int             `json:"currentTurn"`
	ProgressLog  []LogEntry      `json:"progressLog"`
	// SquareCache is the party's view of the current square's quadrants.
	// The shared map is authoritative for explored/secured; the cache is
	// reconciled from it on square entry.
	SquareCache     []Quadrant     `json:"squareCache,omitempty"`
	ExploredThisRun []QuadrantRef  `json:"exploredThisRun,omitempty"`
	Pending         *PendingChoice `json:"pending,omitempty"`
	ActiveRaidID    string         `json:"activeRaidId,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// CreateExpeditionInput describes the data needed to start an expedition.
type CreateExpeditionInput struct {
	Village  string
	Region   string
	Square   string
	Quadrant string
	Members  []CharacterSlot
}

// CreateExpedition creates a started expedition with a generated ID, the
// starting location doubling as the designated home quadrant, and pool
// totals derived from the slots.
func CreateExpedition(input CreateExpeditionInput, now func() time.Time, idGenerator func() (string, error)) (Expedition, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = NewID
	}

	input.Village = strings.TrimSpace(input.Village)
	if input.Village == "" {
		return Expedition{}, ErrEmptyVillage
	}
	if len(input.Members) == 0 {
		return Expedition{}, ErrEmptyRoster
	}
	if _, _, err := ParseSquareID(input.Square); err != nil {
		return Expedition{}, err
	}

	expeditionID, err := idGenerator()
	if err != nil {
		return Expedition{}, fmt.Errorf("generate expedition id: %w", err)
	}

	createdAt := now().UTC()
	exp := Expedition{
		ID:           expeditionID,
		Village:      input.Village,
		Region:       strings.TrimSpace(input.Region),
		Square:       input.Square,
		Quadrant:     input.Quadrant,
		HomeSquare:   input.Square,
		HomeQuadrant: input.Quadrant,
		Status:       StatusStarted,
		Members:      input.Members,
		CurrentTurn:  0,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	exp.RecomputeTotals()
	return exp, nil
}

// MemberIndexByName returns the roster index for a character name, matched
// case-insensitively, or an error when absent.
func (e *Expedition) MemberIndexByName(name string) (int, error) {
	for i, member := range e.Members {
		if strings.EqualFold(member.Name, name) {
			return i, nil
		}
	}
	return 0, ErrMemberNotFound
}

// RecomputeTotals refreshes the pooled heart and stamina totals from the
// per-slot values. Pools are derived state; slots stay authoritative.
func (e *Expedition) RecomputeTotals() {
	hearts, stamina := 0, 0
	for _, member := range e.Members {
		hearts += member.CurrentHearts
		stamina += member.CurrentStamina
	}
	e.TotalHearts = hearts
	e.TotalStamina = stamina
}

// CachedQuadrant returns the cached quadrant with the given id, matched
// case-insensitively, or nil.
func (e *Expedition) CachedQuadrant(quadrantID string) *Quadrant {
	for i := range e.SquareCache {
		if strings.EqualFold(e.SquareCache[i].ID, quadrantID) {
			return &e.SquareCache[i]
		}
	}
	return nil
}

// CacheResolved reports whether every cached quadrant is explored, secured,
// or inaccessible, the condition for leaving the current square.
func (e *Expedition) CacheResolved() bool {
	for _, q := range e.SquareCache {
		if !q.Status.Resolved() {
			return false
		}
	}
	return len(e.SquareCache) > 0
}

// DefaultQuadrants returns a fresh unexplored quadrant set for squares the
// map store has no record of yet.
func DefaultQuadrants() []Quadrant {
	return []Quadrant{
		{ID: "Q1", Status: QuadrantUnexplored},
		{ID: "Q2", Status: QuadrantUnexplored},
		{ID: "Q3", Status: QuadrantUnexplored},
		{ID: "Q4", Status: QuadrantUnexplored},
	}
}

// AtHome reports whether the party stands on its designated home quadrant.
func (e *Expedition) AtHome() bool {
	return strings.EqualFold(e.Square, e.HomeSquare) &&
		strings.EqualFold(e.Quadrant, e.HomeQuadrant)
}

// MarkExplored records a quadrant as explored during this run so a failure
// rollback can revert it. Duplicate marks are ignored.
func (e *Expedition) MarkExplored(square, quadrant string) {
	for _, ref := range e.ExploredThisRun {
		if strings.EqualFold(ref.Square, square) && strings.EqualFold(ref.Quadrant, quadrant) {
			return
		}
	}
	e.ExploredThisRun = append(e.ExploredThisRun, QuadrantRef{Square: square, Quadrant: quadrant})
}
