package domain

import (
	"fmt"
	"strings"
	"time"
)

// QuadrantStatus describes the exploration state of a quadrant.
type QuadrantStatus string

const (
	QuadrantUnexplored   QuadrantStatus = "unexplored"
	QuadrantExplored     QuadrantStatus = "explored"
	QuadrantSecured      QuadrantStatus = "secured"
	QuadrantInaccessible QuadrantStatus = "inaccessible"
)

var quadrantStatusOrder = map[QuadrantStatus]int{
	QuadrantUnexplored: 1,
	QuadrantExplored:   2,
	QuadrantSecured:    3,
}

// NormalizeQuadrantStatus validates and normalizes a quadrant status value.
func NormalizeQuadrantStatus(value string) (QuadrantStatus, error) {
	lowered := QuadrantStatus(strings.ToLower(strings.TrimSpace(value)))
	switch lowered {
	case QuadrantUnexplored, QuadrantExplored, QuadrantSecured, QuadrantInaccessible:
		return lowered, nil
	}
	return "", fmt.Errorf("quadrant status %q is not supported", value)
}

// CanTransition reports whether a quadrant may move from one status to
// another. Status is monotonic non-decreasing; the only permitted
// regression is the explicit expedition-failure rollback to unexplored,
// which callers apply through Square.Rollback rather than here.
func (s QuadrantStatus) CanTransition(to QuadrantStatus) bool {
	if s == QuadrantInaccessible || to == QuadrantInaccessible {
		return false
	}
	from, ok := quadrantStatusOrder[s]
	if !ok {
		return false
	}
	target, ok := quadrantStatusOrder[to]
	if !ok {
		return false
	}
	return target >= from
}

// Resolved reports whether a quadrant no longer blocks leaving its square.
func (s QuadrantStatus) Resolved() bool {
	switch s {
	case QuadrantExplored, QuadrantSecured, QuadrantInaccessible:
		return true
	}
	return false
}

// DiscoveryType identifies a notable find attached to a quadrant.
type DiscoveryType string

const (
	DiscoveryMonsterCamp DiscoveryType = "monster_camp"
	DiscoveryGrotto      DiscoveryType = "grotto"
	DiscoveryRelic       DiscoveryType = "relic"
	DiscoveryRuins       DiscoveryType = "ruins"
)

// Counted reports whether the discovery type counts toward the per-square cap.
func (t DiscoveryType) Counted() bool {
	switch t {
	case DiscoveryMonsterCamp, DiscoveryGrotto, DiscoveryRelic, DiscoveryRuins:
		return true
	}
	return false
}

// Discovery is a notable find recorded on a quadrant of the shared map.
type Discovery struct {
	Type         DiscoveryType `json:"type"`
	DiscoveredBy string        `json:"discoveredBy"`
	DiscoveredAt time.Time     `json:"discoveredAt"`
	Key          string        `json:"discoveryKey"`
}

// Quadrant is one cell of a square with independent exploration status.
type Quadrant struct {
	ID          string         `json:"id"`
	Status      QuadrantStatus `json:"status"`
	Discoveries []Discovery    `json:"discoveries,omitempty"`
}

// Square is a grid cell of the shared world map. Squares are shared across
// all expeditions and are only mutated through document-level store writes.
type Square struct {
	ID        string     `json:"id"`
	Region    string     `json:"region"`
	Quadrants []Quadrant `json:"quadrants"`
}

// QuadrantByID returns a pointer to the quadrant with the given id, matched
// case-insensitively, or nil when absent.
func (s *Square) QuadrantByID(quadrantID string) *Quadrant {
	for i := range s.Quadrants {
		if strings.EqualFold(s.Quadrants[i].ID, quadrantID) {
			return &s.Quadrants[i]
		}
	}
	return nil
}

// CountedDiscoveries returns how many counted discoveries the square holds
// across all quadrants.
func (s *Square) CountedDiscoveries() int {
	count := 0
	for _, q := range s.Quadrants {
		for _, d := range q.Discoveries {
			if d.Type.Counted() {
				count++
			}
		}
	}
	return count
}

// HasGrotto reports whether any quadrant of the square holds a grotto
// discovery.
func (s *Square) HasGrotto() bool {
	for _, q := range s.Quadrants {
		for _, d := range q.Discoveries {
			if d.Type == DiscoveryGrotto {
				return true
			}
		}
	}
	return false
}

// FullyResolved reports whether every quadrant is explored, secured, or
// inaccessible, which is the condition for leaving the square.
func (s *Square) FullyResolved() bool {
	for _, q := range s.Quadrants {
		if !q.Status.Resolved() {
			return false
		}
	}
	return true
}

// Rollback reverts the listed quadrants to unexplored. It is only valid as
// part of the expedition-failure terminal transition.
func (s *Square) Rollback(quadrantIDs []string) {
	for _, id := range quadrantIDs {
		if q := s.QuadrantByID(id); q != nil && q.Status != QuadrantInaccessible {
			q.Status = QuadrantUnexplored
		}
	}
}

// QuadrantRef identifies a quadrant on the shared map.
type QuadrantRef struct {
	Square   string `json:"square"`
	Quadrant string `json:"quadrant"`
}

// ParseSquareID splits a square id like "d4" into column and row indexes.
// Column letters and row numbers are matched case-insensitively.
func ParseSquareID(squareID string) (col, row int, err error) {
	trimmed := strings.ToUpper(strings.TrimSpace(squareID))
	if len(trimmed) < 2 {
		return 0, 0, fmt.Errorf("square id %q is malformed", squareID)
	}
	letter := trimmed[0]
	if letter < 'A' || letter > 'Z' {
		return 0, 0, fmt.Errorf("square id %q is malformed", squareID)
	}
	var parsed int
	if _, err := fmt.Sscanf(trimmed[1:], "%d", &parsed); err != nil || parsed <= 0 {
		return 0, 0, fmt.Errorf("square id %q is malformed", squareID)
	}
	return int(letter - 'A'), parsed - 1, nil
}

// SquaresAdjacent reports whether two squares touch on the grid, including
// diagonals. A square is not adjacent to itself.
func SquaresAdjacent(a, b string) bool {
	colA, rowA, err := ParseSquareID(a)
	if err != nil {
		return false
	}
	colB, rowB, err := ParseSquareID(b)
	if err != nil {
		return false
	}
	if colA == colB && rowA == rowB {
		return false
	}
	dc := colA - colB
	if dc < 0 {
		dc = -dc
	}
	dr := rowA - rowB
	if dr < 0 {
		dr = -dr
	}
	return dc <= 1 && dr <= 1
}
