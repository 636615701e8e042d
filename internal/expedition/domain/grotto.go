package domain

import (
	"fmt"
	"strings"
	"time"
)

// TrialType identifies the sub-state-machine a cleansed grotto runs.
type TrialType string

const (
	TrialBlessing       TrialType = "blessing"
	TrialTargetPractice TrialType = "target_practice"
	TrialPuzzle         TrialType = "puzzle"
	TrialMaze           TrialType = "maze"
	TrialTestOfPower    TrialType = "test_of_power"
)

// TrialTypes lists every trial in draw order.
var TrialTypes = []TrialType{
	TrialBlessing,
	TrialTargetPractice,
	TrialPuzzle,
	TrialMaze,
	TrialTestOfPower,
}

// NormalizeTrialType validates and normalizes a trial type value.
func NormalizeTrialType(value string) (TrialType, error) {
	lowered := TrialType(strings.ToLower(strings.TrimSpace(value)))
	for _, trial := range TrialTypes {
		if lowered == trial {
			return trial, nil
		}
	}
	return "", fmt.Errorf("trial type %q is not supported", value)
}

// TargetPracticeState tracks a target practice trial in progress.
type TargetPracticeState struct {
	Successes int `json:"successes"`
	// Modifier widens the success band, from equipment or job.
	Modifier int `json:"modifier,omitempty"`
}

// PuzzleState tracks a puzzle trial. After an offering is submitted the
// trial suspends until out-of-band approval or denial.
type PuzzleState struct {
	Offering    []string `json:"offering,omitempty"`
	Description string   `json:"description,omitempty"`
	Submitted   bool     `json:"submitted"`
}

// MazeCell is a generated maze cell type.
type MazeCell string

const (
	MazeCellPath  MazeCell = "path"
	MazeCellTrap  MazeCell = "trap"
	MazeCellChest MazeCell = "chest"
	MazeCellExit  MazeCell = "exit"
	MazeCellP     MazeCell = "mazeP"
	MazeCellN     MazeCell = "mazeN"
)

// MazeState tracks a maze trial walk over a generated grid.
type MazeState struct {
	Matrix [][]MazeCell `json:"matrix"`
	Row    int          `json:"row"`
	Col    int          `json:"col"`
	// Facing is the direction of the last step: 0 north, 1 east,
	// 2 south, 3 west.
	Facing int `json:"facing"`
	// Trail holds visited positions in order, newest last. Wall rolls may
	// collapse recent progress by truncating the trail.
	Trail []QuadrantPos `json:"trail,omitempty"`
	// Breached is set when a wall roll opened the outer wall; the next
	// step against the boundary exits through the opening.
	Breached bool `json:"breached,omitempty"`
}

// QuadrantPos is a row/col position inside a maze matrix.
type QuadrantPos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grotto is a per-square, per-expedition trial record. One unsealed grotto
// may exist per square per expedition; the record is terminal once
// CompletedAt is set.
type Grotto struct {
	Square         string               `json:"square"`
	Quadrant       string               `json:"quadrant"`
	ExpeditionID   string               `json:"expeditionId"`
	TrialType      TrialType            `json:"trialType"`
	Sealed         bool                 `json:"sealed"`
	TargetPractice *TargetPracticeState `json:"targetPracticeState,omitempty"`
	Puzzle         *PuzzleState         `json:"puzzleState,omitempty"`
	Maze           *MazeState           `json:"mazeState,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
}

// Completed reports whether the trial reached a terminal state.
func (g *Grotto) Completed() bool {
	return g.CompletedAt != nil
}

// Active reports whether the grotto still accepts trial actions.
func (g *Grotto) Active() bool {
	return !g.Sealed && !g.Completed()
}
