package grotto

import (
	"math/rand"
	"strings"

	"github.com/louisbranch/veilwood.quest/internal/core/dice"
	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
	"github.com/louisbranch/veilwood.quest/internal/storage"
)

// MazeAction is a player move inside a maze trial.
type MazeAction string

const (
	MazeLeft     MazeAction = "left"
	MazeRight    MazeAction = "right"
	MazeStraight MazeAction = "straight"
	MazeBack     MazeAction = "back"
	MazeWall     MazeAction = "wall"
)

// NormalizeMazeAction validates and normalizes a maze action value.
func NormalizeMazeAction(value string) (MazeAction, error) {
	lowered := MazeAction(strings.ToLower(strings.TrimSpace(value)))
	switch lowered {
	case MazeLeft, MazeRight, MazeStraight, MazeBack, MazeWall:
		return lowered, nil
	}
	return "", apperrors.New(apperrors.CodeMazeInvalidAction,
		"maze action must be left, right, straight, back, or wall")
}

// Facing deltas indexed north, east, south, west.
var facingDeltas = [4]domain.QuadrantPos{
	{Row: -1, Col: 0},
	{Row: 0, Col: 1},
	{Row: 1, Col: 0},
	{Row: 0, Col: -1},
}

// InitMaze seeds a maze state from a generated layout, entering at the
// first entry node facing north.
func InitMaze(state *domain.MazeState, layout storage.MazeLayout) {
	state.Matrix = layout.Matrix
	if len(layout.EntryNodes) > 0 {
		state.Row = layout.EntryNodes[0].Row
		state.Col = layout.EntryNodes[0].Col
	}
	state.Facing = 0
	state.Trail = []domain.QuadrantPos{{Row: state.Row, Col: state.Col}}
}

// MazeStepResult captures one maze walk step.
type MazeStepResult struct {
	Cell domain.MazeCell
	// Blocked is set when the step would leave the grid; the party stays
	// put and should turn or roll against the wall.
	Blocked bool
	Exited  bool
	// HeartLoss and StaminaGain carry trap and shrine cell effects.
	HeartLoss   int
	StaminaGain int
	FoundChest  bool
}

// Step walks one cell in the direction relative to the current facing.
func Step(state *domain.MazeState, action MazeAction) (MazeStepResult, error) {
	var turn int
	switch action {
	case MazeStraight:
		turn = 0
	case MazeRight:
		turn = 1
	case MazeBack:
		turn = 2
	case MazeLeft:
		turn = 3
	case MazeWall:
		return MazeStepResult{}, apperrors.New(apperrors.CodeMazeInvalidAction,
			"wall is rolled, not stepped")
	default:
		return MazeStepResult{}, apperrors.New(apperrors.CodeMazeInvalidAction,
			"maze action must be left, right, straight, back, or wall")
	}

	facing := (state.Facing + turn) % 4
	delta := facingDeltas[facing]
	row, col := state.Row+delta.Row, state.Col+delta.Col
	if row < 0 || row >= len(state.Matrix) || len(state.Matrix) == 0 ||
		col < 0 || col >= len(state.Matrix[row]) {
		if state.Breached {
			state.Breached = false
			state.Facing = facing
			return MazeStepResult{Exited: true}, nil
		}
		return MazeStepResult{Blocked: true}, nil
	}

	state.Facing = facing
	state.Row, state.Col = row, col
	state.Trail = append(state.Trail, domain.QuadrantPos{Row: row, Col: col})

	result := MazeStepResult{Cell: state.Matrix[row][col]}
	switch result.Cell {
	case domain.MazeCellTrap:
		result.HeartLoss = 1
	case domain.MazeCellChest:
		result.FoundChest = true
	case domain.MazeCellExit:
		result.Exited = true
	case domain.MazeCellP:
		result.StaminaGain = 1
	case domain.MazeCellN:
		result.HeartLoss = 1
	case domain.MazeCellPath:
	}
	return result, nil
}

// WallOutcome is one entry of the fixed d6 wall table.
type WallOutcome string

const (
	WallHeartLoss   WallOutcome = "heart_loss"
	WallStaminaLoss WallOutcome = "stamina_loss"
	WallNothing     WallOutcome = "nothing"
	WallCollapse    WallOutcome = "collapse"
	WallBreach      WallOutcome = "breach"
	WallRaid        WallOutcome = "raid"
)

// wallCollapseDepth is how many trail positions a collapse undoes.
const wallCollapseDepth = 3

// WallResult captures a resolved wall roll.
type WallResult struct {
	Roll    int
	Outcome WallOutcome
	// Breached is set when the wall gives way. The opening stays until
	// the party steps against the boundary, which exits the maze.
	Breached bool
}

// RollWall rolls the fixed d6 wall table. A collapse truncates recent
// trail progress and moves the party back; a raid outcome escalates to the
// raid service (handled by the caller).
func RollWall(state *domain.MazeState, rng *rand.Rand) WallResult {
	roll, err := dice.RollWithRng(rng, []dice.Spec{{Sides: 6, Count: 1}})
	if err != nil {
		// Unreachable: the spec is constant and valid.
		return WallResult{Outcome: WallNothing}
	}

	result := WallResult{Roll: roll.Total}
	switch roll.Total {
	case 1:
		result.Outcome = WallHeartLoss
	case 2:
		result.Outcome = WallStaminaLoss
	case 3:
		result.Outcome = WallNothing
	case 4:
		result.Outcome = WallCollapse
		collapse(state)
	case 5:
		result.Outcome = WallBreach
		result.Breached = true
		state.Breached = true
	case 6:
		result.Outcome = WallRaid
	}
	return result
}

// collapse truncates up to wallCollapseDepth positions of recent progress
// and returns the party to the surviving trail head.
func collapse(state *domain.MazeState) {
	depth := wallCollapseDepth
	if depth >= len(state.Trail) {
		depth = len(state.Trail) - 1
	}
	if depth <= 0 {
		return
	}
	state.Trail = state.Trail[:len(state.Trail)-depth]
	head := state.Trail[len(state.Trail)-1]
	state.Row, state.Col = head.Row, head.Col
}
