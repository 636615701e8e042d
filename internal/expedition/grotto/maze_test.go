package grotto

import (
	"math/rand"
	"testing"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
	"github.com/louisbranch/veilwood.quest/internal/storage"
)

func testLayout() storage.MazeLayout {
	return storage.MazeLayout{
		Matrix: [][]domain.MazeCell{
			{domain.MazeCellPath, domain.MazeCellTrap, domain.MazeCellExit},
			{domain.MazeCellPath, domain.MazeCellP, domain.MazeCellChest},
			{domain.MazeCellPath, domain.MazeCellN, domain.MazeCellPath},
		},
		EntryNodes: []domain.QuadrantPos{{Row: 2, Col: 0}},
	}
}

func TestInitMazeEntersAtFirstEntryFacingNorth(t *testing.T) {
	var state domain.MazeState
	InitMaze(&state, testLayout())
	if state.Row != 2 || state.Col != 0 {
		t.Fatalf("entry = (%d,%d), want (2,0)", state.Row, state.Col)
	}
	if state.Facing != 0 {
		t.Fatalf("facing = %d, want north", state.Facing)
	}
	if len(state.Trail) != 1 || state.Trail[0] != (domain.QuadrantPos{Row: 2, Col: 0}) {
		t.Fatalf("trail = %v", state.Trail)
	}
}

func TestStepRelativeTurns(t *testing.T) {
	var state domain.MazeState
	InitMaze(&state, testLayout())

	// Facing north at (2,0): straight moves to (1,0).
	result, err := Step(&state, MazeStraight)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if result.Blocked || state.Row != 1 || state.Col != 0 {
		t.Fatalf("after straight: (%d,%d) blocked=%v", state.Row, state.Col, result.Blocked)
	}

	// Right from north faces east, moving to (1,1) which is a shrine.
	result, err = Step(&state, MazeRight)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if state.Row != 1 || state.Col != 1 || state.Facing != 1 {
		t.Fatalf("after right: (%d,%d) facing %d", state.Row, state.Col, state.Facing)
	}
	if result.StaminaGain != 1 {
		t.Fatalf("shrine stamina gain = %d, want 1", result.StaminaGain)
	}

	// Left from east faces north, moving onto the trap at (0,1).
	result, err = Step(&state, MazeLeft)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if result.HeartLoss != 1 {
		t.Fatalf("trap heart loss = %d, want 1", result.HeartLoss)
	}

	// Back from north faces south, returning to (1,1).
	_, err = Step(&state, MazeBack)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if state.Row != 1 || state.Col != 1 || state.Facing != 2 {
		t.Fatalf("after back: (%d,%d) facing %d", state.Row, state.Col, state.Facing)
	}

	if len(state.Trail) != 5 {
		t.Fatalf("trail length = %d, want 5", len(state.Trail))
	}
}

func TestStepBlockedAtEdgeStaysPut(t *testing.T) {
	var state domain.MazeState
	InitMaze(&state, testLayout())

	// Facing north at (2,0): left would face west, off the grid.
	result, err := Step(&state, MazeLeft)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !result.Blocked {
		t.Fatal("edge step must block")
	}
	if state.Row != 2 || state.Col != 0 || state.Facing != 0 {
		t.Fatalf("blocked step moved party: (%d,%d) facing %d", state.Row, state.Col, state.Facing)
	}
	if len(state.Trail) != 1 {
		t.Fatalf("blocked step extended trail: %v", state.Trail)
	}
}

func TestStepChestAndExit(t *testing.T) {
	var state domain.MazeState
	InitMaze(&state, testLayout())
	state.Row, state.Col, state.Facing = 1, 1, 1

	result, err := Step(&state, MazeStraight)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !result.FoundChest {
		t.Fatal("chest cell must report a chest")
	}

	// Left from east faces north onto the exit at (0,2).
	result, err = Step(&state, MazeLeft)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !result.Exited {
		t.Fatal("exit cell must end the maze")
	}
}

func TestStepRejectsWallAction(t *testing.T) {
	var state domain.MazeState
	InitMaze(&state, testLayout())
	_, err := Step(&state, MazeWall)
	if apperrors.CodeOf(err) != apperrors.CodeMazeInvalidAction {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeMazeInvalidAction)
	}
}

func TestNormalizeMazeAction(t *testing.T) {
	action, err := NormalizeMazeAction("  Left ")
	if err != nil || action != MazeLeft {
		t.Fatalf("NormalizeMazeAction() = %v, %v", action, err)
	}
	if _, err := NormalizeMazeAction("sideways"); apperrors.CodeOf(err) != apperrors.CodeMazeInvalidAction {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeMazeInvalidAction)
	}
}

func TestRollWallOutcomesMatchRoll(t *testing.T) {
	wantByRoll := map[int]WallOutcome{
		1: WallHeartLoss,
		2: WallStaminaLoss,
		3: WallNothing,
		4: WallCollapse,
		5: WallBreach,
		6: WallRaid,
	}
	seen := make(map[WallOutcome]bool)
	for seed := int64(0); seed < 200; seed++ {
		var state domain.MazeState
		InitMaze(&state, testLayout())
		result := RollWall(&state, rand.New(rand.NewSource(seed)))
		if result.Outcome != wantByRoll[result.Roll] {
			t.Fatalf("seed %d: roll %d gave %s", seed, result.Roll, result.Outcome)
		}
		if result.Breached != (result.Outcome == WallBreach) {
			t.Fatalf("seed %d: breached = %v for %s", seed, result.Breached, result.Outcome)
		}
		seen[result.Outcome] = true
	}
	if len(seen) != 6 {
		t.Fatalf("saw %d outcomes over 200 rolls, want 6", len(seen))
	}
}

func TestWallBreachLetsBlockedStepExit(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		var state domain.MazeState
		InitMaze(&state, testLayout())
		result := RollWall(&state, rand.New(rand.NewSource(seed)))
		if result.Outcome != WallBreach {
			continue
		}
		if !state.Breached {
			t.Fatal("breach roll must open the wall")
		}

		// Facing north at (2,0): left faces west, into the boundary.
		step, err := Step(&state, MazeLeft)
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if step.Blocked || !step.Exited {
			t.Fatalf("step = %+v, want exit through the breach", step)
		}
		if state.Breached {
			t.Fatal("breach must close once stepped through")
		}

		// A later boundary step without a breach blocks again.
		state.Row, state.Col, state.Facing = 2, 0, 0
		step, err = Step(&state, MazeLeft)
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if !step.Blocked || step.Exited {
			t.Fatalf("step = %+v, want blocked", step)
		}
		return
	}
	t.Fatal("no breach found in 200 seeds")
}

func TestWallCollapseTruncatesTrail(t *testing.T) {
	var state domain.MazeState
	InitMaze(&state, testLayout())
	for _, action := range []MazeAction{MazeStraight, MazeStraight, MazeRight, MazeStraight} {
		if _, err := Step(&state, action); err != nil {
			t.Fatalf("Step(%s) error = %v", action, err)
		}
	}
	before := len(state.Trail)

	for seed := int64(0); seed < 200; seed++ {
		copied := state
		copied.Trail = append([]domain.QuadrantPos(nil), state.Trail...)
		result := RollWall(&copied, rand.New(rand.NewSource(seed)))
		if result.Outcome != WallCollapse {
			continue
		}
		if len(copied.Trail) != before-3 {
			t.Fatalf("trail length = %d, want %d", len(copied.Trail), before-3)
		}
		head := copied.Trail[len(copied.Trail)-1]
		if copied.Row != head.Row || copied.Col != head.Col {
			t.Fatalf("party at (%d,%d), trail head %v", copied.Row, copied.Col, head)
		}
		return
	}
	t.Fatal("no collapse found in 200 seeds")
}

func TestWallCollapseNeverDropsEntry(t *testing.T) {
	var state domain.MazeState
	InitMaze(&state, testLayout())

	for seed := int64(0); seed < 200; seed++ {
		copied := state
		copied.Trail = append([]domain.QuadrantPos(nil), state.Trail...)
		result := RollWall(&copied, rand.New(rand.NewSource(seed)))
		if result.Outcome != WallCollapse {
			continue
		}
		if len(copied.Trail) != 1 {
			t.Fatalf("trail length = %d, want 1", len(copied.Trail))
		}
		return
	}
	t.Fatal("no collapse found in 200 seeds")
}
