package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/storage"
	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expeditions.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expeditions.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() {
		_ = sqlDB.Close()
	}()

	assertTableExists(t, sqlDB, "expeditions")
	assertTableExists(t, sqlDB, "map_squares")
	assertTableExists(t, sqlDB, "grottos")
}

func assertTableExists(t *testing.T, sqlDB *sql.DB, name string) {
	t.Helper()
	var found string
	row := sqlDB.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	if err := row.Scan(&found); err != nil {
		t.Fatalf("table %s missing: %v", name, err)
	}
}

func TestExpeditionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	exp := domain.Expedition{
		ID:       "exp1",
		Village:  "Thornwick",
		Square:   "D4",
		Quadrant: "Q1",
		Status:   domain.StatusStarted,
		Members: []domain.CharacterSlot{
			{CharacterID: "c1", Name: "Rowan", CurrentHearts: 3, CurrentStamina: 5},
		},
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	exp.RecomputeTotals()

	if err := store.Put(ctx, exp); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "exp1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Village != "Thornwick" || got.TotalStamina != 5 {
		t.Fatalf("got = %+v", got)
	}
	if len(got.Members) != 1 || got.Members[0].Name != "Rowan" {
		t.Fatalf("members = %+v", got.Members)
	}
}

func TestExpeditionGetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListActiveSkipsCompleted(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := domain.Expedition{ID: "exp1", Village: "Thornwick", Status: domain.StatusStarted}
	done := domain.Expedition{ID: "exp2", Village: "Thornwick", Status: domain.StatusCompleted}
	if err := store.Put(ctx, started); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, done); err != nil {
		t.Fatalf("put: %v", err)
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "exp1" {
		t.Fatalf("active = %+v", active)
	}
}

func testSquare() domain.Square {
	return domain.Square{
		ID:        "D4",
		Region:    "veilwood",
		Quadrants: domain.DefaultQuadrants(),
	}
}

func TestSquareMatchIsCaseInsensitive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutSquare(ctx, testSquare()); err != nil {
		t.Fatalf("put square: %v", err)
	}

	got, err := store.GetSquare(ctx, "d4")
	if err != nil {
		t.Fatalf("get square: %v", err)
	}
	if got.ID != "D4" || len(got.Quadrants) != 4 {
		t.Fatalf("got = %+v", got)
	}
}

func TestUpdateQuadrantStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutSquare(ctx, testSquare()); err != nil {
		t.Fatalf("put square: %v", err)
	}

	result, err := store.UpdateQuadrantStatus(ctx, "d4", "q2", domain.QuadrantExplored)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !result.Matched || !result.Modified {
		t.Fatalf("result = %+v, want matched and modified", result)
	}

	got, err := store.GetSquare(ctx, "D4")
	if err != nil {
		t.Fatalf("get square: %v", err)
	}
	if q := got.QuadrantByID("Q2"); q == nil || q.Status != domain.QuadrantExplored {
		t.Fatalf("quadrant = %+v", q)
	}

	// Writing the same status again matches without modifying.
	result, err = store.UpdateQuadrantStatus(ctx, "D4", "Q2", domain.QuadrantExplored)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !result.Matched || result.Modified {
		t.Fatalf("result = %+v, want matched only", result)
	}
}

func TestUpdateQuadrantStatusNeverRegresses(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	square := testSquare()
	square.Quadrants[0].Status = domain.QuadrantSecured
	if err := store.PutSquare(ctx, square); err != nil {
		t.Fatalf("put square: %v", err)
	}

	// Another expedition's stale view tries to mark the quadrant explored.
	result, err := store.UpdateQuadrantStatus(ctx, "d4", "Q1", domain.QuadrantExplored)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !result.Matched || result.Modified {
		t.Fatalf("result = %+v, want matched only", result)
	}

	got, err := store.GetSquare(ctx, "D4")
	if err != nil {
		t.Fatalf("get square: %v", err)
	}
	if q := got.QuadrantByID("Q1"); q == nil || q.Status != domain.QuadrantSecured {
		t.Fatalf("quadrant = %+v, want secured", q)
	}
}

func TestUpdateQuadrantStatusMissingSquare(t *testing.T) {
	store := openTestStore(t)

	result, err := store.UpdateQuadrantStatus(context.Background(), "Z9", "Q1", domain.QuadrantExplored)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if result.Matched {
		t.Fatalf("result = %+v, want no match", result)
	}
}

func TestAddDiscoveryAppends(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutSquare(ctx, testSquare()); err != nil {
		t.Fatalf("put square: %v", err)
	}

	discovery := domain.Discovery{
		Type:         domain.DiscoveryRuins,
		DiscoveredBy: "Rowan",
		DiscoveredAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Key:          "d1",
	}
	result, err := store.AddDiscovery(ctx, "D4", "Q1", discovery)
	if err != nil {
		t.Fatalf("add discovery: %v", err)
	}
	if !result.Modified {
		t.Fatalf("result = %+v, want modified", result)
	}

	got, err := store.GetSquare(ctx, "D4")
	if err != nil {
		t.Fatalf("get square: %v", err)
	}
	q := got.QuadrantByID("Q1")
	if q == nil || len(q.Discoveries) != 1 || q.Discoveries[0].Type != domain.DiscoveryRuins {
		t.Fatalf("quadrant = %+v", q)
	}
}

func TestRollbackQuadrants(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	square := testSquare()
	square.Quadrants[0].Status = domain.QuadrantExplored
	square.Quadrants[1].Status = domain.QuadrantExplored
	if err := store.PutSquare(ctx, square); err != nil {
		t.Fatalf("put square: %v", err)
	}

	err := store.RollbackQuadrants(ctx, []domain.QuadrantRef{
		{Square: "D4", Quadrant: "Q1"},
	})
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}

	got, err := store.GetSquare(ctx, "D4")
	if err != nil {
		t.Fatalf("get square: %v", err)
	}
	if got.Quadrants[0].Status != domain.QuadrantUnexplored {
		t.Fatalf("Q1 = %s, want unexplored", got.Quadrants[0].Status)
	}
	if got.Quadrants[1].Status != domain.QuadrantExplored {
		t.Fatalf("Q2 = %s, rollback touched an unlisted quadrant", got.Quadrants[1].Status)
	}
}

func TestGrottoRoundTripAndUnsealedLookup(t *testing.T) {
	store := openTestStore(t)
	grottos := store.Grottos()
	ctx := context.Background()

	open := domain.Grotto{
		Square:       "D4",
		Quadrant:     "Q1",
		ExpeditionID: "exp1",
		TrialType:    domain.TrialPuzzle,
		Puzzle:       &domain.PuzzleState{},
		CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := grottos.Put(ctx, open); err != nil {
		t.Fatalf("put grotto: %v", err)
	}

	got, err := grottos.Get(ctx, "d4", "q1", "exp1")
	if err != nil {
		t.Fatalf("get grotto: %v", err)
	}
	if got.TrialType != domain.TrialPuzzle || got.Puzzle == nil {
		t.Fatalf("got = %+v", got)
	}

	unsealed, err := grottos.GetUnsealed(ctx, "D4", "exp1")
	if err != nil {
		t.Fatalf("get unsealed: %v", err)
	}
	if unsealed.Quadrant != "Q1" {
		t.Fatalf("unsealed = %+v", unsealed)
	}
}

func TestGetUnsealedSkipsSealedAndCompleted(t *testing.T) {
	store := openTestStore(t)
	grottos := store.Grottos()
	ctx := context.Background()

	sealed := domain.Grotto{
		Square:       "D4",
		Quadrant:     "Q1",
		ExpeditionID: "exp1",
		TrialType:    domain.TrialMaze,
		Sealed:       true,
	}
	completedAt := time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC)
	completed := domain.Grotto{
		Square:       "D4",
		Quadrant:     "Q2",
		ExpeditionID: "exp1",
		TrialType:    domain.TrialBlessing,
		CompletedAt:  &completedAt,
	}
	if err := grottos.Put(ctx, sealed); err != nil {
		t.Fatalf("put grotto: %v", err)
	}
	if err := grottos.Put(ctx, completed); err != nil {
		t.Fatalf("put grotto: %v", err)
	}

	_, err := grottos.GetUnsealed(ctx, "D4", "exp1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGrottoIsScopedToExpedition(t *testing.T) {
	store := openTestStore(t)
	grottos := store.Grottos()
	ctx := context.Background()

	mine := domain.Grotto{
		Square:       "D4",
		Quadrant:     "Q1",
		ExpeditionID: "exp1",
		TrialType:    domain.TrialMaze,
		Maze:         &domain.MazeState{},
	}
	if err := grottos.Put(ctx, mine); err != nil {
		t.Fatalf("put grotto: %v", err)
	}

	_, err := grottos.GetUnsealed(ctx, "D4", "exp2")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
