package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/expedition/outcome"
	"github.com/louisbranch/veilwood.quest/internal/storage"
	"github.com/louisbranch/veilwood.quest/internal/tuning"
)

type fakeExpeditions struct {
	records map[string]domain.Expedition
}

func newFakeExpeditions() *fakeExpeditions {
	return &fakeExpeditions{records: make(map[string]domain.Expedition)}
}

func (f *fakeExpeditions) Put(_ context.Context, exp domain.Expedition) error {
	f.records[exp.ID] = exp
	return nil
}

func (f *fakeExpeditions) Get(_ context.Context, id string) (domain.Expedition, error) {
	exp, ok := f.records[id]
	if !ok {
		return domain.Expedition{}, storage.ErrNotFound
	}
	return exp, nil
}

func (f *fakeExpeditions) ListActive(_ context.Context) ([]domain.Expedition, error) {
	var active []domain.Expedition
	for _, exp := range f.records {
		if exp.Status == domain.StatusStarted {
			active = append(active, exp)
		}
	}
	return active, nil
}

type fakeWorldMap struct {
	squares      map[string]domain.Square
	statusWrites []string
	discoveries  []domain.Discovery
	rolledBack   []domain.QuadrantRef
}

func newFakeWorldMap() *fakeWorldMap {
	return &fakeWorldMap{squares: make(map[string]domain.Square)}
}

func (f *fakeWorldMap) GetSquare(_ context.Context, squareID string) (domain.Square, error) {
	square, ok := f.squares[strings.ToUpper(squareID)]
	if !ok {
		return domain.Square{}, storage.ErrNotFound
	}
	return square, nil
}

func (f *fakeWorldMap) PutSquare(_ context.Context, square domain.Square) error {
	f.squares[strings.ToUpper(square.ID)] = square
	return nil
}

func (f *fakeWorldMap) UpdateQuadrantStatus(_ context.Context, squareID, quadrantID string, status domain.QuadrantStatus) (storage.UpdateResult, error) {
	square, ok := f.squares[strings.ToUpper(squareID)]
	if !ok {
		return storage.UpdateResult{}, nil
	}
	f.statusWrites = append(f.statusWrites, fmt.Sprintf("%s/%s=%s", squareID, quadrantID, status))
	q := square.QuadrantByID(quadrantID)
	if q == nil || q.Status == status || !q.Status.CanTransition(status) {
		return storage.UpdateResult{Matched: true}, nil
	}
	q.Status = status
	f.squares[strings.ToUpper(squareID)] = square
	return storage.UpdateResult{Matched: true, Modified: true}, nil
}

func (f *fakeWorldMap) AddDiscovery(_ context.Context, squareID, quadrantID string, discovery domain.Discovery) (storage.UpdateResult, error) {
	square, ok := f.squares[strings.ToUpper(squareID)]
	if !ok {
		return storage.UpdateResult{}, nil
	}
	q := square.QuadrantByID(quadrantID)
	if q == nil {
		return storage.UpdateResult{}, nil
	}
	q.Discoveries = append(q.Discoveries, discovery)
	f.squares[strings.ToUpper(squareID)] = square
	f.discoveries = append(f.discoveries, discovery)
	return storage.UpdateResult{Matched: true, Modified: true}, nil
}

func (f *fakeWorldMap) RollbackQuadrants(_ context.Context, refs []domain.QuadrantRef) error {
	f.rolledBack = append(f.rolledBack, refs...)
	for _, ref := range refs {
		square, ok := f.squares[strings.ToUpper(ref.Square)]
		if !ok {
			continue
		}
		square.Rollback([]string{ref.Quadrant})
		f.squares[strings.ToUpper(ref.Square)] = square
	}
	return nil
}

type fakeGrottos struct {
	records map[string]domain.Grotto
}

func newFakeGrottos() *fakeGrottos {
	return &fakeGrottos{records: make(map[string]domain.Grotto)}
}

func grottoKey(square, quadrant, expeditionID string) string {
	return strings.ToUpper(square) + "|" + strings.ToUpper(quadrant) + "|" + expeditionID
}

func (f *fakeGrottos) Put(_ context.Context, record domain.Grotto) error {
	f.records[grottoKey(record.Square, record.Quadrant, record.ExpeditionID)] = record
	return nil
}

func (f *fakeGrottos) Get(_ context.Context, square, quadrant, expeditionID string) (domain.Grotto, error) {
	record, ok := f.records[grottoKey(square, quadrant, expeditionID)]
	if !ok {
		return domain.Grotto{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeGrottos) GetUnsealed(_ context.Context, square, expeditionID string) (domain.Grotto, error) {
	for _, record := range f.records {
		if strings.EqualFold(record.Square, square) && record.ExpeditionID == expeditionID && record.Active() {
			return record, nil
		}
	}
	return domain.Grotto{}, storage.ErrNotFound
}

type fakeCharacters struct {
	vitals   map[string][2]int
	villages map[string]string
	debuffs  map[string]time.Time
	granted  map[string][]domain.CarriedItem
	failNext error
}

func newFakeCharacters() *fakeCharacters {
	return &fakeCharacters{
		vitals:   make(map[string][2]int),
		villages: make(map[string]string),
		debuffs:  make(map[string]time.Time),
		granted:  make(map[string][]domain.CarriedItem),
	}
}

func (f *fakeCharacters) UpdateVitals(_ context.Context, characterID string, hearts, stamina int) error {
	if f.failNext != nil {
		return f.failNext
	}
	f.vitals[characterID] = [2]int{hearts, stamina}
	return nil
}

func (f *fakeCharacters) SetVillage(_ context.Context, characterID, village string) error {
	f.villages[characterID] = village
	return nil
}

func (f *fakeCharacters) SetRecoveryDebuff(_ context.Context, characterID string, until time.Time) error {
	f.debuffs[characterID] = until
	return nil
}

func (f *fakeCharacters) AddItems(_ context.Context, characterID string, items []domain.CarriedItem) error {
	f.granted[characterID] = append(f.granted[characterID], items...)
	return nil
}

type fakeRaids struct {
	sessions  map[string]*storage.RaidSession
	started   []storage.Monster
	nextID    int
	startFail bool
}

func newFakeRaids() *fakeRaids {
	return &fakeRaids{sessions: make(map[string]*storage.RaidSession)}
}

func (f *fakeRaids) Start(_ context.Context, monster storage.Monster, _, _, expeditionID string) (storage.RaidStart, error) {
	if f.startFail {
		return storage.RaidStart{}, nil
	}
	f.nextID++
	id := fmt.Sprintf("raid-%d", f.nextID)
	f.sessions[id] = &storage.RaidSession{
		ID:           id,
		ExpeditionID: expeditionID,
		Monster:      monster,
		Active:       true,
	}
	f.started = append(f.started, monster)
	return storage.RaidStart{Success: true, RaidID: id}, nil
}

func (f *fakeRaids) Get(_ context.Context, raidID string) (storage.RaidSession, error) {
	session, ok := f.sessions[raidID]
	if !ok {
		return storage.RaidSession{}, storage.ErrNotFound
	}
	return *session, nil
}

func (f *fakeRaids) RecordRetreatFailure(_ context.Context, raidID string) error {
	f.sessions[raidID].FailedAttempts++
	return nil
}

func (f *fakeRaids) EndAsRetreat(_ context.Context, raidID string) error {
	f.sessions[raidID].Active = false
	return nil
}

type fakeCombat struct {
	result storage.CombatResult
}

func (f *fakeCombat) Resolve(_ context.Context, _ storage.Monster, _ domain.CharacterSlot, _ int64) (storage.CombatResult, error) {
	return f.result, nil
}

type fakeMazes struct {
	layout storage.MazeLayout
}

func (f *fakeMazes) Generate(_ context.Context, _, _ int, _ string) (storage.MazeLayout, error) {
	return f.layout, nil
}

type fakeLoot struct {
	item string
}

func (f *fakeLoot) RandomItem(_ context.Context, _ int64) (string, error) {
	return f.item, nil
}

func (f *fakeLoot) MonsterLoot(_ context.Context, _ string, _ int64) ([]string, error) {
	return []string{f.item}, nil
}

type fakeMonsters struct {
	monster storage.Monster
}

func (f *fakeMonsters) RandomMonster(_ context.Context, _ int64) (storage.Monster, error) {
	return f.monster, nil
}

type fixture struct {
	service     *Service
	expeditions *fakeExpeditions
	worldMap    *fakeWorldMap
	grottos     *fakeGrottos
	characters  *fakeCharacters
	raids       *fakeRaids
	combat      *fakeCombat
	mazes       *fakeMazes
	loot        *fakeLoot
	monsters    *fakeMonsters
	now         time.Time
}

func newFixture(t *testing.T, tables tuning.Tables) *fixture {
	t.Helper()
	f := &fixture{
		expeditions: newFakeExpeditions(),
		worldMap:    newFakeWorldMap(),
		grottos:     newFakeGrottos(),
		characters:  newFakeCharacters(),
		raids:       newFakeRaids(),
		combat:      &fakeCombat{},
		mazes: &fakeMazes{layout: storage.MazeLayout{
			Matrix: [][]domain.MazeCell{
				{domain.MazeCellExit, domain.MazeCellPath},
				{domain.MazeCellPath, domain.MazeCellPath},
			},
			EntryNodes: []domain.QuadrantPos{{Row: 1, Col: 0}},
		}},
		loot:     &fakeLoot{item: "Moon Pearl"},
		monsters: &fakeMonsters{monster: storage.Monster{Name: "Thicket Wolf", Tier: 1}},
		now:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	service, err := New(Config{
		Expeditions: f.expeditions,
		WorldMap:    f.worldMap,
		Grottos:     f.grottos,
		Characters:  f.characters,
		Raids:       f.raids,
		Combat:      f.combat,
		Mazes:       f.mazes,
		Loot:        f.loot,
		Monsters:    f.monsters,
		Tables:      tables,
		Now:         func() time.Time { return f.now },
		NewSeed:     func() (int64, error) { return 7, nil },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.service = service
	return f
}

// seed stores an expedition and returns the command addressing its first
// member.
func (f *fixture) seed(exp domain.Expedition) Command {
	f.expeditions.records[exp.ID] = exp
	return Command{
		ExpeditionID:  exp.ID,
		UserID:        exp.Members[0].UserID,
		CharacterName: exp.Members[0].Name,
	}
}

func (f *fixture) stored(t *testing.T, id string) domain.Expedition {
	t.Helper()
	exp, ok := f.expeditions.records[id]
	if !ok {
		t.Fatalf("expedition %s not stored", id)
	}
	return exp
}

func testMembers() []domain.CharacterSlot {
	return []domain.CharacterSlot{
		{CharacterID: "c1", Name: "Rowan", UserID: "u1", CurrentHearts: 3, CurrentStamina: 5},
		{CharacterID: "c2", Name: "Briar", UserID: "u2", CurrentHearts: 3, CurrentStamina: 5},
	}
}

func testExpedition() domain.Expedition {
	exp := domain.Expedition{
		ID:           "exp1",
		Village:      "Thornwick",
		Region:       "veilwood",
		Square:       "D4",
		Quadrant:     "Q1",
		HomeSquare:   "D4",
		HomeQuadrant: "Q1",
		Status:       domain.StatusStarted,
		Members:      testMembers(),
		SquareCache:  domain.DefaultQuadrants(),
		CreatedAt:    time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	exp.RecomputeTotals()
	return exp
}

// weightsOn puts the whole weight budget on a single outcome kind so roll
// tests draw it regardless of seed.
func weightsOn(kind outcome.Kind) tuning.OutcomeWeights {
	var w tuning.OutcomeWeights
	switch kind {
	case outcome.KindMonster:
		w.Monster = 1
	case outcome.KindItem:
		w.Item = 1
	case outcome.KindExplored:
		w.Explored = 1
	case outcome.KindFairy:
		w.Fairy = 1
	case outcome.KindChest:
		w.Chest = 1
	case outcome.KindOldMap:
		w.OldMap = 1
	case outcome.KindRuins:
		w.Ruins = 1
	case outcome.KindRelic:
		w.Relic = 1
	case outcome.KindCamp:
		w.Camp = 1
	case outcome.KindMonsterCamp:
		w.MonsterCamp = 1
	case outcome.KindGrotto:
		w.Grotto = 1
	}
	return w
}

func tablesOn(kind outcome.Kind) tuning.Tables {
	tables := tuning.Default()
	tables.Outcomes = weightsOn(kind)
	return tables
}
