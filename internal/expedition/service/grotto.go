package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/expedition/grotto"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
	"github.com/louisbranch/veilwood.quest/internal/storage"
)

// mazeWidth and mazeHeight size generated maze trials.
const (
	mazeWidth  = 5
	mazeHeight = 5
)

// jobTargetBonus widens the target practice success band for marksman jobs.
var jobTargetBonus = map[string]int{
	"hunter": 15,
	"scout":  10,
}

// huntingBow also widens the band when carried by the acting character.
const huntingBow = "Hunting Bow"

func targetModifier(slot *domain.CharacterSlot) int {
	modifier := jobTargetBonus[strings.ToLower(slot.Job)]
	if slot.ItemIndex(huntingBow) != -1 {
		modifier += 10
	}
	return modifier
}

// applyReward grants a trial reward: vitals to every member, items to the
// acting character.
func applyReward(exp *domain.Expedition, reward grotto.Reward, actingIndex int) {
	for i := range exp.Members {
		adjustVitals(exp, i, reward.Hearts, reward.Stamina)
	}
	for _, item := range reward.Items {
		addItem(&exp.Members[actingIndex], item, true)
	}
}

// unsealedGrottoHere loads the expedition's unsealed grotto and checks the
// party is standing on it.
func (s *Service) unsealedGrottoHere(ctx context.Context, exp *domain.Expedition) (domain.Grotto, error) {
	record, err := s.grottos.GetUnsealed(ctx, exp.Square, exp.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Grotto{}, apperrors.New(apperrors.CodeGrottoNotFound,
				fmt.Sprintf("no open grotto trial in %s", exp.Square))
		}
		return domain.Grotto{}, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"load grotto", err)
	}
	if !strings.EqualFold(record.Quadrant, exp.Quadrant) {
		return domain.Grotto{}, apperrors.New(apperrors.CodeInvalidLocation,
			fmt.Sprintf("the grotto waits at %s %s", record.Square, record.Quadrant))
	}
	return record, nil
}

// hasGrottoDiscovery reports whether a grotto was discovered on the party's
// current quadrant, on the shared map or in this run's log.
func hasGrottoDiscovery(exp *domain.Expedition, square *domain.Square) bool {
	if square != nil {
		if q := square.QuadrantByID(exp.Quadrant); q != nil {
			for _, d := range q.Discoveries {
				if d.Type == domain.DiscoveryGrotto {
					return true
				}
			}
		}
	}
	for _, entry := range exp.ProgressLog {
		if strings.EqualFold(entry.Square, exp.Square) &&
			strings.EqualFold(entry.Quadrant, exp.Quadrant) &&
			entry.Outcome == string(domain.DiscoveryGrotto) &&
			entry.Confirmation != domain.ConfirmationDeclined {
			return true
		}
	}
	return false
}

// CleanseOutput reports a grotto cleanse.
type CleanseOutput struct {
	Trial domain.TrialType
	// RaidID is set when the drawn trial is a test of power and a boss raid
	// was started.
	RaidID string
	// Completed is set for blessing trials, which resolve immediately.
	Completed bool
	Failed    bool
}

// CleanseGrotto opens the grotto discovered on the current quadrant by
// spending one warding salt and 1 stamina, then draws its trial.
func (s *Service) CleanseGrotto(ctx context.Context, cmd Command) (CleanseOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.grotto.cleanse", cmd.ExpeditionID)
	defer span.End()

	var out CleanseOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := s.guardAction(ctx, &exp, index); err != nil {
		return out, err
	}

	if !hasGrottoDiscovery(&exp, s.currentSquare(ctx, &exp)) {
		return out, apperrors.New(apperrors.CodeGrottoNotFound,
			fmt.Sprintf("no grotto has been discovered at %s %s", exp.Square, exp.Quadrant))
	}
	if _, err := s.grottos.GetUnsealed(ctx, exp.Square, exp.ID); err == nil {
		return out, apperrors.New(apperrors.CodeGrottoAlreadyHere,
			fmt.Sprintf("a grotto trial is already open in %s", exp.Square))
	} else if !errors.Is(err, storage.ErrNotFound) {
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"load grotto", err)
	}
	if prior, err := s.grottos.Get(ctx, exp.Square, exp.Quadrant, exp.ID); err == nil {
		if prior.Sealed {
			return out, apperrors.New(apperrors.CodeGrottoSealed,
				"the grotto is sealed for this run")
		}
		if prior.Completed() {
			return out, apperrors.New(apperrors.CodeGrottoSealed,
				"the grotto's trial is already complete")
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"load grotto", err)
	}

	// The consumable is verified before any cost is paid.
	carrierIndex, itemIndex := findCarrier(&exp, grotto.CleanseItem)
	if carrierIndex == -1 {
		return out, apperrors.WithMetadata(apperrors.CodeInvariantViolation,
			fmt.Sprintf("cleansing a grotto needs %s", grotto.CleanseItem),
			map[string]string{"item": grotto.CleanseItem})
	}
	payment, err := s.payCost(&exp, index, s.tables.Costs.Cleanse)
	if err != nil {
		return out, err
	}
	exp.Members[carrierIndex].RemoveItem(exp.Members[carrierIndex].Items[itemIndex].Name)

	rng, _, err := s.seededRng()
	if err != nil {
		return out, err
	}
	trial := grotto.DrawTrial(rng)
	record := grotto.New(exp.Square, exp.Quadrant, exp.ID, trial,
		targetModifier(&exp.Members[index]), s.now())
	out.Trial = trial

	entry := domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "cleanse",
		Message:       fmt.Sprintf("the grotto opens onto a %s trial", trial),
		StaminaCost:   payment.StaminaPaid,
		HeartCost:     payment.HeartsPaid,
	}

	switch trial {
	case domain.TrialBlessing:
		applyReward(&exp, grotto.BlessingReward, index)
		grotto.Complete(&record, s.now())
		out.Completed = true
		entry.Message = "the grotto blesses the party"

	case domain.TrialMaze:
		layout, err := s.mazes.Generate(ctx, mazeWidth, mazeHeight, "edge")
		if err != nil {
			return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				"generate maze", err)
		}
		grotto.InitMaze(record.Maze, layout)

	case domain.TrialTestOfPower:
		boss := storage.Monster{Name: "Grotto Guardian", Tier: s.tables.RaidTier}
		start, err := s.raids.Start(ctx, boss, cmd.CharacterName, exp.Village, exp.ID)
		if err != nil {
			return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
				"start boss raid", err)
		}
		if !start.Success {
			return out, apperrors.New(apperrors.CodeRaidCooldownActive,
				"the guardian cannot be challenged yet")
		}
		exp.ActiveRaidID = start.RaidID
		out.RaidID = start.RaidID
		entry.Message = "the grotto's guardian rises"
	}

	if err := s.grottos.Put(ctx, record); err != nil {
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"save grotto", err)
	}
	exp.AppendLog(entry)
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}

// GrottoStatusOutput reports the open grotto trial for a resume command.
type GrottoStatusOutput struct {
	Grotto domain.Grotto
}

// GrottoStatus returns the expedition's open grotto trial at the current
// square without consuming a turn.
func (s *Service) GrottoStatus(ctx context.Context, cmd Command) (GrottoStatusOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.grotto.status", cmd.ExpeditionID)
	defer span.End()

	exp, _, err := s.resolve(ctx, cmd)
	if err != nil {
		return GrottoStatusOutput{}, err
	}
	record, err := s.grottos.GetUnsealed(ctx, exp.Square, exp.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return GrottoStatusOutput{}, apperrors.New(apperrors.CodeGrottoNotFound,
				fmt.Sprintf("no open grotto trial in %s", exp.Square))
		}
		return GrottoStatusOutput{}, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"load grotto", err)
	}
	return GrottoStatusOutput{Grotto: record}, nil
}

// TargetPracticeOutput reports one target practice turn.
type TargetPracticeOutput struct {
	Roll      int
	Band      grotto.TargetBand
	Successes int
	Completed bool
	Sealed    bool
	Failed    bool
}

// TargetPractice takes one shot at the grotto's target practice trial.
func (s *Service) TargetPractice(ctx context.Context, cmd Command) (TargetPracticeOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.grotto.target_practice", cmd.ExpeditionID)
	defer span.End()

	var out TargetPracticeOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := s.guardAction(ctx, &exp, index); err != nil {
		return out, err
	}
	record, err := s.unsealedGrottoHere(ctx, &exp)
	if err != nil {
		return out, err
	}
	if record.TrialType != domain.TrialTargetPractice || record.TargetPractice == nil {
		return out, apperrors.New(apperrors.CodeGrottoWrongTrial,
			fmt.Sprintf("the grotto holds a %s trial", record.TrialType))
	}

	rng, _, err := s.seededRng()
	if err != nil {
		return out, err
	}
	result := grotto.ResolveTargetPractice(*record.TargetPractice,
		s.tables.TargetPracticeSuccesses, rng)
	record.TargetPractice = &result.State
	out.Roll = result.Roll
	out.Band = result.Band
	out.Successes = result.State.Successes
	out.Completed = result.Completed
	out.Sealed = result.Sealed

	entry := domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "target_practice",
		Message:       fmt.Sprintf("shot %d: %s", result.Roll, result.Band),
	}
	if result.Sealed {
		grotto.Seal(&record)
		entry.Message = "the shot goes wide and the grotto seals itself"
	}
	if result.Completed {
		grotto.Complete(&record, s.now())
		applyReward(&exp, grotto.TrialReward, index)
		entry.Message = "the final target shatters"
	}

	if err := s.grottos.Put(ctx, record); err != nil {
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"save grotto", err)
	}
	exp.AppendLog(entry)
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}

// PuzzleOutput reports a submitted puzzle offering.
type PuzzleOutput struct {
	Offering []string
	Failed   bool
}

// PuzzleOffer submits an offering to the grotto's puzzle trial. The items
// are consumed immediately and the trial suspends until an outside review.
func (s *Service) PuzzleOffer(ctx context.Context, cmd Command, items []string, description string) (PuzzleOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.grotto.puzzle", cmd.ExpeditionID)
	defer span.End()

	var out PuzzleOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := s.guardAction(ctx, &exp, index); err != nil {
		return out, err
	}
	record, err := s.unsealedGrottoHere(ctx, &exp)
	if err != nil {
		return out, err
	}
	if record.TrialType != domain.TrialPuzzle || record.Puzzle == nil {
		return out, apperrors.New(apperrors.CodeGrottoWrongTrial,
			fmt.Sprintf("the grotto holds a %s trial", record.TrialType))
	}

	// Every offered item must be carried by someone before any is taken.
	type pick struct {
		member int
		name   string
	}
	picks := make([]pick, 0, len(items))
	canonical := make([]string, 0, len(items))
	for _, typed := range items {
		mi, ii := findCarrier(&exp, typed)
		if mi == -1 {
			return out, apperrors.WithMetadata(apperrors.CodeItemNotCarried,
				fmt.Sprintf("nobody carries %s", typed),
				map[string]string{"item": typed})
		}
		name := exp.Members[mi].Items[ii].Name
		picks = append(picks, pick{member: mi, name: name})
		canonical = append(canonical, name)
	}

	if err := grotto.SubmitOffering(record.Puzzle, canonical, description); err != nil {
		return out, err
	}
	for _, p := range picks {
		exp.Members[p.member].RemoveItem(p.name)
	}

	exp.Pending = &domain.PendingChoice{
		Kind:           domain.PendingPuzzleApproval,
		CharacterIndex: index,
		Square:         exp.Square,
		Quadrant:       exp.Quadrant,
		ExpiresAt:      s.now().UTC().Add(s.tables.PendingChoiceTimeout),
	}

	if err := s.grottos.Put(ctx, record); err != nil {
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"save grotto", err)
	}
	exp.AppendLog(domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "puzzle_offering",
		Message:       fmt.Sprintf("offered %s to the grotto", strings.Join(canonical, ", ")),
	})
	out.Offering = canonical
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}

// PuzzleReviewOutput reports an applied puzzle verdict.
type PuzzleReviewOutput struct {
	Approved  bool
	Completed bool
}

// ReviewPuzzle applies the out-of-band reviewer verdict to a suspended
// puzzle offering. Approval completes the trial and rewards the party;
// denial seals the grotto. The offering stays consumed either way.
func (s *Service) ReviewPuzzle(ctx context.Context, expeditionID string, approved bool) (PuzzleReviewOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.grotto.review_puzzle", expeditionID)
	defer span.End()

	var out PuzzleReviewOutput
	exp, err := s.expeditions.Get(ctx, expeditionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return out, apperrors.New(apperrors.CodeExpeditionNotFound,
				fmt.Sprintf("expedition %s not found", expeditionID))
		}
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"load expedition", err)
	}
	if exp.Pending == nil || exp.Pending.Kind != domain.PendingPuzzleApproval {
		return out, apperrors.New(apperrors.CodeNoPendingChoice,
			"no puzzle offering awaits review")
	}
	pending := exp.Pending
	record, err := s.grottos.GetUnsealed(ctx, pending.Square, exp.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return out, apperrors.New(apperrors.CodeGrottoNotFound,
				fmt.Sprintf("no open grotto trial in %s", pending.Square))
		}
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"load grotto", err)
	}
	if err := grotto.ResolvePuzzle(&record, approved); err != nil {
		return out, err
	}
	out.Approved = approved

	entry := domain.LogEntry{
		At:       s.now().UTC(),
		Outcome:  "puzzle_verdict",
		Square:   pending.Square,
		Quadrant: pending.Quadrant,
	}
	if approved {
		grotto.Complete(&record, s.now())
		applyReward(&exp, grotto.TrialReward, pending.CharacterIndex)
		out.Completed = true
		entry.Message = "the grotto accepts the offering"
	} else {
		entry.Message = "the grotto rejects the offering and seals itself"
	}

	if err := s.grottos.Put(ctx, record); err != nil {
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"save grotto", err)
	}
	exp.Pending = nil
	exp.AppendLog(entry)
	if err := s.mirrorVitals(ctx, &exp); err != nil {
		return out, err
	}
	return out, s.save(ctx, &exp)
}

// MazeOutput reports one maze trial action.
type MazeOutput struct {
	Cell    domain.MazeCell
	Blocked bool
	Exited  bool
	// Wall carries the d6 wall table result for wall actions.
	Wall *grotto.WallResult
	// Chest is the item looted from a chest cell, when one was found.
	Chest  string
	RaidID string
	Failed bool
}

// MazeWalk takes one action inside the grotto's maze trial.
func (s *Service) MazeWalk(ctx context.Context, cmd Command, action string) (MazeOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.grotto.maze", cmd.ExpeditionID)
	defer span.End()

	var out MazeOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := s.guardAction(ctx, &exp, index); err != nil {
		return out, err
	}
	record, err := s.unsealedGrottoHere(ctx, &exp)
	if err != nil {
		return out, err
	}
	if record.TrialType != domain.TrialMaze || record.Maze == nil {
		return out, apperrors.New(apperrors.CodeGrottoWrongTrial,
			fmt.Sprintf("the grotto holds a %s trial", record.TrialType))
	}
	act, err := grotto.NormalizeMazeAction(action)
	if err != nil {
		return out, err
	}

	rng, seed, err := s.seededRng()
	if err != nil {
		return out, err
	}
	entry := domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "maze",
	}

	if act == grotto.MazeWall {
		wall := grotto.RollWall(record.Maze, rng)
		out.Wall = &wall
		entry.Message = fmt.Sprintf("wall roll %d: %s", wall.Roll, wall.Outcome)
		switch wall.Outcome {
		case grotto.WallHeartLoss:
			adjustVitals(&exp, index, -1, 0)
			entry.HeartCost = 1
		case grotto.WallStaminaLoss:
			adjustVitals(&exp, index, 0, -1)
			entry.StaminaCost = 1
		case grotto.WallRaid:
			horror := storage.Monster{Name: "Maze Horror", Tier: s.tables.RaidTier}
			start, err := s.raids.Start(ctx, horror, cmd.CharacterName, exp.Village, exp.ID)
			if err != nil {
				return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
					"start maze raid", err)
			}
			if start.Success {
				exp.ActiveRaidID = start.RaidID
				out.RaidID = start.RaidID
			}
		}
	} else {
		step, err := grotto.Step(record.Maze, act)
		if err != nil {
			return out, err
		}
		out.Cell = step.Cell
		out.Blocked = step.Blocked
		out.Exited = step.Exited
		if step.HeartLoss > 0 {
			adjustVitals(&exp, index, -step.HeartLoss, 0)
			entry.HeartCost = step.HeartLoss
		}
		if step.StaminaGain > 0 {
			adjustVitals(&exp, index, 0, step.StaminaGain)
		}
		if step.FoundChest {
			item, err := s.loot.RandomItem(ctx, seed)
			if err != nil {
				return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
					"draw chest loot", err)
			}
			addItem(&exp.Members[index], item, true)
			out.Chest = item
			entry.Loot = []string{item}
		}
		if step.Exited {
			grotto.Complete(&record, s.now())
			applyReward(&exp, grotto.TrialReward, index)
			entry.Message = "the party finds the way out"
		} else if step.Blocked {
			entry.Message = "a wall blocks the way"
		} else {
			entry.Message = fmt.Sprintf("stepped onto a %s cell", step.Cell)
		}
	}

	if err := s.grottos.Put(ctx, record); err != nil {
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"save grotto", err)
	}
	exp.AppendLog(entry)
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}

// TravelOutput reports a guided travel back to an open grotto.
type TravelOutput struct {
	Square   string
	Quadrant string
	Failed   bool
}

// TravelToGrotto returns the party to the square holding its open grotto
// trial. Travel is guided: the square-leave rule does not apply, and the
// cost is that of moving to explored ground.
func (s *Service) TravelToGrotto(ctx context.Context, cmd Command, square string) (TravelOutput, error) {
	ctx, span := s.startSpan(ctx, "expedition.grotto.travel", cmd.ExpeditionID)
	defer span.End()

	var out TravelOutput
	exp, index, err := s.resolve(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := s.guardAction(ctx, &exp, index); err != nil {
		return out, err
	}
	if strings.EqualFold(square, exp.Square) {
		return out, apperrors.New(apperrors.CodeInvalidLocation,
			"the party is already there")
	}
	record, err := s.grottos.GetUnsealed(ctx, square, exp.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return out, apperrors.New(apperrors.CodeGrottoNotFound,
				fmt.Sprintf("no open grotto trial in %s", square))
		}
		return out, apperrors.Wrap(apperrors.CodeExternalCollaboratorFailure,
			"load grotto", err)
	}

	payment, err := s.payCost(&exp, index, s.tables.Costs.MoveExplored)
	if err != nil {
		return out, err
	}
	exp.PruneUnconfirmedAt(exp.Square)
	if exp.Pending != nil && exp.Pending.Kind == domain.PendingDiscoveryConfirm {
		exp.Pending = nil
	}
	exp.Square = record.Square
	exp.Quadrant = record.Quadrant
	if err := s.mapSync.Reconcile(ctx, &exp); err != nil {
		return out, err
	}

	exp.AppendLog(domain.LogEntry{
		At:            s.now().UTC(),
		CharacterName: cmd.CharacterName,
		Outcome:       "move",
		Message:       fmt.Sprintf("traveled back to the grotto at %s %s", exp.Square, exp.Quadrant),
		StaminaCost:   payment.StaminaPaid,
		HeartCost:     payment.HeartsPaid,
	})
	out.Square = exp.Square
	out.Quadrant = exp.Quadrant
	out.Failed, err = s.completeAction(ctx, &exp)
	return out, err
}
