// Package outcome draws weighted roll outcomes for the expedition engine.
//
// A draw is a single pass over a fixed weight table. The roller re-draws
// through a bounded loop whenever the discovery gate rejects the outcome,
// falling back to a plain item find when the loop exhausts.
package outcome

import (
	"math/rand"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
	"github.com/louisbranch/veilwood.quest/internal/tuning"
)

// Kind identifies a roll outcome.
type Kind string

const (
	KindMonster     Kind = "monster"
	KindItem        Kind = "item"
	KindExplored    Kind = "explored"
	KindFairy       Kind = "fairy"
	KindChest       Kind = "chest"
	KindOldMap      Kind = "old_map"
	KindRuins       Kind = "ruins"
	KindRelic       Kind = "relic"
	KindCamp        Kind = "camp"
	KindMonsterCamp Kind = "monster_camp"
	KindGrotto      Kind = "grotto"
)

// Kinds lists every outcome in table order.
var Kinds = []Kind{
	KindMonster,
	KindItem,
	KindExplored,
	KindFairy,
	KindChest,
	KindOldMap,
	KindRuins,
	KindRelic,
	KindCamp,
	KindMonsterCamp,
	KindGrotto,
}

// DiscoveryType maps counted outcome kinds onto discovery types. The second
// return is false for kinds that do not count toward the square cap.
func (k Kind) DiscoveryType() (domain.DiscoveryType, bool) {
	switch k {
	case KindMonsterCamp:
		return domain.DiscoveryMonsterCamp, true
	case KindGrotto:
		return domain.DiscoveryGrotto, true
	case KindRelic:
		return domain.DiscoveryRelic, true
	case KindRuins:
		return domain.DiscoveryRuins, true
	case KindMonster, KindItem, KindExplored, KindFairy, KindChest, KindOldMap, KindCamp:
		return "", false
	}
	return "", false
}

// Counted reports whether the outcome counts toward the per-square
// discovery cap.
func (k Kind) Counted() bool {
	_, counted := k.DiscoveryType()
	return counted
}

const weightEpsilon = 1e-9

// Table is an immutable weighted outcome table.
type Table struct {
	kinds   []Kind
	weights []float64
}

// NewTable builds a table from tuning weights. The weights must be
// non-negative and sum to exactly 1.0.
func NewTable(w tuning.OutcomeWeights) (Table, error) {
	weights := []float64{
		w.Monster, w.Item, w.Explored, w.Fairy, w.Chest,
		w.OldMap, w.Ruins, w.Relic, w.Camp, w.MonsterCamp, w.Grotto,
	}
	sum := 0.0
	for _, weight := range weights {
		if weight < 0 {
			return Table{}, apperrors.New(apperrors.CodeTuningInvalidWeights,
				"outcome weights must be non-negative")
		}
		sum += weight
	}
	if diff := sum - 1.0; diff > weightEpsilon || diff < -weightEpsilon {
		return Table{}, apperrors.New(apperrors.CodeTuningInvalidWeights,
			"outcome weights must sum to 1.0")
	}
	return Table{kinds: append([]Kind(nil), Kinds...), weights: weights}, nil
}

// Draw picks a kind from the table with a single uniform draw.
func (t Table) Draw(rng *rand.Rand) Kind {
	value := rng.Float64()
	cumulative := 0.0
	for i, weight := range t.weights {
		cumulative += weight
		if value < cumulative {
			return t.kinds[i]
		}
	}
	// Floating point slack on the final bucket.
	return t.kinds[len(t.kinds)-1]
}

// Gate decides whether a drawn outcome may stand at the current location.
// The rng parameter carries the roller's stream so keep-chance flips stay
// on the same deterministic sequence.
type Gate interface {
	Allow(kind Kind, rng *rand.Rand) bool
}

// Result is a settled draw.
type Result struct {
	Kind    Kind
	Rerolls int
	// Exhausted is set when the reroll loop hit its cap and the fallback
	// item outcome was substituted.
	Exhausted bool
}

// Roller draws outcomes against a table and a discovery gate.
type Roller struct {
	table     Table
	rerollCap int
	rng       *rand.Rand
}

// NewRoller creates a roller. The rng is owned by the roller for the
// duration of the expedition action.
func NewRoller(table Table, rerollCap int, rng *rand.Rand) *Roller {
	if rerollCap <= 0 {
		rerollCap = 50
	}
	return &Roller{table: table, rerollCap: rerollCap, rng: rng}
}

// Roll draws until the gate accepts an outcome or the reroll cap is
// exhausted. The reference behavior had no iteration bound; the cap with an
// item fallback keeps pathological constraint combinations from looping
// forever.
func (r *Roller) Roll(gate Gate) Result {
	var result Result
	for i := 0; i < r.rerollCap; i++ {
		kind := r.table.Draw(r.rng)
		if gate == nil || gate.Allow(kind, r.rng) {
			result.Kind = kind
			result.Rerolls = i
			return result
		}
	}
	return Result{Kind: KindItem, Rerolls: r.rerollCap, Exhausted: true}
}
