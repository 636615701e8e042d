// Package tuning defines the balance tables for the expedition engine.
//
// Tables are plain data so tests can substitute deterministic values. The
// shipped defaults match the live game balance; operators may override
// individual values with a yaml file.
package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// OutcomeWeights holds the draw probability for each roll outcome.
// The weights must sum to exactly 1.0.
type OutcomeWeights struct {
	Monster     float64 `yaml:"monster"`
	Item        float64 `yaml:"item"`
	Explored    float64 `yaml:"explored"`
	Fairy       float64 `yaml:"fairy"`
	Chest       float64 `yaml:"chest"`
	OldMap      float64 `yaml:"old_map"`
	Ruins       float64 `yaml:"ruins"`
	Relic       float64 `yaml:"relic"`
	Camp        float64 `yaml:"camp"`
	MonsterCamp float64 `yaml:"monster_camp"`
	Grotto      float64 `yaml:"grotto"`
}

// CostSchedule holds stamina costs per action and quadrant state.
type CostSchedule struct {
	RollUnexplored int `yaml:"roll_unexplored"`
	RollExplored   int `yaml:"roll_explored"`
	RollSecured    int `yaml:"roll_secured"`
	Secure         int `yaml:"secure"`
	MoveUnexplored int `yaml:"move_unexplored"`
	MoveExplored   int `yaml:"move_explored"`
	MoveSecured    int `yaml:"move_secured"`
	Cleanse        int `yaml:"cleanse"`
	Retreat        int `yaml:"retreat"`
}

// RetreatOdds holds the escalating retreat success chance parameters.
type RetreatOdds struct {
	Base float64 `yaml:"base"`
	Step float64 `yaml:"step"`
	Cap  float64 `yaml:"cap"`
}

// Tables bundles every tunable used by the engine.
type Tables struct {
	Outcomes OutcomeWeights `yaml:"outcomes"`
	Costs    CostSchedule   `yaml:"costs"`
	Retreat  RetreatOdds    `yaml:"retreat"`

	// DiscoveryCapPerSquare caps counted discoveries per square.
	DiscoveryCapPerSquare int `yaml:"discovery_cap_per_square"`
	// DiscoveryKeepChance is the keep probability when a square already
	// holds a counted discovery.
	DiscoveryKeepChance float64 `yaml:"discovery_keep_chance"`
	// RerollCap bounds the outcome reroll loop.
	RerollCap int `yaml:"reroll_cap"`
	// RaidTier is the monster tier at which encounters escalate to raids.
	RaidTier int `yaml:"raid_tier"`
	// TargetPracticeSuccesses is the flawless-success count needed to
	// complete a target practice trial.
	TargetPracticeSuccesses int `yaml:"target_practice_successes"`
	// PendingChoiceTimeout bounds how long a suspended choice may wait
	// before the timeout default applies.
	PendingChoiceTimeout time.Duration `yaml:"pending_choice_timeout"`
	// RecoveryDebuff is how long a knocked out party is blocked from
	// expeditions and healing.
	RecoveryDebuff time.Duration `yaml:"recovery_debuff"`
	// CampRecovery is the stamina each member regains when camping.
	CampRecovery int `yaml:"camp_recovery"`
}

// Default returns the shipped balance tables.
func Default() Tables {
	return Tables{
		Outcomes: OutcomeWeights{
			Monster:     0.18,
			Item:        0.32,
			Explored:    0.17,
			Fairy:       0.05,
			Chest:       0.03,
			OldMap:      0.03,
			Ruins:       0.04,
			Relic:       0.02,
			Camp:        0.06,
			MonsterCamp: 0.08,
			Grotto:      0.02,
		},
		Costs: CostSchedule{
			RollUnexplored: 2,
			RollExplored:   1,
			RollSecured:    0,
			Secure:         5,
			MoveUnexplored: 2,
			MoveExplored:   1,
			MoveSecured:    0,
			Cleanse:        1,
			Retreat:        1,
		},
		Retreat: RetreatOdds{
			Base: 0.50,
			Step: 0.05,
			Cap:  0.95,
		},
		DiscoveryCapPerSquare:   3,
		DiscoveryKeepChance:     0.25,
		RerollCap:               50,
		RaidTier:                5,
		TargetPracticeSuccesses: 3,
		PendingChoiceTimeout:    5 * time.Minute,
		RecoveryDebuff:          7 * 24 * time.Hour,
		CampRecovery:            1,
	}
}

// Load reads overrides from a yaml file on top of the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Tables, error) {
	tables := Default()
	if path == "" {
		return tables, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return tables, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &tables); err != nil {
		return tables, fmt.Errorf("tuning yaml: %w", err)
	}
	return tables, nil
}
