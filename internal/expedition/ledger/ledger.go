// Package ledger pays action costs from an expedition's pooled stamina,
// falling back to hearts when stamina runs short ("struggle").
//
// Planning is pure: Plan computes per-slot deductions without touching the
// expedition, so a failed plan deducts nothing. Apply commits a plan to the
// slots and refreshes the pool totals. The service layer persists slot
// changes through the character store before any further side effect.
package ledger

import (
	"fmt"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	apperrors "github.com/louisbranch/veilwood.quest/internal/platform/errors"
)

// Deduction is a per-slot share of a payment.
type Deduction struct {
	Index   int
	Stamina int
	Hearts  int
}

// Payment is a computed, not-yet-applied draw-down across the roster.
type Payment struct {
	Amount      int
	StaminaPaid int
	HeartsPaid  int
	Deductions  []Deduction
}

// DrawOrder returns roster indexes starting at opener and wrapping in
// index order.
func DrawOrder(opener, memberCount int) []int {
	order := make([]int, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		order = append(order, (opener+i)%memberCount)
	}
	return order
}

// Plan computes a payment of amount stamina drawn from the acting slot
// first and then remaining members in index order. Any shortfall converts
// 1:1 into heart loss using the same ordering.
//
// Plan fails with INSUFFICIENT_RESOURCES only when the pooled stamina plus
// pooled hearts cannot cover the amount; nothing is deducted on failure.
func Plan(members []domain.CharacterSlot, actingIndex, amount int) (Payment, error) {
	return PlanWithOrder(members, DrawOrder(actingIndex, len(members)), amount)
}

// PlanWithOrder computes a payment drawing down slots in the given order.
func PlanWithOrder(members []domain.CharacterSlot, order []int, amount int) (Payment, error) {
	if amount < 0 {
		return Payment{}, fmt.Errorf("payment amount must be non-negative")
	}
	payment := Payment{Amount: amount}
	if amount == 0 {
		return payment, nil
	}

	staminaAvailable, heartsAvailable := 0, 0
	for _, member := range members {
		staminaAvailable += member.CurrentStamina
		heartsAvailable += member.CurrentHearts
	}
	if staminaAvailable+heartsAvailable < amount {
		return Payment{}, apperrors.WithMetadata(
			apperrors.CodeInsufficientResources,
			fmt.Sprintf("party has %d stamina and %d hearts, needs %d", staminaAvailable, heartsAvailable, amount),
			map[string]string{
				"stamina": fmt.Sprintf("%d", staminaAvailable),
				"hearts":  fmt.Sprintf("%d", heartsAvailable),
				"cost":    fmt.Sprintf("%d", amount),
			},
		)
	}

	deductions := make(map[int]*Deduction)
	take := func(index int) *Deduction {
		if d, ok := deductions[index]; ok {
			return d
		}
		d := &Deduction{Index: index}
		deductions[index] = d
		return d
	}

	remaining := amount
	for _, index := range order {
		if remaining == 0 {
			break
		}
		available := members[index].CurrentStamina
		if available == 0 {
			continue
		}
		share := available
		if share > remaining {
			share = remaining
		}
		take(index).Stamina = share
		payment.StaminaPaid += share
		remaining -= share
	}

	// Struggle: the shortfall comes out of hearts in the same order.
	for _, index := range order {
		if remaining == 0 {
			break
		}
		available := members[index].CurrentHearts
		if available == 0 {
			continue
		}
		share := available
		if share > remaining {
			share = remaining
		}
		take(index).Hearts = share
		payment.HeartsPaid += share
		remaining -= share
	}

	for _, index := range order {
		if d, ok := deductions[index]; ok && (d.Stamina > 0 || d.Hearts > 0) {
			payment.Deductions = append(payment.Deductions, *d)
		}
	}
	return payment, nil
}

// Apply commits a planned payment to the expedition's slots and recomputes
// the pool totals.
func Apply(exp *domain.Expedition, payment Payment) {
	for _, d := range payment.Deductions {
		exp.Members[d.Index].CurrentStamina -= d.Stamina
		exp.Members[d.Index].CurrentHearts -= d.Hearts
	}
	exp.RecomputeTotals()
}
