package service

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
)

// matchDistance is the maximum edit distance a typed item name may be from
// a carried item's name and still resolve to it.
const matchDistance = 2

// addItem adds one unit of an item to a slot, merging with an existing
// stack by name.
func addItem(slot *domain.CharacterSlot, name string, expeditionOnly bool) {
	if i := slot.ItemIndex(name); i != -1 {
		slot.Items[i].Quantity++
		return
	}
	slot.Items = append(slot.Items, domain.CarriedItem{
		Name:           name,
		Quantity:       1,
		ExpeditionOnly: expeditionOnly,
	})
}

// matchItem resolves a typed name against a slot's carried items, exact
// case-insensitive first and then by edit distance. Returns the item index
// or -1.
func matchItem(items []domain.CarriedItem, typed string) int {
	typed = strings.ToLower(strings.TrimSpace(typed))
	if typed == "" {
		return -1
	}
	best, bestDistance := -1, matchDistance+1
	for i, item := range items {
		carried := strings.ToLower(item.Name)
		if carried == typed {
			return i
		}
		if d := levenshtein.ComputeDistance(typed, carried); d < bestDistance {
			best, bestDistance = i, d
		}
	}
	return best
}

// findCarrier locates which roster slot carries the typed item. Returns
// member and item indexes, or (-1, -1).
func findCarrier(exp *domain.Expedition, typed string) (memberIndex, itemIndex int) {
	for i := range exp.Members {
		if j := matchItem(exp.Members[i].Items, typed); j != -1 {
			return i, j
		}
	}
	return -1, -1
}
