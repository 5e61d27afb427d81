package loans

import (
	"strings"

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/lookupcache"
)

// DefaultReturnAllToken is the return-slot category meaning "return everything I hold".
const DefaultReturnAllToken = "*"

// HolderView is the part of the lookup cache the resolver reads.
type HolderView interface {
	HolderItems(holderID ledger.HolderID) []lookupcache.Item
}

// Resolve expands return slots into concrete tool keys for one holder.
// It is a pure function of the cache view and its inputs.
//
//   - A slot whose category is allToken selects every tool the holder has on loan;
//     if there are none, a no_active_loan warning is reported for the token.
//   - A slot with a category but no name selects the holder's single tool in that category;
//     more than one yields an ambiguous_target warning, none a no_active_loan warning.
//   - A slot with category and name is taken literally and validated when executed.
//   - Empty slots are skipped.
//
// Slots expand independently; the merged keys are deduplicated in first-seen order.
func Resolve(view HolderView, holderID ledger.HolderID, slots []ReturnSlot, allToken string) ([]ledger.ToolKey, []Warning) {
	keys := make([]ledger.ToolKey, 0, len(slots))
	warnings := make([]Warning, 0)
	seen := make(map[ledger.ToolKey]struct{})

	add := func(key ledger.ToolKey) {
		if _, dup := seen[key]; dup {
			return
		}

		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	var held []lookupcache.Item
	heldLoaded := false
	loadHeld := func() []lookupcache.Item {
		if !heldLoaded {
			held = view.HolderItems(holderID)
			heldLoaded = true
		}

		return held
	}

	for _, slot := range slots {
		category := strings.TrimSpace(slot.Category)
		name := strings.TrimSpace(slot.Name)

		switch {
		case category == "":
			continue

		case allToken != "" && category == allToken:
			items := loadHeld()
			if len(items) == 0 {
				warnings = append(warnings, Warning{Category: category, Reason: ledger.ReasonNoActiveLoan})
				continue
			}

			for _, item := range items {
				add(item.Key)
			}

		case name == "":
			matches := make([]ledger.ToolKey, 0, 1)
			for _, item := range loadHeld() {
				if item.Key.Category == category {
					matches = append(matches, item.Key)
				}
			}

			switch len(matches) {
			case 0:
				warnings = append(warnings, Warning{Category: category, Reason: ledger.ReasonNoActiveLoan})
			case 1:
				add(matches[0])
			default:
				warnings = append(warnings, Warning{Category: category, Reason: ledger.ReasonAmbiguousTarget})
			}

		default:
			add(ledger.ToolKey{Category: category, Name: name})
		}
	}

	return keys, warnings
}
