// Package inventory reconciles the player's item list against the updates
// the storyteller hands back each turn.
package inventory

import (
	"slices"

	"github.com/tatianab/adventure-engine/internal/models"
)

// Reconcile applies updates in order and returns a new inventory.
// Adding an item already held changes nothing, and removing an item that
// is not held is a no-op. Unknown actions are ignored. items is not modified.
func Reconcile(items []string, updates []models.InventoryUpdate) []string {
	out := make([]string, 0, len(items)+len(updates))
	out = append(out, items...)

	for _, u := range updates {
		switch u.Action {
		case models.ActionAdd:
			if !Contains(out, u.Item) {
				out = append(out, u.Item)
			}
		case models.ActionRemove:
			out = slices.DeleteFunc(out, func(item string) bool { return item == u.Item })
		}
	}
	return out
}

// Contains returns true if name is held.
func Contains(items []string, name string) bool {
	return slices.Contains(items, name)
}
