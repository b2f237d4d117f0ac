package heuristic

import (
	"pokemon-battle-server/game"
)

// Roles a card can be scored for.
const (
	RoleLead    = "lead"    // the active slot
	RoleReserve = "reserve" // the bench
)

// ScoreFunc rates card for a role against the opponent's active card (nil when the slot is empty).
// Higher is better. A negative return value means "not evaluated".
type ScoreFunc func(card game.Card, opponent *game.Card) float64

var registry = make(map[string]ScoreFunc)

// Register adds or overwrites the heuristic for a role.
func Register(role string, fn ScoreFunc) {
	registry[role] = fn
}

// Score returns the score of card for role, or -1 if no heuristic is registered.
func Score(role string, card game.Card, opponent *game.Card) float64 {
	fn, ok := registry[role]
	if !ok || fn == nil {
		return -1
	}
	return fn(card, opponent)
}

// Best returns the index of the highest scoring card for role, or -1 if cards is empty.
// Ties keep the earliest card.
func Best(role string, cards []game.Card, opponent *game.Card) int {
	best, bestScore := -1, 0.0
	for i, c := range cards {
		s := Score(role, c, opponent)
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
