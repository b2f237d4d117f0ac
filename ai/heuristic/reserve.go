package heuristic

import (
	"pokemon-battle-server/game"
)

func init() {
	Register(RoleReserve, scoreReserve)
}

// scoreReserve: the bench is the fallback after a knockout, so durability counts double.
func scoreReserve(c game.Card, _ *game.Card) float64 {
	return float64(2*c.Power+c.Attack) / 10
}
