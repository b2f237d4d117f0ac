package heuristic

import (
	"pokemon-battle-server/game"
)

func init() {
	Register(RoleLead, scoreLead)
}

// scoreLead prefers the card that wins the exchange against the opposing active:
// hits it can take minus hits it needs. Attack breaks ties. With no opponent
// on the field raw attack matters most.
func scoreLead(c game.Card, opp *game.Card) float64 {
	if opp == nil {
		return float64(c.Attack) + float64(c.Power)/100
	}
	survives := HitsToKnockOut(opp.Attack, c.Power)
	needs := HitsToKnockOut(c.Attack, opp.Power)
	return float64(survives-needs) + 10 + float64(c.Attack)/100
}
