package game

import "fmt"

// handleAttack deals the attacker's damage to the opponent's active card.
// Power is not floored. A knockout increments the owner's counter; unless it
// was the deciding knockout, the card is discarded and the owner must choose
// a replacement. The deciding knockout is left for EvaluateWin.
func handleAttack(s *GameState, actorID string, _ Payload) error {
	opponentID, ok := OpponentOf(s, actorID)
	if !ok {
		return ErrNoOpponent
	}
	player := s.Players[actorID]
	opponent := s.Players[opponentID]
	if opponent == nil {
		return ErrNoOpponent
	}
	if player.ActivePokemon == nil {
		return ErrNoActivePokemon
	}
	if opponent.ActivePokemon == nil {
		return ErrOpponentHasNoActive
	}

	attacker := player.ActivePokemon
	defender := opponent.ActivePokemon
	defender.Power -= attacker.Attack

	s.Message = fmt.Sprintf("%s's %s attacked %s's %s for %d damage!",
		actorID, attacker.Name, opponentID, defender.Name, attacker.Attack)
	s.LastAction = &ActionRecord{
		Actor:  actorID,
		Kind:   ActionAttack,
		Card:   attacker.Name,
		Target: defender.Name,
		Damage: attacker.Attack,
	}

	if !defender.KnockedOut() {
		return nil
	}

	opponent.KnockedOutCount++
	s.Message = appendSentence(s.Message, fmt.Sprintf("%s was knocked out!", defender.Name))
	if opponent.KnockedOutCount >= s.Rules.withDefaults().KnockoutsToWin {
		return nil
	}
	opponent.Discard = append(opponent.Discard, *defender)
	opponent.ActivePokemon = nil
	s.Message = appendSentence(s.Message,
		fmt.Sprintf("%s must now choose a new active Pokémon from their bench or hand.", opponentID))
	return nil
}
