package game

import "fmt"

func handlePlayCard(s *GameState, actorID string, p Payload) error {
	if p.Card == nil {
		return ErrCardNotInHand
	}
	player := s.Players[actorID]
	idx := indexByName(player.Hand, p.Card.Name)
	if idx < 0 {
		return ErrCardNotInHand
	}
	card := player.Hand[idx]

	if player.ActivePokemon == nil {
		player.Hand = removeAt(player.Hand, idx)
		player.ActivePokemon = &card
		s.Message = fmt.Sprintf("%s played %s as their active Pokémon.", actorID, card.Name)
	} else {
		if len(player.Bench) >= s.Rules.withDefaults().BenchLimit {
			return ErrBenchFull
		}
		player.Hand = removeAt(player.Hand, idx)
		player.Bench = append(player.Bench, card)
		s.Message = fmt.Sprintf("%s played %s to their bench.", actorID, card.Name)
	}
	s.LastAction = &ActionRecord{Actor: actorID, Kind: ActionPlayCard, Card: card.Name}
	return nil
}

// handleSwap exchanges the active card with a bench card. The former active
// card goes to the end of the bench, so the bench size is unchanged.
func handleSwap(s *GameState, actorID string, p Payload) error {
	player := s.Players[actorID]
	if player.ActivePokemon == nil {
		return ErrNoActivePokemon
	}
	idx := indexByName(player.Bench, p.NewActiveName)
	if idx < 0 {
		return ErrNotOnBench
	}

	oldActive := *player.ActivePokemon
	newActive := player.Bench[idx]
	player.Bench = append(removeAt(player.Bench, idx), oldActive)
	player.ActivePokemon = &newActive

	s.Message = fmt.Sprintf("%s swapped their active Pokémon.", actorID)
	s.LastAction = &ActionRecord{Actor: actorID, Kind: ActionSwap, Card: newActive.Name, Target: oldActive.Name}
	return nil
}

// handlePromote fills an empty active slot (after a knockout) from the bench.
func handlePromote(s *GameState, actorID string, p Payload) error {
	player := s.Players[actorID]
	if player.ActivePokemon != nil {
		return ErrActiveOccupied
	}
	idx := indexByName(player.Bench, p.NewActiveName)
	if idx < 0 {
		return ErrNotOnBench
	}

	card := player.Bench[idx]
	player.Bench = removeAt(player.Bench, idx)
	player.ActivePokemon = &card

	s.Message = fmt.Sprintf("%s sent %s into battle from the bench.", actorID, card.Name)
	s.LastAction = &ActionRecord{Actor: actorID, Kind: ActionPromote, Card: card.Name}
	return nil
}
