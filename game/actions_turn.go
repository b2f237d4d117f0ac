package game

import "fmt"

func handleEndTurn(s *GameState, actorID string, _ Payload) error {
	s.CurrentPlayerIndex = (s.CurrentPlayerIndex + 1) % len(s.TurnOrder)
	next := s.CurrentPlayer()
	s.Message = fmt.Sprintf("%s's turn.", next)
	s.LastAction = &ActionRecord{Actor: actorID, Kind: ActionEndTurn, Target: next}
	return nil
}
