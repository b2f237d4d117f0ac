package game

import "fmt"

// CreateSession builds a fresh lobby with the creator as its only player.
func CreateSession(creatorID string, rules Rules, rng Rand) *GameState {
	rules = rules.withDefaults()
	hand, deck := BuildDeck(Catalog, rules, rng)
	return &GameState{
		Players: map[string]*PlayerState{
			creatorID: newPlayerState(hand, deck),
		},
		TurnOrder:          []string{creatorID},
		CurrentPlayerIndex: 0,
		State:              Lobby,
		Message:            fmt.Sprintf("%s created the game.", creatorID),
		Revision:           1,
		Rules:              rules,
	}
}

// JoinSession adds joinerID to a lobby with a freshly dealt hand and deck.
// It does not start the game.
func JoinSession(s *GameState, joinerID string, rng Rand) (*GameState, error) {
	if s.State != Lobby {
		return s, reject("", ErrAlreadyStarted)
	}
	if len(s.TurnOrder) >= s.Rules.withDefaults().MaxPlayers {
		return s, reject("", ErrSessionFull)
	}
	if s.HasParticipant(joinerID) {
		return s, reject("", ErrDuplicateParticipant)
	}

	next := s.Clone()
	hand, deck := BuildDeck(Catalog, next.Rules.withDefaults(), rng)
	next.Players[joinerID] = newPlayerState(hand, deck)
	next.TurnOrder = append(next.TurnOrder, joinerID)
	next.Message = fmt.Sprintf("%s joined the game!", joinerID)
	next.LastAction = &ActionRecord{Actor: joinerID, Kind: ActionJoin}
	next.Revision++
	return next, nil
}

// StartSession moves a full lobby to Playing. Turn and board state are left as they are.
func StartSession(s *GameState) (*GameState, error) {
	if s.State != Lobby {
		return s, reject("", ErrAlreadyStarted)
	}
	if len(s.TurnOrder) != s.Rules.withDefaults().MaxPlayers {
		return s, reject("", ErrInsufficientPlayers)
	}

	next := s.Clone()
	next.State = Playing
	next.Message = "The game has started!"
	next.LastAction = &ActionRecord{Kind: ActionStart}
	next.Revision++
	return next, nil
}
