package game

import "fmt"

// Rules holds the tunable constants of a session. They are stored with the
// state so a session keeps the rules it was created with.
type Rules struct {
	CopiesPerCard  int `json:"copiesPerCard"`
	HandSize       int `json:"handSize"`
	BenchLimit     int `json:"benchLimit"`
	KnockoutsToWin int `json:"knockoutsToWin"`
	MaxPlayers     int `json:"maxPlayers"`
}

// DefaultRules returns the standard two-player rules.
func DefaultRules() Rules {
	return Rules{
		CopiesPerCard:  5,
		HandSize:       5,
		BenchLimit:     5,
		KnockoutsToWin: 3,
		MaxPlayers:     2,
	}
}

// withDefaults fills zero fields from DefaultRules.
func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.CopiesPerCard <= 0 {
		r.CopiesPerCard = d.CopiesPerCard
	}
	if r.HandSize <= 0 {
		r.HandSize = d.HandSize
	}
	if r.BenchLimit <= 0 {
		r.BenchLimit = d.BenchLimit
	}
	if r.KnockoutsToWin <= 0 {
		r.KnockoutsToWin = d.KnockoutsToWin
	}
	if r.MaxPlayers <= 0 {
		r.MaxPlayers = d.MaxPlayers
	}
	return r
}

// IsTurnOf reports whether participantID may act right now.
func IsTurnOf(s *GameState, participantID string) bool {
	if s == nil || s.State != Playing {
		return false
	}
	return s.CurrentPlayer() == participantID
}

// OpponentOf returns the first participant in the turn order that is not id.
func OpponentOf(s *GameState, id string) (string, bool) {
	for _, p := range s.TurnOrder {
		if p != id {
			return p, true
		}
	}
	return "", false
}

// EvaluateWin finishes the game once a player has suffered enough knockouts.
// It runs after every accepted action and is a no-op outside Playing.
func EvaluateWin(s *GameState) *GameState {
	if s == nil || s.State != Playing {
		return s
	}
	limit := s.Rules.withDefaults().KnockoutsToWin
	for _, id := range s.TurnOrder {
		p := s.Players[id]
		if p == nil || p.KnockedOutCount < limit {
			continue
		}
		winner, ok := OpponentOf(s, id)
		if !ok {
			continue
		}
		s.State = Finished
		s.Winner = winner
		s.Message = appendSentence(s.Message, fmt.Sprintf("%s wins the game!", winner))
		return s
	}
	return s
}

func appendSentence(msg, sentence string) string {
	if msg == "" {
		return sentence
	}
	return msg + " " + sentence
}
