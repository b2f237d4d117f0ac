package game

// ActionKind enumerates the transitions a participant can request.
type ActionKind string

const (
	ActionCreate   ActionKind = "create"
	ActionJoin     ActionKind = "join"
	ActionStart    ActionKind = "start"
	ActionPlayCard ActionKind = "playCard"
	ActionAttack   ActionKind = "attack"
	ActionSwap     ActionKind = "swap"
	ActionPromote  ActionKind = "promote" // bench card into an empty active slot
	ActionEndTurn  ActionKind = "endTurn"
)

// Payload carries the arguments of an action. Only the fields relevant to
// the action kind are read.
type Payload struct {
	// Card is the card to play (playCard). Matched by name against the hand.
	Card *Card `json:"card,omitempty"`
	// NewActiveName names the bench card to bring into play (swap, promote).
	NewActiveName string `json:"newActiveName,omitempty"`
}

type actionHandler func(s *GameState, actorID string, p Payload) error

var handlers = map[ActionKind]actionHandler{
	ActionPlayCard: handlePlayCard,
	ActionAttack:   handleAttack,
	ActionSwap:     handleSwap,
	ActionPromote:  handlePromote,
	ActionEndTurn:  handleEndTurn,
}

// ApplyAction validates and applies one in-game action.
//
// It never mutates s. On success it returns a new state with Revision bumped
// and the win condition evaluated. On rejection it returns s itself together
// with a *RejectedError, so "nothing happened because it was illegal" is
// distinguishable from a successful transition.
func ApplyAction(s *GameState, actorID string, kind ActionKind, p Payload) (*GameState, error) {
	handle, ok := handlers[kind]
	if !ok {
		return s, reject(kind, ErrUnknownAction)
	}
	if s.State != Playing {
		return s, reject(kind, ErrNotPlaying)
	}
	if !IsTurnOf(s, actorID) {
		return s, reject(kind, ErrNotYourTurn)
	}
	if s.Players[actorID] == nil {
		return s, reject(kind, ErrUnknownParticipant)
	}

	next := s.Clone()
	if err := handle(next, actorID, p); err != nil {
		return s, reject(kind, err)
	}
	next.Revision++
	return EvaluateWin(next), nil
}
