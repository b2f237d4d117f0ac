package game

import (
	"errors"
	"fmt"
)

// Session lifecycle rejections.
var (
	ErrAlreadyStarted       = errors.New("this game has already started")
	ErrSessionFull          = errors.New("this game is full")
	ErrDuplicateParticipant = errors.New("you are already in this game")
	ErrInsufficientPlayers  = errors.New("need exactly 2 players to start")
)

// Action rejections.
var (
	ErrNotPlaying          = errors.New("the game is not in progress")
	ErrNotYourTurn         = errors.New("it is not your turn")
	ErrUnknownAction       = errors.New("unknown action")
	ErrUnknownParticipant  = errors.New("unknown participant")
	ErrCardNotInHand       = errors.New("card is not in your hand")
	ErrBenchFull           = errors.New("your bench is full")
	ErrNoActivePokemon     = errors.New("you have no active Pokémon")
	ErrOpponentHasNoActive = errors.New("your opponent has no active Pokémon")
	ErrNoOpponent          = errors.New("there is no opponent")
	ErrNotOnBench          = errors.New("that Pokémon is not on your bench")
	ErrActiveOccupied      = errors.New("you already have an active Pokémon")
)

// RejectedError reports that a transition was refused. The state it was
// applied to is left untouched. Reason is one of the sentinel errors above.
type RejectedError struct {
	Action ActionKind
	Reason error
}

func (e *RejectedError) Error() string {
	if e.Action == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s rejected: %v", e.Action, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return e.Reason
}

func reject(kind ActionKind, reason error) error {
	return &RejectedError{Action: kind, Reason: reason}
}

// IsRejected reports whether err is an engine rejection rather than a failure.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
