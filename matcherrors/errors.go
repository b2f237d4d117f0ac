package matcherrors

import "errors"

// Session/storage sentinel errors. Used by the storage, session, ws and api
// packages to avoid circular imports.
var (
	ErrSessionNotFound    = errors.New("game not found")
	ErrRevisionConflict   = errors.New("game state changed concurrently")
	ErrTooMuchContention  = errors.New("game is busy, please try again")
	ErrNotInSession       = errors.New("you are not in this game")
	ErrAlreadyInSession   = errors.New("you are already in a game")
	ErrStoreNotConfigured = errors.New("storage is not configured")
)
