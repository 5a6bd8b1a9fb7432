package errors

import "errors"

var (
	// Session setup / lookup.
	ErrTooFewPlayers     = errors.New("at least 2 non-empty player names are required")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotStarted = errors.New("session has no active game")

	// Ledger operations.
	ErrPlayerIndexOutOfRange = errors.New("player index out of range")
	ErrGameEnded             = errors.New("game has ended")
	ErrNothingToUndo         = errors.New("nothing to undo")
)
