package state

import "errors"

// Client-facing rejections. The message is sent verbatim to the offending socket.
var (
	ErrNotJoined     = errors.New("Send join first.")
	ErrAlreadyInGame = errors.New("Already in game.")
	ErrTableFull     = errors.New("Table is full.")
	ErrNotHostStart  = errors.New("Only host can start.")
	ErrNotHostReset  = errors.New("Only host can reset.")
	ErrRoundStarted  = errors.New("Round already started.")
	ErrCannotStart   = errors.New("Could not start round.")
	ErrNotPlayPhase  = errors.New("Not in play phase.")
	ErrNotYourTurn   = errors.New("Not your turn.")
	ErrUnknownAction = errors.New("Unknown action.")
)
