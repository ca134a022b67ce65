package game

import "errors"

// Validation errors surfaced to the offending client; none of them leaves
// game state partially applied.
var (
	ErrNotYourTurn       = errors.New("not this player's turn")
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrInvalidTransition = errors.New("invalid game state transition")
	ErrPlayerNotFound    = errors.New("player not found in game")
	ErrAlreadyJoined     = errors.New("player already joined")
)
