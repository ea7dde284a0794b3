package engine

import "errors"

// Error taxonomy. Handlers map these onto HTTP status codes; callers use
// errors.Is to branch.
var (
	// ErrValidation covers synchronously rejected input: dead or missing
	// targets, self-targeting where forbidden, teammate attacks, action
	// submitted in the wrong phase.
	ErrValidation = errors.New("validation failed")

	// ErrStateConflict covers operations that arrive too late or twice:
	// submissions after phase expiry, votes from eliminated players,
	// joins after start. Never corrupts state.
	ErrStateConflict = errors.New("state conflict")

	// ErrNotAuthorized covers policy failures: non-creator start,
	// non-phantom chat access, cancellation by the wrong resident.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound covers lookups with no active game or unknown players.
	ErrNotFound = errors.New("not found")

	// Lobby-specific rejections.
	ErrLobbyFull           = errors.New("lobby is full")
	ErrNotCreator          = errors.New("only the creator may do this")
	ErrAlreadyStarted      = errors.New("game already started")
	ErrInsufficientPlayers = errors.New("not enough players")
)
