package room

import "errors"

// Precondition failures surfaced to the originating caller as an `error`
// event. None of these ever crashes a room's loop.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrGameInProgress = errors.New("game already in progress")
	ErrBadPassword    = errors.New("incorrect password")
	ErrRoleTaken      = errors.New("role is already taken")
	ErrRoleRequired   = errors.New("select a role first")
	ErrNotHost        = errors.New("only host can start the game")
	ErrNeedTwoPlayers = errors.New("need exactly 2 players")
	ErrNotAllReady    = errors.New("all players must be ready")
	ErrUnknownMap     = errors.New("unknown map")
	ErrInvalidRole    = errors.New("invalid role")
)
