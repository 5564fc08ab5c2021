// state/interfaces.go
package state

import (
	"time"

	"github.com/wfunc/chaseserver/game"
	"github.com/wfunc/chaseserver/ranking"
	"github.com/wfunc/chaseserver/timer"
)

// Room lifecycle statuses as exposed in snapshots.
const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// PlayerRef identifies a room member to a state without exposing the
// room's internal player entry.
type PlayerRef struct {
	SessionID string
	UserID    string
	Username  string
	Role      game.Role
}

// RoomContext is what a Room must provide for its states to run. It breaks
// the import cycle between room and state.
type RoomContext interface {
	GetID() string
	PlayerByRole(role game.Role) (PlayerRef, bool)

	Publish(event string, payload interface{})
	PublishExcept(sessionID, event string, payload interface{})

	ChangeState(newState State) error
	SetStatus(status string)
	ResetToWaiting()
	ResetDelay() time.Duration
	Timers() *timer.Manager
	Closed() bool
}

// Settler computes and persists the rating settlement at match end. The
// returned result is what gets broadcast; persistence happens behind it.
type Settler interface {
	SettleMatch(criminal, cop PlayerRef, outcome ranking.GameOutcome) *ranking.MatchResult
}
