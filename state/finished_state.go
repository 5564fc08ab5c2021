package state

import (
	"github.com/wfunc/chaseserver/logger"
)

// FinishedState 终局状态：快照冻结，到点后房间自动回到等待状态。
type FinishedState struct {
	RoomStateBase
	resetTimer int64
}

// NewFinishedState 创建终局状态
func NewFinishedState(room RoomContext) *FinishedState {
	return &FinishedState{
		RoomStateBase: RoomStateBase{
			ID:   StatusFinished,
			Room: room,
		},
	}
}

// OnEnter schedules the delayed reset. The handle is kept so room teardown
// cancels it instead of letting a timer fire on a deleted room.
func (s *FinishedState) OnEnter() {
	delay := s.Room.ResetDelay()
	s.resetTimer = s.Room.Timers().After(delay, 0, func() {
		if s.Room.Closed() {
			return
		}
		s.Room.ResetToWaiting()
	})
	logger.Log.Infof("房间 %s 将在 %v 后重置", s.Room.GetID(), delay)
}

func (s *FinishedState) OnExit() {
	s.Room.Timers().Remove(s.resetTimer)
}

// HandleIntent drops everything; a finished match is frozen until reset.
func (s *FinishedState) HandleIntent(player PlayerRef, event string, data []byte) error {
	logger.Log.Debugf("room %s: dropping intent %s in finished state", s.Room.GetID(), event)
	return nil
}
