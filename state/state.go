package state

import (
	"errors"
	"sync"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	OnUpdate()
	GetID() string
	HandleIntent(player PlayerRef, event string, data []byte) error
}

// ErrTransitionNotAllowed is returned for a disallowed state transition.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// allowedTransitions 合法的生命周期转移：waiting → playing → finished → waiting
var allowedTransitions = map[string]map[string]bool{
	StatusWaiting:  {StatusPlaying: true},
	StatusPlaying:  {StatusFinished: true},
	StatusFinished: {StatusWaiting: true},
}

// 基础状态机实现
type BaseStateMachine struct {
	currentState State
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	currentID := sm.currentState.GetID()
	newID := newState.GetID()
	if !allowedTransitions[currentID][newID] {
		return ErrTransitionNotAllowed
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()
	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

// 房间状态基础结构
type RoomStateBase struct {
	ID   string
	Room RoomContext
}

func (s *RoomStateBase) GetID() string {
	return s.ID
}

func (s *RoomStateBase) OnEnter() {
	// 默认实现
}

func (s *RoomStateBase) OnExit() {
	// 默认实现
}

func (s *RoomStateBase) OnUpdate() {
	// 默认实现
}

func (s *RoomStateBase) HandleIntent(player PlayerRef, event string, data []byte) error {
	// 默认丢弃，具体状态覆盖
	return nil
}

// NewWaitingState creates the lobby state. Lobby transitions (join, leave,
// role select, ready, start) are room-level operations; in-match intents
// arriving here are stale and dropped silently.
func NewWaitingState(room RoomContext) *WaitingState {
	return &WaitingState{
		RoomStateBase: RoomStateBase{
			ID:   StatusWaiting,
			Room: room,
		},
	}
}

// 等待状态
type WaitingState struct {
	RoomStateBase
}
