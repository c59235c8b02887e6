package state

import (
	"errors"
	"sync"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
}

// State is one phase of a table. HandleAction validates and applies a
// player's command; a non-nil error means nothing was changed.
type State interface {
	OnEnter()
	OnExit()
	GetID() Phase
	HandleAction(player *Player, action Action) error
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine 基础状态机. 一旦某个状态登记过转换, 只允许登记过的目标状态.
// OnExit/OnEnter 在锁外调用, 允许 OnEnter 中继续切换状态
type BaseStateMachine struct {
	currentState State
	transitions  map[Phase]map[Phase]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[Phase]map[Phase]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	oldState := sm.currentState
	if conditions, exists := sm.transitions[oldState.GetID()]; exists {
		condition, allowed := conditions[newState.GetID()]
		if !allowed || (condition != nil && !condition()) {
			sm.mutex.Unlock()
			return ErrTransitionNotAllowed
		}
	}
	sm.currentState = newState
	sm.mutex.Unlock()

	oldState.OnExit()
	newState.OnEnter()
	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	fromID := from.GetID()
	toID := to.GetID()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[Phase]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// RoomStateBase 房间状态基础结构
type RoomStateBase struct {
	ID    Phase
	Table *Table
}

func (s *RoomStateBase) GetID() Phase {
	return s.ID
}

func (s *RoomStateBase) OnEnter() {}

func (s *RoomStateBase) OnExit() {}

// HandleAction rejects everything; phases override what they accept.
func (s *RoomStateBase) HandleAction(player *Player, action Action) error {
	switch action {
	case ActionStartRound:
		return ErrRoundStarted
	case ActionHit, ActionStand:
		return ErrNotPlayPhase
	}
	return ErrUnknownAction
}
