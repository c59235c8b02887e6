package state

import (
	"github.com/wfunc/gamehub/cards"
	"github.com/wfunc/gamehub/logger"
)

// NewLobbyState creates the lobby state.
func NewLobbyState(table *Table) *LobbyState {
	return &LobbyState{RoomStateBase{ID: PhaseLobby, Table: table}}
}

// 等待状态, 进入时清空上一局
type LobbyState struct {
	RoomStateBase
}

func (s *LobbyState) OnEnter() {
	s.Table.clearRound()
}

func (s *LobbyState) HandleAction(player *Player, action Action) error {
	if action != ActionStartRound {
		return s.RoomStateBase.HandleAction(player, action)
	}
	t := s.Table
	if !player.IsHost {
		return ErrNotHostStart
	}
	if t.ConnectedCount() == 0 {
		return ErrCannotStart
	}

	t.deal()
	if t.CurrentTurn == "" {
		return t.machine.ChangeState(t.dealer)
	}
	return t.machine.ChangeState(t.playing)
}

func NewPlayingState(table *Table) *PlayingState {
	return &PlayingState{RoomStateBase{ID: PhasePlaying, Table: table}}
}

// PlayingState accepts hit/stand from the player holding the turn.
type PlayingState struct {
	RoomStateBase
}

func (s *PlayingState) HandleAction(player *Player, action Action) error {
	t := s.Table
	switch action {
	case ActionHit, ActionStand:
	default:
		return s.RoomStateBase.HandleAction(player, action)
	}
	if t.CurrentTurn != player.ID {
		return ErrNotYourTurn
	}

	if action == ActionHit {
		player.Hand = append(player.Hand, t.draw())
		player.Score = cards.HandValue(player.Hand)
		if player.Score > 21 {
			player.Status = StatusBusted
		}
	} else {
		player.Status = StatusStood
	}
	return t.advanceTurn()
}

func NewDealerState(table *Table) *DealerState {
	return &DealerState{RoomStateBase{ID: PhaseDealer, Table: table}}
}

// DealerState plays the dealer's hand on entry and moves straight to results.
type DealerState struct {
	RoomStateBase
}

func (s *DealerState) OnEnter() {
	s.Table.playDealer()
	if err := s.Table.machine.ChangeState(s.Table.results); err != nil {
		logger.Log.Errorw("dealer could not reach results", "room", s.Table.Code, "error", err)
	}
}

func NewResultsState(table *Table) *ResultsState {
	return &ResultsState{RoomStateBase{ID: PhaseResults, Table: table}}
}

type ResultsState struct {
	RoomStateBase
}

func (s *ResultsState) OnEnter() {
	s.Table.settle()
}
