// room/room.go
package room

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/gamehub/broadcast"
	"github.com/wfunc/gamehub/logger"
	"github.com/wfunc/gamehub/network"
	"github.com/wfunc/gamehub/session"
	"github.com/wfunc/gamehub/state"
	"github.com/wfunc/gamehub/timer"
)

var (
	ErrRoomNotFound = errors.New("Room not found.")
	ErrRoomClosed   = errors.New("room closed")
)

const (
	ToastJoined       = "Joined the table."
	ToastRoundStarted = "Round started."
	ToastTableReset   = "Table reset."
	ToastTurnTimeout  = "Turn timed out."
)

// Room 是一张桌子的 actor: 单个 goroutine 顺序执行 mailbox 中的任务,
// 每个任务包括状态修改和随后的广播
type Room struct {
	Code      string
	CreatedAt time.Time

	table       *state.Table
	broadcaster Broadcaster
	sessions    *session.Manager
	timers      *timer.TimerManager
	turnTimeout time.Duration

	mailbox   chan func()
	closeChan chan struct{}
	closeOnce sync.Once

	connected  int32 // atomic, mirrors table.ConnectedCount()
	emptySince int64 // atomic unix nanos, 0 while someone is connected

	// actor-owned
	turnTimerID int64
	turnGen     uint64
	timedTurn   string
	timedRound  int
}

// NewRoom 创建一个新房间并启动它的 goroutine
func NewRoom(code string, opts state.Options, broadcaster Broadcaster, sessions *session.Manager, roomOpts Options) *Room {
	r := &Room{
		Code:        code,
		CreatedAt:   time.Now(),
		table:       state.NewTable(code, opts),
		broadcaster: broadcaster,
		sessions:    sessions,
		timers:      roomOpts.Timers,
		turnTimeout: roomOpts.TurnTimeout,
		mailbox:     make(chan func(), roomOpts.mailboxSize()),
		closeChan:   make(chan struct{}),
		emptySince:  time.Now().UnixNano(),
	}
	go r.loop()
	return r
}

// loop 是房间的主循环
func (r *Room) loop() {
	for {
		select {
		case fn := <-r.mailbox:
			r.run(fn)
		case <-r.closeChan:
			return
		}
	}
}

func (r *Room) run(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			logger.Log.Errorw("room task panicked", "room", r.Code, "panic", p)
		}
	}()
	fn()
}

// Do runs fn on the room goroutine and waits for it to finish.
func (r *Room) Do(ctx context.Context, fn func(t *state.Table)) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn(r.table)
	}
	if err := r.post(ctx, task); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-r.closeChan:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) post(ctx context.Context, task func()) error {
	select {
	case <-r.closeChan:
		return ErrRoomClosed
	default:
	}
	select {
	case r.mailbox <- task:
		return nil
	case <-r.closeChan:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join seats s at the table, or reattaches it to playerID's seat. On success
// the socket is bound, told its identity and the room, and the room gets a
// fresh snapshot.
func (r *Room) Join(ctx context.Context, s *session.Session, playerID, name string) (string, error) {
	var (
		assigned string
		joinErr  error
	)
	err := r.Do(ctx, func(t *state.Table) {
		player, rejoined, err := t.Join(playerID, name)
		if err != nil {
			joinErr = err
			return
		}
		assigned = player.ID
		r.sessions.Bind(s, r.Code, player.ID)
		logger.Log.Infow("player joined", "room", r.Code, "player", player.ID, "name", player.Name, "rejoined", rejoined)

		r.broadcaster.SendTo(s, network.You(player.ID))
		r.broadcaster.SendTo(s, network.RoomJoined(r.Code))
		r.broadcaster.SendTo(s, network.Toast(ToastJoined))
		r.afterMutation()
	})
	if err != nil {
		return "", err
	}
	return assigned, joinErr
}

// Leave releases s from its seat in this room and marks the player
// disconnected. A socket bound elsewhere is ignored.
func (r *Room) Leave(ctx context.Context, s *session.Session) error {
	return r.Do(ctx, func(t *state.Table) {
		code, _, ok := s.Binding()
		if !ok || code != r.Code {
			return
		}
		_, playerID, _ := r.sessions.Unbind(s)
		if t.Disconnect(playerID) {
			logger.Log.Infow("player disconnected", "room", r.Code, "player", playerID)
			r.afterMutation()
		}
	})
}

// Release marks playerID disconnected once no socket is attached to it.
// A socket that moved to another seat releases its old one this way.
func (r *Room) Release(ctx context.Context, playerID string) error {
	return r.Do(ctx, func(t *state.Table) {
		if _, attached := r.sessions.Lookup(r.Code, playerID); attached {
			return
		}
		if t.Disconnect(playerID) {
			logger.Log.Infow("player released", "room", r.Code, "player", playerID)
			r.afterMutation()
		}
	})
}

// Handle applies a seated socket's command.
func (r *Room) Handle(ctx context.Context, s *session.Session, action state.Action) error {
	var handleErr error
	err := r.Do(ctx, func(t *state.Table) {
		code, playerID, ok := s.Binding()
		if !ok || code != r.Code {
			handleErr = state.ErrNotJoined
			return
		}
		if err := t.Handle(playerID, action); err != nil {
			handleErr = err
			return
		}
		logger.Log.Debugw("action applied", "room", r.Code, "player", playerID, "action", action, "phase", t.Phase())

		switch action {
		case state.ActionStartRound:
			r.broadcaster.BroadcastToRoom(r.Code, network.Toast(ToastRoundStarted))
		case state.ActionReset:
			r.broadcaster.BroadcastToRoom(r.Code, network.Toast(ToastTableReset))
		case state.ActionHit, state.ActionStand:
			// 玩家行动后重新计时, 即使轮次回到同一个人
			r.timedRound = -1
		}
		r.afterMutation()
	})
	if err != nil {
		return err
	}
	return handleErr
}

// Snapshot renders the table as clients see it.
func (r *Room) Snapshot(ctx context.Context) (broadcast.Snapshot, error) {
	var snap broadcast.Snapshot
	err := r.Do(ctx, func(t *state.Table) {
		snap = broadcast.Render(t)
	})
	return snap, err
}

// ConnectedCount is safe to call from any goroutine.
func (r *Room) ConnectedCount() int {
	return int(atomic.LoadInt32(&r.connected))
}

// IdleSince reports when the room last lost its final connected player.
func (r *Room) IdleSince() (time.Time, bool) {
	ns := atomic.LoadInt64(&r.emptySince)
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Close 关闭房间，停止主循环
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.closeChan)
	})
}

// afterMutation runs on the room goroutine after every successful change.
func (r *Room) afterMutation() {
	if err := r.broadcaster.BroadcastState(r.table); err != nil {
		logger.Log.Errorw("broadcast state failed", "room", r.Code, "error", err)
	}

	n := int32(r.table.ConnectedCount())
	atomic.StoreInt32(&r.connected, n)
	if n > 0 {
		atomic.StoreInt64(&r.emptySince, 0)
	} else {
		atomic.CompareAndSwapInt64(&r.emptySince, 0, time.Now().UnixNano())
	}

	r.scheduleTurnTimer()
}

// scheduleTurnTimer arms the turn timeout whenever the turn moves to a new
// player or round. Stale timers are ignored by generation.
func (r *Room) scheduleTurnTimer() {
	if r.timers == nil || r.turnTimeout <= 0 {
		return
	}
	t := r.table
	turn := ""
	if t.Phase() == state.PhasePlaying {
		turn = t.CurrentTurn
	}
	if turn == r.timedTurn && t.Round == r.timedRound {
		return
	}

	if r.turnTimerID != 0 {
		r.timers.RemoveTimer(r.turnTimerID)
		r.turnTimerID = 0
	}
	r.turnGen++
	r.timedTurn = turn
	r.timedRound = t.Round
	if turn == "" {
		return
	}

	gen := r.turnGen
	r.turnTimerID = r.timers.AddTimer(r.turnTimeout, 0, func() {
		r.post(context.Background(), func() { r.expireTurn(gen, turn) })
	})
}

func (r *Room) expireTurn(gen uint64, playerID string) {
	if gen != r.turnGen {
		return
	}
	r.turnTimerID = 0
	if !r.table.TimeoutTurn(playerID) {
		return
	}
	logger.Log.Infow("turn timed out", "room", r.Code, "player", playerID)
	r.broadcaster.BroadcastToRoom(r.Code, network.Toast(ToastTurnTimeout))
	r.afterMutation()
}
