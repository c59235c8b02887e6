// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"fmt"

	"github.com/wfunc/gamehub/logger"
	"github.com/wfunc/gamehub/monitor"
	"github.com/wfunc/gamehub/network"
	"github.com/wfunc/gamehub/session"
	"github.com/wfunc/gamehub/state"
)

// 基于房间的广播器. 发送只入队, 从不阻塞房间
type RoomBroadcaster struct {
	sessionManager *session.Manager
	monitor        *monitor.Monitor
}

func NewRoomBroadcaster(sessionManager *session.Manager, mon *monitor.Monitor) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
		monitor:        mon,
	}
}

// BroadcastToRoom sends msg to every socket seated in roomCode. Delivery is
// best-effort; per-socket failures are logged and skipped.
func (b *RoomBroadcaster) BroadcastToRoom(roomCode string, msg network.Outbound) error {
	data, err := network.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	for _, s := range b.sessionManager.InRoom(roomCode) {
		b.deliver(s, data)
	}
	return nil
}

// BroadcastState renders table and sends it to the room.
func (b *RoomBroadcaster) BroadcastState(table *state.Table) error {
	return b.BroadcastToRoom(table.Code, network.State(Render(table)))
}

// SendTo sends msg to a single socket.
func (b *RoomBroadcaster) SendTo(s *session.Session, msg network.Outbound) error {
	data, err := network.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return b.deliver(s, data)
}

// BroadcastToAll sends msg to every live socket, seated or not.
func (b *RoomBroadcaster) BroadcastToAll(msg network.Outbound) error {
	data, err := network.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	for _, s := range b.sessionManager.All() {
		b.deliver(s, data)
	}
	return nil
}

func (b *RoomBroadcaster) deliver(s *session.Session, data []byte) error {
	err := s.Send(data)
	switch {
	case err == nil:
	case errors.Is(err, network.ErrSendQueueFull):
		b.monitor.IncDroppedFrames()
		logger.Log.Warnw("send queue full, frame dropped", "session", s.ID)
	case errors.Is(err, network.ErrConnectionClosed):
		logger.Log.Debugw("send to closed connection", "session", s.ID)
	default:
		logger.Log.Errorw("send failed", "session", s.ID, "error", err)
	}
	return err
}
