package room

import (
	"github.com/wfunc/gamehub/network"
	"github.com/wfunc/gamehub/session"
	"github.com/wfunc/gamehub/state"
)

// Broadcaster is what a room needs to reach its sockets. Sends must not block.
type Broadcaster interface {
	BroadcastToRoom(roomCode string, msg network.Outbound) error
	BroadcastState(table *state.Table) error
	SendTo(s *session.Session, msg network.Outbound) error
}
