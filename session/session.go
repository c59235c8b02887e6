// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/gamehub/network"
)

// Session is one live socket. RoomCode/PlayerID are set only while the
// socket is seated in a room.
type Session struct {
	ID         string
	Conn       network.Connection
	RoomCode   string
	PlayerID   string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Send(data []byte) error {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(data)
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

// Binding returns the room seat this socket is attached to.
func (s *Session) Binding() (roomCode, playerID string, ok bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.RoomCode, s.PlayerID, s.RoomCode != ""
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

func (s *Session) setBinding(roomCode, playerID string) {
	s.mutex.Lock()
	s.RoomCode = roomCode
	s.PlayerID = playerID
	s.mutex.Unlock()
}

type seatKey struct {
	roomCode string
	playerID string
}

// Manager maps sockets to seats and seats back to sockets.
type Manager struct {
	sessions map[string]*Session
	seats    map[seatKey]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		seats:    make(map[seatKey]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

// Remove forgets the session and any seat it held.
func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		m.unbindLocked(s)
		delete(m.sessions, sessionID)
	}
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Bind attaches session to (roomCode, playerID), replacing whatever either side held before.
func (m *Manager) Bind(session *Session, roomCode, playerID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.unbindLocked(session)
	key := seatKey{roomCode: roomCode, playerID: playerID}
	if prev, ok := m.seats[key]; ok && prev != session {
		prev.setBinding("", "")
	}
	m.seats[key] = session
	session.setBinding(roomCode, playerID)
}

// Unbind detaches session from its seat and returns what it was bound to.
func (m *Manager) Unbind(session *Session) (roomCode, playerID string, ok bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.unbindLocked(session)
}

func (m *Manager) unbindLocked(session *Session) (string, string, bool) {
	roomCode, playerID, ok := session.Binding()
	if !ok {
		return "", "", false
	}
	key := seatKey{roomCode: roomCode, playerID: playerID}
	if m.seats[key] == session {
		delete(m.seats, key)
	}
	session.setBinding("", "")
	return roomCode, playerID, true
}

// Lookup returns the socket currently attached to a seat.
func (m *Manager) Lookup(roomCode, playerID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, ok := m.seats[seatKey{roomCode: roomCode, playerID: playerID}]
	return s, ok
}

// InRoom returns every socket seated in roomCode.
func (m *Manager) InRoom(roomCode string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for key, s := range m.seats {
		if key.roomCode == roomCode {
			result = append(result, s)
		}
	}
	return result
}

// All returns every live session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, s)
	}
	return result
}
