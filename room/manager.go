package room

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/gamehub/cards"
	"github.com/wfunc/gamehub/logger"
	"github.com/wfunc/gamehub/monitor"
	"github.com/wfunc/gamehub/session"
	"github.com/wfunc/gamehub/state"
	"github.com/wfunc/gamehub/timer"
)

// CodeAlphabet leaves out I, O, 0 and 1.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultCodeLength  = 4
	DefaultMailboxSize = 64
	codeAttempts       = 32
)

type Options struct {
	CodeLength  int
	MailboxSize int
	DeckCount   int
	MaxPlayers  int
	TurnTimeout time.Duration
	IdleTimeout time.Duration

	Timers  *timer.TimerManager
	Monitor *monitor.Monitor

	NewShoe     func(deckCount int) *cards.Shoe
	NewPlayerID func() string
	OnSettled   func(state.RoundResult)
}

func (o Options) mailboxSize() int {
	if o.MailboxSize <= 0 {
		return DefaultMailboxSize
	}
	return o.MailboxSize
}

// Manager 管理所有房间
type Manager struct {
	rooms       map[string]*Room
	mutex       sync.RWMutex
	opts        Options
	broadcaster Broadcaster
	sessions    *session.Manager
	codeLength  int
	sweepID     int64
}

// NewRoomManager 创建一个新的房间管理器. With IdleTimeout and Timers set, rooms
// nobody is connected to are evicted once the timeout passes.
func NewRoomManager(broadcaster Broadcaster, sessions *session.Manager, opts Options) *Manager {
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultCodeLength
	}
	m := &Manager{
		rooms:       make(map[string]*Room),
		opts:        opts,
		broadcaster: broadcaster,
		sessions:    sessions,
		codeLength:  opts.CodeLength,
	}
	if opts.IdleTimeout > 0 && opts.Timers != nil {
		interval := opts.IdleTimeout / 2
		if interval < time.Second {
			interval = time.Second
		}
		m.sweepID = opts.Timers.AddTimer(interval, interval, func() {
			m.EvictIdle(time.Now())
		})
	}
	return m
}

// CreateRoom 创建一个新的空房间
func (m *Manager) CreateRoom() *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	code := m.newCodeLocked()
	room := NewRoom(code, m.tableOptions(), m.broadcaster, m.sessions, m.opts)
	m.rooms[code] = room
	m.opts.Monitor.SetActiveRooms(len(m.rooms))
	logger.Log.Infow("room created", "room", code)
	return room
}

func (m *Manager) tableOptions() state.Options {
	return state.Options{
		DeckCount:   m.opts.DeckCount,
		MaxPlayers:  m.opts.MaxPlayers,
		NewShoe:     m.opts.NewShoe,
		NewPlayerID: m.opts.NewPlayerID,
		OnSettled:   m.onSettled,
	}
}

func (m *Manager) onSettled(result state.RoundResult) {
	outcomes := make([]string, 0, len(result.Players))
	for _, p := range result.Players {
		outcomes = append(outcomes, string(p.Outcome))
	}
	m.opts.Monitor.ObserveRound(outcomes)
	logger.Log.Infow("round settled", "room", result.RoomCode, "round", result.Round, "dealerScore", result.DealerScore, "outcomes", outcomes)
	if m.opts.OnSettled != nil {
		m.opts.OnSettled(result)
	}
}

// newCodeLocked draws random codes until one is free. After codeAttempts
// collisions the code length grows by one for this and later rooms.
func (m *Manager) newCodeLocked() string {
	buf := make([]byte, m.codeLength)
	for {
		for i := 0; i < codeAttempts; i++ {
			for j := range buf {
				buf[j] = CodeAlphabet[rand.Intn(len(CodeAlphabet))]
			}
			code := string(buf)
			if _, taken := m.rooms[code]; !taken {
				return code
			}
		}
		m.codeLength++
		buf = make([]byte, m.codeLength)
		logger.Log.Warnw("room codes crowded, growing code length", "length", m.codeLength)
	}
}

// NormalizeCode trims and upper-cases a client-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[NormalizeCode(code)]
	return room, exists
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(code string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[code]; exists {
		room.Close()
		delete(m.rooms, code)
		m.opts.Monitor.SetActiveRooms(len(m.rooms))
		logger.Log.Infow("room removed", "room", code)
	}
}

// Rooms returns every room ordered by code.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Code < rooms[j].Code })
	return rooms
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// EvictIdle removes rooms that have had nobody connected for IdleTimeout.
func (m *Manager) EvictIdle(now time.Time) int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	var stale []string
	m.mutex.RLock()
	for code, r := range m.rooms {
		if since, idle := r.IdleSince(); idle && now.Sub(since) >= m.opts.IdleTimeout {
			stale = append(stale, code)
		}
	}
	m.mutex.RUnlock()

	evicted := 0
	for _, code := range stale {
		m.mutex.Lock()
		r, ok := m.rooms[code]
		if ok {
			// re-check under the write lock; someone may have joined
			if since, idle := r.IdleSince(); idle && now.Sub(since) >= m.opts.IdleTimeout {
				r.Close()
				delete(m.rooms, code)
				evicted++
				logger.Log.Infow("idle room evicted", "room", code, "idleFor", now.Sub(since).String())
			}
		}
		m.opts.Monitor.SetActiveRooms(len(m.rooms))
		m.mutex.Unlock()
	}
	return evicted
}

// Close stops every room and the idle sweep.
func (m *Manager) Close() {
	if m.sweepID != 0 {
		m.opts.Timers.RemoveTimer(m.sweepID)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for code, r := range m.rooms {
		r.Close()
		delete(m.rooms, code)
	}
	m.opts.Monitor.SetActiveRooms(0)
}
