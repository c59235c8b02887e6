package server

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wfunc/gamehub/broadcast"
	"github.com/wfunc/gamehub/cards"
	"github.com/wfunc/gamehub/config"
	"github.com/wfunc/gamehub/logger"
	"github.com/wfunc/gamehub/monitor"
	"github.com/wfunc/gamehub/network"
	"github.com/wfunc/gamehub/persistence"
	"github.com/wfunc/gamehub/room"
	gamehub_rpc "github.com/wfunc/gamehub/rpc"
	"github.com/wfunc/gamehub/services"
	"github.com/wfunc/gamehub/session"
	"github.com/wfunc/gamehub/state"
	"github.com/wfunc/gamehub/timer"
)

// GameBlackjack is the only game this hub serves.
const GameBlackjack = "blackjack"

const (
	tracerName        = "github.com/wfunc/gamehub/server"
	heartbeatInterval = 30 * time.Second
	requestTimeout    = 5 * time.Second
	toastShutdown     = "Server shutting down."
)

// clientErrors are sent to the offending socket verbatim; anything else is
// logged and swallowed.
var clientErrors = []error{
	room.ErrRoomNotFound,
	state.ErrNotJoined,
	state.ErrAlreadyInGame,
	state.ErrTableFull,
	state.ErrNotHostStart,
	state.ErrNotHostReset,
	state.ErrRoundStarted,
	state.ErrCannotStart,
	state.ErrNotPlayPhase,
	state.ErrNotYourTurn,
	state.ErrUnknownAction,
}

type Option func(*options)

type options struct {
	newShoe     func(deckCount int) *cards.Shoe
	newPlayerID func() string
	monitor     *monitor.Monitor
}

// WithShoe replaces the shuffled shoe, for deterministic games.
func WithShoe(newShoe func(deckCount int) *cards.Shoe) Option {
	return func(o *options) { o.newShoe = newShoe }
}

// WithPlayerIDs replaces uuid player ids.
func WithPlayerIDs(newPlayerID func() string) Option {
	return func(o *options) { o.newPlayerID = newPlayerID }
}

// WithMonitor shares an existing monitor.
func WithMonitor(m *monitor.Monitor) Option {
	return func(o *options) { o.monitor = m }
}

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	games          map[string]bool
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    *broadcast.RoomBroadcaster
	history        *services.HistoryService
	monitor        *monitor.Monitor
	timers         *timer.TimerManager
	tracer         trace.Tracer
	rpcServer      *gamehub_rpc.Server
	httpServer     *http.Server
	mutex          sync.Mutex
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

// NewGameServer wires the hub. A nil db keeps round history in memory.
func NewGameServer(cfg *config.Config, db persistence.Database, opts ...Option) *GameServer {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if db == nil {
		db = persistence.NewMemoryStore()
	}
	mon := o.monitor
	if mon == nil {
		mon = monitor.NewMonitor(cfg.Metrics.Namespace)
	}

	s := &GameServer{
		cfg:            cfg,
		games:          map[string]bool{GameBlackjack: true},
		sessionManager: session.NewManager(),
		monitor:        mon,
		timers:         timer.NewTimerManager(),
		tracer:         otel.Tracer(tracerName),
		shutdownChan:   make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.history = services.NewHistoryService(db, GameBlackjack, services.DefaultQueueSize)

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager, s.monitor)
	s.roomManager = room.NewRoomManager(s.broadcaster, s.sessionManager, room.Options{
		CodeLength:  cfg.Room.CodeLength,
		MailboxSize: cfg.Room.MailboxSize,
		DeckCount:   cfg.Game.DeckCount,
		MaxPlayers:  cfg.Game.MaxPlayers,
		TurnTimeout: cfg.Room.TurnTimeout,
		IdleTimeout: cfg.Room.IdleTimeout,
		Timers:      s.timers,
		Monitor:     s.monitor,
		NewShoe:     o.newShoe,
		NewPlayerID: o.newPlayerID,
		OnSettled: func(r state.RoundResult) {
			s.history.Record(r)
		},
	})
	return s
}

func (s *GameServer) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		return true // 允许所有跨域请求
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == origin {
			return true
		}
	}
	return false
}

// Handler is the hub's HTTP surface.
func (s *GameServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	if s.cfg.Metrics.Enabled {
		s.monitor.PublishExpvar()
		r.Handle("/metrics", s.monitor.Handler())
		r.Handle("/debug/vars", expvar.Handler())
	}
	r.Get("/ws/{game}", s.handleWebSocket)
	return r
}

// Rooms exposes the registry, for RPC and tests.
func (s *GameServer) Rooms() *room.Manager {
	return s.roomManager
}

func (s *GameServer) Start() error {
	if addr := s.cfg.Server.RPCAddress; addr != "" {
		rpcServer, err := gamehub_rpc.NewServer(addr, gamehub_rpc.NewGameService(s.roomManager, s.history))
		if err != nil {
			return err
		}
		s.mutex.Lock()
		s.rpcServer = rpcServer
		s.mutex.Unlock()
		go rpcServer.Start()
	}

	httpServer := &http.Server{
		Addr:              s.cfg.Server.HTTPAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mutex.Lock()
	s.httpServer = httpServer
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown tells every socket, closes them and stops the rooms. Pending round
// history is flushed before it returns.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		s.broadcaster.BroadcastToAll(network.Toast(toastShutdown))

		s.mutex.Lock()
		rpcServer, httpServer := s.rpcServer, s.httpServer
		s.mutex.Unlock()
		if rpcServer != nil {
			rpcServer.Stop()
		}
		if httpServer != nil {
			err = httpServer.Shutdown(ctx)
		}

		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}
		s.roomManager.Close()
		s.timers.Stop()
		if cerr := s.history.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	game := chi.URLParam(r, "game")
	if !s.games[game] {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn, s.cfg.Server.SendQueueSize)
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.NewString(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infow("connection opened", "remote", wsConn.RemoteAddr().String(), "session", sess.GetID())

	defer func() {
		logger.Log.Infow("connection closed", "remote", wsConn.RemoteAddr().String(), "session", sess.GetID())
		s.leaveSeat(context.Background(), sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}
		data, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(sess, data)
	}
}

func (s *GameServer) handleMessage(sess *session.Session, data []byte) {
	start := time.Now()
	sess.Touch()

	msg, ok := network.Decode(data)
	if !ok {
		logger.Log.Debugw("dropping malformed frame", "session", sess.GetID(), "size", len(data))
		return
	}
	s.monitor.IncMessagesReceived(msg.Type)

	ctx, span := s.tracer.Start(context.Background(), "gamehub."+msg.Type,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("gamehub.session_id", sess.GetID()),
			attribute.String("gamehub.message_type", msg.Type),
		),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := s.dispatch(ctx, sess, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.replyError(sess, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	s.monitor.ObserveMessageLatency(time.Since(start))
}

func (s *GameServer) dispatch(ctx context.Context, sess *session.Session, msg *network.Message) error {
	switch msg.Type {
	case network.MsgTypeCreateRoom:
		return s.handleCreateRoom(ctx, sess, msg)
	case network.MsgTypeJoinRoom:
		return s.handleJoinRoom(ctx, sess, msg)
	case network.MsgTypeStartRound:
		return s.handleAction(ctx, sess, state.ActionStartRound)
	case network.MsgTypeReset:
		return s.handleAction(ctx, sess, state.ActionReset)
	case network.MsgTypeAction:
		if _, _, ok := sess.Binding(); !ok {
			return state.ErrNotJoined
		}
		action := state.Action(msg.Action)
		if action != state.ActionHit && action != state.ActionStand {
			return state.ErrUnknownAction
		}
		return s.handleAction(ctx, sess, action)
	}

	if _, _, ok := sess.Binding(); !ok {
		return state.ErrNotJoined
	}
	logger.Log.Debugw("ignoring unknown message type", "session", sess.GetID(), "type", msg.Type)
	return nil
}

func (s *GameServer) handleCreateRoom(ctx context.Context, sess *session.Session, msg *network.Message) error {
	// a new room has nobody to reattach to
	return s.takeSeat(ctx, sess, s.roomManager.CreateRoom(), "", msg.Name)
}

func (s *GameServer) handleJoinRoom(ctx context.Context, sess *session.Session, msg *network.Message) error {
	r, ok := s.roomManager.GetRoom(msg.RoomCode)
	if !ok {
		return room.ErrRoomNotFound
	}
	return s.takeSeat(ctx, sess, r, msg.PlayerID, msg.Name)
}

// takeSeat joins r first and only then releases the seat sess held before,
// so a rejected join leaves the old seat untouched.
func (s *GameServer) takeSeat(ctx context.Context, sess *session.Session, r *room.Room, playerID, name string) error {
	oldCode, oldPlayer, seated := sess.Binding()
	newPlayer, err := r.Join(ctx, sess, playerID, name)
	if err != nil {
		return err
	}
	if !seated || (oldCode == r.Code && oldPlayer == newPlayer) {
		return nil
	}
	old, ok := s.roomManager.GetRoom(oldCode)
	if !ok {
		return nil
	}
	if err := old.Release(ctx, oldPlayer); err != nil {
		logger.Log.Warnw("release failed", "room", oldCode, "player", oldPlayer, "error", err)
	}
	return nil
}

func (s *GameServer) handleAction(ctx context.Context, sess *session.Session, action state.Action) error {
	code, _, ok := sess.Binding()
	if !ok {
		return state.ErrNotJoined
	}
	r, ok := s.roomManager.GetRoom(code)
	if !ok {
		s.sessionManager.Unbind(sess)
		return state.ErrNotJoined
	}
	return r.Handle(ctx, sess, action)
}

// leaveSeat disconnects sess from whatever seat it holds.
func (s *GameServer) leaveSeat(ctx context.Context, sess *session.Session) {
	code, _, ok := sess.Binding()
	if !ok {
		return
	}
	r, exists := s.roomManager.GetRoom(code)
	if !exists {
		s.sessionManager.Unbind(sess)
		return
	}
	if err := r.Leave(ctx, sess); err != nil {
		logger.Log.Warnw("leave failed", "room", code, "session", sess.GetID(), "error", err)
		s.sessionManager.Unbind(sess)
	}
}

func (s *GameServer) replyError(sess *session.Session, err error) {
	if errors.Is(err, room.ErrRoomClosed) {
		err = room.ErrRoomNotFound
	}
	for _, ce := range clientErrors {
		if errors.Is(err, ce) {
			s.broadcaster.SendTo(sess, network.Error(ce.Error()))
			return
		}
	}
	logger.Log.Errorw("request failed", "session", sess.GetID(), "error", err)
}
