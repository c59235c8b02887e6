package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/gamehub/broadcast"
	"github.com/wfunc/gamehub/logger"
	"github.com/wfunc/gamehub/models"
	"github.com/wfunc/gamehub/room"
	"github.com/wfunc/gamehub/services"
)

const callTimeout = 2 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers service under the name "GameService".
func NewServer(addr string, service *GameService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("GameService", service); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound listener address.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService is the struct that exposes RPC methods.
type GameService struct {
	rooms   *room.Manager
	history *services.HistoryService
}

// NewGameService creates a new GameService. history may be nil.
func NewGameService(rooms *room.Manager, history *services.HistoryService) *GameService {
	return &GameService{rooms: rooms, history: history}
}

// RoomSummary is one line of ListRooms.
type RoomSummary struct {
	Code      string
	Connected int
	CreatedAt time.Time
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []RoomSummary
}

// Methods follow the net/rpc signature: exported method, exported arguments,
// second argument is a pointer, return type is error.
func (gs *GameService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, r := range gs.rooms.Rooms() {
		reply.Rooms = append(reply.Rooms, RoomSummary{
			Code:      r.Code,
			Connected: r.ConnectedCount(),
			CreatedAt: r.CreatedAt,
		})
	}
	return nil
}

type GetRoomArgs struct {
	Code string
}

type GetRoomReply struct {
	Snapshot broadcast.Snapshot
}

func (gs *GameService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	r, ok := gs.rooms.GetRoom(args.Code)
	if !ok {
		return room.ErrRoomNotFound
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return err
	}
	reply.Snapshot = snap
	return nil
}

type GetPlayerStatsArgs struct {
	PlayerID string
}

type GetPlayerStatsReply struct {
	Stats models.PlayerStats
}

var ErrHistoryDisabled = errors.New("round history is disabled")

func (gs *GameService) GetPlayerStats(args *GetPlayerStatsArgs, reply *GetPlayerStatsReply) error {
	if gs.history == nil {
		return ErrHistoryDisabled
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	stats, err := gs.history.GetPlayerStats(ctx, args.PlayerID)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}
