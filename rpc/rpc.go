package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/laddergame/logger"
	"github.com/wfunc/laddergame/models"
	"github.com/wfunc/laddergame/room"
	"github.com/wfunc/laddergame/services"
)

// Server manages the admin RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries over net/rpc.
type AdminService struct {
	rooms    *room.Manager
	accounts *services.AccountService
}

func NewAdminService(rooms *room.Manager, accounts *services.AccountService) *AdminService {
	return &AdminService{rooms: rooms, accounts: accounts}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []room.Info
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = a.rooms.Infos()
	return nil
}

type RoomStateArgs struct {
	RoomID string
}

type RoomStateReply struct {
	Info room.Info
}

func (a *AdminService) GetRoomState(args *RoomStateArgs, reply *RoomStateReply) error {
	r, exists := a.rooms.Get(args.RoomID)
	if !exists {
		return room.ErrRoomNotFound
	}
	info, err := r.Info()
	if err != nil {
		return err
	}
	reply.Info = info
	return nil
}

type PlayerStatsArgs struct {
	PlayerID string
}

type PlayerStatsReply struct {
	Stats models.PlayerStats
}

func (a *AdminService) GetPlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := a.accounts.GetPlayerStats(args.PlayerID)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}
