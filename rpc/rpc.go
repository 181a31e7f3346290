package rpc

import (
	"net"
	"net/rpc"

	"github.com/serpientes/gameserver/logger"
	"github.com/serpientes/gameserver/models"
	"github.com/serpientes/gameserver/persistence"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the
// caller before Start.
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
			// Check if the error is due to the listener being closed.
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

// AdminService exposes operational queries over net/rpc. Methods follow
// the net/rpc signature: exported method, exported argument structs,
// reply pointer, error return.
type AdminService struct {
	reporting *persistence.Reporting
}

func NewAdminService(reporting *persistence.Reporting) *AdminService {
	return &AdminService{reporting: reporting}
}

type UserStatsArgs struct {
	UserID string
}

type UserStatsReply struct {
	Stats *models.UserStats
}

func (s *AdminService) GetUserStats(args *UserStatsArgs, reply *UserStatsReply) error {
	stats, err := s.reporting.GetUserStats(args.UserID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

type RoomCensusArgs struct{}

type RoomCensusReply struct {
	Census map[models.RoomStatus]int
}

func (s *AdminService) RoomCensus(args *RoomCensusArgs, reply *RoomCensusReply) error {
	census, err := s.reporting.CountRoomsByStatus()
	if err != nil {
		return err
	}
	reply.Census = census
	return nil
}
