package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/chaseserver/logger"
	"github.com/wfunc/chaseserver/models"
	"github.com/wfunc/chaseserver/persistence"
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

// RatingQueryService exposes ladder lookups to sibling services over
// net/rpc: exported methods, pointer reply, error return.
type RatingQueryService struct {
	db persistence.Database
}

func NewRatingQueryService(db persistence.Database) *RatingQueryService {
	return &RatingQueryService{db: db}
}

type GetRatingArgs struct {
	UserID string
}

type GetRatingReply struct {
	Record *models.RatingRecord
}

func (rs *RatingQueryService) GetRating(args *GetRatingArgs, reply *GetRatingReply) error {
	record, err := rs.db.LoadRating(args.UserID)
	if err != nil {
		return err
	}
	reply.Record = record
	return nil
}

type TopPlayersArgs struct {
	Limit int
}

type TopPlayersReply struct {
	Records []*models.RatingRecord
}

func (rs *RatingQueryService) TopPlayers(args *TopPlayersArgs, reply *TopPlayersReply) error {
	records, err := rs.db.TopRatings(args.Limit)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}
