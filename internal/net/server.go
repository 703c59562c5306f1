package net

import (
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spellduel/server/internal/net/command"
)

// Server accepts admin console connections and creates Sessions.
// New sessions are handed to the game loop through a channel.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newConns chan *Session
	inSize   int
	outSize  int
	initial  command.SessionState
	log      *zap.Logger
	closeCh  chan struct{}
}

// NewServer listens on bindAddr. When requireAuth is false sessions start
// authenticated.
func NewServer(bindAddr string, inSize, outSize int, requireAuth bool, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	initial := command.StateAuthenticated
	if requireAuth {
		initial = command.StateGuest
	}
	return &Server{
		listener: ln,
		newConns: make(chan *Session, 16),
		inSize:   inSize,
		outSize:  outSize,
		initial:  initial,
		log:      log,
		closeCh:  make(chan struct{}),
	}, nil
}

// AcceptLoop runs in its own goroutine until Shutdown.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("console accept failed", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.inSize, s.outSize, s.initial, s.log)
		sess.Start()

		s.log.Info("console connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("console connection queue full, rejecting")
			sess.Close()
		}
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
