package net

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spellduel/server/internal/net/command"
)

// Session is one admin console connection. Network I/O runs in dedicated
// goroutines; everything else is touched only from the game loop.
type Session struct {
	id   uint64
	conn net.Conn

	state atomic.Int32 // command.SessionState

	InQueue  chan string // game loop reads lines from here
	OutQueue chan string // writer goroutine reads from here

	IP string

	outBuf    []string // flushed by ConsoleSystem once per tick
	quitting  bool
	outClosed bool

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, inSize, outSize int, initial command.SessionState, log *zap.Logger) *Session {
	s := &Session{
		id:       id,
		conn:     conn,
		InQueue:  make(chan string, inSize),
		OutQueue: make(chan string, outSize),
		IP:       conn.RemoteAddr().String(),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(initial))
	return s
}

func (s *Session) ID() uint64 { return s.id }

func (s *Session) State() command.SessionState {
	return command.SessionState(s.state.Load())
}

func (s *Session) SetState(st command.SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a line. Nothing reaches the socket until FlushOutput.
func (s *Session) Send(line string) {
	if s.closed.Load() || s.outClosed {
		return
	}
	s.outBuf = append(s.outBuf, line)
}

func (s *Session) Sendf(format string, args ...any) {
	s.Send(fmt.Sprintf(format, args...))
}

// Quit closes the session once the lines buffered so far have been written.
func (s *Session) Quit() {
	s.quitting = true
	s.SetState(command.StateClosing)
}

// FlushOutput hands buffered lines to the writer. A slow reader whose queue
// is full gets disconnected.
func (s *Session) FlushOutput() {
	if s.outClosed {
		return
	}
	for _, line := range s.outBuf {
		select {
		case s.OutQueue <- line:
		default:
			s.log.Warn("console output queue full, dropping session")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
	if s.quitting {
		s.outClosed = true
		close(s.OutQueue)
	}
}

// Close shuts the connection down immediately.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(command.StateClosing)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

func (s *Session) readLoop() {
	defer s.Close()

	br := bufio.NewReaderSize(s.conn, MaxLineLength)
	for {
		line, err := ReadLine(br)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("console read ended", zap.Error(err))
			}
			return
		}
		if line == "" {
			continue
		}
		select {
		case s.InQueue <- line:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case line, ok := <-s.OutQueue:
			if !ok {
				return // Quit: everything queued has been written
			}
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := WriteLine(s.conn, line); err != nil {
				if !s.closed.Load() {
					s.log.Debug("console write failed", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
