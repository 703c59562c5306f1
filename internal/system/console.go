package system

import (
	"errors"
	"time"

	"go.uber.org/zap"

	coresys "github.com/spellduel/server/internal/core/system"
	"github.com/spellduel/server/internal/handler"
	"github.com/spellduel/server/internal/net"
	"github.com/spellduel/server/internal/net/command"
)

// ConsoleSystem accepts console sessions, drains their input queues and
// dispatches each line through the command registry. Replies are flushed in
// the same tick. Phase 0 (Input).
type ConsoleSystem struct {
	newSessions <-chan *net.Session
	registry    *command.Registry
	store       *net.SessionStore
	deps        *handler.Deps
	maxPerTick  int
	banner      string
	log         *zap.Logger
}

func NewConsoleSystem(newSessions <-chan *net.Session, registry *command.Registry, store *net.SessionStore, deps *handler.Deps, maxPerTick int, banner string, log *zap.Logger) *ConsoleSystem {
	return &ConsoleSystem{
		newSessions: newSessions,
		registry:    registry,
		store:       store,
		deps:        deps,
		maxPerTick:  max(maxPerTick, 1),
		banner:      banner,
		log:         log,
	}
}

func (s *ConsoleSystem) Phase() coresys.Phase { return coresys.PhaseInput }

// Update runs even while the simulation is paused so the console can
// resume it.
func (s *ConsoleSystem) Update(_ time.Duration) {
	s.accept()
	s.store.Each(func(sess *net.Session) {
		if sess.IsClosed() {
			s.drop(sess)
			return
		}
		s.drain(sess)
		sess.FlushOutput()
		if sess.IsClosed() {
			s.drop(sess)
		}
	})
}

// Close disconnects every session. Used at shutdown.
func (s *ConsoleSystem) Close() {
	s.store.Each(func(sess *net.Session) {
		sess.Send("server shutting down")
		sess.Quit()
		sess.FlushOutput()
		s.drop(sess)
	})
}

func (s *ConsoleSystem) accept() {
	for {
		select {
		case sess := <-s.newSessions:
			s.store.Add(sess)
			if s.banner != "" {
				sess.Send(s.banner)
			}
			if sess.State() == command.StateGuest {
				sess.Send("auth <password> to unlock admin commands")
			}
			sess.FlushOutput()
		default:
			return
		}
	}
}

func (s *ConsoleSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		var line string
		select {
		case line = <-sess.InQueue:
		default:
			return
		}
		if sess.State() == command.StateClosing {
			return
		}
		if err := s.registry.Dispatch(sess, sess.State(), line); err != nil {
			s.reply(sess, err)
		}
	}
}

func (s *ConsoleSystem) reply(sess *net.Session, err error) {
	switch {
	case errors.Is(err, command.ErrEmpty):
	case errors.Is(err, command.ErrUnknown), errors.Is(err, command.ErrNotAllowed):
		sess.Send(err.Error() + " (try help)")
	default:
		sess.Send("error: " + err.Error())
	}
}

func (s *ConsoleSystem) drop(sess *net.Session) {
	s.store.Remove(sess.ID())
	s.deps.Forget(sess.ID())
	s.log.Info("console disconnected", zap.Uint64("session", sess.ID()))
}
