package handler

import (
	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/spellduel/server/internal/core/event"
	"github.com/spellduel/server/internal/net/command"
	"github.com/spellduel/server/internal/sim"
	"github.com/spellduel/server/internal/spell"
	"github.com/spellduel/server/internal/world"
)

// Conn is the part of a console session the handlers use.
type Conn interface {
	ID() uint64
	Send(line string)
	Sendf(format string, args ...any)
	State() command.SessionState
	SetState(command.SessionState)
	Quit()
	Close()
}

// Deps holds shared dependencies injected into all console handlers.
type Deps struct {
	PasswordHash string // bcrypt; empty means sessions start authenticated
	MaxAuthFails int

	Pool    *spell.Pool
	Gates   *sim.Gates
	Clock   *sim.Clock
	World   *world.State
	Bus     *event.Bus
	Printer *message.Printer
	RunID   string
	Log     *zap.Logger

	registry *command.Registry
	failures map[uint64]int
}

// RegisterAll registers all console commands into the registry.
func RegisterAll(reg *command.Registry, deps *Deps) {
	deps.registry = reg
	if deps.failures == nil {
		deps.failures = make(map[uint64]int)
	}
	if deps.MaxAuthFails <= 0 {
		deps.MaxAuthFails = 3
	}

	anyone := []command.SessionState{command.StateGuest, command.StateAuthenticated}
	admin := []command.SessionState{command.StateAuthenticated}

	register := func(info command.Info, states []command.SessionState, fn func(Conn, []string, *Deps)) {
		reg.Register(info, states, func(sess any, args []string) {
			fn(sess.(Conn), args, deps)
		})
	}

	register(command.Info{Name: "auth", Usage: "auth <password>", Help: "unlock admin commands"}, anyone, HandleAuth)
	register(command.Info{Name: "help", Usage: "help", Help: "list commands"}, anyone, HandleHelp)
	register(command.Info{Name: "quit", Usage: "quit", Help: "close the console"}, anyone, HandleQuit)

	register(command.Info{Name: "stats", Usage: "stats", Help: "pool, gate and wizard counters"}, admin, HandleStats)
	register(command.Info{Name: "pause", Usage: "pause on|off", Help: "freeze simulated time"}, admin, HandlePause)
	register(command.Info{Name: "timescale", Usage: "timescale <0.1-3.0>", Help: "set the simulation speed"}, admin, HandleTimeScale)
	register(command.Info{Name: "particles", Usage: "particles on|off", Help: "allow spell effects"}, admin, HandleParticles)
	register(command.Info{Name: "movement", Usage: "movement on|off", Help: "allow wizards to walk"}, admin, HandleMovement)
	register(command.Info{Name: "attack", Usage: "attack on|off", Help: "allow wizards to attack"}, admin, HandleAttack)
	register(command.Info{Name: "cast", Usage: "cast <fire|ice> <x> <y> <z> <yaw_deg>", Help: "spawn a spell from the pool"}, admin, HandleCast)
	register(command.Info{Name: "wizards", Usage: "wizards", Help: "list wizards and their ids"}, admin, HandleWizards)
	register(command.Info{Name: "despawn", Usage: "despawn <wizard-id>", Help: "remove a wizard at the end of the tick"}, admin, HandleDespawn)
	register(command.Info{Name: "release-all", Usage: "release-all", Help: "return every active spell to the pool"}, admin, HandleReleaseAll)
}

// Forget drops per-session bookkeeping once a session is gone.
func (d *Deps) Forget(sessionID uint64) {
	delete(d.failures, sessionID)
}
