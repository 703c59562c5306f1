package system

import (
	"time"

	coresys "github.com/spellduel/server/internal/core/system"
	"github.com/spellduel/server/internal/diag"
	"github.com/spellduel/server/internal/sim"
	"github.com/spellduel/server/internal/spell"
	"github.com/spellduel/server/internal/world"
)

// DiagSystem publishes a snapshot to the diagnostics hub every few ticks.
// Phase 4 (Output).
type DiagSystem struct {
	hub       *diag.Hub
	pool      *spell.Pool
	gates     *sim.Gates
	clock     *sim.Clock
	world     *world.State
	collision *CollisionSystem
	runID     string
	every     int
	tickCount int
}

func NewDiagSystem(hub *diag.Hub, pool *spell.Pool, gates *sim.Gates, clock *sim.Clock, ws *world.State, collision *CollisionSystem, runID string, every int) *DiagSystem {
	return &DiagSystem{
		hub:       hub,
		pool:      pool,
		gates:     gates,
		clock:     clock,
		world:     ws,
		collision: collision,
		runID:     runID,
		every:     max(every, 1),
	}
}

func (s *DiagSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *DiagSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.every {
		return
	}
	s.tickCount = 0
	s.hub.Publish(s.Snapshot())
}

// Snapshot builds the current diagnostics view.
func (s *DiagSystem) Snapshot() diag.Snapshot {
	snap := diag.Snapshot{
		RunID:     s.runID,
		Frame:     s.clock.Frames(),
		SimTimeMS: s.clock.Now().Milliseconds(),
		Pool:      s.pool.Stats(),
		Gates:     s.gates.Snapshot(),
		Wizards: map[string]int{
			spell.FactionFire.String(): s.world.CountFaction(spell.FactionFire),
			spell.FactionIce.String():  s.world.CountFaction(spell.FactionIce),
		},
		Hits: map[string]int{},
	}
	if s.collision != nil {
		snap.Hits = s.collision.Hits()
	}
	return snap
}
