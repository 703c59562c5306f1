package system

import (
	"sort"
	"time"
)

// Runner drives one game loop tick: console input, event delivery, spell
// motion and wizard AI, the overlap feed, replies and diagnostics, the
// journal and finally entity cleanup. Systems sharing a phase keep their
// registration order.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{systems: make([]System, 0, 16)}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every phase with the simulated step dt. dt is zero while the
// simulation is paused; systems still run so the console stays live.
func (r *Runner) Tick(dt time.Duration) {
	for _, s := range r.ordered() {
		s.Update(dt)
	}
}

// TickPhase runs the systems of a single phase. Shutdown uses it to deliver
// the final pool events without stepping the simulation.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	for _, s := range r.ordered() {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

func (r *Runner) Len() int { return len(r.systems) }

func (r *Runner) ordered() []System {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
	return r.systems
}
