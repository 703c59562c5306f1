package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain console queues
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: projectile motion, wizard AI
	PhasePostUpdate              // 3: overlap feed, pool counters
	PhaseOutput                  // 4: console replies, diagnostics
	PhasePersist                 // 5: journal flush
	PhaseCleanup                 // 6: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
