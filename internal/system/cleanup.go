package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/spellduel/server/internal/core/system"
	"github.com/spellduel/server/internal/world"
)

// CleanupSystem destroys wizards queued for removal during the tick. Targets
// pointing at them go stale and are dropped by the AI on its next pass.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	world *world.State
	log   *zap.Logger
}

func NewCleanupSystem(ws *world.State, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: ws, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	ecsWorld := s.world.ECS()
	n := ecsWorld.Pending()
	if n == 0 {
		return
	}
	before := ecsWorld.Len()
	ecsWorld.FlushDestroyQueue()
	s.log.Debug("wizards removed",
		zap.Int("removed", before-ecsWorld.Len()),
		zap.Int("remaining", s.world.Count()),
	)
}
