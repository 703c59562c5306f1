package system

import (
	"time"

	coresys "github.com/spellduel/server/internal/core/system"
	"github.com/spellduel/server/internal/spell"
)

// ProjectileSystem advances every active spell and lets expired ones return
// to the pool. Phase 2 (Update), registered ahead of the wizard AI so a
// freshly cast spell first moves on the following tick.
type ProjectileSystem struct {
	pool *spell.Pool
}

func NewProjectileSystem(pool *spell.Pool) *ProjectileSystem {
	return &ProjectileSystem{pool: pool}
}

func (s *ProjectileSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ProjectileSystem) Update(dt time.Duration) {
	s.pool.Tick(dt)
}
