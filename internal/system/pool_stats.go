package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/spellduel/server/internal/core/system"
	"github.com/spellduel/server/internal/spell"
)

// PoolStatsSystem logs the pool counters. Wrap it with coresys.Every to set
// the cadence. Phase 3 (PostUpdate).
type PoolStatsSystem struct {
	pool *spell.Pool
	log  *zap.Logger
	last spell.Stats
}

func NewPoolStatsSystem(pool *spell.Pool, log *zap.Logger) *PoolStatsSystem {
	return &PoolStatsSystem{pool: pool, log: log}
}

func (s *PoolStatsSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *PoolStatsSystem) Update(_ time.Duration) {
	st := s.pool.Stats()
	s.log.Info("spell pool",
		zap.Int("active", st.Active),
		zap.Int("free", st.Free),
		zap.Int("total", st.Total),
		zap.Uint64("acquired", st.Acquired-s.last.Acquired),
		zap.Uint64("expired", st.Expired-s.last.Expired),
		zap.Uint64("hits", st.Hits-s.last.Hits),
		zap.Uint64("evicted", st.Evicted-s.last.Evicted),
	)
	if st.Exhausted > s.last.Exhausted {
		s.log.Warn("spell pool refused casts since last report",
			zap.Uint64("exhausted", st.Exhausted-s.last.Exhausted),
		)
	}
	s.last = st
}
