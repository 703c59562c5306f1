package system

import (
	"time"

	"github.com/spellduel/server/internal/collision"
	coresys "github.com/spellduel/server/internal/core/system"
	"github.com/spellduel/server/internal/spell"
	"github.com/spellduel/server/internal/world"
)

// CollisionSystem runs the overlap feed after everything has moved.
// Phase 3 (PostUpdate).
type CollisionSystem struct {
	feed  *collision.Feed
	world *world.State
	pool  *spell.Pool

	hits map[spell.Faction]int
}

func NewCollisionSystem(feed *collision.Feed, ws *world.State, pool *spell.Pool) *CollisionSystem {
	return &CollisionSystem{
		feed:  feed,
		world: ws,
		pool:  pool,
		hits:  make(map[spell.Faction]int),
	}
}

func (s *CollisionSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *CollisionSystem) Update(_ time.Duration) {
	if s.pool.ActiveLen() == 0 {
		return
	}
	for _, c := range s.feed.Step(s.world, s.pool) {
		s.hits[c.Victim]++
	}
}

// Hits returns spells absorbed so far keyed by victim faction name.
func (s *CollisionSystem) Hits() map[string]int {
	out := make(map[string]int, len(s.hits))
	for f, n := range s.hits {
		out[f.String()] = n
	}
	return out
}
