package event

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spellduel/server/internal/spell"
)

// SpellCast is emitted when the pool hands out a projectile.
type SpellCast struct {
	SpellID    int
	Generation uint32
	Owner      spell.Faction
	Position   mgl64.Vec3
	At         time.Duration
}

// SpellReturned is emitted when a projectile goes back to the free list.
// Reason "evicted" marks the saturation policy at work.
type SpellReturned struct {
	SpellID    int
	Generation uint32
	Owner      spell.Faction
	Position   mgl64.Vec3
	Reason     spell.ReturnReason
	Age        time.Duration
	At         time.Duration
}

// PoolExhausted is emitted when a cast request could not be served.
type PoolExhausted struct {
	Owner spell.Faction
	At    time.Duration
}

// GatesChanged is emitted when the console flips a gameplay gate.
type GatesChanged struct {
	Gate  string
	Value string
}

// FromNotice converts a pool notice into the matching bus event and emits it.
func FromNotice(b *Bus, n spell.Notice) {
	switch n.Kind {
	case spell.NoticeAcquired:
		Emit(b, SpellCast{
			SpellID:    n.ID,
			Generation: n.Generation,
			Owner:      n.Owner,
			Position:   n.Position,
			At:         n.At,
		})
	case spell.NoticeReturned:
		Emit(b, SpellReturned{
			SpellID:    n.ID,
			Generation: n.Generation,
			Owner:      n.Owner,
			Position:   n.Position,
			Reason:     n.Reason,
			Age:        n.Age,
			At:         n.At,
		})
	case spell.NoticeExhausted:
		Emit(b, PoolExhausted{Owner: n.Owner, At: n.At})
	}
}
