package spell

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

type slot uint8

const (
	slotNone slot = iota
	slotFree
	slotActive
	slotDestroyed
)

// forwardAxis is the local axis a projectile travels along.
var forwardAxis = mgl64.Vec3{0, 0, 1}

// Projectile is a single pooled spell. Its address is the handle callers
// hold; it stays valid for the whole life of the pool that built it.
//
// Motion is planar: whatever height the projectile was activated at is
// re-applied after every integration step.
type Projectile struct {
	id   int
	name string

	position mgl64.Vec3
	rotation mgl64.Quat

	speed    float64
	lifeTime time.Duration
	radius   float64

	fixedY      float64
	owner       Faction
	initialized bool
	spawnedAt   time.Duration
	deadline    time.Duration
	gen         uint32

	pool *Pool
	slot slot
}

// NewProjectile builds a projectile that is not attached to any pool. When
// such a projectile asks to be returned it is deactivated and destroyed.
func NewProjectile(id int, tmpl Template) *Projectile {
	return &Projectile{
		id:       id,
		name:     fmt.Sprintf("Spell_%d", id),
		rotation: mgl64.QuatIdent(),
		speed:    tmpl.Speed,
		lifeTime: tmpl.LifeTime,
		radius:   tmpl.Radius,
	}
}

func (p *Projectile) ID() int                  { return p.id }
func (p *Projectile) Name() string             { return p.name }
func (p *Projectile) Position() mgl64.Vec3     { return p.position }
func (p *Projectile) Rotation() mgl64.Quat     { return p.rotation }
func (p *Projectile) Owner() Faction           { return p.owner }
func (p *Projectile) Initialized() bool        { return p.initialized }
func (p *Projectile) SpawnedAt() time.Duration { return p.spawnedAt }
func (p *Projectile) Deadline() time.Duration  { return p.deadline }
func (p *Projectile) Radius() float64          { return p.radius }
func (p *Projectile) Speed() float64           { return p.speed }
func (p *Projectile) LifeTime() time.Duration  { return p.lifeTime }

// Generation increases on every activation. A return request stamped with
// an older generation is ignored.
func (p *Projectile) Generation() uint32 { return p.gen }

// Active reports whether the projectile is currently on loan from its pool.
func (p *Projectile) Active() bool { return p.slot == slotActive }

// Destroyed reports whether the projectile was torn down with its pool or
// returned without one.
func (p *Projectile) Destroyed() bool { return p.slot == slotDestroyed }

// Forward is the unit travel direction derived from the rotation.
func (p *Projectile) Forward() mgl64.Vec3 {
	return p.rotation.Rotate(forwardAxis)
}

// Activate places the projectile, stamps a fresh expiry deadline and marks
// it initialized. Any earlier deadline is discarded.
func (p *Projectile) Activate(now time.Duration, position mgl64.Vec3, rotation mgl64.Quat, owner Faction) error {
	if !finiteVec(position) || !finiteQuat(rotation) || rotation.Len() < 1e-9 {
		return fmt.Errorf("%w: %s position=%v rotation=%v", ErrInvalidPose, p.name, position, rotation)
	}
	p.position = position
	p.rotation = rotation.Normalize()
	p.owner = owner
	p.fixedY = position.Y()
	p.spawnedAt = now
	p.deadline = now + p.lifeTime
	p.gen++
	p.initialized = true
	return nil
}

// Tick integrates motion by dt and returns the projectile to its pool once
// the deadline has passed.
func (p *Projectile) Tick(now, dt time.Duration) {
	if !p.initialized {
		return
	}
	if dt > 0 {
		p.position = p.position.Add(p.Forward().Mul(p.speed * dt.Seconds()))
		p.position[1] = p.fixedY
	}
	if now >= p.deadline {
		p.requestReturn(p.gen, ReturnExpired)
	}
}

// OnCollision handles an overlap with a volume owned by other. Only enemy
// combatants consume the projectile.
func (p *Projectile) OnCollision(other Faction) {
	if !p.initialized || !other.Combatant() {
		return
	}
	if other != p.owner {
		p.requestReturn(p.gen, ReturnHit)
	}
}

// ForceReturn hands the projectile back to its pool immediately.
func (p *Projectile) ForceReturn() {
	if !p.initialized {
		return
	}
	p.requestReturn(p.gen, ReturnManual)
}

// Deactivate cancels the pending deadline and clears ownership. It is safe
// to call on an inactive projectile.
func (p *Projectile) Deactivate() {
	p.deadline = 0
	p.owner = FactionNone
	p.fixedY = 0
	p.initialized = false
}

func (p *Projectile) requestReturn(gen uint32, reason ReturnReason) {
	if p.pool != nil {
		p.pool.returnFromProjectile(p, gen, reason)
		return
	}
	p.Deactivate()
	p.slot = slotDestroyed
}

// park moves an inactive projectile back to the neutral pose.
func (p *Projectile) park() {
	p.position = mgl64.Vec3{}
	p.rotation = mgl64.QuatIdent()
}

func (p *Projectile) destroy() {
	p.Deactivate()
	p.park()
	p.slot = slotDestroyed
}

func finiteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func finiteQuat(q mgl64.Quat) bool {
	if math.IsNaN(q.W) || math.IsInf(q.W, 0) {
		return false
	}
	return finiteVec(q.V)
}
