// Package collision stands in for the engine's trigger callbacks. Each tick it
// indexes wizard and obstacle volumes in an R-tree and reports every
// (projectile, volume) overlap to the projectile.
package collision

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/spellduel/server/internal/core/ecs"
	"github.com/spellduel/server/internal/data"
	"github.com/spellduel/server/internal/spell"
	"github.com/spellduel/server/internal/world"
)

// minExtent keeps zero-radius volumes indexable; rtreego rejects empty rects.
const minExtent = 1e-3

// volume is one indexed circle on the XZ plane.
type volume struct {
	seq     int
	wizard  ecs.EntityID // zero for obstacles
	faction spell.Faction
	x, z    float64
	radius  float64
	rect    rtreego.Rect
}

func (v *volume) Bounds() rtreego.Rect { return v.rect }

// Contact is an overlap that sent a projectile back to its pool.
type Contact struct {
	SpellID int
	Owner   spell.Faction
	Wizard  ecs.EntityID
	Victim  spell.Faction
}

// Feed owns the per-tick broadphase.
type Feed struct {
	obstacles []*volume
	vols      []*volume
	spatials  []rtreego.Spatial
	hits      []rtreego.Spatial
	log       *zap.Logger

	overlaps uint64
}

func NewFeed(obstacles []data.Obstacle, log *zap.Logger) *Feed {
	f := &Feed{log: log}
	for _, o := range obstacles {
		f.obstacles = append(f.obstacles, newVolume(0, spell.FactionNone, mgl64.Vec3{o.X, 0, o.Z}, o.Radius))
	}
	return f
}

func newVolume(wizard ecs.EntityID, faction spell.Faction, pos mgl64.Vec3, radius float64) *volume {
	return &volume{
		wizard:  wizard,
		faction: faction,
		x:       pos[0],
		z:       pos[2],
		radius:  radius,
		rect:    circleRect(pos[0], pos[2], radius),
	}
}

func circleRect(x, z, radius float64) rtreego.Rect {
	r := max(radius, minExtent)
	rect, err := rtreego.NewRect(rtreego.Point{x - r, z - r}, []float64{2 * r, 2 * r})
	if err != nil {
		// unreachable: both lengths are positive
		panic(err)
	}
	return rect
}

// Step rebuilds the index from the current wizard positions and delivers
// overlaps to every active projectile. A projectile that returns to its pool
// stops receiving further overlaps this tick. The victim wizard's hit counter
// is bumped for every returning contact.
func (f *Feed) Step(state *world.State, pool *spell.Pool) []Contact {
	f.vols = append(f.vols[:0], f.obstacles...)
	state.Each(func(id ecs.EntityID, wz *world.Wizard, tr *world.Transform) {
		f.vols = append(f.vols, newVolume(id, wz.Faction, tr.Position, wz.Radius))
	})
	if len(f.vols) == 0 {
		return nil
	}
	f.spatials = f.spatials[:0]
	for i, v := range f.vols {
		v.seq = i
		f.spatials = append(f.spatials, v)
	}
	tree := rtreego.NewTree(2, 25, 50, f.spatials...)

	var contacts []Contact
	pool.Each(func(p *spell.Projectile) {
		pos := p.Position()
		id, owner := p.ID(), p.Owner()
		f.hits = tree.SearchIntersect(circleRect(pos[0], pos[2], p.Radius()))
		if len(f.hits) == 0 {
			return
		}
		// index order keeps runs with the same seed identical
		sort.Slice(f.hits, func(i, j int) bool {
			return f.hits[i].(*volume).seq < f.hits[j].(*volume).seq
		})
		for _, s := range f.hits {
			v := s.(*volume)
			if !overlaps(pos, p.Radius(), v) {
				continue
			}
			f.overlaps++
			p.OnCollision(v.faction)
			if p.Active() {
				continue
			}
			c := Contact{SpellID: id, Owner: owner, Wizard: v.wizard, Victim: v.faction}
			if wz, _, ok := state.Get(v.wizard); ok {
				wz.Hits++
			}
			contacts = append(contacts, c)
			f.log.Debug("spell hit",
				zap.Int("spell", c.SpellID),
				zap.Stringer("victim", c.Victim),
				zap.Uint64("wizard", uint64(c.Wizard)),
			)
			return
		}
	})
	return contacts
}

// Overlaps returns the cumulative number of fine-phase overlaps delivered.
func (f *Feed) Overlaps() uint64 { return f.overlaps }

func overlaps(pos mgl64.Vec3, radius float64, v *volume) bool {
	dx := pos[0] - v.x
	dz := pos[2] - v.z
	r := radius + v.radius
	return dx*dx+dz*dz <= r*r
}
