package world

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/spellduel/server/internal/core/ecs"
	"github.com/spellduel/server/internal/spell"
)

// Transform is a wizard's pose. Forward is the rotation applied to +Z.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

func (t *Transform) Forward() mgl64.Vec3 {
	return t.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
}

// Wizard holds per-wizard AI state.
type Wizard struct {
	Faction spell.Faction
	Radius  float64

	Target      ecs.EntityID // zero = none
	AttackTimer time.Duration
	Attacking   bool
	AttackLeft  time.Duration // remaining attack time while Attacking
	Moving      bool

	Casts int // spells acquired from the pool
	Hits  int // enemy spells that struck this wizard
}

// State tracks every wizard in the duel.
// Single-goroutine access only (game loop).
type State struct {
	ecs        *ecs.World
	transforms *ecs.Store[Transform]
	wizards    *ecs.Store[Wizard]
	groundY    float64
}

func NewState(groundY float64) *State {
	w := ecs.NewWorld()
	s := &State{
		ecs:        w,
		transforms: ecs.NewStore[Transform](),
		wizards:    ecs.NewStore[Wizard](),
		groundY:    groundY,
	}
	w.Attach(s.transforms, s.wizards)
	return s
}

// ECS exposes the underlying world, used by CleanupSystem.
func (s *State) ECS() *ecs.World { return s.ecs }

// SpawnWizard adds a wizard snapped to the ground height, facing +Z.
func (s *State) SpawnWizard(faction spell.Faction, pos mgl64.Vec3, radius float64) ecs.EntityID {
	id := s.ecs.CreateEntity()
	pos[1] = s.groundY
	s.transforms.Set(id, &Transform{Position: pos, Rotation: mgl64.QuatIdent()})
	s.wizards.Set(id, &Wizard{Faction: faction, Radius: radius})
	return id
}

// Remove queues a wizard for destruction at the end of the tick.
func (s *State) Remove(id ecs.EntityID) {
	s.ecs.MarkForDestruction(id)
}

// Get returns both components of a live wizard.
func (s *State) Get(id ecs.EntityID) (*Wizard, *Transform, bool) {
	if !s.ecs.Alive(id) {
		return nil, nil, false
	}
	wz, ok := s.wizards.Get(id)
	if !ok {
		return nil, nil, false
	}
	tr, ok := s.transforms.Get(id)
	if !ok {
		return nil, nil, false
	}
	return wz, tr, true
}

// Each visits every wizard in spawn order (modulo removals).
func (s *State) Each(fn func(ecs.EntityID, *Wizard, *Transform)) {
	ecs.Each2(s.wizards, s.transforms, fn)
}

// Members returns the ids of every wizard of faction f.
func (s *State) Members(f spell.Faction) []ecs.EntityID {
	var out []ecs.EntityID
	s.wizards.Each(func(id ecs.EntityID, wz *Wizard) {
		if wz.Faction == f {
			out = append(out, id)
		}
	})
	return out
}

func (s *State) Count() int { return s.wizards.Len() }

// CountFaction returns how many wizards belong to f.
func (s *State) CountFaction(f spell.Faction) int {
	n := 0
	s.wizards.Each(func(_ ecs.EntityID, wz *Wizard) {
		if wz.Faction == f {
			n++
		}
	})
	return n
}

func (s *State) GroundY() float64 { return s.groundY }
