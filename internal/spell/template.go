package spell

import (
	"fmt"
	"time"
)

// KindProjectile is the only template kind the pool can instantiate.
const KindProjectile = "projectile"

// Template describes how pooled projectiles are built.
type Template struct {
	Name     string
	Kind     string
	Speed    float64       // units per second
	LifeTime time.Duration // time until an unhit projectile returns itself
	Radius   float64       // overlap radius used by the collision feed
}

// DefaultTemplate mirrors the stock fireball: 15 u/s, 5 s lifetime.
func DefaultTemplate() Template {
	return Template{
		Name:     "spell",
		Kind:     KindProjectile,
		Speed:    15,
		LifeTime: 5 * time.Second,
		Radius:   0.5,
	}
}

// Validate reports ErrMisconfigured when the template cannot produce a
// working projectile.
func (t Template) Validate() error {
	if t.Kind != KindProjectile {
		return fmt.Errorf("%w: template %q has kind %q, want %q", ErrMisconfigured, t.Name, t.Kind, KindProjectile)
	}
	if t.Speed <= 0 {
		return fmt.Errorf("%w: template %q has no speed", ErrMisconfigured, t.Name)
	}
	if t.LifeTime <= 0 {
		return fmt.Errorf("%w: template %q has no lifetime", ErrMisconfigured, t.Name)
	}
	if t.Radius < 0 {
		return fmt.Errorf("%w: template %q has negative radius", ErrMisconfigured, t.Name)
	}
	return nil
}
