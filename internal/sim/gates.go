package sim

import (
	"math"

	"github.com/spellduel/server/internal/config"
)

const (
	MinTimeScale = 0.1
	MaxTimeScale = 3.0
)

// Gates holds the process-wide gameplay switches. One instance lives for
// the whole run, owned by the game loop and shared by pointer with the
// clock, the AI and the console. Only the game loop goroutine touches it.
type Gates struct {
	allowParticles bool
	allowMovement  bool
	allowAttack    bool
	paused         bool
	timeScale      float64
}

func NewGates(cfg config.GatesConfig) *Gates {
	g := &Gates{
		allowParticles: cfg.AllowParticles,
		allowMovement:  cfg.AllowWizardMovement,
		allowAttack:    cfg.AllowWizardAttack,
		paused:         cfg.Paused,
	}
	g.SetTimeScale(cfg.TimeScale)
	return g
}

func (g *Gates) SetAllowParticles(allow bool)      { g.allowParticles = allow }
func (g *Gates) SetAllowWizardMovement(allow bool) { g.allowMovement = allow }
func (g *Gates) SetAllowWizardAttack(allow bool)   { g.allowAttack = allow }
func (g *Gates) SetPaused(paused bool)             { g.paused = paused }

// SetTimeScale clamps scale to [MinTimeScale, MaxTimeScale]. NaN and
// infinities are rejected and leave the current scale (1 before the first
// valid value) in place; ok reports whether scale was accepted.
func (g *Gates) SetTimeScale(scale float64) (ok bool) {
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		if g.timeScale == 0 {
			g.timeScale = 1
		}
		return false
	}
	switch {
	case scale < MinTimeScale:
		scale = MinTimeScale
	case scale > MaxTimeScale:
		scale = MaxTimeScale
	}
	g.timeScale = scale
	return true
}

func (g *Gates) AllowParticles() bool      { return g.allowParticles }
func (g *Gates) AllowWizardMovement() bool { return g.allowMovement }
func (g *Gates) AllowWizardAttack() bool   { return g.allowAttack }
func (g *Gates) Paused() bool              { return g.paused }
func (g *Gates) TimeScale() float64        { return g.timeScale }

// EffectiveScale is the multiplier applied to wall time: 0 while paused.
func (g *Gates) EffectiveScale() float64 {
	if g.paused {
		return 0
	}
	return g.timeScale
}

// CanCast reports whether wizards may start an attack.
func (g *Gates) CanCast() bool {
	return g.allowParticles && g.allowAttack
}

// GatesSnapshot is the JSON view used by diagnostics.
type GatesSnapshot struct {
	AllowParticles      bool    `json:"allow_particles"`
	AllowWizardMovement bool    `json:"allow_wizard_movement"`
	AllowWizardAttack   bool    `json:"allow_wizard_attack"`
	Paused              bool    `json:"paused"`
	TimeScale           float64 `json:"time_scale"`
}

func (g *Gates) Snapshot() GatesSnapshot {
	return GatesSnapshot{
		AllowParticles:      g.allowParticles,
		AllowWizardMovement: g.allowMovement,
		AllowWizardAttack:   g.allowAttack,
		Paused:              g.paused,
		TimeScale:           g.timeScale,
	}
}
