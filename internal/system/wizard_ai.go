package system

import (
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/spellduel/server/internal/config"
	"github.com/spellduel/server/internal/core/ecs"
	coresys "github.com/spellduel/server/internal/core/system"
	"github.com/spellduel/server/internal/scripting"
	"github.com/spellduel/server/internal/sim"
	"github.com/spellduel/server/internal/spell"
	"github.com/spellduel/server/internal/world"
)

// WizardAISystem drives every wizard: Go gathers the situation and executes
// commands, Lua (wizard_ai) decides. Without a script the built-in decision
// logic is used. Phase 2 (Update).
type WizardAISystem struct {
	world  *world.State
	pool   *spell.Pool
	gates  *sim.Gates
	engine *scripting.Engine // nil = built-in decisions only
	cfg    config.WizardConfig
	rng    *rand.Rand
	log    *zap.Logger

	scripted bool
}

func NewWizardAISystem(ws *world.State, pool *spell.Pool, gates *sim.Gates, engine *scripting.Engine, cfg config.WizardConfig, rng *rand.Rand, log *zap.Logger) *WizardAISystem {
	s := &WizardAISystem{
		world:  ws,
		pool:   pool,
		gates:  gates,
		engine: engine,
		cfg:    cfg,
		rng:    rng,
		log:    log,
	}
	s.scripted = engine != nil && engine.HasFunc("wizard_ai")
	if !s.scripted {
		log.Info("wizard_ai script not found, using built-in wizard decisions")
	}
	return s
}

func (s *WizardAISystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *WizardAISystem) Update(dt time.Duration) {
	if dt <= 0 {
		return // paused
	}
	s.world.Each(func(id ecs.EntityID, wz *world.Wizard, tr *world.Transform) {
		s.think(id, wz, tr, dt)
	})
}

func (s *WizardAISystem) think(id ecs.EntityID, wz *world.Wizard, tr *world.Transform, dt time.Duration) {
	if wz.Attacking {
		wz.AttackLeft -= dt
		if wz.AttackLeft <= 0 {
			s.endAttack(wz)
		}
	}
	wz.AttackTimer -= dt

	target, hasTarget := s.target(wz)
	ctx := scripting.WizardContext{
		Faction:      wz.Faction.String(),
		HasTarget:    hasTarget,
		StopDistance: s.cfg.StopDistance,
		AttackRange:  s.cfg.AttackRange,
		Attacking:    wz.Attacking,
		AttackReady:  wz.AttackTimer <= 0,
		CanMove:      s.gates.AllowWizardMovement(),
		CanCast:      s.gates.CanCast(),
	}
	if hasTarget {
		ctx.Distance = world.PlanarDistance(tr.Position, target.Position)
	}

	cmds, ok := s.decide(ctx)
	if !ok {
		cmds = scripting.DecideWizard(ctx)
	}

	for _, cmd := range cmds {
		switch cmd.Type {
		case scripting.CmdRetarget:
			s.retarget(wz, tr)
		case scripting.CmdMove:
			if hasTarget {
				s.moveTowards(wz, tr, target.Position, dt)
			}
		case scripting.CmdStop:
			wz.Moving = false
		case scripting.CmdAttack:
			if hasTarget && !wz.Attacking && wz.AttackTimer <= 0 && ctx.Distance <= s.cfg.AttackRange {
				wz.AttackTimer = s.nextInterval()
				s.startAttack(id, wz, tr, target.Position)
			}
		case scripting.CmdIdle:
		default:
			s.log.Debug("unknown wizard command", zap.String("type", cmd.Type))
		}
	}
}

func (s *WizardAISystem) decide(ctx scripting.WizardContext) ([]scripting.Command, bool) {
	if !s.scripted {
		return nil, false
	}
	return s.engine.RunWizardAI(ctx)
}

// target resolves the wizard's current target, clearing it when the target
// is gone.
func (s *WizardAISystem) target(wz *world.Wizard) (*world.Transform, bool) {
	if wz.Target == 0 {
		return nil, false
	}
	_, tr, ok := s.world.Get(wz.Target)
	if !ok {
		wz.Target = 0
		return nil, false
	}
	return tr, true
}

// retarget picks a random enemy and turns to face it at once.
func (s *WizardAISystem) retarget(wz *world.Wizard, tr *world.Transform) {
	enemies := s.world.Members(wz.Faction.Enemy())
	if len(enemies) == 0 {
		return
	}
	wz.Target = enemies[s.rng.Intn(len(enemies))]
	if _, ttr, ok := s.world.Get(wz.Target); ok {
		s.lookAt(tr, ttr.Position)
	}
}

func (s *WizardAISystem) moveTowards(wz *world.Wizard, tr *world.Transform, dest mgl64.Vec3, dt time.Duration) {
	if wz.Attacking || !s.gates.AllowWizardMovement() {
		return
	}
	dir := world.PlanarDirection(tr.Position, dest)
	if dir.Len() == 0 {
		return
	}
	tr.Position = tr.Position.Add(dir.Mul(s.cfg.MoveSpeed * dt.Seconds()))
	s.lookAt(tr, dest)
	wz.Moving = true
}

func (s *WizardAISystem) startAttack(id ecs.EntityID, wz *world.Wizard, tr *world.Transform, dest mgl64.Vec3) {
	if !s.gates.CanCast() {
		return
	}
	wz.Attacking = true
	wz.AttackLeft = s.cfg.AttackDuration
	wz.Moving = false
	s.lookAt(tr, dest)

	origin := tr.Position.Add(tr.Forward().Mul(s.cfg.CastOffset))
	origin[1] += s.cfg.CastHeight
	rot, ok := world.LookRotation(dest.Sub(origin))
	if !ok {
		rot = tr.Rotation
	}
	p, err := s.pool.Acquire(origin, rot, wz.Faction)
	if err != nil {
		s.log.Debug("wizard cast failed",
			zap.Uint64("wizard", uint64(id)),
			zap.Stringer("faction", wz.Faction),
			zap.Error(err),
		)
		return
	}
	wz.Casts++
	s.log.Debug("wizard cast",
		zap.Uint64("wizard", uint64(id)),
		zap.String("spell", p.Name()),
		zap.Uint32("gen", p.Generation()),
	)
}

func (s *WizardAISystem) endAttack(wz *world.Wizard) {
	wz.Attacking = false
	wz.AttackLeft = 0
}

func (s *WizardAISystem) lookAt(tr *world.Transform, dest mgl64.Vec3) {
	if rot, ok := world.LookRotation(dest.Sub(tr.Position)); ok {
		tr.Rotation = rot
	}
}

// nextInterval draws the next attack cooldown from [min, max).
func (s *WizardAISystem) nextInterval() time.Duration {
	lo, hi := s.cfg.MinAttackInterval, s.cfg.MaxAttackInterval
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int63n(int64(hi-lo)))
}
