package handler

import (
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/spellduel/server/internal/core/ecs"
	"github.com/spellduel/server/internal/core/event"
	"github.com/spellduel/server/internal/spell"
	"github.com/spellduel/server/internal/world"
)

func HandleHelp(c Conn, _ []string, deps *Deps) {
	for _, info := range deps.registry.Available(c.State()) {
		c.Sendf("%-40s %s", info.Usage, info.Help)
	}
}

func HandleQuit(c Conn, _ []string, _ *Deps) {
	c.Send("bye")
	c.Quit()
}

// HandleStats prints the pool, gate and wizard counters.
func HandleStats(c Conn, _ []string, deps *Deps) {
	p := deps.Printer
	st := deps.Pool.Stats()
	c.Send(p.Sprintf("pool  active=%d free=%d total=%d", st.Active, st.Free, st.Total))
	c.Send(p.Sprintf("      created=%d acquired=%d released=%d", st.Created, st.Acquired, st.Released))
	c.Send(p.Sprintf("      expired=%d hits=%d evicted=%d exhausted=%d failed=%d",
		st.Expired, st.Hits, st.Evicted, st.Exhausted, st.Failed))

	g := deps.Gates.Snapshot()
	c.Sendf("gates particles=%s movement=%s attack=%s paused=%s timescale=%.2f",
		onOff(g.AllowParticles), onOff(g.AllowWizardMovement), onOff(g.AllowWizardAttack), onOff(g.Paused), g.TimeScale)

	if deps.World != nil {
		c.Send(p.Sprintf("wizards fire=%d ice=%d",
			deps.World.CountFaction(spell.FactionFire), deps.World.CountFaction(spell.FactionIce)))
	}
	if deps.Clock != nil {
		c.Send(p.Sprintf("clock sim=%s frames=%d run=%s", deps.Clock.Now(), deps.Clock.Frames(), deps.RunID))
	}
}

func HandlePause(c Conn, args []string, deps *Deps) {
	toggle(c, args, deps, "pause", deps.Gates.SetPaused)
}

func HandleParticles(c Conn, args []string, deps *Deps) {
	toggle(c, args, deps, "particles", deps.Gates.SetAllowParticles)
}

func HandleMovement(c Conn, args []string, deps *Deps) {
	toggle(c, args, deps, "movement", deps.Gates.SetAllowWizardMovement)
}

func HandleAttack(c Conn, args []string, deps *Deps) {
	toggle(c, args, deps, "attack", deps.Gates.SetAllowWizardAttack)
}

func HandleTimeScale(c Conn, args []string, deps *Deps) {
	if len(args) != 1 {
		c.Send("usage: timescale <0.1-3.0>")
		return
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil || !deps.Gates.SetTimeScale(v) {
		c.Sendf("invalid time scale %q", args[0])
		return
	}
	got := strconv.FormatFloat(deps.Gates.TimeScale(), 'f', -1, 64)
	gateChanged(deps, "timescale", got)
	c.Send("timescale " + got)
}

// HandleCast acquires a spell at an explicit pose, the console equivalent of
// a wizard's attack.
func HandleCast(c Conn, args []string, deps *Deps) {
	if len(args) != 5 {
		c.Send("usage: cast <fire|ice> <x> <y> <z> <yaw_deg>")
		return
	}
	owner, err := spell.ParseFaction(args[0])
	if err != nil {
		c.Send(err.Error())
		return
	}
	var nums [4]float64
	for i := range nums {
		nums[i], err = strconv.ParseFloat(args[i+1], 64)
		if err != nil {
			c.Sendf("invalid number %q", args[i+1])
			return
		}
	}
	pos := mgl64.Vec3{nums[0], nums[1], nums[2]}
	p, err := deps.Pool.Acquire(pos, world.YawRotation(nums[3]), owner)
	if err != nil {
		c.Sendf("cast failed: %v", err)
		return
	}
	deps.Log.Info("console cast",
		zap.Uint64("session", c.ID()),
		zap.String("spell", p.Name()),
		zap.Stringer("owner", owner),
	)
	c.Sendf("cast %s gen=%d owner=%s", p.Name(), p.Generation(), owner)
}

func HandleReleaseAll(c Conn, _ []string, deps *Deps) {
	n := deps.Pool.ActiveLen()
	deps.Pool.ReleaseAll()
	c.Send(deps.Printer.Sprintf("released %d spells", n))
}

// HandleWizards lists every wizard with the id despawn expects.
func HandleWizards(c Conn, _ []string, deps *Deps) {
	n := 0
	deps.World.Each(func(id ecs.EntityID, wz *world.Wizard, tr *world.Transform) {
		c.Sendf("%-12d %-4s x=%7.2f z=%7.2f casts=%d hits=%d",
			uint64(id), wz.Faction, tr.Position.X(), tr.Position.Z(), wz.Casts, wz.Hits)
		n++
	})
	c.Send(deps.Printer.Sprintf("%d wizards", n))
}

// HandleDespawn queues a wizard for removal at the end of the tick. Wizards
// targeting it pick a new enemy on their next decision.
func HandleDespawn(c Conn, args []string, deps *Deps) {
	if len(args) != 1 {
		c.Send("usage: despawn <wizard-id>")
		return
	}
	raw, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		c.Sendf("invalid wizard id %q", args[0])
		return
	}
	id := ecs.EntityID(raw)
	wz, _, ok := deps.World.Get(id)
	if !ok {
		c.Sendf("no wizard %d", raw)
		return
	}
	deps.World.Remove(id)
	deps.Log.Info("console despawn",
		zap.Uint64("session", c.ID()),
		zap.Uint64("wizard", raw),
		zap.Stringer("faction", wz.Faction),
	)
	c.Sendf("despawning %s wizard %d", wz.Faction, raw)
}

func toggle(c Conn, args []string, deps *Deps, gate string, set func(bool)) {
	if len(args) != 1 {
		c.Sendf("usage: %s on|off", gate)
		return
	}
	on, ok := parseOnOff(args[0])
	if !ok {
		c.Sendf("usage: %s on|off", gate)
		return
	}
	set(on)
	gateChanged(deps, gate, onOff(on))
	c.Sendf("%s %s", gate, onOff(on))
}

func gateChanged(deps *Deps, gate, value string) {
	if deps.Bus != nil {
		event.Emit(deps.Bus, event.GatesChanged{Gate: gate, Value: value})
	}
	deps.Log.Info("gate changed", zap.String("gate", gate), zap.String("value", value))
}

func parseOnOff(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, true
	case "off", "false", "0", "no":
		return false, true
	}
	return false, false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
