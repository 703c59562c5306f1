package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for wizard decision scripts.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from scriptsDir/ai.
// A missing directory is not an error; callers fall back to the built-in
// decision logic when no wizard_ai function is defined.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	for _, sub := range []string{"core", "ai"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// HasFunc reports whether a global Lua function with the given name exists.
func (e *Engine) HasFunc(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// WizardContext holds pre-packed data for one wizard's decision.
type WizardContext struct {
	Faction   string
	HasTarget bool

	Distance     float64 // to target on the XZ plane
	StopDistance float64
	AttackRange  float64

	Attacking   bool
	AttackReady bool // attack timer elapsed

	CanMove bool // AllowWizardMovement
	CanCast bool // AllowParticles && AllowWizardAttack
}

// Command types understood by the AI system.
const (
	CmdRetarget = "retarget"
	CmdMove     = "move"
	CmdStop     = "stop"
	CmdAttack   = "attack"
	CmdIdle     = "idle"
)

// Command is a single action returned by wizard_ai.
type Command struct {
	Type string
}

// RunWizardAI calls Lua wizard_ai(ctx) and returns its commands. ok is false
// when the function is missing or fails, so the caller can fall back.
func (e *Engine) RunWizardAI(ctx WizardContext) (cmds []Command, ok bool) {
	fn := e.vm.GetGlobal("wizard_ai")
	if fn == lua.LNil {
		return nil, false
	}

	t := e.vm.NewTable()
	t.RawSetString("faction", lua.LString(ctx.Faction))
	t.RawSetString("has_target", lua.LBool(ctx.HasTarget))
	t.RawSetString("distance", lua.LNumber(ctx.Distance))
	t.RawSetString("stop_distance", lua.LNumber(ctx.StopDistance))
	t.RawSetString("attack_range", lua.LNumber(ctx.AttackRange))
	t.RawSetString("attacking", lua.LBool(ctx.Attacking))
	t.RawSetString("attack_ready", lua.LBool(ctx.AttackReady))
	t.RawSetString("can_move", lua.LBool(ctx.CanMove))
	t.RawSetString("can_cast", lua.LBool(ctx.CanCast))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua wizard_ai error", zap.Error(err), zap.String("faction", ctx.Faction))
		return nil, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, isTable := result.(*lua.LTable)
	if !isTable {
		e.log.Error("lua wizard_ai returned non-table", zap.String("type", result.Type().String()))
		return nil, false
	}

	rt.ForEach(func(_, v lua.LValue) {
		switch row := v.(type) {
		case *lua.LTable:
			cmds = append(cmds, Command{Type: lStr(row, "type")})
		case lua.LString:
			cmds = append(cmds, Command{Type: string(row)})
		}
	})
	return cmds, true
}

// DecideWizard is the built-in equivalent of the stock wizard_ai script.
func DecideWizard(ctx WizardContext) []Command {
	if !ctx.HasTarget {
		return []Command{{Type: CmdRetarget}}
	}
	var cmds []Command
	switch {
	case ctx.Attacking:
	case ctx.Distance > ctx.StopDistance:
		cmds = append(cmds, Command{Type: CmdMove})
	default:
		cmds = append(cmds, Command{Type: CmdStop})
	}
	if ctx.AttackReady && ctx.Distance <= ctx.AttackRange && !ctx.Attacking {
		cmds = append(cmds, Command{Type: CmdAttack})
	}
	return cmds
}

// --- Lua helpers ---

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
