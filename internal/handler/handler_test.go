package handler

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spellduel/server/internal/config"
	"github.com/spellduel/server/internal/core/event"
	"github.com/spellduel/server/internal/net/command"
	"github.com/spellduel/server/internal/sim"
	"github.com/spellduel/server/internal/spell"
	"github.com/spellduel/server/internal/world"
)

type fakeConn struct {
	id    uint64
	state command.SessionState
	lines []string
	quit  bool
}

func (c *fakeConn) ID() uint64                       { return c.id }
func (c *fakeConn) Send(line string)                 { c.lines = append(c.lines, line) }
func (c *fakeConn) Sendf(format string, args ...any) { c.Send(fmt.Sprintf(format, args...)) }
func (c *fakeConn) State() command.SessionState      { return c.state }
func (c *fakeConn) SetState(st command.SessionState) { c.state = st }
func (c *fakeConn) Close()                           { c.Quit() }

func (c *fakeConn) Quit() {
	c.quit = true
	c.state = command.StateClosing
}

func (c *fakeConn) last() string { return c.lines[len(c.lines)-1] }

type fixture struct {
	reg   *command.Registry
	deps  *Deps
	bus   *event.Bus
	gates *sim.Gates
	pool  *spell.Pool
}

func newFixture(t *testing.T, opts spell.Options) *fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	gates := sim.NewGates(config.Defaults().Gates)
	clock := sim.NewClock(gates)
	pool := spell.NewPool(spell.DefaultTemplate(), opts, clock, zap.NewNop())
	bus := event.NewBus()
	deps := &Deps{
		PasswordHash: string(hash),
		Pool:         pool,
		Gates:        gates,
		Clock:        clock,
		World:        world.NewState(0),
		Bus:          bus,
		Printer:      message.NewPrinter(language.English),
		RunID:        "test-run",
		Log:          zap.NewNop(),
	}
	reg := command.NewRegistry(zap.NewNop())
	RegisterAll(reg, deps)
	return &fixture{reg: reg, deps: deps, bus: bus, gates: gates, pool: pool}
}

func (f *fixture) run(t *testing.T, c *fakeConn, line string) error {
	t.Helper()
	return f.reg.Dispatch(c, c.state, line)
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t, spell.Options{InitialSize: 1, MaxSize: 1})
	c := &fakeConn{id: 1, state: command.StateGuest}

	assert.ErrorIs(t, f.run(t, c, "stats"), command.ErrNotAllowed)

	require.NoError(t, f.run(t, c, "auth wrong"))
	assert.Equal(t, "denied", c.last())
	require.NoError(t, f.run(t, c, "auth s3cret"))
	assert.Equal(t, "ok", c.last())
	assert.Equal(t, command.StateAuthenticated, c.state)

	require.NoError(t, f.run(t, c, "stats"))
}

func TestAuthClosesAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t, spell.Options{})
	c := &fakeConn{id: 2, state: command.StateGuest}
	for i := 0; i < 3; i++ {
		require.NoError(t, f.run(t, c, "auth nope"))
	}
	assert.True(t, c.quit)
	assert.Equal(t, "denied, closing", c.last())
}

func TestAuthWithoutConfiguredHashAlwaysFails(t *testing.T) {
	f := newFixture(t, spell.Options{})
	f.deps.PasswordHash = ""
	c := &fakeConn{id: 3, state: command.StateGuest}
	require.NoError(t, f.run(t, c, "auth anything"))
	assert.Equal(t, "denied", c.last())
}

func TestHashPasswordIsAcceptedByAuth(t *testing.T) {
	hash, err := HashPassword("open sesame")
	require.NoError(t, err)

	f := newFixture(t, spell.Options{})
	f.deps.PasswordHash = hash
	c := &fakeConn{id: 4, state: command.StateGuest}
	require.NoError(t, f.run(t, c, "auth open sesame"))
	assert.Equal(t, "ok", c.last())
	assert.Equal(t, command.StateAuthenticated, c.state)
}

func TestHelpListsOnlyReachableCommands(t *testing.T) {
	f := newFixture(t, spell.Options{})
	c := &fakeConn{state: command.StateGuest}
	require.NoError(t, f.run(t, c, "help"))
	require.Len(t, c.lines, 3)
	assert.True(t, strings.HasPrefix(c.lines[0], "auth"))
	assert.True(t, strings.HasPrefix(c.lines[2], "quit"))

	c = &fakeConn{state: command.StateAuthenticated}
	require.NoError(t, f.run(t, c, "help"))
	assert.Len(t, c.lines, 13)
}

func TestGateToggles(t *testing.T) {
	f := newFixture(t, spell.Options{})
	var changes []event.GatesChanged
	event.Subscribe(f.bus, func(e event.GatesChanged) { changes = append(changes, e) })
	c := &fakeConn{state: command.StateAuthenticated}

	require.NoError(t, f.run(t, c, "pause on"))
	assert.True(t, f.gates.Paused())
	require.NoError(t, f.run(t, c, "movement off"))
	assert.False(t, f.gates.AllowWizardMovement())
	require.NoError(t, f.run(t, c, "attack OFF"))
	assert.False(t, f.gates.AllowWizardAttack())
	require.NoError(t, f.run(t, c, "particles maybe"))
	assert.Equal(t, "usage: particles on|off", c.last())
	assert.True(t, f.gates.AllowParticles())

	require.NoError(t, f.run(t, c, "timescale 9"))
	assert.Equal(t, "timescale 3", c.last())
	assert.Equal(t, sim.MaxTimeScale, f.gates.TimeScale())
	require.NoError(t, f.run(t, c, "timescale fast"))
	assert.Equal(t, `invalid time scale "fast"`, c.last())
	require.NoError(t, f.run(t, c, "timescale NaN"))
	assert.Equal(t, `invalid time scale "NaN"`, c.last())
	require.NoError(t, f.run(t, c, "timescale +Inf"))
	assert.Equal(t, `invalid time scale "+Inf"`, c.last())
	assert.Equal(t, sim.MaxTimeScale, f.gates.TimeScale())

	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	assert.Equal(t, []event.GatesChanged{
		{Gate: "pause", Value: "on"},
		{Gate: "movement", Value: "off"},
		{Gate: "attack", Value: "off"},
		{Gate: "timescale", Value: "3"},
	}, changes)
}

func TestCastAndReleaseAll(t *testing.T) {
	f := newFixture(t, spell.Options{InitialSize: 2, MaxSize: 2})
	c := &fakeConn{id: 9, state: command.StateAuthenticated}

	require.NoError(t, f.run(t, c, "cast fire 0 1.5 0 90"))
	assert.Equal(t, "cast Spell_0 gen=1 owner=fire", c.last())
	active := f.pool.Active()
	require.Len(t, active, 1)
	fwd := active[0].Forward()
	assert.InDelta(t, 1.0, fwd[0], 1e-9)
	assert.InDelta(t, 0.0, fwd[2], 1e-9)
	assert.Equal(t, mgl64.Vec3{0, 1.5, 0}, active[0].Position())

	require.NoError(t, f.run(t, c, "cast water 0 0 0 0"))
	assert.Equal(t, `unknown faction "water"`, c.last())
	require.NoError(t, f.run(t, c, "cast ice 0 nan? 0 0"))
	assert.Equal(t, `invalid number "nan?"`, c.last())
	require.NoError(t, f.run(t, c, "cast ice 0 NaN 0 0"))
	assert.Contains(t, c.last(), "cast failed")
	require.NoError(t, f.run(t, c, "cast ice"))
	assert.True(t, strings.HasPrefix(c.last(), "usage:"))

	require.NoError(t, f.run(t, c, "release-all"))
	assert.Equal(t, "released 1 spells", c.last())
	assert.Zero(t, f.pool.ActiveLen())
}

func TestWizardsAndDespawn(t *testing.T) {
	f := newFixture(t, spell.Options{})
	fire := f.deps.World.SpawnWizard(spell.FactionFire, mgl64.Vec3{1, 0, 2}, 0.5)
	ice := f.deps.World.SpawnWizard(spell.FactionIce, mgl64.Vec3{0, 0, 20}, 0.5)
	c := &fakeConn{id: 5, state: command.StateAuthenticated}

	require.NoError(t, f.run(t, c, "wizards"))
	require.Len(t, c.lines, 3)
	assert.True(t, strings.HasPrefix(c.lines[0], strconv.FormatUint(uint64(fire), 10)+" "))
	assert.Contains(t, c.lines[1], "ice")
	assert.Equal(t, "2 wizards", c.last())

	id := strconv.FormatUint(uint64(ice), 10)
	require.NoError(t, f.run(t, c, "despawn "+id))
	assert.Equal(t, "despawning ice wizard "+id, c.last())
	assert.Equal(t, 1, f.deps.World.ECS().Pending())

	f.deps.World.ECS().FlushDestroyQueue()
	assert.Equal(t, 1, f.deps.World.Count())
	require.NoError(t, f.run(t, c, "despawn "+id))
	assert.Equal(t, "no wizard "+id, c.last())

	require.NoError(t, f.run(t, c, "despawn ice"))
	assert.Equal(t, `invalid wizard id "ice"`, c.last())
	require.NoError(t, f.run(t, c, "despawn"))
	assert.Equal(t, "usage: despawn <wizard-id>", c.last())
}

func TestStatsGroupsLargeNumbers(t *testing.T) {
	f := newFixture(t, spell.Options{InitialSize: 1200})
	c := &fakeConn{state: command.StateAuthenticated}
	f.deps.Clock.Advance(1500 * time.Millisecond)

	require.NoError(t, f.run(t, c, "stats"))
	out := strings.Join(c.lines, "\n")
	assert.Contains(t, out, "active=0 free=1,200 total=1,200")
	assert.Contains(t, out, "gates particles=on movement=on attack=on paused=off timescale=1.00")
	assert.Contains(t, out, "wizards fire=0 ice=0")
	assert.Contains(t, out, "sim=1.5s frames=1 run=test-run")
}

func TestQuit(t *testing.T) {
	f := newFixture(t, spell.Options{})
	c := &fakeConn{state: command.StateGuest}
	require.NoError(t, f.run(t, c, "quit"))
	assert.True(t, c.quit)
	assert.Equal(t, "bye", c.last())
}
