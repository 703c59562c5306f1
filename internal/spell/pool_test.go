package spell

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type manualClock struct{ now time.Duration }

func (c *manualClock) Now() time.Duration      { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now += d }

func newTestPool(t *testing.T, opts Options) (*Pool, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	return NewPool(DefaultTemplate(), opts, clock, zap.NewNop()), clock
}

var spawnPos = mgl64.Vec3{1, 2, 3}

func acquire(t *testing.T, pl *Pool, owner Faction) *Projectile {
	t.Helper()
	p, err := pl.Acquire(spawnPos, mgl64.QuatIdent(), owner)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// checkInvariants asserts the partition and flag invariants over every
// projectile the pool ever built.
func checkInvariants(t *testing.T, pl *Pool) {
	t.Helper()
	inFree := make(map[*Projectile]int)
	inActive := make(map[*Projectile]int)
	for _, p := range pl.free {
		inFree[p]++
		assert.False(t, p.Initialized(), "%s is free but initialized", p.Name())
		assert.Equal(t, slotFree, p.slot)
	}
	for _, p := range pl.active {
		inActive[p]++
		assert.True(t, p.Initialized(), "%s is active but not initialized", p.Name())
		assert.Equal(t, slotActive, p.slot)
	}
	for _, p := range pl.all {
		assert.Equal(t, 1, inFree[p]+inActive[p], "%s must be in exactly one list", p.Name())
	}
	assert.Equal(t, len(pl.all), len(pl.free)+len(pl.active))
	if pl.opts.MaxSize > 0 {
		assert.LessOrEqual(t, len(pl.free)+len(pl.active), pl.opts.MaxSize)
	}
}

func TestNewPoolPrewarms(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 3, MaxSize: 3})

	assert.Equal(t, 3, pl.FreeLen())
	assert.Equal(t, 0, pl.ActiveLen())
	stats := pl.Stats()
	assert.Equal(t, 3, stats.Free)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, uint64(3), stats.Created)
	checkInvariants(t, pl)
}

func TestStatsAreCurrentBetweenTicks(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 2, MaxSize: 3, Expand: true})

	a := acquire(t, pl, FactionFire)
	stats := pl.Stats()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Free)
	assert.Equal(t, 2, stats.Total)

	acquire(t, pl, FactionIce)
	acquire(t, pl, FactionIce)
	pl.Release(a)
	stats = pl.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Free)
	assert.Equal(t, 3, stats.Total)
}

func TestNewPoolClampsInitialSize(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 10, MaxSize: 4, Expand: true})

	assert.Equal(t, 4, pl.FreeLen())
	checkInvariants(t, pl)
}

func TestAcquireReleaseReusesSameHandle(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})

	a := acquire(t, pl, FactionFire)
	pl.Release(a)
	assert.Equal(t, []*Projectile{a}, pl.Free())

	b := acquire(t, pl, FactionIce)
	assert.Same(t, a, b)
	assert.Equal(t, FactionIce, b.Owner())
	checkInvariants(t, pl)
}

func TestFreeListIsFIFO(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 3, MaxSize: 3})
	first := pl.Free()

	a := acquire(t, pl, FactionFire)
	assert.Same(t, first[0], a)

	pl.Release(a)
	// a went to the tail, behind the two never-used projectiles.
	assert.Equal(t, []*Projectile{first[1], first[2], a}, pl.Free())

	assert.Same(t, first[1], acquire(t, pl, FactionFire))
	assert.Same(t, first[2], acquire(t, pl, FactionFire))
	assert.Same(t, a, acquire(t, pl, FactionFire))
	checkInvariants(t, pl)
}

func TestAcquireEvictsOldestWhenSaturated(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 3, MaxSize: 3, Expand: false})

	a := acquire(t, pl, FactionFire)
	b := acquire(t, pl, FactionIce)
	c := acquire(t, pl, FactionFire)
	assert.Equal(t, 3, pl.ActiveLen())
	assert.Equal(t, 0, pl.FreeLen())
	genBefore := a.Generation()

	d := acquire(t, pl, FactionIce)

	assert.Same(t, a, d, "oldest active projectile is reused")
	assert.Equal(t, FactionIce, d.Owner())
	assert.Equal(t, genBefore+1, d.Generation())
	assert.Equal(t, 3, pl.ActiveLen())
	assert.Equal(t, []*Projectile{b, c, a}, pl.Active())
	assert.Equal(t, uint64(1), pl.Stats().Evicted)
	checkInvariants(t, pl)
}

func TestAcquireExpandsUpToMax(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 0, MaxSize: 2, Expand: true})

	a := acquire(t, pl, FactionFire)
	b := acquire(t, pl, FactionFire)
	assert.NotSame(t, a, b)
	assert.Equal(t, uint64(2), pl.Stats().Created)

	c := acquire(t, pl, FactionFire)
	assert.Same(t, a, c)
	assert.Equal(t, uint64(2), pl.Stats().Created)
	checkInvariants(t, pl)
}

func TestAcquireUnboundedGrowth(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 0, MaxSize: 0, Expand: true})

	for i := 0; i < 50; i++ {
		acquire(t, pl, FactionIce)
	}
	assert.Equal(t, 50, pl.ActiveLen())
	assert.Equal(t, uint64(0), pl.Stats().Evicted)
	checkInvariants(t, pl)
}

func TestAcquireExhausted(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 0, MaxSize: 0, Expand: false})
	var notices []Notice
	pl.SetListener(func(n Notice) { notices = append(notices, n) })

	p, err := pl.Acquire(spawnPos, mgl64.QuatIdent(), FactionFire)

	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, uint64(1), pl.Stats().Exhausted)
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeExhausted, notices[0].Kind)
	assert.Equal(t, FactionFire, notices[0].Owner)
}

func TestAcquireMisconfiguredTemplate(t *testing.T) {
	tmpl := DefaultTemplate()
	tmpl.Kind = "decal"
	pl := NewPool(tmpl, DefaultOptions(), &manualClock{}, zap.NewNop())

	assert.Equal(t, 0, pl.FreeLen(), "misconfigured pool is not pre-warmed")
	p, err := pl.Acquire(spawnPos, mgl64.QuatIdent(), FactionFire)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrMisconfigured)
	assert.Equal(t, uint64(1), pl.Stats().Failed)
}

func TestAcquireActivationFailureKeepsHandle(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 2, MaxSize: 2})
	first := pl.Free()

	p, err := pl.Acquire(mgl64.Vec3{math.NaN(), 0, 0}, mgl64.QuatIdent(), FactionFire)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrInvalidPose)

	p, err = pl.Acquire(spawnPos, mgl64.Quat{}, FactionFire)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrInvalidPose)

	assert.Equal(t, 0, pl.ActiveLen())
	assert.ElementsMatch(t, first, pl.Free())
	assert.Equal(t, uint64(2), pl.Stats().Failed)
	checkInvariants(t, pl)
}

func TestProjectileExpiresAfterLifetime(t *testing.T) {
	pl, clock := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})
	p := acquire(t, pl, FactionFire)
	require.Equal(t, 5*time.Second, p.LifeTime())

	for i := 0; i < 49; i++ {
		clock.Advance(100 * time.Millisecond)
		pl.Tick(100 * time.Millisecond)
	}
	assert.True(t, p.Active(), "still alive at 4.9s")

	clock.Advance(100 * time.Millisecond)
	pl.Tick(100 * time.Millisecond)

	assert.False(t, p.Active())
	assert.False(t, p.Initialized())
	assert.Equal(t, []*Projectile{p}, pl.Free())
	assert.Equal(t, uint64(1), pl.Stats().Expired)

	// further ticks do not return it again
	clock.Advance(time.Second)
	pl.Tick(time.Second)
	assert.Equal(t, uint64(1), pl.Stats().Released)
	checkInvariants(t, pl)
}

func TestReactivationReplacesDeadline(t *testing.T) {
	pl, clock := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})
	p := acquire(t, pl, FactionFire)

	clock.Advance(4 * time.Second)
	require.NoError(t, p.Activate(clock.Now(), spawnPos, mgl64.QuatIdent(), FactionIce))
	assert.Equal(t, 9*time.Second, p.Deadline())

	clock.Advance(time.Second)
	pl.Tick(time.Second)
	assert.True(t, p.Active(), "the first deadline must not fire after reactivation")

	clock.Advance(4 * time.Second)
	pl.Tick(4 * time.Second)
	assert.False(t, p.Active())
}

func TestCollisionOwnership(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})

	p := acquire(t, pl, FactionFire)
	p.OnCollision(FactionFire)
	assert.True(t, p.Active(), "same owner is ignored")
	p.OnCollision(FactionNone)
	assert.True(t, p.Active(), "non-combatants are ignored")

	p.OnCollision(FactionIce)
	assert.False(t, p.Active())
	assert.Equal(t, uint64(1), pl.Stats().Hits)

	// a second hit on the returned projectile is a no-op
	p.OnCollision(FactionIce)
	assert.Equal(t, uint64(1), pl.Stats().Released)
	checkInvariants(t, pl)
}

func TestDoubleReleaseIsIgnored(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 2, MaxSize: 2})
	p := acquire(t, pl, FactionIce)

	pl.Release(p)
	pl.Release(p)
	pl.Release(nil)

	assert.Equal(t, 2, pl.FreeLen())
	assert.Equal(t, uint64(1), pl.Stats().Released)
	checkInvariants(t, pl)
}

func TestReleaseForeignProjectileIsIgnored(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})
	other, _ := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})
	p := acquire(t, other, FactionFire)

	pl.Release(p)

	assert.True(t, p.Active())
	assert.Equal(t, 1, pl.FreeLen())
	assert.Equal(t, 1, other.ActiveLen())
}

func TestDeactivateWhileInactiveKeepsCounts(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 2, MaxSize: 2})
	p := pl.Free()[0]

	p.Deactivate()
	p.Deactivate()
	pl.Tick(0)

	assert.Equal(t, 2, pl.Stats().Free)
	assert.Equal(t, 0, pl.Stats().Active)
	checkInvariants(t, pl)
}

func TestStaleReturnRequestIsIgnored(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})
	p := acquire(t, pl, FactionFire)
	stale := p.Generation()
	pl.Release(p)

	again := acquire(t, pl, FactionIce)
	require.Same(t, p, again)

	pl.returnFromProjectile(p, stale, ReturnExpired)
	assert.True(t, p.Active())
	assert.Equal(t, FactionIce, p.Owner())
}

func TestTickMovesOnHorizontalPlane(t *testing.T) {
	pl, clock := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})

	yaw := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	pitch := mgl64.QuatRotate(-math.Pi/4, mgl64.Vec3{1, 0, 0})
	p, err := pl.Acquire(mgl64.Vec3{0, 1.5, 0}, yaw.Mul(pitch), FactionFire)
	require.NoError(t, err)

	clock.Advance(time.Second)
	pl.Tick(time.Second)

	pos := p.Position()
	assert.InDelta(t, 1.5, pos.Y(), 1e-9, "height is pinned to the spawn height")
	assert.Greater(t, pos.X(), 0.0)

	flat, err := pl.Acquire(mgl64.Vec3{0, 0, 0}, yaw, FactionFire)
	require.NoError(t, err) // evicts p
	clock.Advance(time.Second)
	pl.Tick(time.Second)
	assert.InDelta(t, 15, flat.Position().X(), 1e-9)
	assert.InDelta(t, 0, flat.Position().Z(), 1e-9)
}

func TestReleaseParksTransform(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})
	p, err := pl.Acquire(spawnPos, mgl64.QuatRotate(1, mgl64.Vec3{0, 1, 0}), FactionFire)
	require.NoError(t, err)

	pl.Release(p)

	assert.Equal(t, mgl64.Vec3{}, p.Position())
	assert.Equal(t, mgl64.QuatIdent(), p.Rotation())
	assert.Equal(t, FactionNone, p.Owner())
}

func TestReleaseAllAndShutdown(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 3, MaxSize: 3})
	var reasons []ReturnReason
	pl.SetListener(func(n Notice) {
		if n.Kind == NoticeReturned {
			reasons = append(reasons, n.Reason)
		}
	})
	acquire(t, pl, FactionFire)
	acquire(t, pl, FactionIce)

	pl.ReleaseAll()
	assert.Equal(t, 0, pl.ActiveLen())
	assert.Equal(t, 3, pl.FreeLen())
	assert.Equal(t, []ReturnReason{ReturnReset, ReturnReset}, reasons)
	checkInvariants(t, pl)

	acquire(t, pl, FactionFire)
	built := pl.Free()
	built = append(built, pl.Active()...)

	pl.Shutdown()
	assert.True(t, pl.Closed())
	assert.Equal(t, 0, pl.FreeLen())
	assert.Equal(t, 0, pl.ActiveLen())
	for _, p := range built {
		assert.True(t, p.Destroyed())
		assert.False(t, p.Initialized())
	}

	p, err := pl.Acquire(spawnPos, mgl64.QuatIdent(), FactionFire)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, pl.Prewarm(5))
}

func TestListenerSeesEvictionBeforeReuse(t *testing.T) {
	pl, _ := newTestPool(t, Options{InitialSize: 1, MaxSize: 1})
	var kinds []NoticeKind
	var reasons []ReturnReason
	pl.SetListener(func(n Notice) {
		kinds = append(kinds, n.Kind)
		reasons = append(reasons, n.Reason)
	})

	acquire(t, pl, FactionFire)
	acquire(t, pl, FactionIce)

	assert.Equal(t, []NoticeKind{NoticeAcquired, NoticeReturned, NoticeAcquired}, kinds)
	assert.Equal(t, ReturnEvicted, reasons[1])
}

func TestStandaloneProjectileDestroysItself(t *testing.T) {
	p := NewProjectile(7, DefaultTemplate())
	require.NoError(t, p.Activate(0, spawnPos, mgl64.QuatIdent(), FactionFire))

	p.ForceReturn()

	assert.True(t, p.Destroyed())
	assert.False(t, p.Initialized())
	assert.Equal(t, "Spell_7", p.Name())
}

func TestRandomChurnKeepsInvariants(t *testing.T) {
	for _, opts := range []Options{
		{InitialSize: 4, MaxSize: 8, Expand: true},
		{InitialSize: 5, MaxSize: 5, Expand: false},
		{InitialSize: 0, MaxSize: 0, Expand: true},
	} {
		pl, clock := newTestPool(t, opts)
		rng := rand.New(rand.NewSource(42))
		factions := []Faction{FactionFire, FactionIce, FactionNone}

		for step := 0; step < 2000; step++ {
			switch rng.Intn(5) {
			case 0, 1:
				_, err := pl.Acquire(spawnPos, mgl64.QuatIdent(), factions[rng.Intn(2)])
				require.NoError(t, err)
			case 2:
				if active := pl.Active(); len(active) > 0 {
					pl.Release(active[rng.Intn(len(active))])
				}
			case 3:
				if active := pl.Active(); len(active) > 0 {
					active[rng.Intn(len(active))].OnCollision(factions[rng.Intn(3)])
				}
			case 4:
				dt := time.Duration(rng.Intn(2000)) * time.Millisecond
				clock.Advance(dt)
				pl.Tick(dt)
			}
			checkInvariants(t, pl)
			if t.Failed() {
				t.Fatalf("invariant broken at step %d with %+v", step, opts)
			}
		}
	}
}
