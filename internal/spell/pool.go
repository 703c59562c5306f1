package spell

import (
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Clock supplies simulation time to the pool.
type Clock interface {
	Now() time.Duration
}

// Options controls pool sizing.
type Options struct {
	InitialSize int  // projectiles built up front
	MaxSize     int  // hard cap on free+active, 0 = unbounded
	Expand      bool // allow building beyond what is free
}

func DefaultOptions() Options {
	return Options{InitialSize: 100, MaxSize: 250, Expand: true}
}

// Pool owns every projectile it builds. Inactive projectiles sit in a FIFO
// free list; active ones are kept in acquisition order so the oldest can be
// evicted when the pool is saturated.
//
// A projectile is in exactly one of the two lists from construction until
// Shutdown. Pool is not safe for concurrent use; the game loop owns it.
type Pool struct {
	tmpl     Template
	tmplErr  error
	opts     Options
	clock    Clock
	listener Listener
	log      *zap.Logger

	free    []*Projectile
	active  []*Projectile
	all     []*Projectile
	scratch []*Projectile

	nextID int
	closed bool

	stats Stats
}

// NewPool builds a pool and pre-warms it with opts.InitialSize projectiles
// when the template is valid.
func NewPool(tmpl Template, opts Options, clock Clock, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	pl := &Pool{
		tmpl:    tmpl,
		tmplErr: tmpl.Validate(),
		opts:    opts,
		clock:   clock,
		log:     log.With(zap.String("pool", tmpl.Name)),
	}
	if pl.tmplErr != nil {
		pl.log.Error("spell template misconfigured, pool not pre-warmed", zap.Error(pl.tmplErr))
		return pl
	}
	initial := opts.InitialSize
	if opts.MaxSize > 0 && initial > opts.MaxSize {
		pl.log.Warn("initial size exceeds max size, clamping",
			zap.Int("initial", initial),
			zap.Int("max", opts.MaxSize),
		)
		initial = opts.MaxSize
	}
	pl.Prewarm(initial)
	return pl
}

// SetListener installs fn as the lifecycle listener. nil disables notices.
func (pl *Pool) SetListener(fn Listener) { pl.listener = fn }

func (pl *Pool) Template() Template { return pl.tmpl }
func (pl *Pool) Options() Options   { return pl.opts }

// Prewarm builds count inactive projectiles and appends them to the free
// list, stopping at MaxSize. It returns how many were built.
func (pl *Pool) Prewarm(count int) int {
	if pl.closed {
		return 0
	}
	if pl.tmplErr != nil {
		pl.log.Error("cannot pre-warm misconfigured pool", zap.Error(pl.tmplErr))
		return 0
	}
	built := 0
	for ; built < count; built++ {
		if pl.opts.MaxSize > 0 && len(pl.all) >= pl.opts.MaxSize {
			break
		}
		p := pl.construct()
		p.slot = slotFree
		pl.free = append(pl.free, p)
	}
	pl.refresh()
	return built
}

// Acquire hands out a projectile placed at position facing rotation and
// owned by owner.
//
// Order of preference: the oldest free projectile, a newly built one, and
// finally the oldest active projectile, which is evicted and reused. A nil
// projectile comes back together with a non-nil error; callers treat that
// as "no spell cast".
func (pl *Pool) Acquire(position mgl64.Vec3, rotation mgl64.Quat, owner Faction) (*Projectile, error) {
	if pl.closed {
		return nil, ErrClosed
	}
	if pl.tmplErr != nil {
		pl.stats.Failed++
		pl.log.Error("spell acquisition aborted",
			zap.Stringer("owner", owner),
			zap.Error(pl.tmplErr),
		)
		return nil, pl.tmplErr
	}

	var p *Projectile
	switch {
	case len(pl.free) > 0:
		p = pl.popFree()
	case pl.canGrow():
		p = pl.construct()
	case len(pl.active) > 0:
		pl.release(pl.active[0], ReturnEvicted)
		p = pl.popFree()
	default:
		pl.stats.Exhausted++
		pl.log.Warn("spell pool exhausted",
			zap.Stringer("owner", owner),
			zap.Int("max_size", pl.opts.MaxSize),
			zap.Bool("expand", pl.opts.Expand),
		)
		pl.notify(Notice{Kind: NoticeExhausted, ID: -1, Owner: owner, Position: position, At: pl.now()})
		return nil, ErrExhausted
	}

	if err := p.Activate(pl.now(), position, rotation, owner); err != nil {
		p.Deactivate()
		p.slot = slotFree
		pl.free = append(pl.free, p)
		pl.stats.Failed++
		pl.log.Warn("spell activation failed", zap.String("spell", p.name), zap.Error(err))
		return nil, err
	}
	p.slot = slotActive
	pl.active = append(pl.active, p)
	pl.stats.Acquired++
	pl.notify(pl.noticeFor(p, NoticeAcquired, ReturnManual))
	return p, nil
}

// Release returns p to the tail of the free list. Releasing nil, a
// projectile from another pool or one that is already free does nothing.
func (pl *Pool) Release(p *Projectile) {
	pl.release(p, ReturnManual)
}

// ReleaseAll returns every active projectile, oldest first.
func (pl *Pool) ReleaseAll() {
	for len(pl.active) > 0 {
		pl.release(pl.active[0], ReturnReset)
	}
}

// Shutdown releases everything and then destroys every projectile the pool
// built. Later Acquire calls fail with ErrClosed.
func (pl *Pool) Shutdown() {
	if pl.closed {
		return
	}
	pl.ReleaseAll()
	for _, p := range pl.all {
		p.destroy()
	}
	clear(pl.free)
	clear(pl.all)
	pl.free = pl.free[:0]
	pl.all = pl.all[:0]
	pl.closed = true
	pl.refresh()
	pl.log.Info("spell pool shut down", zap.Uint64("created", pl.stats.Created))
}

// Tick advances every active projectile by dt and refreshes the counters.
// Projectiles returned during the walk are skipped safely.
func (pl *Pool) Tick(dt time.Duration) {
	now := pl.now()
	pl.scratch = append(pl.scratch[:0], pl.active...)
	for _, p := range pl.scratch {
		p.Tick(now, dt)
	}
	clear(pl.scratch)
	pl.refresh()
}

// Each calls fn for every active projectile in acquisition order. fn may
// return projectiles to the pool.
func (pl *Pool) Each(fn func(*Projectile)) {
	snapshot := slices.Clone(pl.active)
	for _, p := range snapshot {
		if p.slot == slotActive {
			fn(p)
		}
	}
}

// Active returns a copy of the active list, oldest first.
func (pl *Pool) Active() []*Projectile { return slices.Clone(pl.active) }

// Free returns a copy of the free list, next to be reused first.
func (pl *Pool) Free() []*Projectile { return slices.Clone(pl.free) }

func (pl *Pool) ActiveLen() int { return len(pl.active) }
func (pl *Pool) FreeLen() int   { return len(pl.free) }
func (pl *Pool) Closed() bool   { return pl.closed }

// Stats returns the diagnostics snapshot. The list sizes are read live so
// the snapshot is current between ticks.
func (pl *Pool) Stats() Stats {
	pl.refresh()
	return pl.stats
}

func (pl *Pool) canGrow() bool {
	if !pl.opts.Expand {
		return false
	}
	return pl.opts.MaxSize == 0 || len(pl.free)+len(pl.active) < pl.opts.MaxSize
}

func (pl *Pool) construct() *Projectile {
	p := NewProjectile(pl.nextID, pl.tmpl)
	p.pool = pl
	pl.nextID++
	pl.all = append(pl.all, p)
	pl.stats.Created++
	return p
}

func (pl *Pool) popFree() *Projectile {
	p := pl.free[0]
	pl.free = slices.Delete(pl.free, 0, 1)
	return p
}

// returnFromProjectile is the return path used by projectiles themselves.
// Requests carrying a stale generation come from an earlier activation and
// are dropped.
func (pl *Pool) returnFromProjectile(p *Projectile, gen uint32, reason ReturnReason) {
	if p.gen != gen {
		pl.log.Debug("stale return request ignored",
			zap.String("spell", p.name),
			zap.Uint32("gen", gen),
			zap.Uint32("current", p.gen),
		)
		return
	}
	pl.release(p, reason)
}

func (pl *Pool) release(p *Projectile, reason ReturnReason) {
	if p == nil || p.pool != pl || p.slot != slotActive {
		return
	}
	n := pl.noticeFor(p, NoticeReturned, reason)

	if i := slices.Index(pl.active, p); i >= 0 {
		pl.active = slices.Delete(pl.active, i, i+1)
	}
	p.Deactivate()
	p.park()
	p.slot = slotFree
	pl.free = append(pl.free, p)

	pl.stats.Released++
	switch reason {
	case ReturnExpired:
		pl.stats.Expired++
	case ReturnHit:
		pl.stats.Hits++
	case ReturnEvicted:
		pl.stats.Evicted++
		pl.log.Debug("oldest active spell evicted",
			zap.String("spell", p.name),
			zap.Duration("age", n.Age),
		)
	}
	pl.notify(n)
}

func (pl *Pool) noticeFor(p *Projectile, kind NoticeKind, reason ReturnReason) Notice {
	now := pl.now()
	n := Notice{
		Kind:       kind,
		Reason:     reason,
		ID:         p.id,
		Owner:      p.owner,
		Position:   p.position,
		Generation: p.gen,
		At:         now,
	}
	if kind == NoticeReturned {
		n.Age = now - p.spawnedAt
	}
	return n
}

func (pl *Pool) notify(n Notice) {
	if pl.listener != nil {
		pl.listener(n)
	}
}

func (pl *Pool) refresh() {
	pl.stats.Active = len(pl.active)
	pl.stats.Free = len(pl.free)
	pl.stats.Total = len(pl.all)
}

func (pl *Pool) now() time.Duration {
	if pl.clock == nil {
		return 0
	}
	return pl.clock.Now()
}
