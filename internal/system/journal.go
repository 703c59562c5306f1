package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spellduel/server/internal/core/event"
	coresys "github.com/spellduel/server/internal/core/system"
	"github.com/spellduel/server/internal/persist"
	"github.com/spellduel/server/internal/spell"
)

// maxJournalBacklog bounds the rows kept while the database is unreachable.
const maxJournalBacklog = 50000

// JournalWriter is implemented by persist.JournalRepo.
type JournalWriter interface {
	WriteBatch(ctx context.Context, entries []persist.JournalEntry, snap *spell.Stats, simAt time.Duration) error
}

// JournalSystem buffers spell lifecycle events from the bus and writes them
// in batches, with a pool snapshot every few flushes. Phase 5 (Persist).
type JournalSystem struct {
	writer        JournalWriter
	pool          *spell.Pool
	clock         spell.Clock
	log           *zap.Logger
	interval      int // flush every N ticks
	snapshotEvery int // snapshot every N flushes
	timeout       time.Duration

	tickCount  int
	flushCount int
	pending    []persist.JournalEntry
	dropped    uint64
}

func NewJournalSystem(bus *event.Bus, writer JournalWriter, pool *spell.Pool, clock spell.Clock, intervalTicks, snapshotEvery int, log *zap.Logger) *JournalSystem {
	s := &JournalSystem{
		writer:        writer,
		pool:          pool,
		clock:         clock,
		log:           log,
		interval:      max(intervalTicks, 1),
		snapshotEvery: snapshotEvery,
		timeout:       5 * time.Second,
	}
	event.Subscribe(bus, s.onCast)
	event.Subscribe(bus, s.onReturned)
	event.Subscribe(bus, s.onExhausted)
	return s
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.flushCount++
	withSnapshot := s.snapshotEvery > 0 && s.flushCount%s.snapshotEvery == 0
	s.write(withSnapshot)
}

// Flush writes everything buffered plus a final snapshot. Called once at
// shutdown after the last events have been dispatched.
func (s *JournalSystem) Flush() error {
	return s.write(true)
}

// Pending returns how many rows wait for the next flush.
func (s *JournalSystem) Pending() int { return len(s.pending) }

func (s *JournalSystem) write(withSnapshot bool) error {
	var snap *spell.Stats
	if withSnapshot {
		st := s.pool.Stats()
		snap = &st
	}
	if len(s.pending) == 0 && snap == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.writer.WriteBatch(ctx, s.pending, snap, s.clock.Now()); err != nil {
		s.log.Error("journal write failed, keeping rows for retry",
			zap.Int("rows", len(s.pending)),
			zap.Error(err),
		)
		return err
	}
	s.log.Debug("journal flushed", zap.Int("rows", len(s.pending)), zap.Bool("snapshot", snap != nil))
	clear(s.pending)
	s.pending = s.pending[:0]
	return nil
}

func (s *JournalSystem) add(e persist.JournalEntry) {
	if len(s.pending) >= maxJournalBacklog {
		s.pending = s.pending[1:]
		s.dropped++
		if s.dropped%1000 == 1 {
			s.log.Warn("journal backlog full, dropping oldest rows", zap.Uint64("dropped", s.dropped))
		}
	}
	s.pending = append(s.pending, e)
}

func (s *JournalSystem) onCast(ev event.SpellCast) {
	s.add(persist.JournalEntry{
		Kind:       spell.NoticeAcquired.String(),
		SpellID:    ev.SpellID,
		Generation: ev.Generation,
		Owner:      ev.Owner.String(),
		X:          ev.Position.X(),
		Y:          ev.Position.Y(),
		Z:          ev.Position.Z(),
		SimAt:      ev.At,
	})
}

func (s *JournalSystem) onReturned(ev event.SpellReturned) {
	s.add(persist.JournalEntry{
		Kind:       spell.NoticeReturned.String(),
		Reason:     ev.Reason.String(),
		SpellID:    ev.SpellID,
		Generation: ev.Generation,
		Owner:      ev.Owner.String(),
		X:          ev.Position.X(),
		Y:          ev.Position.Y(),
		Z:          ev.Position.Z(),
		SimAt:      ev.At,
		Age:        ev.Age,
	})
}

func (s *JournalSystem) onExhausted(ev event.PoolExhausted) {
	s.add(persist.JournalEntry{
		Kind:    spell.NoticeExhausted.String(),
		SpellID: -1,
		Owner:   ev.Owner.String(),
		SimAt:   ev.At,
	})
}
