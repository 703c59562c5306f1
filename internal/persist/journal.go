package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	uuid "github.com/satori/go.uuid"

	"github.com/spellduel/server/internal/spell"
)

// JournalEntry is one pool lifecycle event.
type JournalEntry struct {
	Kind       string // "acquired", "returned", "exhausted"
	Reason     string // return reason, empty otherwise
	SpellID    int    // -1 for exhausted
	Generation uint32
	Owner      string
	X, Y, Z    float64
	SimAt      time.Duration
	Age        time.Duration
}

var journalColumns = []string{
	"run_id", "kind", "reason", "spell_id", "generation", "owner",
	"pos_x", "pos_y", "pos_z", "sim_at_ms", "age_ms",
}

// JournalRepo appends spell lifecycle events and pool snapshots for one run.
type JournalRepo struct {
	db    *DB
	runID uuid.UUID
}

func NewJournalRepo(db *DB, runID uuid.UUID) *JournalRepo {
	return &JournalRepo{db: db, runID: runID}
}

func (r *JournalRepo) RunID() uuid.UUID { return r.runID }

// WriteBatch copies entries and the optional snapshot in one transaction.
func (r *JournalRepo) WriteBatch(ctx context.Context, entries []JournalEntry, snap *spell.Stats, simAt time.Duration) error {
	if len(entries) == 0 && snap == nil {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	run := [16]byte(r.runID)
	if len(entries) > 0 {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"spell_journal"}, journalColumns,
			pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
				e := entries[i]
				return []any{
					run, e.Kind, e.Reason, int32(e.SpellID), int64(e.Generation), e.Owner,
					e.X, e.Y, e.Z, e.SimAt.Milliseconds(), e.Age.Milliseconds(),
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("journal copy: %w", err)
		}
	}

	if snap != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO pool_snapshots (run_id, active, free, total, created, acquired, released,
			 expired, hits, evicted, exhausted, failed, sim_at_ms)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			run, snap.Active, snap.Free, snap.Total,
			int64(snap.Created), int64(snap.Acquired), int64(snap.Released),
			int64(snap.Expired), int64(snap.Hits), int64(snap.Evicted),
			int64(snap.Exhausted), int64(snap.Failed), simAt.Milliseconds(),
		); err != nil {
			return fmt.Errorf("journal snapshot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("journal commit: %w", err)
	}
	return nil
}

// CountRun returns how many journal rows this run has written.
func (r *JournalRepo) CountRun(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM spell_journal WHERE run_id = $1`, [16]byte(r.runID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}
