/*
store.go - Persistence interfaces for the ledger and its archives

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  CellStore:       The mutable current-period ledger (upsert/read/reset)
  SnapshotArchive: Immutable daily snapshots (upsert-by-date)
  SummaryArchive:  Append-only weekly period summaries
  Roster:          Minimal employee records
  CloseStore:      Adds the exclusive section used by the close job

OWNERSHIP:
  The cell store has exactly two writers: interactive edits
  (UpsertCell) and the close job's reset (ResetAll). The snapshot and
  summary archives are owned by their jobs; the rollup engine only
  reads. Archives have no update or delete path - snapshots are
  replaced only by the archival job re-running on the same date.

SEE ALSO:
  - store/memory.go: In-memory implementation for testing
  - store/sqlite: Production SQLite implementation
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// CELL STORE - The mutable current-period ledger
// =============================================================================

type CellStore interface {
	// UpsertCell inserts or overwrites the value for the identity
	// triple. Last write wins; no merge. The cell's weekday and
	// category must already be validated.
	UpsertCell(ctx context.Context, cell Cell) error

	// ReadLedger returns a full consistent view of one category.
	// Every roster employee appears, zero-filled where no cell exists.
	ReadLedger(ctx context.Context, category Category) (LedgerView, error)

	// ResetAll zeroes every existing cell of the category. Rows are
	// kept (identity survives into the next period); the other
	// category is untouched.
	ResetAll(ctx context.Context, category Category) error
}

// =============================================================================
// SNAPSHOT ARCHIVE - Immutable daily records
// =============================================================================

type SnapshotArchive interface {
	// UpsertSnapshot writes one snapshot keyed by (employee, date).
	// A rerun on the same date replaces the prior row.
	UpsertSnapshot(ctx context.Context, snap Snapshot) error

	// UpsertSnapshots writes a batch atomically: either every
	// snapshot lands or none do.
	UpsertSnapshots(ctx context.Context, snaps []Snapshot) error

	// SnapshotsForMonth returns all snapshots dated within the month,
	// ascending by date.
	SnapshotsForMonth(ctx context.Context, year int, month time.Month) ([]Snapshot, error)

	// SnapshotsInRange returns snapshots dated in [from, to],
	// ascending by date.
	SnapshotsInRange(ctx context.Context, from, to time.Time) ([]Snapshot, error)

	// AllSnapshots returns the full archive ascending by date.
	AllSnapshots(ctx context.Context) ([]Snapshot, error)
}

// =============================================================================
// SUMMARY ARCHIVE - Closed periods
// =============================================================================

type SummaryArchive interface {
	// AppendSummary persists one period summary and returns its id.
	// Append-only; summaries are never updated or deleted.
	AppendSummary(ctx context.Context, summary PeriodSummary) (int64, error)

	// Summaries returns all period summaries, newest first.
	Summaries(ctx context.Context) ([]PeriodSummary, error)
}

// =============================================================================
// ROSTER
// =============================================================================

type Roster interface {
	SaveEmployee(ctx context.Context, emp Employee) error
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store combines everything the engine needs from persistence.
type Store interface {
	CellStore
	SnapshotArchive
	SummaryArchive
	Roster
}

// CloseStore adds the exclusive section required by the close job.
type CloseStore interface {
	Store

	// CloseExclusive runs fn while holding the ledger write lock, so
	// no interactive edit interleaves with the close job's
	// read -> persist -> reset sequence.
	//
	// CloseExclusive is a critical section, not a transaction:
	// operations performed inside fn commit individually. The close
	// job relies on this - a failed reset must NOT roll back the
	// already-committed summary (see ErrResetFailed).
	CloseExclusive(ctx context.Context, fn func(Store) error) error
}
