/*
Package sqlite provides the SQLite-backed implementation of the
storage interfaces.

PURPOSE:
  Implements ledger.CloseStore (cells, snapshots, summaries, roster)
  on SQLite. The same patterns apply to PostgreSQL with minor dialect
  differences.

KEY TABLES:
  cells:            Mutable current-period ledger, UNIQUE on
                    (employee_id, weekday, category)
  snapshots:        Immutable daily archive, PRIMARY KEY on
                    (employee_id, day) - archival reruns upsert
  period_summaries: Append-only weekly closures
  employees:        Roster

CONCURRENCY:
  A store-level sync.RWMutex serializes writers on top of SQLite's own
  locking. CloseExclusive holds the write lock for the whole
  read -> persist -> reset sequence of a period close, so interactive
  edits cannot interleave with a close. The connection pool is capped
  at one connection, which also keeps ":memory:" databases coherent.

WAL MODE:
  The database is opened with WAL journaling: readers don't block,
  single writer, better crash recovery.

MIGRATIONS:
  Versioned SQL migrations embedded in the binary and applied on New()
  via golang-migrate.

VALUES:
  Monetary values are stored as decimal strings, never floats.
  Dates are stored as "YYYY-MM-DD" strings.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/sales-engine/ledger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dayFormat = "2006-01-02"

// Store implements ledger.CloseStore on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and applies pending
// migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite allows a single writer, and :memory:
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// =============================================================================
// CELL STORE (ledger.CellStore interface)
// =============================================================================

// UpsertCell inserts or overwrites one ledger cell. Last write wins.
// Also registers the employee in the roster on first sight, so ledger
// reads include them immediately.
func (s *Store) UpsertCell(ctx context.Context, cell ledger.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCell(ctx, cell)
}

func (s *Store) upsertCell(ctx context.Context, cell ledger.Cell) error {
	if cell.Weekday.Index() < 0 {
		return &ledger.ValidationError{Field: "weekday", Value: string(cell.Weekday), Err: ledger.ErrInvalidWeekday}
	}
	if cell.Category != ledger.CategoryPrimary && cell.Category != ledger.CategorySecondary {
		return &ledger.ValidationError{Field: "category", Value: string(cell.Category), Err: ledger.ErrInvalidCategory}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO cells (employee_id, weekday, category, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, weekday, category) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		cell.Employee, cell.Weekday, cell.Category, cell.Value.String(), now,
	); err != nil {
		return fmt.Errorf("failed to upsert cell: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO employees (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		cell.Employee, string(cell.Employee), now,
	)
	if err != nil {
		return fmt.Errorf("failed to register employee: %w", err)
	}
	return nil
}

// ReadLedger returns a full view of one category. Every roster
// employee appears; weekdays without a cell read as zero.
func (s *Store) ReadLedger(ctx context.Context, category ledger.Category) (ledger.LedgerView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLedger(ctx, category)
}

func (s *Store) readLedger(ctx context.Context, category ledger.Category) (ledger.LedgerView, error) {
	view := make(ledger.LedgerView)

	empRows, err := s.db.QueryContext(ctx, "SELECT id FROM employees")
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer empRows.Close()
	for empRows.Next() {
		var id ledger.EmployeeID
		if err := empRows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		view[id] = make(ledger.WeekValues, len(ledger.Weekdays))
	}
	if err := empRows.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT employee_id, weekday, value FROM cells WHERE category = ?", category)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			emp     ledger.EmployeeID
			weekday ledger.Weekday
			value   string
		)
		if err := rows.Scan(&emp, &weekday, &value); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		wv, ok := view[emp]
		if !ok {
			wv = make(ledger.WeekValues, len(ledger.Weekdays))
			view[emp] = wv
		}
		wv[weekday] = parseDecimal(value)
	}
	return view, rows.Err()
}

// ResetAll zeroes every cell of the category; rows survive with their
// identity intact, the other category is untouched.
func (s *Store) ResetAll(ctx context.Context, category ledger.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetAll(ctx, category)
}

func (s *Store) resetAll(ctx context.Context, category ledger.Category) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cells SET value = '0', updated_at = ? WHERE category = ?",
		time.Now().UTC().Format(time.RFC3339), category,
	)
	if err != nil {
		return fmt.Errorf("failed to reset %s cells: %w", category, err)
	}
	return nil
}

// =============================================================================
// SNAPSHOT ARCHIVE (ledger.SnapshotArchive interface)
// =============================================================================

func (s *Store) UpsertSnapshot(ctx context.Context, snap ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertSnapshotExec(ctx, s.db, snap)
}

// UpsertSnapshots writes the batch atomically: all rows or none.
func (s *Store) UpsertSnapshots(ctx context.Context, snaps []ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertSnapshots(ctx, snaps)
}

func (s *Store) upsertSnapshots(ctx context.Context, snaps []ledger.Snapshot) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, snap := range snaps {
		if err := s.upsertSnapshotExec(ctx, sqlTx, snap); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func (s *Store) upsertSnapshotExec(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, snap ledger.Snapshot) error {
	query := `
		INSERT INTO snapshots
		(employee_id, day, monday, tuesday, wednesday, thursday, friday, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, day) DO UPDATE SET
			monday = excluded.monday,
			tuesday = excluded.tuesday,
			wednesday = excluded.wednesday,
			thursday = excluded.thursday,
			friday = excluded.friday,
			total = excluded.total,
			created_at = excluded.created_at
	`
	_, err := db.ExecContext(ctx, query,
		snap.Employee,
		ledger.DateOf(snap.Date).Format(dayFormat),
		snap.Values.Get(ledger.Monday).String(),
		snap.Values.Get(ledger.Tuesday).String(),
		snap.Values.Get(ledger.Wednesday).String(),
		snap.Values.Get(ledger.Thursday).String(),
		snap.Values.Get(ledger.Friday).String(),
		snap.Total.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `employee_id, day, monday, tuesday, wednesday, thursday, friday, total, created_at`

func (s *Store) SnapshotsForMonth(ctx context.Context, year int, month time.Month) ([]ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotsForMonth(ctx, year, month)
}

func (s *Store) snapshotsForMonth(ctx context.Context, year int, month time.Month) ([]ledger.Snapshot, error) {
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE day LIKE ? ORDER BY day ASC, employee_id ASC`
	return s.querySnapshots(ctx, query, prefix+"%")
}

func (s *Store) SnapshotsInRange(ctx context.Context, from, to time.Time) ([]ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotsInRange(ctx, from, to)
}

func (s *Store) snapshotsInRange(ctx context.Context, from, to time.Time) ([]ledger.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE day >= ? AND day <= ? ORDER BY day ASC, employee_id ASC`
	return s.querySnapshots(ctx, query,
		ledger.DateOf(from).Format(dayFormat), ledger.DateOf(to).Format(dayFormat))
}

func (s *Store) AllSnapshots(ctx context.Context) ([]ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allSnapshots(ctx)
}

func (s *Store) allSnapshots(ctx context.Context) ([]ledger.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots ORDER BY day ASC, employee_id ASC`
	return s.querySnapshots(ctx, query)
}

func (s *Store) querySnapshots(ctx context.Context, query string, args ...any) ([]ledger.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []ledger.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (ledger.Snapshot, error) {
	var (
		snap      ledger.Snapshot
		day       string
		mon       string
		tue       string
		wed       string
		thu       string
		fri       string
		total     string
		createdAt string
	)

	err := rows.Scan(&snap.Employee, &day, &mon, &tue, &wed, &thu, &fri, &total, &createdAt)
	if err != nil {
		return snap, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	snap.Date, _ = time.ParseInLocation(dayFormat, day, time.UTC)
	snap.Values = ledger.WeekValues{
		ledger.Monday:    parseDecimal(mon),
		ledger.Tuesday:   parseDecimal(tue),
		ledger.Wednesday: parseDecimal(wed),
		ledger.Thursday:  parseDecimal(thu),
		ledger.Friday:    parseDecimal(fri),
	}
	snap.Total = parseDecimal(total)
	snap.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return snap, nil
}

// =============================================================================
// SUMMARY ARCHIVE (ledger.SummaryArchive interface)
// =============================================================================

func (s *Store) AppendSummary(ctx context.Context, summary ledger.PeriodSummary) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendSummary(ctx, summary)
}

func (s *Store) appendSummary(ctx context.Context, summary ledger.PeriodSummary) (int64, error) {
	breakdownJSON, err := json.Marshal(summary.Breakdown)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal breakdown: %w", err)
	}

	query := `
		INSERT INTO period_summaries (label, started_at, ended_at, total, breakdown_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		summary.Label,
		ledger.DateOf(summary.StartDate).Format(dayFormat),
		ledger.DateOf(summary.EndDate).Format(dayFormat),
		summary.Total.String(),
		string(breakdownJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert summary: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) Summaries(ctx context.Context) ([]ledger.PeriodSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSummaries(ctx)
}

func (s *Store) listSummaries(ctx context.Context) ([]ledger.PeriodSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, started_at, ended_at, total, breakdown_json, created_at
		FROM period_summaries
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []ledger.PeriodSummary
	for rows.Next() {
		var (
			summary       ledger.PeriodSummary
			startedAt     string
			endedAt       string
			total         string
			breakdownJSON string
			createdAt     string
		)
		if err := rows.Scan(&summary.ID, &summary.Label, &startedAt, &endedAt, &total, &breakdownJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summary.StartDate, _ = time.ParseInLocation(dayFormat, startedAt, time.UTC)
		summary.EndDate, _ = time.ParseInLocation(dayFormat, endedAt, time.UTC)
		summary.Total = parseDecimal(total)
		summary.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if err := json.Unmarshal([]byte(breakdownJSON), &summary.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// =============================================================================
// ROSTER (ledger.Roster interface)
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp ledger.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveEmployee(ctx, emp)
}

func (s *Store) saveEmployee(ctx context.Context, emp ledger.Employee) error {
	query := `
		INSERT INTO employees (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]ledger.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEmployees(ctx)
}

func (s *Store) listEmployees(ctx context.Context) ([]ledger.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM employees ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []ledger.Employee
	for rows.Next() {
		var (
			emp       ledger.Employee
			createdAt string
		)
		if err := rows.Scan(&emp.ID, &emp.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// EXCLUSIVE CLOSE SECTION (ledger.CloseStore interface)
// =============================================================================

// CloseExclusive holds the write lock for the duration of fn, so the
// close job's read -> persist -> reset sequence never interleaves with
// interactive edits. It is a critical section, not a transaction:
// operations inside fn commit individually, which is what lets a
// failed reset leave the already-committed summary in place.
func (s *Store) CloseExclusive(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&lockedStore{parent: s})
}

// lockedStore routes to the non-locking variants; the caller already
// holds the write lock.
type lockedStore struct {
	parent *Store
}

func (ls *lockedStore) UpsertCell(ctx context.Context, cell ledger.Cell) error {
	return ls.parent.upsertCell(ctx, cell)
}

func (ls *lockedStore) ReadLedger(ctx context.Context, category ledger.Category) (ledger.LedgerView, error) {
	return ls.parent.readLedger(ctx, category)
}

func (ls *lockedStore) ResetAll(ctx context.Context, category ledger.Category) error {
	return ls.parent.resetAll(ctx, category)
}

func (ls *lockedStore) UpsertSnapshot(ctx context.Context, snap ledger.Snapshot) error {
	return ls.parent.upsertSnapshotExec(ctx, ls.parent.db, snap)
}

func (ls *lockedStore) UpsertSnapshots(ctx context.Context, snaps []ledger.Snapshot) error {
	return ls.parent.upsertSnapshots(ctx, snaps)
}

func (ls *lockedStore) SnapshotsForMonth(ctx context.Context, year int, month time.Month) ([]ledger.Snapshot, error) {
	return ls.parent.snapshotsForMonth(ctx, year, month)
}

func (ls *lockedStore) SnapshotsInRange(ctx context.Context, from, to time.Time) ([]ledger.Snapshot, error) {
	return ls.parent.snapshotsInRange(ctx, from, to)
}

func (ls *lockedStore) AllSnapshots(ctx context.Context) ([]ledger.Snapshot, error) {
	return ls.parent.allSnapshots(ctx)
}

func (ls *lockedStore) AppendSummary(ctx context.Context, summary ledger.PeriodSummary) (int64, error) {
	return ls.parent.appendSummary(ctx, summary)
}

func (ls *lockedStore) Summaries(ctx context.Context) ([]ledger.PeriodSummary, error) {
	return ls.parent.listSummaries(ctx)
}

func (ls *lockedStore) SaveEmployee(ctx context.Context, emp ledger.Employee) error {
	return ls.parent.saveEmployee(ctx, emp)
}

func (ls *lockedStore) ListEmployees(ctx context.Context) ([]ledger.Employee, error) {
	return ls.parent.listEmployees(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
