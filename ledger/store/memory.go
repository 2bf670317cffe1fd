// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	cells     map[cellKey]decimal.Decimal
	snapshots map[snapKey]ledger.Snapshot
	summaries []ledger.PeriodSummary
	employees map[ledger.EmployeeID]ledger.Employee
	nextID    int64
}

type cellKey struct {
	Employee ledger.EmployeeID
	Weekday  ledger.Weekday
	Category ledger.Category
}

type snapKey struct {
	Employee ledger.EmployeeID
	Date     time.Time
}

func NewMemory() *Memory {
	return &Memory{
		cells:     make(map[cellKey]decimal.Decimal),
		snapshots: make(map[snapKey]ledger.Snapshot),
		employees: make(map[ledger.EmployeeID]ledger.Employee),
		nextID:    1,
	}
}

// =============================================================================
// CELL STORE
// =============================================================================

func (m *Memory) UpsertCell(_ context.Context, cell ledger.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCellLocked(cell)
}

func (m *Memory) upsertCellLocked(cell ledger.Cell) error {
	if cell.Weekday.Index() < 0 {
		return &ledger.ValidationError{Field: "weekday", Value: string(cell.Weekday), Err: ledger.ErrInvalidWeekday}
	}
	valid := false
	for _, c := range ledger.Categories {
		if c == cell.Category {
			valid = true
		}
	}
	if !valid {
		return &ledger.ValidationError{Field: "category", Value: string(cell.Category), Err: ledger.ErrInvalidCategory}
	}

	m.cells[cellKey{cell.Employee, cell.Weekday, cell.Category}] = cell.Value
	if _, ok := m.employees[cell.Employee]; !ok {
		m.employees[cell.Employee] = ledger.Employee{ID: cell.Employee, Name: string(cell.Employee)}
	}
	return nil
}

func (m *Memory) ReadLedger(_ context.Context, category ledger.Category) (ledger.LedgerView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readLedgerLocked(category), nil
}

func (m *Memory) readLedgerLocked(category ledger.Category) ledger.LedgerView {
	view := make(ledger.LedgerView, len(m.employees))
	for id := range m.employees {
		view[id] = make(ledger.WeekValues, len(ledger.Weekdays))
	}
	for k, v := range m.cells {
		if k.Category != category {
			continue
		}
		wv, ok := view[k.Employee]
		if !ok {
			wv = make(ledger.WeekValues, len(ledger.Weekdays))
			view[k.Employee] = wv
		}
		wv[k.Weekday] = v
	}
	return view
}

func (m *Memory) ResetAll(_ context.Context, category ledger.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetAllLocked(category)
}

func (m *Memory) resetAllLocked(category ledger.Category) error {
	for k := range m.cells {
		if k.Category == category {
			m.cells[k] = decimal.Zero
		}
	}
	return nil
}

// =============================================================================
// SNAPSHOT ARCHIVE
// =============================================================================

func (m *Memory) UpsertSnapshot(_ context.Context, snap ledger.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertSnapshotLocked(snap)
	return nil
}

func (m *Memory) UpsertSnapshots(_ context.Context, snaps []ledger.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snap := range snaps {
		m.upsertSnapshotLocked(snap)
	}
	return nil
}

func (m *Memory) upsertSnapshotLocked(snap ledger.Snapshot) {
	snap.Date = ledger.DateOf(snap.Date)
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	m.snapshots[snapKey{snap.Employee, snap.Date}] = snap
}

func (m *Memory) SnapshotsForMonth(_ context.Context, year int, month time.Month) ([]ledger.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Snapshot
	for _, snap := range m.snapshots {
		if snap.Date.Year() == year && snap.Date.Month() == month {
			result = append(result, snap)
		}
	}
	sortSnapshots(result)
	return result, nil
}

func (m *Memory) SnapshotsInRange(_ context.Context, from, to time.Time) ([]ledger.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fromDay, toDay := ledger.DateOf(from), ledger.DateOf(to)
	var result []ledger.Snapshot
	for _, snap := range m.snapshots {
		if !snap.Date.Before(fromDay) && !snap.Date.After(toDay) {
			result = append(result, snap)
		}
	}
	sortSnapshots(result)
	return result, nil
}

func (m *Memory) AllSnapshots(_ context.Context) ([]ledger.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Snapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		result = append(result, snap)
	}
	sortSnapshots(result)
	return result, nil
}

func sortSnapshots(snaps []ledger.Snapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].Date.Equal(snaps[j].Date) {
			return snaps[i].Date.Before(snaps[j].Date)
		}
		return snaps[i].Employee < snaps[j].Employee
	})
}

// =============================================================================
// SUMMARY ARCHIVE
// =============================================================================

func (m *Memory) AppendSummary(_ context.Context, summary ledger.PeriodSummary) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendSummaryLocked(summary)
}

func (m *Memory) appendSummaryLocked(summary ledger.PeriodSummary) (int64, error) {
	summary.ID = m.nextID
	m.nextID++
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	m.summaries = append(m.summaries, summary)
	return summary.ID, nil
}

func (m *Memory) Summaries(_ context.Context) ([]ledger.PeriodSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first.
	result := make([]ledger.PeriodSummary, len(m.summaries))
	for i, s := range m.summaries {
		result[len(m.summaries)-1-i] = s
	}
	return result, nil
}

// =============================================================================
// ROSTER
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp ledger.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now().UTC()
	}
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]ledger.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// EXCLUSIVE CLOSE SECTION
// =============================================================================

// CloseExclusive holds the write lock for the duration of fn so the
// close job's read -> persist -> reset sequence cannot interleave with
// edits. Operations inside fn commit individually (no rollback), same
// as the SQLite store.
func (m *Memory) CloseExclusive(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&lockedMemory{m})
}

// lockedMemory exposes the non-locking variants to the close callback;
// the caller already holds the write lock.
type lockedMemory struct {
	parent *Memory
}

func (lm *lockedMemory) UpsertCell(_ context.Context, cell ledger.Cell) error {
	return lm.parent.upsertCellLocked(cell)
}

func (lm *lockedMemory) ReadLedger(_ context.Context, category ledger.Category) (ledger.LedgerView, error) {
	return lm.parent.readLedgerLocked(category), nil
}

func (lm *lockedMemory) ResetAll(_ context.Context, category ledger.Category) error {
	return lm.parent.resetAllLocked(category)
}

func (lm *lockedMemory) UpsertSnapshot(_ context.Context, snap ledger.Snapshot) error {
	lm.parent.upsertSnapshotLocked(snap)
	return nil
}

func (lm *lockedMemory) UpsertSnapshots(_ context.Context, snaps []ledger.Snapshot) error {
	for _, snap := range snaps {
		lm.parent.upsertSnapshotLocked(snap)
	}
	return nil
}

func (lm *lockedMemory) SnapshotsForMonth(ctx context.Context, year int, month time.Month) ([]ledger.Snapshot, error) {
	var result []ledger.Snapshot
	for _, snap := range lm.parent.snapshots {
		if snap.Date.Year() == year && snap.Date.Month() == month {
			result = append(result, snap)
		}
	}
	sortSnapshots(result)
	return result, nil
}

func (lm *lockedMemory) SnapshotsInRange(ctx context.Context, from, to time.Time) ([]ledger.Snapshot, error) {
	fromDay, toDay := ledger.DateOf(from), ledger.DateOf(to)
	var result []ledger.Snapshot
	for _, snap := range lm.parent.snapshots {
		if !snap.Date.Before(fromDay) && !snap.Date.After(toDay) {
			result = append(result, snap)
		}
	}
	sortSnapshots(result)
	return result, nil
}

func (lm *lockedMemory) AllSnapshots(ctx context.Context) ([]ledger.Snapshot, error) {
	result := make([]ledger.Snapshot, 0, len(lm.parent.snapshots))
	for _, snap := range lm.parent.snapshots {
		result = append(result, snap)
	}
	sortSnapshots(result)
	return result, nil
}

func (lm *lockedMemory) AppendSummary(_ context.Context, summary ledger.PeriodSummary) (int64, error) {
	return lm.parent.appendSummaryLocked(summary)
}

func (lm *lockedMemory) Summaries(ctx context.Context) ([]ledger.PeriodSummary, error) {
	result := make([]ledger.PeriodSummary, len(lm.parent.summaries))
	for i, s := range lm.parent.summaries {
		result[len(lm.parent.summaries)-1-i] = s
	}
	return result, nil
}

func (lm *lockedMemory) SaveEmployee(_ context.Context, emp ledger.Employee) error {
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now().UTC()
	}
	lm.parent.employees[emp.ID] = emp
	return nil
}

func (lm *lockedMemory) ListEmployees(ctx context.Context) ([]ledger.Employee, error) {
	result := make([]ledger.Employee, 0, len(lm.parent.employees))
	for _, emp := range lm.parent.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
