/*
Package ledger provides the core sales ledger and rollup engine.

PURPOSE:
  This package contains the domain types and jobs for tracking daily
  sales figures. Employees edit a shared weekly ledger of cells, a
  daily archival job freezes the ledger into immutable snapshots, and
  a weekly close job converts the ledger into a period summary and
  resets it for the next week.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cell: One editable (employee, weekday, category) sales value
  - WeekValues / LedgerView: The mutable current-period ledger
  - Snapshot: An immutable daily record per employee (five weekday
    values plus a total fixed at creation time)
  - PeriodSummary: An immutable record of one closed week

DESIGN PRINCIPLES:
  1. Immutability: Snapshots and summaries are write-once
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Weekday and Category are closed enumerations
  4. Idempotency: Snapshots are keyed by (employee, date) - rerunning
     the archival job replaces, never duplicates

SEE ALSO:
  - store.go: Persistence interfaces
  - archive.go: Daily archival job
  - close.go: Weekly close-and-reset job
  - period.go: Monday-start week boundary math
*/
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS AND ENUMERATIONS
// =============================================================================

type EmployeeID string

// Weekday is a working day of the ledger week. Weekend days are not
// part of the ledger; snapshots dated on weekends are ignored by the
// rollup engine.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
)

// Weekdays lists the ledger weekdays in order, Monday first.
var Weekdays = [5]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

// ParseWeekday validates a wire-format weekday string.
func ParseWeekday(s string) (Weekday, error) {
	for _, w := range Weekdays {
		if string(w) == s {
			return w, nil
		}
	}
	return "", &ValidationError{Field: "weekday", Value: s, Err: ErrInvalidWeekday}
}

// Index returns the zero-based position of the weekday, Monday = 0.
func (w Weekday) Index() int {
	for i, wd := range Weekdays {
		if wd == w {
			return i
		}
	}
	return -1
}

// WeekdayOf maps a calendar date to a ledger weekday.
// Returns false for Saturday and Sunday.
func WeekdayOf(t time.Time) (Weekday, bool) {
	switch t.Weekday() {
	case time.Monday:
		return Monday, true
	case time.Tuesday:
		return Tuesday, true
	case time.Wednesday:
		return Wednesday, true
	case time.Thursday:
		return Thursday, true
	case time.Friday:
		return Friday, true
	default:
		return "", false
	}
}

// Category is a named partition of the ledger. The two categories are
// independent: edits, resets and reads on one never touch the other.
type Category string

const (
	CategoryPrimary   Category = "primary"
	CategorySecondary Category = "secondary"
)

// Categories lists all ledger categories.
var Categories = [2]Category{CategoryPrimary, CategorySecondary}

// ParseCategory validates a wire-format category string.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", &ValidationError{Field: "category", Value: s, Err: ErrInvalidCategory}
}

// =============================================================================
// CELL - One editable value in the current period
// =============================================================================

// Cell is one (employee, weekday, category) value of the mutable
// current-period ledger. At most one cell exists per identity triple;
// writes are last-write-wins upserts.
type Cell struct {
	Employee EmployeeID
	Weekday  Weekday
	Category Category
	Value    decimal.Decimal
}

// =============================================================================
// LEDGER VIEW - Consistent read of the current period
// =============================================================================

// WeekValues holds one employee's five weekday values.
// Missing weekdays read as zero.
type WeekValues map[Weekday]decimal.Decimal

// Get returns the value for a weekday, zero if unset.
func (wv WeekValues) Get(w Weekday) decimal.Decimal {
	if v, ok := wv[w]; ok {
		return v
	}
	return decimal.Zero
}

// Total sums the five weekday values.
func (wv WeekValues) Total() decimal.Decimal {
	total := decimal.Zero
	for _, w := range Weekdays {
		total = total.Add(wv.Get(w))
	}
	return total
}

// Clone returns an independent copy.
func (wv WeekValues) Clone() WeekValues {
	out := make(WeekValues, len(wv))
	for k, v := range wv {
		out[k] = v
	}
	return out
}

// LedgerView is a full consistent read of one category:
// every known employee mapped to their weekday values.
type LedgerView map[EmployeeID]WeekValues

// Employees returns the view's employee IDs in ascending order.
func (lv LedgerView) Employees() []EmployeeID {
	ids := make([]EmployeeID, 0, len(lv))
	for id := range lv {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GrandTotal sums every cell in the view.
func (lv LedgerView) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, wv := range lv {
		total = total.Add(wv.Total())
	}
	return total
}

// =============================================================================
// SNAPSHOT - Immutable daily record per employee
// =============================================================================

// Snapshot freezes one employee's ledger values on a calendar date.
// Total is fixed at creation time and never recomputed; the invariant
// Total == sum(Values) holds by construction via NewSnapshot.
//
// Snapshots are keyed by (Employee, Date). The archival job upserts on
// that key, so rerunning it within the same date replaces the row
// instead of double-counting.
type Snapshot struct {
	Employee  EmployeeID
	Date      time.Time // normalized to UTC midnight, see DateOf
	Values    WeekValues
	Total     decimal.Decimal
	CreatedAt time.Time
}

// NewSnapshot builds a snapshot with the total computed from the
// weekday values.
func NewSnapshot(employee EmployeeID, date time.Time, values WeekValues) Snapshot {
	return Snapshot{
		Employee: employee,
		Date:     DateOf(date),
		Values:   values.Clone(),
		Total:    values.Total(),
	}
}

// DateOf truncates a timestamp to its UTC calendar date.
// All snapshot dates pass through here so (employee, date) keys
// compare reliably.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// PERIOD SUMMARY - Immutable record of one closed week
// =============================================================================

// BreakdownEntry is one employee's total within a closed period.
type BreakdownEntry struct {
	Employee EmployeeID      `json:"employee"`
	Total    decimal.Decimal `json:"total"`
}

// PeriodSummary records one closed period: label, boundary dates,
// aggregate total and the ordered per-employee breakdown.
// Invariant: Total == sum of breakdown entries.
type PeriodSummary struct {
	ID        int64
	Label     string
	StartDate time.Time
	EndDate   time.Time
	Total     decimal.Decimal
	Breakdown []BreakdownEntry
	CreatedAt time.Time
}

// =============================================================================
// EMPLOYEE ROSTER
// =============================================================================

// Employee is a minimal roster record. The admin CRUD surface lives
// elsewhere; the engine only needs the roster so ledger reads can
// include employees who have not entered any cell yet.
type Employee struct {
	ID        EmployeeID
	Name      string
	CreatedAt time.Time
}
