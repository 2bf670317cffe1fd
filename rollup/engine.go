/*
Package rollup aggregates archived snapshots into report totals.

PURPOSE:
  Answers the dashboard questions - "totals for day D / week W /
  month M" - as pure reads over the snapshot archive. Nothing here
  mutates state.

WEEK BUCKETING:
  Months are partitioned into Monday-start week buckets:

    weekIndex = (dayOfMonth + weekdayOfFirst - 1) / 7
    weeks     = ceil((daysInMonth + weekdayOfFirst) / 7)

  where weekdayOfFirst is 0 for Monday. Example: March 2024 starts on
  a Friday (weekdayOfFirst = 4), 31 days, so ceil(35/7) = 5 buckets
  and March 1 lands in bucket (1+4-1)/7 = 0.

CONSISTENCY LAW:
  For any month with complete data, sum(DailyTotalsForMonth) ==
  sum(WeeklyTotalsForMonth) == the month's entry in MonthlyTotals.
  All three walk the same snapshot totals and only differ in how they
  bucket. Saturday/Sunday-dated snapshots are excluded from the daily
  weekday histogram; the archival job runs on working days, so the
  three views agree on any month of its output.

SEE ALSO:
  - ledger/archive.go: The job that produces the snapshots read here
*/
package rollup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-engine/ledger"
)

// Engine answers rollup queries over the snapshot archive.
type Engine struct {
	Archive ledger.SnapshotArchive
}

func New(archive ledger.SnapshotArchive) *Engine {
	return &Engine{Archive: archive}
}

// MonthTotal is one month's aggregate, keyed "YYYY-MM".
type MonthTotal struct {
	Month string          `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// Summary bundles the dashboard headline numbers.
type Summary struct {
	Date         string          `json:"date"`
	DayTotal     decimal.Decimal `json:"day_total"`
	WeekTotal    decimal.Decimal `json:"week_total"`
	MonthTotal   decimal.Decimal `json:"month_total"`
	WeekdayTotal [5]decimal.Decimal
}

// =============================================================================
// MONTH QUERIES
// =============================================================================

// DailyTotalsForMonth sums snapshot totals across all employees and
// days, bucketed by the weekday (Mon..Fri) each snapshot date lands
// on. Weekend-dated snapshots are ignored.
func (e *Engine) DailyTotalsForMonth(ctx context.Context, year int, month time.Month) ([5]decimal.Decimal, error) {
	var totals [5]decimal.Decimal
	for i := range totals {
		totals[i] = decimal.Zero
	}
	if err := validateMonth(year, month); err != nil {
		return totals, err
	}

	snaps, err := e.Archive.SnapshotsForMonth(ctx, year, month)
	if err != nil {
		return totals, fmt.Errorf("load snapshots for %d-%02d: %w", year, month, err)
	}

	for _, snap := range snaps {
		weekday, ok := ledger.WeekdayOf(snap.Date)
		if !ok {
			continue
		}
		i := weekday.Index()
		totals[i] = totals[i].Add(snap.Total)
	}
	return totals, nil
}

// WeeklyTotalsForMonth partitions the month's days into Monday-start
// week buckets and sums each snapshot's total into the bucket holding
// its calendar date.
func (e *Engine) WeeklyTotalsForMonth(ctx context.Context, year int, month time.Month) ([]decimal.Decimal, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	weekdayOfFirst := (int(first.Weekday()) + 6) % 7 // Monday = 0

	weeks := (daysInMonth + weekdayOfFirst + 6) / 7
	totals := make([]decimal.Decimal, weeks)
	for i := range totals {
		totals[i] = decimal.Zero
	}

	snaps, err := e.Archive.SnapshotsForMonth(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %d-%02d: %w", year, month, err)
	}

	for _, snap := range snaps {
		i := (snap.Date.Day() + weekdayOfFirst - 1) / 7
		if i >= 0 && i < weeks {
			totals[i] = totals[i].Add(snap.Total)
		}
	}
	return totals, nil
}

// MonthlyTotals sums all snapshot totals grouped by calendar month,
// ascending by "YYYY-MM" key.
func (e *Engine) MonthlyTotals(ctx context.Context) ([]MonthTotal, error) {
	snaps, err := e.Archive.AllSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot archive: %w", err)
	}

	byMonth := make(map[string]decimal.Decimal)
	for _, snap := range snaps {
		key := snap.Date.Format("2006-01")
		byMonth[key] = byMonth[key].Add(snap.Total)
	}

	result := make([]MonthTotal, 0, len(byMonth))
	for key, total := range byMonth {
		result = append(result, MonthTotal{Month: key, Total: total})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month < result[j].Month })
	return result, nil
}

// =============================================================================
// DASHBOARD SUMMARY
// =============================================================================

// SummaryFor computes the headline numbers for the dashboard: today's
// archived total, the current Monday-start week, the current month,
// and the per-weekday histogram of the current week.
func (e *Engine) SummaryFor(ctx context.Context, now time.Time) (Summary, error) {
	today := ledger.DateOf(now)
	week := ledger.WeekOf(today)

	s := Summary{Date: today.Format("2006-01-02")}
	s.DayTotal = decimal.Zero
	s.WeekTotal = decimal.Zero
	s.MonthTotal = decimal.Zero
	for i := range s.WeekdayTotal {
		s.WeekdayTotal[i] = decimal.Zero
	}

	weekSnaps, err := e.Archive.SnapshotsInRange(ctx, week.Start, week.End)
	if err != nil {
		return s, fmt.Errorf("load current week snapshots: %w", err)
	}
	for _, snap := range weekSnaps {
		s.WeekTotal = s.WeekTotal.Add(snap.Total)
		if snap.Date.Equal(today) {
			s.DayTotal = s.DayTotal.Add(snap.Total)
		}
		if weekday, ok := ledger.WeekdayOf(snap.Date); ok {
			s.WeekdayTotal[weekday.Index()] = s.WeekdayTotal[weekday.Index()].Add(snap.Total)
		}
	}

	monthSnaps, err := e.Archive.SnapshotsForMonth(ctx, today.Year(), today.Month())
	if err != nil {
		return s, fmt.Errorf("load current month snapshots: %w", err)
	}
	for _, snap := range monthSnaps {
		s.MonthTotal = s.MonthTotal.Add(snap.Total)
	}
	return s, nil
}

func validateMonth(year int, month time.Month) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("%w: month %d outside 1-12", ledger.ErrBadQuery, month)
	}
	if year < 1 || year > 9999 {
		return fmt.Errorf("%w: year %d", ledger.ErrBadQuery, year)
	}
	return nil
}
