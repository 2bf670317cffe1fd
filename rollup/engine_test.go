package rollup_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/ledger/store"
	"github.com/warp/sales-engine/rollup"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func seedSnapshot(t *testing.T, mem *store.Memory, emp string, day time.Time, total int64) {
	t.Helper()
	weekday, ok := ledger.WeekdayOf(day)
	values := ledger.WeekValues{}
	if ok {
		values[weekday] = decimal.NewFromInt(total)
	} else {
		values[ledger.Monday] = decimal.NewFromInt(total)
	}
	snap := ledger.NewSnapshot(ledger.EmployeeID(emp), day, values)
	require.NoError(t, mem.UpsertSnapshot(context.Background(), snap))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newEngine() (*rollup.Engine, *store.Memory) {
	mem := store.NewMemory()
	return rollup.New(mem), mem
}

// =============================================================================
// DAILY HISTOGRAM TESTS
// =============================================================================

func TestDailyTotals_BucketsByWeekday(t *testing.T) {
	// GIVEN: Snapshots on Mon 2024-03-04 (100+50) and Wed 2024-03-06 (70)
	// WHEN: Querying the March histogram
	// THEN: monday = 150, wednesday = 70, rest zero

	engine, mem := newEngine()
	seedSnapshot(t, mem, "ana", day(2024, time.March, 4), 100)
	seedSnapshot(t, mem, "bruno", day(2024, time.March, 4), 50)
	seedSnapshot(t, mem, "ana", day(2024, time.March, 6), 70)

	totals, err := engine.DailyTotalsForMonth(context.Background(), 2024, time.March)
	require.NoError(t, err)

	assert.True(t, totals[ledger.Monday.Index()].Equal(decimal.NewFromInt(150)))
	assert.True(t, totals[ledger.Wednesday.Index()].Equal(decimal.NewFromInt(70)))
	assert.True(t, totals[ledger.Friday.Index()].IsZero())
}

func TestDailyTotals_IgnoresWeekendDatedSnapshots(t *testing.T) {
	engine, mem := newEngine()
	seedSnapshot(t, mem, "ana", day(2024, time.March, 9), 500) // Saturday

	totals, err := engine.DailyTotalsForMonth(context.Background(), 2024, time.March)
	require.NoError(t, err)
	for i := range totals {
		assert.True(t, totals[i].IsZero())
	}
}

func TestDailyTotals_EmptyMonthIsAllZeros(t *testing.T) {
	engine, _ := newEngine()

	totals, err := engine.DailyTotalsForMonth(context.Background(), 2024, time.April)
	require.NoError(t, err)
	for i := range totals {
		assert.True(t, totals[i].IsZero())
	}
}

// =============================================================================
// WEEK BUCKET TESTS
// =============================================================================

func TestWeeklyTotals_March2024HasFiveBuckets(t *testing.T) {
	// March 2024 starts on a Friday: days 1-3 in bucket 0, then four
	// Monday-start weeks, five buckets total.
	engine, mem := newEngine()
	seedSnapshot(t, mem, "ana", day(2024, time.March, 1), 10)  // Friday, bucket 0
	seedSnapshot(t, mem, "ana", day(2024, time.March, 4), 20)  // Monday, bucket 1
	seedSnapshot(t, mem, "ana", day(2024, time.March, 29), 40) // Friday, bucket 4

	totals, err := engine.WeeklyTotalsForMonth(context.Background(), 2024, time.March)
	require.NoError(t, err)

	require.Len(t, totals, 5)
	assert.True(t, totals[0].Equal(decimal.NewFromInt(10)))
	assert.True(t, totals[1].Equal(decimal.NewFromInt(20)))
	assert.True(t, totals[4].Equal(decimal.NewFromInt(40)))
}

func TestWeeklyTotals_MondayStartMonth(t *testing.T) {
	// April 2024 starts on Monday: 30 days over exactly 5 buckets.
	engine, mem := newEngine()
	seedSnapshot(t, mem, "ana", day(2024, time.April, 1), 5)
	seedSnapshot(t, mem, "ana", day(2024, time.April, 8), 7)

	totals, err := engine.WeeklyTotalsForMonth(context.Background(), 2024, time.April)
	require.NoError(t, err)

	require.Len(t, totals, 5)
	assert.True(t, totals[0].Equal(decimal.NewFromInt(5)))
	assert.True(t, totals[1].Equal(decimal.NewFromInt(7)))
}

// =============================================================================
// MONTHLY TOTALS TESTS
// =============================================================================

func TestMonthlyTotals_GroupedAndAscending(t *testing.T) {
	engine, mem := newEngine()
	seedSnapshot(t, mem, "ana", day(2024, time.March, 4), 100)
	seedSnapshot(t, mem, "ana", day(2024, time.March, 5), 50)
	seedSnapshot(t, mem, "ana", day(2024, time.February, 5), 30)

	totals, err := engine.MonthlyTotals(context.Background())
	require.NoError(t, err)

	require.Len(t, totals, 2)
	assert.Equal(t, "2024-02", totals[0].Month)
	assert.True(t, totals[0].Total.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "2024-03", totals[1].Month)
	assert.True(t, totals[1].Total.Equal(decimal.NewFromInt(150)))
}

// =============================================================================
// CONSISTENCY LAW
// =============================================================================

func TestRollups_DailyWeeklyMonthlyAgree(t *testing.T) {
	// Sum over the daily histogram, the week buckets and the month
	// entry must agree for a month of working-day snapshots.
	engine, mem := newEngine()
	for _, d := range []int{1, 4, 5, 6, 12, 20, 28, 29} {
		seedSnapshot(t, mem, "ana", day(2024, time.March, d), int64(d*10))
		seedSnapshot(t, mem, "bruno", day(2024, time.March, d), int64(d))
	}

	ctx := context.Background()
	daily, err := engine.DailyTotalsForMonth(ctx, 2024, time.March)
	require.NoError(t, err)
	weekly, err := engine.WeeklyTotalsForMonth(ctx, 2024, time.March)
	require.NoError(t, err)
	monthly, err := engine.MonthlyTotals(ctx)
	require.NoError(t, err)

	dailySum := decimal.Zero
	for _, v := range daily {
		dailySum = dailySum.Add(v)
	}
	weeklySum := decimal.Zero
	for _, v := range weekly {
		weeklySum = weeklySum.Add(v)
	}

	require.Len(t, monthly, 1)
	assert.True(t, dailySum.Equal(weeklySum), "daily %s != weekly %s", dailySum, weeklySum)
	assert.True(t, weeklySum.Equal(monthly[0].Total), "weekly %s != monthly %s", weeklySum, monthly[0].Total)
}

// =============================================================================
// QUERY VALIDATION
// =============================================================================

func TestRollups_RejectMalformedMonth(t *testing.T) {
	engine, _ := newEngine()
	ctx := context.Background()

	_, err := engine.DailyTotalsForMonth(ctx, 2024, time.Month(13))
	assert.ErrorIs(t, err, ledger.ErrBadQuery)

	_, err = engine.WeeklyTotalsForMonth(ctx, 2024, time.Month(0))
	assert.ErrorIs(t, err, ledger.ErrBadQuery)

	_, err = engine.DailyTotalsForMonth(ctx, -5, time.March)
	assert.ErrorIs(t, err, ledger.ErrBadQuery)
}

// =============================================================================
// DASHBOARD SUMMARY
// =============================================================================

func TestSummaryFor_HeadlineNumbers(t *testing.T) {
	// GIVEN: Snapshots on Mon/Tue of the current week plus one from a
	//        prior week of the same month
	// WHEN: Asking for the summary as of Tuesday 2024-03-12
	// THEN: day = Tuesday's total, week = Mon+Tue, month includes all

	engine, mem := newEngine()
	seedSnapshot(t, mem, "ana", day(2024, time.March, 11), 100) // Monday, current week
	seedSnapshot(t, mem, "ana", day(2024, time.March, 12), 60)  // Tuesday, "today"
	seedSnapshot(t, mem, "ana", day(2024, time.March, 5), 40)   // prior week

	s, err := engine.SummaryFor(context.Background(), day(2024, time.March, 12))
	require.NoError(t, err)

	assert.Equal(t, "2024-03-12", s.Date)
	assert.True(t, s.DayTotal.Equal(decimal.NewFromInt(60)))
	assert.True(t, s.WeekTotal.Equal(decimal.NewFromInt(160)))
	assert.True(t, s.MonthTotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, s.WeekdayTotal[ledger.Monday.Index()].Equal(decimal.NewFromInt(100)))
	assert.True(t, s.WeekdayTotal[ledger.Tuesday.Index()].Equal(decimal.NewFromInt(60)))
}
