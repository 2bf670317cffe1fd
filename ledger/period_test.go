package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/sales-engine/ledger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// WEEK BOUNDARY TESTS
// =============================================================================

func TestWeekOf_MidWeek(t *testing.T) {
	// GIVEN: Wednesday 2024-03-06
	// WHEN: Resolving the working week
	// THEN: Monday 2024-03-04 .. Friday 2024-03-08

	week := ledger.WeekOf(date(2024, time.March, 6))

	assert.Equal(t, date(2024, time.March, 4), week.Start)
	assert.Equal(t, date(2024, time.March, 8), week.End)
}

func TestWeekOf_MondayIsItsOwnStart(t *testing.T) {
	week := ledger.WeekOf(date(2024, time.March, 4))
	assert.Equal(t, date(2024, time.March, 4), week.Start)
}

func TestWeekOf_WeekendMapsToEndedWeek(t *testing.T) {
	// A close fired on Saturday or Sunday still labels the week that
	// just ended, not the upcoming one.
	for _, d := range []time.Time{date(2024, time.March, 9), date(2024, time.March, 10)} {
		week := ledger.WeekOf(d)
		assert.Equal(t, date(2024, time.March, 4), week.Start, "for %s", d.Format("2006-01-02"))
		assert.Equal(t, date(2024, time.March, 8), week.End)
	}
}

func TestWeekOf_CrossesMonthBoundary(t *testing.T) {
	// Friday 2024-03-01 belongs to the week starting Monday 2024-02-26.
	week := ledger.WeekOf(date(2024, time.March, 1))
	assert.Equal(t, date(2024, time.February, 26), week.Start)
	assert.Equal(t, date(2024, time.March, 1), week.End)
}

func TestWeekPeriod_Label(t *testing.T) {
	week := ledger.WeekOf(date(2024, time.March, 8))
	assert.Equal(t, "2024-03-04 a 2024-03-08", week.Label())
}

func TestWeekPeriod_Contains(t *testing.T) {
	week := ledger.WeekOf(date(2024, time.March, 6))

	assert.True(t, week.Contains(date(2024, time.March, 4)))
	assert.True(t, week.Contains(date(2024, time.March, 8)))
	assert.False(t, week.Contains(date(2024, time.March, 3)))
	assert.False(t, week.Contains(date(2024, time.March, 9)))
}

func TestWeekOf_IgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2024, time.March, 6, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, ledger.WeekOf(date(2024, time.March, 6)), ledger.WeekOf(late))
}
