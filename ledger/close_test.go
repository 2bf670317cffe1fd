package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-engine/alert"
	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// captureSink records alerts for assertions.
type captureSink struct {
	alerts []alert.Alert
}

func (c *captureSink) Send(_ context.Context, a alert.Alert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

// resetFailingStore makes ResetAll fail inside the exclusive section,
// after the summary has already committed.
type resetFailingStore struct {
	*store.Memory
}

func (r *resetFailingStore) CloseExclusive(ctx context.Context, fn func(ledger.Store) error) error {
	return r.Memory.CloseExclusive(ctx, func(s ledger.Store) error {
		return fn(&resetFailing{Store: s})
	})
}

type resetFailing struct {
	ledger.Store
}

func (r *resetFailing) ResetAll(context.Context, ledger.Category) error {
	return assert.AnError
}

// =============================================================================
// PERIOD CLOSE TESTS
// =============================================================================

func TestPeriodCloser_ClosesWeekAndResets(t *testing.T) {
	// GIVEN: Ana sold 100 on Monday and 250 on Wednesday (primary)
	// WHEN: The close runs on Friday 2024-03-08
	// THEN: Summary "2024-03-04 a 2024-03-08" with total 350, ledger zeroed

	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)
	putCell(t, mem, "ana", ledger.Wednesday, ledger.CategoryPrimary, 250)

	closer := ledger.NewPeriodCloser(mem, nil, quietLog())
	summary, err := closer.Run(context.Background(), date(2024, time.March, 8))
	require.NoError(t, err)

	assert.Equal(t, "2024-03-04 a 2024-03-08", summary.Label)
	assert.Equal(t, date(2024, time.March, 4), summary.StartDate)
	assert.Equal(t, date(2024, time.March, 8), summary.EndDate)
	assert.True(t, summary.Total.Equal(decimal.NewFromInt(350)))
	require.Len(t, summary.Breakdown, 1)
	assert.Equal(t, ledger.EmployeeID("ana"), summary.Breakdown[0].Employee)
	assert.True(t, summary.Breakdown[0].Total.Equal(decimal.NewFromInt(350)))

	view, err := mem.ReadLedger(context.Background(), ledger.CategoryPrimary)
	require.NoError(t, err)
	assert.True(t, view.GrandTotal().IsZero(), "primary ledger should be zeroed")
}

func TestPeriodCloser_SecondaryCategoryUntouched(t *testing.T) {
	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)
	putCell(t, mem, "ana", ledger.Monday, ledger.CategorySecondary, 40)

	closer := ledger.NewPeriodCloser(mem, nil, quietLog())
	_, err := closer.Run(context.Background(), date(2024, time.March, 8))
	require.NoError(t, err)

	view, err := mem.ReadLedger(context.Background(), ledger.CategorySecondary)
	require.NoError(t, err)
	assert.True(t, view.GrandTotal().Equal(decimal.NewFromInt(40)))
}

func TestPeriodCloser_BreakdownSumsToTotal(t *testing.T) {
	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)
	putCell(t, mem, "bruno", ledger.Tuesday, ledger.CategoryPrimary, 60)
	putCell(t, mem, "carla", ledger.Friday, ledger.CategoryPrimary, 40)

	closer := ledger.NewPeriodCloser(mem, nil, quietLog())
	summary, err := closer.Run(context.Background(), date(2024, time.March, 8))
	require.NoError(t, err)

	sum := decimal.Zero
	for _, entry := range summary.Breakdown {
		sum = sum.Add(entry.Total)
	}
	assert.True(t, summary.Total.Equal(sum))
	assert.Equal(t, ledger.EmployeeID("ana"), summary.Breakdown[0].Employee)
	assert.Equal(t, ledger.EmployeeID("carla"), summary.Breakdown[2].Employee)
}

func TestPeriodCloser_EmptyLedgerStillWritesSummary(t *testing.T) {
	mem := store.NewMemory()

	closer := ledger.NewPeriodCloser(mem, nil, quietLog())
	summary, err := closer.Run(context.Background(), date(2024, time.March, 8))
	require.NoError(t, err)

	assert.True(t, summary.Total.IsZero())

	summaries, err := mem.Summaries(context.Background())
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestPeriodCloser_SummariesNewestFirst(t *testing.T) {
	mem := store.NewMemory()
	closer := ledger.NewPeriodCloser(mem, nil, quietLog())

	_, err := closer.Run(context.Background(), date(2024, time.March, 1))
	require.NoError(t, err)
	_, err = closer.Run(context.Background(), date(2024, time.March, 8))
	require.NoError(t, err)

	summaries, err := mem.Summaries(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "2024-03-04 a 2024-03-08", summaries[0].Label)
	assert.Equal(t, "2024-02-26 a 2024-03-01", summaries[1].Label)
}

// summaryFailingStore makes AppendSummary fail inside the exclusive
// section, before anything was reset.
type summaryFailingStore struct {
	*store.Memory
}

func (r *summaryFailingStore) CloseExclusive(ctx context.Context, fn func(ledger.Store) error) error {
	return r.Memory.CloseExclusive(ctx, func(s ledger.Store) error {
		return fn(&summaryFailing{Store: s})
	})
}

type summaryFailing struct {
	ledger.Store
}

func (r *summaryFailing) AppendSummary(context.Context, ledger.PeriodSummary) (int64, error) {
	return 0, assert.AnError
}

func TestPeriodCloser_SummaryPersistFailureLeavesLedgerUntouched(t *testing.T) {
	// GIVEN: A store whose summary persist fails
	// WHEN: The close runs
	// THEN: ErrArchivalFailed, nothing reset, no summary, no alert

	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)
	sink := &captureSink{}

	closer := ledger.NewPeriodCloser(&summaryFailingStore{Memory: mem}, sink, quietLog())
	_, err := closer.Run(context.Background(), date(2024, time.March, 8))

	assert.ErrorIs(t, err, ledger.ErrArchivalFailed)
	assert.NotErrorIs(t, err, ledger.ErrResetFailed)

	view, verr := mem.ReadLedger(context.Background(), ledger.CategoryPrimary)
	require.NoError(t, verr)
	assert.True(t, view.GrandTotal().Equal(decimal.NewFromInt(100)))

	summaries, serr := mem.Summaries(context.Background())
	require.NoError(t, serr)
	assert.Empty(t, summaries)
	assert.Empty(t, sink.alerts, "persist failure retries at the next tick, no alert")
}

func TestPeriodCloser_ResetFailureKeepsSummaryAndAlerts(t *testing.T) {
	// GIVEN: A store whose reset fails after the summary commits
	// WHEN: The close runs
	// THEN: ErrResetFailed, the summary stays archived, the ledger keeps
	//       its values, and a critical alert is raised

	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)
	sink := &captureSink{}

	closer := ledger.NewPeriodCloser(&resetFailingStore{Memory: mem}, sink, quietLog())
	_, err := closer.Run(context.Background(), date(2024, time.March, 8))

	assert.ErrorIs(t, err, ledger.ErrResetFailed)

	var resetErr *ledger.ResetFailureError
	require.ErrorAs(t, err, &resetErr)
	assert.Equal(t, "2024-03-04 a 2024-03-08", resetErr.Label)
	assert.NotZero(t, resetErr.SummaryID)

	summaries, serr := mem.Summaries(context.Background())
	require.NoError(t, serr)
	assert.Len(t, summaries, 1, "committed summary must survive the failed reset")

	view, verr := mem.ReadLedger(context.Background(), ledger.CategoryPrimary)
	require.NoError(t, verr)
	assert.True(t, view.GrandTotal().Equal(decimal.NewFromInt(100)), "ledger keeps the closed values")

	require.Len(t, sink.alerts, 1)
	assert.Equal(t, alert.SeverityCritical, sink.alerts[0].Severity)
	assert.Equal(t, ledger.JobPeriodClose, sink.alerts[0].Job)
}

func TestPeriodCloser_EditDuringCloseIsExcluded(t *testing.T) {
	// An edit issued while the close holds the exclusive section lands
	// after the reset instead of being silently wiped.
	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)

	closer := ledger.NewPeriodCloser(mem, nil, quietLog())

	editDone := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		<-started
		editDone <- mem.UpsertCell(context.Background(), ledger.Cell{
			Employee: "ana",
			Weekday:  ledger.Tuesday,
			Category: ledger.CategoryPrimary,
			Value:    decimal.NewFromInt(50),
		})
	}()
	close(started)

	summary, err := closer.Run(context.Background(), date(2024, time.March, 8))
	require.NoError(t, err)
	require.NoError(t, <-editDone)

	view, err := mem.ReadLedger(context.Background(), ledger.CategoryPrimary)
	require.NoError(t, err)
	// The edit is either in the summary or in the fresh ledger, never lost.
	total := summary.Total.Add(view.GrandTotal())
	assert.True(t, total.Equal(decimal.NewFromInt(150)))
}
