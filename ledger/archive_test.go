package ledger_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func putCell(t *testing.T, s ledger.Store, emp string, w ledger.Weekday, c ledger.Category, v int64) {
	t.Helper()
	err := s.UpsertCell(context.Background(), ledger.Cell{
		Employee: ledger.EmployeeID(emp),
		Weekday:  w,
		Category: c,
		Value:    decimal.NewFromInt(v),
	})
	require.NoError(t, err)
}

// =============================================================================
// DAILY ARCHIVAL TESTS
// =============================================================================

func TestArchiver_MergesCategoriesPerEmployee(t *testing.T) {
	// GIVEN: Ana has 100 on Monday (primary) and 30 on Monday (secondary)
	// WHEN: The daily archival runs on Wednesday 2024-03-06
	// THEN: One snapshot for Ana dated that day with monday = 130

	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)
	putCell(t, mem, "ana", ledger.Monday, ledger.CategorySecondary, 30)
	putCell(t, mem, "ana", ledger.Wednesday, ledger.CategoryPrimary, 250)

	archiver := ledger.NewArchiver(mem, quietLog())
	require.NoError(t, archiver.Run(context.Background(), date(2024, time.March, 6)))

	snaps, err := mem.AllSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	assert.Equal(t, ledger.EmployeeID("ana"), snap.Employee)
	assert.Equal(t, date(2024, time.March, 6), snap.Date)
	assert.True(t, snap.Values.Get(ledger.Monday).Equal(decimal.NewFromInt(130)))
	assert.True(t, snap.Total.Equal(decimal.NewFromInt(380)))
}

func TestArchiver_RerunSameDayReplaces(t *testing.T) {
	// GIVEN: An archival already ran today
	// WHEN: A cell changes and the job reruns on the same date
	// THEN: The snapshot is replaced, not duplicated

	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)

	archiver := ledger.NewArchiver(mem, quietLog())
	day := date(2024, time.March, 6)
	require.NoError(t, archiver.Run(context.Background(), day))

	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 150)
	require.NoError(t, archiver.Run(context.Background(), day))

	snaps, err := mem.AllSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Total.Equal(decimal.NewFromInt(150)))
}

func TestArchiver_SeparateDaysAccumulate(t *testing.T) {
	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)

	archiver := ledger.NewArchiver(mem, quietLog())
	require.NoError(t, archiver.Run(context.Background(), date(2024, time.March, 5)))
	require.NoError(t, archiver.Run(context.Background(), date(2024, time.March, 6)))

	snaps, err := mem.AllSnapshots(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestArchiver_WeekendRunArchivesNothing(t *testing.T) {
	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)

	archiver := ledger.NewArchiver(mem, quietLog())
	require.NoError(t, archiver.Run(context.Background(), date(2024, time.March, 9))) // Saturday

	snaps, err := mem.AllSnapshots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestArchiver_EmployeesWithoutCellsGetZeroSnapshots(t *testing.T) {
	// Roster employees with no cells still get a zero snapshot so the
	// dashboard shows them on every archived day.
	mem := store.NewMemory()
	require.NoError(t, mem.SaveEmployee(context.Background(), ledger.Employee{ID: "bruno", Name: "Bruno"}))
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)

	archiver := ledger.NewArchiver(mem, quietLog())
	require.NoError(t, archiver.Run(context.Background(), date(2024, time.March, 6)))

	snaps, err := mem.AllSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, ledger.EmployeeID("ana"), snaps[0].Employee)
	assert.Equal(t, ledger.EmployeeID("bruno"), snaps[1].Employee)
	assert.True(t, snaps[1].Total.IsZero())
}

func TestArchiver_StoreFailureWrapsErrArchivalFailed(t *testing.T) {
	mem := store.NewMemory()
	putCell(t, mem, "ana", ledger.Monday, ledger.CategoryPrimary, 100)

	archiver := ledger.NewArchiver(&failingSnapshotStore{Memory: mem}, quietLog())
	err := archiver.Run(context.Background(), date(2024, time.March, 6))

	assert.ErrorIs(t, err, ledger.ErrArchivalFailed)
}

// failingSnapshotStore rejects batch snapshot writes.
type failingSnapshotStore struct {
	*store.Memory
}

func (f *failingSnapshotStore) UpsertSnapshots(context.Context, []ledger.Snapshot) error {
	return assert.AnError
}
