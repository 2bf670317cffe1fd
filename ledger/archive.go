/*
archive.go - Daily archival job

PURPOSE:
  Converts the mutable current-period ledger into immutable daily
  snapshots. Runs once per day (or on demand); reads both categories,
  sums each employee's weekday values across categories, and writes one
  snapshot per employee stamped with the run date.

IDEMPOTENCY:
  Snapshots are upserted on (employee, date). Running the job twice
  within the same calendar date replaces the rows instead of inserting
  duplicates, so date-summing dashboards never double-count a rerun.
  The original system inserted unconditionally and relied on nobody
  rerunning it; upsert-by-date closes that hole.

FAILURE SEMANTICS:
  The snapshot batch is written atomically. On any store error the job
  aborts with ErrArchivalFailed and no partial writes remain; the
  scheduler retries at its next tick, not immediately.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// JobDailyArchive names the archival job in logs and alerts.
const JobDailyArchive = "daily_archive"

// Archiver snapshots the current ledger into the snapshot archive.
type Archiver struct {
	Store Store
	Log   *logrus.Logger
}

func NewArchiver(store Store, log *logrus.Logger) *Archiver {
	return &Archiver{Store: store, Log: log}
}

// Run archives the ledger as of the given date. The date is truncated
// to its UTC calendar day; the scheduler passes its clock's now, tests
// pass fixed dates.
func (a *Archiver) Run(ctx context.Context, date time.Time) error {
	day := DateOf(date)
	log := a.Log.WithFields(logrus.Fields{"job": JobDailyArchive, "date": day.Format("2006-01-02")})

	// Weekend runs are skipped: the ledger only holds Mon..Fri cells,
	// and a weekend-dated snapshot would be invisible to the daily
	// weekday histogram while still inflating week and month sums.
	if _, ok := WeekdayOf(day); !ok {
		log.Info("weekend date, nothing to archive")
		return nil
	}

	combined := make(map[EmployeeID]WeekValues)
	for _, category := range Categories {
		view, err := a.Store.ReadLedger(ctx, category)
		if err != nil {
			log.WithField("category", category).WithError(err).Error("ledger read failed")
			return fmt.Errorf("%w: read %s ledger: %v", ErrArchivalFailed, category, err)
		}
		for emp, values := range view {
			wv, ok := combined[emp]
			if !ok {
				wv = make(WeekValues, len(Weekdays))
				combined[emp] = wv
			}
			for _, w := range Weekdays {
				wv[w] = wv.Get(w).Add(values.Get(w))
			}
		}
	}

	snaps := make([]Snapshot, 0, len(combined))
	total := decimal.Zero
	for _, emp := range sortedEmployees(combined) {
		snap := NewSnapshot(emp, day, combined[emp])
		total = total.Add(snap.Total)
		snaps = append(snaps, snap)
	}

	if err := a.Store.UpsertSnapshots(ctx, snaps); err != nil {
		log.WithError(err).Error("snapshot write failed")
		return fmt.Errorf("%w: write snapshots: %v", ErrArchivalFailed, err)
	}

	log.WithFields(logrus.Fields{"employees": len(snaps), "total": total}).Info("ledger archived")
	return nil
}

func sortedEmployees(m map[EmployeeID]WeekValues) []EmployeeID {
	return LedgerView(m).Employees()
}
