/*
close.go - Weekly close-and-reset job

PURPOSE:
  Closes the current period: computes per-employee totals and the
  grand total from the primary ledger, persists one immutable period
  summary, then zeroes the ledger for the next week.

PERIOD CONVENTION:
  Monday-start. The archived period is always the Monday..Friday week
  containing the run date, regardless of which day the job fires.

SEQUENCING:
  read -> persist summary -> reset, all inside the store's exclusive
  ledger section so no interactive edit lands between the read and the
  reset (an edit made mid-close would otherwise be silently wiped).

FAILURE SEMANTICS:
  - Summary persist fails: nothing was reset, the run aborts with
    ErrArchivalFailed and the next scheduled close retries cleanly.
  - Reset fails AFTER the summary committed: the run aborts with
    ErrResetFailed and raises a critical alert. This state is never
    retried automatically - re-running the close would archive the
    same cells a second time. An operator zeroes the ledger manually.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/sales-engine/alert"
)

// JobPeriodClose names the close job in logs and alerts.
const JobPeriodClose = "period_close"

// PeriodCloser archives and resets the ledger at week end.
type PeriodCloser struct {
	Store    CloseStore
	Category Category
	Alerts   alert.Sink
	Log      *logrus.Logger
}

func NewPeriodCloser(store CloseStore, alerts alert.Sink, log *logrus.Logger) *PeriodCloser {
	return &PeriodCloser{
		Store:    store,
		Category: CategoryPrimary,
		Alerts:   alerts,
		Log:      log,
	}
}

// Run closes the period containing now and returns the persisted
// summary. A summary is written even for an empty ledger (total zero),
// matching the dashboard's expectation of one history row per week.
func (c *PeriodCloser) Run(ctx context.Context, now time.Time) (PeriodSummary, error) {
	period := WeekOf(now)
	log := c.Log.WithFields(logrus.Fields{
		"job":      JobPeriodClose,
		"period":   period.Label(),
		"category": c.Category,
	})

	var summary PeriodSummary
	err := c.Store.CloseExclusive(ctx, func(s Store) error {
		view, err := s.ReadLedger(ctx, c.Category)
		if err != nil {
			return fmt.Errorf("%w: read %s ledger: %v", ErrArchivalFailed, c.Category, err)
		}

		breakdown := make([]BreakdownEntry, 0, len(view))
		total := decimal.Zero
		for _, emp := range view.Employees() {
			empTotal := view[emp].Total()
			breakdown = append(breakdown, BreakdownEntry{Employee: emp, Total: empTotal})
			total = total.Add(empTotal)
		}

		summary = PeriodSummary{
			Label:     period.Label(),
			StartDate: period.Start,
			EndDate:   period.End,
			Total:     total,
			Breakdown: breakdown,
		}

		id, err := s.AppendSummary(ctx, summary)
		if err != nil {
			return fmt.Errorf("%w: persist summary: %v", ErrArchivalFailed, err)
		}
		summary.ID = id

		// Commit point passed: from here a failure leaves the summary
		// archived and must not be retried.
		if err := s.ResetAll(ctx, c.Category); err != nil {
			resetErr := &ResetFailureError{
				Category:  c.Category,
				Label:     summary.Label,
				SummaryID: id,
				Err:       err,
			}
			c.raiseResetAlert(ctx, resetErr)
			return resetErr
		}
		return nil
	})

	if err != nil {
		log.WithError(err).Error("period close failed")
		return PeriodSummary{}, err
	}

	log.WithFields(logrus.Fields{
		"summary_id": summary.ID,
		"total":      summary.Total,
		"employees":  len(summary.Breakdown),
	}).Info("period closed")
	return summary, nil
}

func (c *PeriodCloser) raiseResetAlert(ctx context.Context, resetErr *ResetFailureError) {
	if c.Alerts == nil {
		return
	}
	a := alert.Alert{
		Severity: alert.SeverityCritical,
		Job:      JobPeriodClose,
		Message:  "summary committed but ledger reset failed; manual reset required before next close",
		Occurred: time.Now().UTC(),
		Fields: map[string]string{
			"period":     resetErr.Label,
			"category":   string(resetErr.Category),
			"summary_id": fmt.Sprintf("%d", resetErr.SummaryID),
			"cause":      resetErr.Err.Error(),
		},
	}
	if err := c.Alerts.Send(ctx, a); err != nil {
		c.Log.WithError(err).Error("alert delivery failed")
	}
}
