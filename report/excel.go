/*
Package report builds the downloadable spreadsheet export.

PURPOSE:
  Renders the rollup views into an .xlsx workbook for managers who
  want the numbers outside the dashboard: the current-month weekday
  histogram, the closed-week history and the all-time monthly totals.
  Pure read path over the archives; nothing here mutates state.

SEE ALSO:
  - rollup: The queries rendered here
  - api/handlers.go: The download endpoint
*/
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/rollup"
)

const (
	sheetSummary = "Summary"
	sheetWeekly  = "Weekly History"
	sheetMonthly = "Monthly Totals"
)

// Exporter renders rollup data into a workbook.
type Exporter struct {
	Rollup    *rollup.Engine
	Summaries ledger.SummaryArchive
}

func NewExporter(engine *rollup.Engine, summaries ledger.SummaryArchive) *Exporter {
	return &Exporter{Rollup: engine, Summaries: summaries}
}

// Build renders the workbook as of the given time. The caller owns the
// returned file and must Close it.
func (e *Exporter) Build(ctx context.Context, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := e.writeSummarySheet(ctx, f, now); err != nil {
		f.Close()
		return nil, err
	}
	if err := e.writeWeeklySheet(ctx, f); err != nil {
		f.Close()
		return nil, err
	}
	if err := e.writeMonthlySheet(ctx, f); err != nil {
		f.Close()
		return nil, err
	}

	// The default sheet excelize creates is replaced by Summary.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}
	idx, err := f.GetSheetIndex(sheetSummary)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(idx)
	return f, nil
}

func (e *Exporter) writeSummarySheet(ctx context.Context, f *excelize.File, now time.Time) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	s, err := e.Rollup.SummaryFor(ctx, now)
	if err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}

	f.SetCellValue(sheetSummary, "A1", "Date")
	f.SetCellValue(sheetSummary, "B1", s.Date)
	f.SetCellValue(sheetSummary, "A2", "Day Total")
	f.SetCellValue(sheetSummary, "B2", s.DayTotal.InexactFloat64())
	f.SetCellValue(sheetSummary, "A3", "Week Total")
	f.SetCellValue(sheetSummary, "B3", s.WeekTotal.InexactFloat64())
	f.SetCellValue(sheetSummary, "A4", "Month Total")
	f.SetCellValue(sheetSummary, "B4", s.MonthTotal.InexactFloat64())

	f.SetCellValue(sheetSummary, "A6", "Weekday")
	f.SetCellValue(sheetSummary, "B6", "Total")
	for i, wd := range ledger.Weekdays {
		row := fmt.Sprint(7 + i)
		f.SetCellValue(sheetSummary, "A"+row, string(wd))
		f.SetCellValue(sheetSummary, "B"+row, s.WeekdayTotal[i].InexactFloat64())
	}

	histogram, err := e.Rollup.DailyTotalsForMonth(ctx, now.Year(), now.Month())
	if err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	f.SetCellValue(sheetSummary, "D6", "Weekday (month)")
	f.SetCellValue(sheetSummary, "E6", "Total")
	for i, wd := range ledger.Weekdays {
		row := fmt.Sprint(7 + i)
		f.SetCellValue(sheetSummary, "D"+row, string(wd))
		f.SetCellValue(sheetSummary, "E"+row, histogram[i].InexactFloat64())
	}
	return nil
}

func (e *Exporter) writeWeeklySheet(ctx context.Context, f *excelize.File) error {
	if _, err := f.NewSheet(sheetWeekly); err != nil {
		return err
	}

	summaries, err := e.Summaries.Summaries(ctx)
	if err != nil {
		return fmt.Errorf("weekly sheet: %w", err)
	}

	f.SetCellValue(sheetWeekly, "A1", "Week")
	f.SetCellValue(sheetWeekly, "B1", "Start")
	f.SetCellValue(sheetWeekly, "C1", "End")
	f.SetCellValue(sheetWeekly, "D1", "Total")
	f.SetCellValue(sheetWeekly, "E1", "Employees")

	grand := decimal.Zero
	for i, s := range summaries {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheetWeekly, "A"+row, s.Label)
		f.SetCellValue(sheetWeekly, "B"+row, s.StartDate.Format("2006-01-02"))
		f.SetCellValue(sheetWeekly, "C"+row, s.EndDate.Format("2006-01-02"))
		f.SetCellValue(sheetWeekly, "D"+row, s.Total.InexactFloat64())
		f.SetCellValue(sheetWeekly, "E"+row, len(s.Breakdown))
		grand = grand.Add(s.Total)
	}

	totalRow := fmt.Sprint(len(summaries) + 3)
	f.SetCellValue(sheetWeekly, "A"+totalRow, "Grand Total")
	f.SetCellValue(sheetWeekly, "D"+totalRow, grand.InexactFloat64())
	return nil
}

func (e *Exporter) writeMonthlySheet(ctx context.Context, f *excelize.File) error {
	if _, err := f.NewSheet(sheetMonthly); err != nil {
		return err
	}

	totals, err := e.Rollup.MonthlyTotals(ctx)
	if err != nil {
		return fmt.Errorf("monthly sheet: %w", err)
	}

	f.SetCellValue(sheetMonthly, "A1", "Month")
	f.SetCellValue(sheetMonthly, "B1", "Total")
	for i, t := range totals {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheetMonthly, "A"+row, t.Month)
		f.SetCellValue(sheetMonthly, "B"+row, t.Total.InexactFloat64())
	}
	return nil
}
