/*
handlers.go - HTTP handlers for the sales ledger API

PURPOSE:
  Implements the REST endpoints: cell edits, ledger reads, manual job
  triggers, closed-period history, rollup totals and the spreadsheet
  export. Handlers translate between HTTP and the domain packages;
  the domain decides, handlers only parse and render.

ERROR MAPPING:
  Validation and query errors (ledger.IsClientError) -> 400
  Missing/wrong close secret                         -> 401
  Reset failure during close                         -> 500 + details
  Everything else                                    -> 500

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Routing
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/report"
	"github.com/warp/sales-engine/rollup"
)

// Handler bundles the dependencies of the HTTP surface.
type Handler struct {
	Store    ledger.CloseStore
	Archiver *ledger.Archiver
	Closer   *ledger.PeriodCloser
	Rollup   *rollup.Engine
	Exporter *report.Exporter
	Log      *logrus.Logger
	Clock    Clock

	// CloseSecret guards the manual close trigger. Empty disables the
	// check (local development only).
	CloseSecret string
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.WithError(err).Error("response encode failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	h.writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to an HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	if ledger.IsClientError(err) {
		h.writeError(w, http.StatusBadRequest, "invalid request", err)
		return
	}
	h.writeError(w, http.StatusInternalServerError, "internal error", err)
}

// =============================================================================
// LEDGER - Cell edits and reads
// =============================================================================

// EditCell handles POST /api/cell.
func (h *Handler) EditCell(w http.ResponseWriter, r *http.Request) {
	var req EditCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	weekday, err := ledger.ParseWeekday(req.Weekday)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	category, err := ledger.ParseCategory(req.Category)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.Employee == "" {
		h.writeError(w, http.StatusBadRequest, "invalid request",
			&ledger.ValidationError{Field: "employee", Value: "", Err: ledger.ErrInvalidValue})
		return
	}

	cell := ledger.Cell{
		Employee: ledger.EmployeeID(req.Employee),
		Weekday:  weekday,
		Category: category,
		Value:    decimal.NewFromFloat(req.Value),
	}
	if err := h.Store.UpsertCell(r.Context(), cell); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"employee": req.Employee,
		"weekday":  req.Weekday,
		"category": req.Category,
	}).Debug("cell updated")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetLedger handles GET /api/data?type=<category>.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("type")
	if raw == "" {
		raw = string(ledger.CategoryPrimary)
	}
	category, err := ledger.ParseCategory(raw)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	view, err := h.Store.ReadLedger(r.Context(), category)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ledgerToDTO(category, employees, view))
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// ListEmployees handles GET /api/employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, emp := range employees {
		dtos = append(dtos, EmployeeDTO{ID: string(emp.ID), Name: emp.Name})
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee handles POST /api/employees.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if req.ID == "" {
		h.writeError(w, http.StatusBadRequest, "employee id is required", nil)
		return
	}
	if req.Name == "" {
		req.Name = req.ID
	}

	emp := ledger.Employee{ID: ledger.EmployeeID(req.ID), Name: req.Name}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, EmployeeDTO{ID: req.ID, Name: req.Name})
}

// =============================================================================
// JOB TRIGGERS - Manual archival and close
// =============================================================================

// TriggerDailyArchive handles POST /api/archive/daily.
func (h *Handler) TriggerDailyArchive(w http.ResponseWriter, r *http.Request) {
	now := h.Clock.Now()
	if err := h.Archiver.Run(r.Context(), now); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "archived",
		"date":   ledger.DateOf(now).Format("2006-01-02"),
	})
}

// TriggerPeriodClose handles POST /api/weekly-archive.
// Guarded by the X-SECRET-KEY header: closing resets the ledger, so an
// accidental call is destructive in a way the other triggers are not.
func (h *Handler) TriggerPeriodClose(w http.ResponseWriter, r *http.Request) {
	if h.CloseSecret != "" && r.Header.Get("X-SECRET-KEY") != h.CloseSecret {
		h.writeError(w, http.StatusUnauthorized, "missing or invalid secret key", nil)
		return
	}

	summary, err := h.Closer.Run(r.Context(), h.Clock.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ClosePeriodResponse{
		Status:  "closed",
		Week:    summary.Label,
		Total:   summary.Total.InexactFloat64(),
		Summary: summaryToDTO(summary),
	})
}

// =============================================================================
// HISTORY AND ROLLUPS
// =============================================================================

// WeeklyHistory handles GET /api/weekly-history, newest first.
func (h *Handler) WeeklyHistory(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Store.Summaries(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]PeriodSummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		dtos = append(dtos, summaryToDTO(s))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// MonthSnapshots handles GET /api/snapshots/{year}/{month}, ascending
// by date.
func (h *Handler) MonthSnapshots(w http.ResponseWriter, r *http.Request) {
	year, month, ok := h.yearMonth(w, r)
	if !ok {
		return
	}
	if month < time.January || month > time.December {
		h.writeError(w, http.StatusBadRequest, "invalid month", ledger.ErrBadQuery)
		return
	}

	snaps, err := h.Store.SnapshotsForMonth(r.Context(), year, month)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]SnapshotDTO, 0, len(snaps))
	for _, snap := range snaps {
		dtos = append(dtos, snapshotToDTO(snap))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// DailyTotals handles GET /api/totals/daily/{year}/{month}.
func (h *Handler) DailyTotals(w http.ResponseWriter, r *http.Request) {
	year, month, ok := h.yearMonth(w, r)
	if !ok {
		return
	}

	totals, err := h.Rollup.DailyTotalsForMonth(r.Context(), year, month)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]float64, len(totals))
	for i, t := range totals {
		out[i] = t.InexactFloat64()
	}
	h.writeJSON(w, http.StatusOK, DailyTotalsDTO{Year: year, Month: int(month), Totals: out})
}

// WeeklyTotals handles GET /api/semanas/{year}/{month}.
func (h *Handler) WeeklyTotals(w http.ResponseWriter, r *http.Request) {
	year, month, ok := h.yearMonth(w, r)
	if !ok {
		return
	}

	totals, err := h.Rollup.WeeklyTotalsForMonth(r.Context(), year, month)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]float64, len(totals))
	for i, t := range totals {
		out[i] = t.InexactFloat64()
	}
	h.writeJSON(w, http.StatusOK, WeeklyTotalsDTO{Year: year, Month: int(month), Totals: out})
}

// MonthlyTotals handles GET /api/totals/monthly.
func (h *Handler) MonthlyTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Rollup.MonthlyTotals(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]MonthTotalDTO, 0, len(totals))
	for _, t := range totals {
		dtos = append(dtos, MonthTotalDTO{Month: t.Month, Total: t.Total.InexactFloat64()})
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// DashboardSummary handles GET /api/summary.
func (h *Handler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Rollup.SummaryFor(r.Context(), h.Clock.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	weekdays := make(map[string]float64, len(ledger.Weekdays))
	for i, wd := range ledger.Weekdays {
		weekdays[string(wd)] = s.WeekdayTotal[i].InexactFloat64()
	}
	h.writeJSON(w, http.StatusOK, SummaryDTO{
		Date:       s.Date,
		DayTotal:   s.DayTotal.InexactFloat64(),
		WeekTotal:  s.WeekTotal.InexactFloat64(),
		MonthTotal: s.MonthTotal.InexactFloat64(),
		Weekdays:   weekdays,
	})
}

// yearMonth parses the {year}/{month} path segments.
func (h *Handler) yearMonth(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid year", err)
		return 0, 0, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid month", err)
		return 0, 0, false
	}
	return year, time.Month(month), true
}

// =============================================================================
// REPORT EXPORT
// =============================================================================

// ExportReport handles GET /api/reports/export.xlsx.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	f, err := h.Exporter.Build(r.Context(), h.Clock.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	defer f.Close()

	name := fmt.Sprintf("sales-report-%s.xlsx", h.Clock.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := f.Write(w); err != nil {
		h.Log.WithError(err).Error("report stream failed")
	}
}
