/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the ledger package, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/sales-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// EditCellRequest writes one ledger cell.
type EditCellRequest struct {
	Employee string  `json:"employee"`
	Weekday  string  `json:"weekday"`
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// CreateEmployeeRequest registers a roster employee.
type CreateEmployeeRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LedgerDTO is the dashboard's view of one category.
type LedgerDTO struct {
	Category        string                        `json:"category"`
	Employees       []EmployeeDTO                 `json:"employees"`
	SpreadsheetData map[string]map[string]float64 `json:"spreadsheetData"`
}

// EmployeeDTO represents a roster employee.
type EmployeeDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SnapshotDTO represents one archived day for one employee.
type SnapshotDTO struct {
	Employee  string  `json:"employee"`
	Date      string  `json:"date"`
	Monday    float64 `json:"monday"`
	Tuesday   float64 `json:"tuesday"`
	Wednesday float64 `json:"wednesday"`
	Thursday  float64 `json:"thursday"`
	Friday    float64 `json:"friday"`
	Total     float64 `json:"total"`
}

// PeriodSummaryDTO represents one closed week.
type PeriodSummaryDTO struct {
	ID        int64               `json:"id"`
	Label     string              `json:"week_label"`
	StartedAt string              `json:"started_at"`
	EndedAt   string              `json:"ended_at"`
	Total     float64             `json:"total"`
	Breakdown []BreakdownEntryDTO `json:"breakdown"`
	CreatedAt string              `json:"created_at,omitempty"`
}

// BreakdownEntryDTO is one employee's share of a closed week.
type BreakdownEntryDTO struct {
	Employee string  `json:"employee"`
	Total    float64 `json:"total"`
}

// DailyTotalsDTO is the Mon..Fri histogram for one month.
type DailyTotalsDTO struct {
	Year   int       `json:"year"`
	Month  int       `json:"month"`
	Totals []float64 `json:"totals"` // index 0 = Monday
}

// WeeklyTotalsDTO is the week-bucket partition of one month.
type WeeklyTotalsDTO struct {
	Year   int       `json:"year"`
	Month  int       `json:"month"`
	Totals []float64 `json:"totals"` // index 0 = week containing day 1
}

// MonthTotalDTO is one month's aggregate.
type MonthTotalDTO struct {
	Month string  `json:"month"` // "YYYY-MM"
	Total float64 `json:"total"`
}

// SummaryDTO bundles the dashboard headline numbers.
type SummaryDTO struct {
	Date       string             `json:"date"`
	DayTotal   float64            `json:"day_total"`
	WeekTotal  float64            `json:"week_total"`
	MonthTotal float64            `json:"month_total"`
	Weekdays   map[string]float64 `json:"weekdays"`
}

// ClosePeriodResponse reports a manual close.
type ClosePeriodResponse struct {
	Status  string           `json:"status"`
	Week    string           `json:"week"`
	Total   float64          `json:"total"`
	Summary PeriodSummaryDTO `json:"summary"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func ledgerToDTO(category ledger.Category, employees []ledger.Employee, view ledger.LedgerView) LedgerDTO {
	dto := LedgerDTO{
		Category:        string(category),
		Employees:       make([]EmployeeDTO, 0, len(employees)),
		SpreadsheetData: make(map[string]map[string]float64, len(view)),
	}
	for _, emp := range employees {
		dto.Employees = append(dto.Employees, EmployeeDTO{ID: string(emp.ID), Name: emp.Name})
	}
	for emp, values := range view {
		row := make(map[string]float64, len(ledger.Weekdays))
		for _, w := range ledger.Weekdays {
			row[string(w)] = values.Get(w).InexactFloat64()
		}
		dto.SpreadsheetData[string(emp)] = row
	}
	return dto
}

func summaryToDTO(s ledger.PeriodSummary) PeriodSummaryDTO {
	dto := PeriodSummaryDTO{
		ID:        s.ID,
		Label:     s.Label,
		StartedAt: s.StartDate.Format("2006-01-02"),
		EndedAt:   s.EndDate.Format("2006-01-02"),
		Total:     s.Total.InexactFloat64(),
		Breakdown: make([]BreakdownEntryDTO, 0, len(s.Breakdown)),
	}
	if !s.CreatedAt.IsZero() {
		dto.CreatedAt = s.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	for _, entry := range s.Breakdown {
		dto.Breakdown = append(dto.Breakdown, BreakdownEntryDTO{
			Employee: string(entry.Employee),
			Total:    entry.Total.InexactFloat64(),
		})
	}
	return dto
}

func snapshotToDTO(s ledger.Snapshot) SnapshotDTO {
	return SnapshotDTO{
		Employee:  string(s.Employee),
		Date:      s.Date.Format("2006-01-02"),
		Monday:    s.Values.Get(ledger.Monday).InexactFloat64(),
		Tuesday:   s.Values.Get(ledger.Tuesday).InexactFloat64(),
		Wednesday: s.Values.Get(ledger.Wednesday).InexactFloat64(),
		Thursday:  s.Values.Get(ledger.Thursday).InexactFloat64(),
		Friday:    s.Values.Get(ledger.Friday).InexactFloat64(),
		Total:     s.Total.InexactFloat64(),
	}
}
