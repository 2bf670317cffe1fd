/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/cell              Cell edits
  /api/data              Current-period ledger reads
  /api/employees         Roster
  /api/archive/daily     Manual daily archival
  /api/weekly-archive    Manual period close (X-SECRET-KEY guarded)
  /api/weekly-history    Closed-period summaries
  /api/snapshots/*       Archived daily snapshots
  /api/totals/*          Rollup queries
  /api/semanas/*         Week-bucket totals (route name kept for the
                         existing dashboard frontend)
  /api/summary           Dashboard headline numbers
  /api/reports/*         Spreadsheet export

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-SECRET-KEY"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Ledger routes
		r.Post("/cell", h.EditCell)
		r.Get("/data", h.GetLedger)

		// Roster routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
		})

		// Job triggers
		r.Post("/archive/daily", h.TriggerDailyArchive)
		r.Post("/weekly-archive", h.TriggerPeriodClose)

		// History and rollups
		r.Get("/weekly-history", h.WeeklyHistory)
		r.Get("/snapshots/{year}/{month}", h.MonthSnapshots)
		r.Get("/totals/daily/{year}/{month}", h.DailyTotals)
		r.Get("/semanas/{year}/{month}", h.WeeklyTotals)
		r.Get("/totals/monthly", h.MonthlyTotals)
		r.Get("/summary", h.DashboardSummary)

		// Reports
		r.Get("/reports/export.xlsx", h.ExportReport)
	})

	return r
}
