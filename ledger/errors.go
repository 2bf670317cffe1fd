/*
errors.go - Centralized error types for the sales ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Jobs and stores wrap these sentinels with additional context.

ERROR CATEGORIES:
  1. Validation errors - Malformed cell identity or value, rejected at
     the store boundary and never persisted
  2. Archival errors - A job could not complete its read/persist
     sequence; nothing was written
  3. Reset errors - The period summary committed but the ledger reset
     did not; surfaced distinctly because an automatic retry would
     double-archive the period
  4. Query errors - Malformed rollup query input

USAGE:
  if errors.Is(err, ledger.ErrResetFailed) {
      // summary is archived, ledger still holds the closed period
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidWeekday is returned for a weekday outside monday..friday.
	ErrInvalidWeekday = errors.New("invalid weekday")

	// ErrInvalidCategory is returned for an unknown ledger category.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidValue is returned for a non-numeric cell value.
	ErrInvalidValue = errors.New("invalid value")

	// ErrArchivalFailed is returned when the archival or close job could
	// not complete its read/persist sequence. No partial writes remain;
	// the scheduler retries at the next tick, never immediately.
	ErrArchivalFailed = errors.New("archival failed")

	// ErrResetFailed is returned when the period summary committed but
	// the ledger reset did not. The run is fatal and must NOT be retried
	// automatically: the next close would archive the same cells again.
	ErrResetFailed = errors.New("ledger reset failed after summary commit")

	// ErrBadQuery is returned for malformed rollup query input
	// (e.g. month outside 1-12). Callers get an empty result plus this
	// error, never a panic.
	ErrBadQuery = errors.New("bad rollup query")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed cell identity or value.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %q", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ResetFailureError reports the summary-committed-but-reset-failed
// state of a period close. Carries everything an operator needs to
// reset the ledger manually before the next close fires.
type ResetFailureError struct {
	Category  Category
	Label     string
	SummaryID int64
	Err       error
}

func (e *ResetFailureError) Error() string {
	return fmt.Sprintf("period %q archived (summary %d) but %s ledger not reset: %v",
		e.Label, e.SummaryID, e.Category, e.Err)
}

func (e *ResetFailureError) Unwrap() error { return ErrResetFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidWeekday) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrBadQuery)
}
