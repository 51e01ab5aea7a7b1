package queries

import (
	"fmt"

	"github.com/lox/weatherqueries/internal/apperr"
	"github.com/lox/weatherqueries/internal/models"
)

// DefaultMaxRangeDays is the longest span a query may cover (three years).
const DefaultMaxRangeDays = 365 * 3

// ValidateDateRange checks that both dates are present, ordered, and no more
// than maxDays apart. A span of exactly maxDays is allowed. Failures are
// apperr validation errors.
func ValidateDateRange(start, end models.Date, maxDays int) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("start_date and end_date (YYYY-MM-DD) are required")
	}
	if start.After(end.Time) {
		return apperr.Validation("start_date must be <= end_date")
	}
	if start.DaysUntil(end) > maxDays {
		return apperr.Validation(fmt.Sprintf("Date range too long; must be <= %d days", maxDays))
	}
	return nil
}
