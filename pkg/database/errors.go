package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/hospilog/hospilog-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "qty_on_hand_non_negative"):
		// The guarded UPDATE should catch shortfalls first; the CHECK is the
		// backstop if a writer bypasses it.
		return errors.InsufficientStock()

	case strings.Contains(constraint, "qty_positive"):
		return errors.Validation(map[string]string{
			"qty": "must be greater than zero",
		})

	case strings.Contains(constraint, "move_location_present"):
		return errors.Validation(map[string]string{
			"location": "at least one of from_loc_id/to_loc_id must be set",
		})

	default:
		return errors.BadRequest("constraint violation: " + constraint)
	}
}

// formatConstraintMessage produces a readable conflict message for unique violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "event_id"):
		return "a stock move with this event_id already exists"
	case strings.Contains(constraint, "batch_identity"):
		return "batch already exists for this item/lot/expiry"
	case strings.Contains(constraint, "sku"):
		return "an item with this SKU already exists"
	case strings.Contains(constraint, "threshold"):
		return "a threshold for this item/location already exists"
	default:
		return "record already exists"
	}
}

// IsUniqueViolation reports whether err is a unique constraint violation on
// the named constraint (or any unique violation when constraint is empty).
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || strings.Contains(pqErr.Constraint, constraint)
}
