package storage

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrAPIKeyNotFound is returned when an API key is not found
	ErrAPIKeyNotFound = errors.New("API key not found")

	// ErrAlertNotFound is returned when an alert is not found
	ErrAlertNotFound = errors.New("alert not found")

	// ErrDuplicateAlert is returned when an alert with the same hash already exists
	ErrDuplicateAlert = errors.New("alert already exists")

	// ErrCostAnalysisNotFound is returned when no cost analysis row matches
	ErrCostAnalysisNotFound = errors.New("cost analysis not found")
)

// pqUniqueViolation is the SQLSTATE for unique_violation.
const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}
