package analysis

import (
	"fmt"
	"time"

	"sentinel/internal/models"
)

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodRange returns the half-open range [start, end) covered by an analysis
// of period ending on date, and its length in days. Weekly is the trailing
// seven days including date; monthly is the calendar month to date.
func PeriodRange(date time.Time, period models.PeriodType) (start, end time.Time, days int, err error) {
	day := Day(date)
	end = day.AddDate(0, 0, 1)

	switch period {
	case models.PeriodDaily:
		start = day
	case models.PeriodWeekly:
		start = day.AddDate(0, 0, -6)
	case models.PeriodMonthly:
		start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}, time.Time{}, 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	days = int(end.Sub(start).Hours() / 24)
	return start, end, days, nil
}
