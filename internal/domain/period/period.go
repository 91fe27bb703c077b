// Package period computes the calendar windows used to query the CRM: the
// selected month and the trailing history window before it.
package period

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the date literal format accepted by SOQL.
const DateLayout = "2006-01-02"

// DefaultHistoryMonths is the length of the historic coverage window.
const DefaultHistoryMonths = 6

// Sentinel errors for period computation.
var (
	ErrInvalidMonth  = errors.New("month must be between 1 and 12")
	ErrInvalidWindow = errors.New("history window must span at least one month")
)

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

// StartDate renders the first day as YYYY-MM-DD.
func (r Range) StartDate() string { return r.Start.Format(DateLayout) }

// EndDate renders the last day as YYYY-MM-DD.
func (r Range) EndDate() string { return r.End.Format(DateLayout) }

// String renders the range as "start to end".
func (r Range) String() string {
	return r.StartDate() + " to " + r.EndDate()
}

// MonthRange returns the first and last day of the given month.
func MonthRange(year int, month time.Month) (Range, error) {
	if month < time.January || month > time.December {
		return Range{}, fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the next month normalizes to the last day of this one.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return Range{Start: first, End: last}, nil
}

// ShiftMonths moves (year, month) by delta months, rolling the year over.
func ShiftMonths(year int, month time.Month, delta int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + delta
	y := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		y--
	}
	return y, time.Month(m + 1)
}

// HistoricWindow returns the window of the given number of whole months that
// ends on the last day of the month before (year, month).
func HistoricWindow(year int, month time.Month, months int) (Range, error) {
	if months < 1 {
		return Range{}, ErrInvalidWindow
	}
	if month < time.January || month > time.December {
		return Range{}, fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}

	sy, sm := year, month
	for i := 0; i < months; i++ {
		sy, sm = ShiftMonths(sy, sm, -1)
	}
	start, err := MonthRange(sy, sm)
	if err != nil {
		return Range{}, err
	}

	ey, em := ShiftMonths(year, month, -1)
	end, err := MonthRange(ey, em)
	if err != nil {
		return Range{}, err
	}

	return Range{Start: start.Start, End: end.End}, nil
}

// Clamp coerces a month number into 1..12.
func Clamp(month int) time.Month {
	switch {
	case month < 1:
		return time.January
	case month > 12:
		return time.December
	default:
		return time.Month(month)
	}
}
