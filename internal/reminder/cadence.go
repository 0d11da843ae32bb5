// Package reminder owns recurring reminder rules: cadence arithmetic, the per-rule
// state machine, and the tick-driven scheduler that turns due rules into jobs.
package reminder

import (
	"fmt"
	"time"

	"github.com/steveyegge/vitality/internal/types"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// Occurrence returns the n-th scheduled instant (n >= 0) of a rule anchored at anchor.
// Every occurrence is computed from the anchor so there is no cumulative drift;
// monthly occurrences clamp the day to the last day of the target month.
func Occurrence(anchor time.Time, f types.Frequency, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, fmt.Errorf("occurrence index must be non-negative (got %d)", n)
	}
	switch f {
	case types.FrequencyDaily:
		return anchor.Add(time.Duration(n) * day), nil
	case types.FrequencyWeekly:
		return anchor.Add(time.Duration(n) * week), nil
	case types.FrequencyMonthly:
		return addMonths(anchor, n), nil
	}
	return time.Time{}, types.NewValidationError("frequency", "must be one of daily, weekly, monthly (got %q)", string(f))
}

// LatestAtOrBefore returns the latest occurrence <= t, or false when t precedes the anchor
func LatestAtOrBefore(anchor time.Time, f types.Frequency, t time.Time) (time.Time, bool, error) {
	if t.Before(anchor) {
		return time.Time{}, false, nil
	}
	n, err := indexAtOrBefore(anchor, f, t)
	if err != nil {
		return time.Time{}, false, err
	}
	occ, err := Occurrence(anchor, f, n)
	if err != nil {
		return time.Time{}, false, err
	}
	return occ, true, nil
}

// NextAfter returns the first occurrence strictly after t
func NextAfter(anchor time.Time, f types.Frequency, t time.Time) (time.Time, error) {
	if t.Before(anchor) {
		if !f.IsValid() {
			return time.Time{}, types.NewValidationError("frequency", "must be one of daily, weekly, monthly (got %q)", string(f))
		}
		return anchor, nil
	}
	n, err := indexAtOrBefore(anchor, f, t)
	if err != nil {
		return time.Time{}, err
	}
	return Occurrence(anchor, f, n+1)
}

// indexAtOrBefore returns the largest n with Occurrence(n) <= t. Requires t >= anchor.
func indexAtOrBefore(anchor time.Time, f types.Frequency, t time.Time) (int, error) {
	switch f {
	case types.FrequencyDaily:
		return int(t.Sub(anchor) / day), nil
	case types.FrequencyWeekly:
		return int(t.Sub(anchor) / week), nil
	case types.FrequencyMonthly:
		local := t.In(anchor.Location())
		n := (local.Year()-anchor.Year())*12 + int(local.Month()-anchor.Month())
		if n < 0 {
			n = 0
		}
		for n > 0 && addMonths(anchor, n).After(t) {
			n--
		}
		for !addMonths(anchor, n+1).After(t) {
			n++
		}
		return n, nil
	}
	return 0, types.NewValidationError("frequency", "must be one of daily, weekly, monthly (got %q)", string(f))
}

func addMonths(anchor time.Time, n int) time.Time {
	y, m, d := anchor.Date()
	hh, mm, ss := anchor.Clock()
	first := time.Date(y, m+time.Month(n), 1, hh, mm, ss, anchor.Nanosecond(), anchor.Location())
	if last := daysIn(first.Year(), first.Month(), anchor.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, anchor.Nanosecond(), anchor.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
