// Package daycount maps calendar dates to year fractions, the way the
// teacher's utils package does for swap/bond accrual, generalized to the
// conventions this engine needs. It does not enumerate or count business
// days; business-day rules live in the calendar package.
package daycount

import (
	"sort"
	"time"
)

// Convention names a day-count basis.
type Convention string

const (
	// ACT365F is Actual/365 Fixed, the engine's default (spec §2).
	ACT365F Convention = "ACT/365F"
	// ACT360 is Actual/360.
	ACT360 Convention = "ACT/360"
	// Thirty360 is the 30/360 bond-basis convention.
	Thirty360 Convention = "30/360"
)

// YearFraction computes the year fraction between two dates under the given
// convention. An empty convention defaults to ACT/365F.
func YearFraction(start, end time.Time, convention Convention) float64 {
	switch convention {
	case ACT360:
		return days(start, end) / 360.0
	case Thirty360:
		return thirty360(start, end) / 360.0
	case ACT365F, "":
		return days(start, end) / 365.0
	default:
		return days(start, end) / 365.0
	}
}

func days(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}

// thirty360 implements the bond-basis 30/360 day count.
func thirty360(start, end time.Time) float64 {
	d1, d2 := start.Day(), end.Day()
	m1, m2 := int(start.Month()), int(end.Month())
	y1, y2 := start.Year(), end.Year()

	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 && d1 == 30 {
		d2 = 30
	}

	return float64(360*(y2-y1) + 30*(m2-m1) + (d2 - d1))
}

// SortDates sorts a slice of time.Time in ascending order in place.
func SortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
}
