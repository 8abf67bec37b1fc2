// Package discount evaluates DF(t0, t) from a flat or piecewise term-sheet
// rate (spec §2, §4.1), grounded on the teacher's swap/curve package but
// reduced to direct evaluation: the term sheet supplies the curve, there is
// no market-quote bootstrap here.
package discount

import (
	"math"
	"time"

	"github.com/meenmo/autocallpricer/daycount"
	"github.com/meenmo/autocallpricer/termsheet"
)

// Curve evaluates discount factors and instantaneous forward rates from a
// piecewise-constant short-rate term structure (a flat curve is the
// single-segment special case).
type Curve struct {
	valuationDate time.Time
	dates         []time.Time // rates[i] applies on [dates[i], dates[i+1]), the last rate beyond the last date; dates[0] == valuationDate
	rates         []float64
	dayCount      daycount.Convention
}

// FromTermSheet builds a Curve from the term sheet's declarative
// DiscountCurve and valuation date, evaluating year fractions under conv.
func FromTermSheet(dc termsheet.DiscountCurve, valuationDate time.Time, conv daycount.Convention) *Curve {
	if dc.Kind == termsheet.CurveFlat {
		return &Curve{
			valuationDate: valuationDate,
			dates:         []time.Time{valuationDate},
			rates:         []float64{dc.FlatRate},
			dayCount:      conv,
		}
	}
	dates := make([]time.Time, 0, len(dc.Dates)+1)
	rates := make([]float64, 0, len(dc.Rates)+1)
	if len(dc.Dates) == 0 || dc.Dates[0].After(valuationDate) {
		dates = append(dates, valuationDate)
		rates = append(rates, dc.Rates[0])
	}
	dates = append(dates, dc.Dates...)
	rates = append(rates, dc.Rates...)
	return &Curve{valuationDate: valuationDate, dates: dates, rates: rates, dayCount: conv}
}

// rateAt returns the piecewise-constant short rate effective at time t.
func (c *Curve) rateAt(t time.Time) float64 {
	idx := 0
	for i, d := range c.dates {
		if !d.After(t) {
			idx = i
		} else {
			break
		}
	}
	return c.rates[idx]
}

// integralTo returns ∫_{valuationDate}^{t} r(s) ds in year fractions
// (under the curve's day-count convention), accumulating across
// rate-segment boundaries.
func (c *Curve) integralTo(t time.Time) float64 {
	if !t.After(c.valuationDate) {
		return 0
	}
	var total float64
	cursor := c.valuationDate
	for i, d := range c.dates {
		segEnd := d
		if i == 0 {
			continue // dates[0] == valuationDate, a zero-width boundary
		}
		if !segEnd.Before(t) {
			total += c.rates[i-1] * daycount.YearFraction(cursor, t, c.dayCount)
			return total
		}
		total += c.rates[i-1] * daycount.YearFraction(cursor, segEnd, c.dayCount)
		cursor = segEnd
	}
	// Beyond the last provided boundary: extend the final segment's rate.
	total += c.rates[len(c.rates)-1] * daycount.YearFraction(cursor, t, c.dayCount)
	return total
}

// DF returns the discount factor from the valuation date to t.
func (c *Curve) DF(t time.Time) float64 {
	return math.Exp(-c.integralTo(t))
}

// DFFrom returns the discount factor from t0 to t1, both measured from the
// curve's valuation date (DF(t0,t1) = DF(0,t1)/DF(0,t0)).
func (c *Curve) DFFrom(t0, t1 time.Time) float64 {
	return c.DF(t1) / c.DF(t0)
}

// ForwardRate returns the average short rate over (t0, t1),
// -ln(DFFrom(t0,t1))/yearFraction(t0,t1), used as the drift-relevant rate r
// in spec §4.4.b. Inside a single rate segment this is that segment's rate;
// when the year fraction is not positive it returns the rate effective at t0.
func (c *Curve) ForwardRate(t0, t1 time.Time) float64 {
	df := c.DFFrom(t0, t1)
	yf := daycount.YearFraction(t0, t1, c.dayCount)
	if yf <= 0 {
		return c.rateAt(t0)
	}
	return -math.Log(df) / yf
}

// BumpParallel returns a new Curve with every rate segment shifted by a
// flat amount (spec §4.7: the rho bump is a flat 1bp shift).
func (c *Curve) BumpParallel(delta float64) *Curve {
	rates := make([]float64, len(c.rates))
	for i, r := range c.rates {
		rates[i] = r + delta
	}
	dates := make([]time.Time, len(c.dates))
	copy(dates, c.dates)
	return &Curve{valuationDate: c.valuationDate, dates: dates, rates: rates, dayCount: c.dayCount}
}
