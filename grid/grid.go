// Package grid builds the event-aligned time discretization the path
// generator and event engine share (spec §4.1): a strictly increasing
// sequence of year fractions from the valuation date, containing every
// observation, ex-dividend, and maturity event, optionally refined to a
// maximum step size.
package grid

import (
	"fmt"
	"time"

	"github.com/meenmo/autocallpricer/config"
	"github.com/meenmo/autocallpricer/daycount"
	"github.com/meenmo/autocallpricer/errs"
	"github.com/meenmo/autocallpricer/termsheet"
)

// Step is a single point on the simulation grid, with the metadata the
// path generator and event engine need to process it (spec §3
// SimulationGrid).
type Step struct {
	// T is the year fraction from the valuation date, under the term
	// sheet's effective day-count convention.
	T float64
	// Date is the calendar date this step represents.
	Date time.Time
	// DT is the year fraction since the previous step (0 for the t0 step).
	DT float64

	IsObservation    bool
	ObservationIndex int
	IsMaturity       bool
	IsExDividend     bool

	// DividendJumps maps underlying id to the total discrete dividend cash
	// amount with this step's date as ex-date (summed across multiple
	// entries landing on the same step, per spec §9(b)).
	DividendJumps map[string]float64

	// SigmaSqDt maps underlying id to σ²·dt effective over (prev, this]
	// step, for assets using a flat or piecewise vol model. LSV assets are
	// simulated via their own stochastic variance process and have no
	// entry here.
	SigmaSqDt map[string]float64
}

// Grid is the full simulation time discretization, Steps[0] always being
// t0 = 0 (the valuation date) with DT = 0 and no flags.
type Grid struct {
	ValuationDate time.Time
	Steps         []Step
}

type event struct {
	date             time.Time
	isObservation    bool
	observationIndex int
	isMaturity       bool
	dividendAsset    string
	dividendAmount   float64
	hasDividend      bool
}

// Build merges the term sheet's observation, ex-dividend, and maturity
// dates into a refined simulation grid. nStepsPerYear, if > 0, bounds the
// maximum step size to 1/nStepsPerYear by inserting additional uniformly
// spaced times inside each inter-event interval; 0 means no refinement
// beyond the events themselves.
func Build(ts termsheet.TermSheet, nStepsPerYear int) (*Grid, error) {
	const op = "grid.Build"
	val := ts.Meta.ValuationDate
	conv := ts.Meta.EffectiveDayCount(config.Get().DefaultDayCount)

	var events []event
	for i, d := range ts.Schedule.ObservationDates {
		if d.Before(val) {
			return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("observation_dates[%d] precedes valuation date", i))
		}
		events = append(events, event{date: d, isObservation: true, observationIndex: i})
	}
	if ts.Meta.MaturityDate.Before(val) {
		return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("maturity_date precedes valuation date"))
	}
	events = append(events, event{date: ts.Meta.MaturityDate, isMaturity: true})

	for _, u := range ts.Underlyings {
		if u.DividendModel.Kind != termsheet.DivDiscrete {
			continue
		}
		for _, d := range u.DividendModel.Discrete {
			if d.ExDate.Before(val) {
				return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("dividend ex_date for %s precedes valuation date", u.ID))
			}
			events = append(events, event{date: d.ExDate, dividendAsset: u.ID, dividendAmount: d.Amount, hasDividend: true})
		}
	}

	// Merge by exact date: group events sharing a date into one step.
	byDate := make(map[string]*Step)
	var dates []time.Time
	for _, e := range events {
		key := e.date.Format("2006-01-02")
		s, ok := byDate[key]
		if !ok {
			s = &Step{Date: e.date, DividendJumps: make(map[string]float64)}
			byDate[key] = s
			dates = append(dates, e.date)
		}
		if e.isObservation {
			s.IsObservation = true
			s.ObservationIndex = e.observationIndex
		}
		if e.isMaturity {
			s.IsMaturity = true
		}
		if e.hasDividend {
			s.IsExDividend = true
			s.DividendJumps[e.dividendAsset] += e.dividendAmount
		}
	}
	daycount.SortDates(dates)

	// Refine: insert synthetic intermediate dates so no gap between
	// consecutive grid dates (including t0) exceeds 1/nStepsPerYear.
	allDates := append([]time.Time{val}, dates...)
	if nStepsPerYear > 0 {
		maxStep := 1.0 / float64(nStepsPerYear)
		refined := []time.Time{allDates[0]}
		for i := 1; i < len(allDates); i++ {
			prev, next := allDates[i-1], allDates[i]
			gap := daycount.YearFraction(prev, next, conv)
			if gap > maxStep && gap > 0 {
				nSub := int(gap/maxStep) + 1
				dur := next.Sub(prev)
				for k := 1; k < nSub; k++ {
					frac := float64(k) / float64(nSub)
					refined = append(refined, prev.Add(time.Duration(float64(dur)*frac)))
				}
			}
			refined = append(refined, next)
		}
		allDates = refined
	}

	steps := make([]Step, 0, len(allDates))
	prev := val
	for i, d := range allDates {
		if i == 0 {
			steps = append(steps, Step{T: 0, Date: val, DT: 0, SigmaSqDt: sigmaSqDtForStep(ts, val, val, conv)})
			continue
		}
		key := d.Format("2006-01-02")
		base, hasEvent := byDate[key]
		st := Step{
			T:    daycount.YearFraction(val, d, conv),
			Date: d,
			DT:   daycount.YearFraction(prev, d, conv),
		}
		if hasEvent {
			st.IsObservation = base.IsObservation
			st.ObservationIndex = base.ObservationIndex
			st.IsMaturity = base.IsMaturity
			st.IsExDividend = base.IsExDividend
			st.DividendJumps = base.DividendJumps
		} else {
			st.DividendJumps = map[string]float64{}
		}
		st.SigmaSqDt = sigmaSqDtForStep(ts, prev, d, conv)
		steps = append(steps, st)
		prev = d
	}

	if err := checkMonotone(steps); err != nil {
		return nil, errs.New(errs.InvalidSchema, op, err)
	}

	return &Grid{ValuationDate: val, Steps: steps}, nil
}

// sigmaSqDtForStep derives, for each flat/piecewise-vol asset, σ²·dt over
// (prev, cur] by looking up the vol term structure at the step midpoint
// (spec §4.1).
func sigmaSqDtForStep(ts termsheet.TermSheet, prev, cur time.Time, conv daycount.Convention) map[string]float64 {
	out := make(map[string]float64, len(ts.Underlyings))
	dt := daycount.YearFraction(prev, cur, conv)
	mid := prev.Add(cur.Sub(prev) / 2)
	for _, u := range ts.Underlyings {
		if u.VolModel.Kind == termsheet.VolLSV {
			continue
		}
		sigma := u.VolModel.VolAt(mid)
		out[u.ID] = sigma * sigma * dt
	}
	return out
}

func checkMonotone(steps []Step) error {
	for i := 1; i < len(steps); i++ {
		if steps[i].T <= steps[i-1].T {
			return fmt.Errorf("grid is not strictly increasing at step %d", i)
		}
	}
	return nil
}
