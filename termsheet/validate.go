package termsheet

import (
	"fmt"

	"github.com/meenmo/autocallpricer/calendar"
	"github.com/meenmo/autocallpricer/config"
	"github.com/meenmo/autocallpricer/correlation"
	"github.com/meenmo/autocallpricer/daycount"
	"github.com/meenmo/autocallpricer/errs"
)

// Validate checks every invariant of spec §3 and returns any warnings
// produced along the way (e.g. a near-PSD correlation projection). It
// never mutates ts.
func Validate(ts TermSheet) ([]string, error) {
	const op = "termsheet.Validate"
	var warnings []string

	if len(ts.Underlyings) == 0 {
		return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("no underlyings"))
	}
	if ts.Meta.Notional <= 0 {
		return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("notional must be positive"))
	}
	if ts.Meta.ValuationDate.IsZero() {
		return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("valuation_date is required"))
	}
	if ts.Meta.MaturityDate.Before(ts.Meta.ValuationDate) {
		return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("maturity_date precedes valuation_date"))
	}
	if ts.Meta.MaturityPaymentDate.Before(ts.Meta.MaturityDate) {
		return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("maturity_payment_date precedes maturity_date"))
	}

	n := ts.Schedule.Len()
	if len(ts.Schedule.PaymentDates) != n || len(ts.Schedule.AutocallLevels) != n ||
		len(ts.Schedule.CouponBarriers) != n || len(ts.Schedule.CouponRates) != n {
		return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf(
			"schedule arrays have mismatched lengths: observation=%d payment=%d autocall=%d barrier=%d rate=%d",
			n, len(ts.Schedule.PaymentDates), len(ts.Schedule.AutocallLevels),
			len(ts.Schedule.CouponBarriers), len(ts.Schedule.CouponRates)))
	}

	var prevObs = ts.Meta.ValuationDate
	for i := 0; i < n; i++ {
		obs := ts.Schedule.ObservationDates[i]
		pay := ts.Schedule.PaymentDates[i]
		if obs.Before(ts.Meta.ValuationDate) {
			return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("observation_dates[%d] precedes valuation_date", i))
		}
		if i > 0 && !obs.After(prevObs) {
			return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("observation_dates[%d] is not strictly increasing", i))
		}
		if pay.Before(obs) {
			return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("payment_dates[%d] precedes observation_dates[%d]", i, i))
		}
		prevObs = obs
	}

	for i, u := range ts.Underlyings {
		if u.Spot <= 0 {
			return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("underlyings[%d].spot must be positive", i))
		}
		switch u.DividendModel.Kind {
		case DivContinuous:
			if u.DividendModel.ContinuousYield < 0 {
				return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("underlyings[%d] dividend yield < 0", i))
			}
		case DivDiscrete:
			for j, d := range u.DividendModel.Discrete {
				if d.Amount < 0 {
					return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("underlyings[%d].dividends[%d].amount < 0", i, j))
				}
				if !d.ExDate.After(ts.Meta.ValuationDate) {
					return nil, errs.New(errs.InvalidDate, op, fmt.Errorf("underlyings[%d].dividends[%d].ex_date must be after valuation_date", i, j))
				}
			}
		}
		switch u.VolModel.Kind {
		case VolFlat:
			if u.VolModel.FlatVol <= 0 {
				return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("underlyings[%d] flat vol must be positive", i))
			}
		case VolPiecewise:
			if len(u.VolModel.Vols) == 0 {
				return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("underlyings[%d] piecewise vol has no points", i))
			}
			for _, v := range u.VolModel.Vols {
				if v <= 0 {
					return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("underlyings[%d] piecewise vol must be positive", i))
				}
			}
		case VolLSV:
			if u.VolModel.V0 <= 0 || u.VolModel.Theta <= 0 || u.VolModel.Kappa <= 0 || u.VolModel.Xi <= 0 {
				return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("underlyings[%d] LSV parameters must be positive", i))
			}
			if u.VolModel.RhoV < -1 || u.VolModel.RhoV > 1 {
				return nil, errs.New(errs.InvalidSchema, op, fmt.Errorf("underlyings[%d] LSV rho out of [-1,1]", i))
			}
		}
	}

	if len(ts.Underlyings) > 1 {
		ids := make([]string, len(ts.Underlyings))
		for i, u := range ts.Underlyings {
			ids[i] = u.ID
		}
		cfg := config.Get()
		m := correlation.Build(ids, ts.Correlation.Get)
		_, projected, err := correlation.Factorize(m, cfg.CorrelationEigenFloor, cfg.CorrelationPSDTolerance)
		if err != nil {
			return warnings, errs.New(errs.InvalidSchema, op, fmt.Errorf("correlation matrix: %w", err))
		}
		if projected {
			warnings = append(warnings, "correlation matrix was not PSD; projected to nearest correlation matrix via eigenvalue clipping")
		}
	}

	if ts.KIBarrier.Level <= 0 {
		return warnings, errs.New(errs.InvalidSchema, op, fmt.Errorf("ki_barrier.level must be positive"))
	}

	switch ts.Meta.DayCount {
	case daycount.ACT365F, daycount.ACT360, daycount.Thirty360, "":
	default:
		return warnings, errs.New(errs.InvalidSchema, op, fmt.Errorf("meta.day_count: unknown convention %q", ts.Meta.DayCount))
	}
	switch ts.Meta.Calendar {
	case calendar.NONE, calendar.TARGET, calendar.FD, "":
	default:
		return warnings, errs.New(errs.InvalidSchema, op, fmt.Errorf("meta.calendar: unknown calendar %q", ts.Meta.Calendar))
	}

	return warnings, nil
}

// ValidateRun checks a RunConfig's invariants that depend only on the run
// parameters, not on the term sheet (spec §4.3: "P required to be even"
// when antithetic pairing is enabled, since an odd path out has no partner).
func ValidateRun(run RunConfig) error {
	const op = "termsheet.ValidateRun"
	if run.Antithetic && run.Paths%2 != 0 {
		return errs.New(errs.InvalidSchema, op, fmt.Errorf("paths must be even when antithetic is enabled, got %d", run.Paths))
	}
	return nil
}
