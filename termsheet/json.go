package termsheet

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/meenmo/autocallpricer/calendar"
	"github.com/meenmo/autocallpricer/daycount"
)

// dateLayout is the wire format's date layout, matching spec §6's examples.
const dateLayout = "2006-01-02"

// wire* structs mirror the JSON shape of spec §6 verbatim (snake_case
// tags). They exist only to decode untyped wire input into the tagged
// domain types of types.go; callers never see them.

type wireTermSheet struct {
	Meta          wireMeta          `json:"meta"`
	Underlyings   []wireUnderlying  `json:"underlyings"`
	DiscountCurve wireDiscountCurve `json:"discount_curve"`
	Correlation   wireCorrelation   `json:"correlation"`
	Schedules     wireSchedule      `json:"schedules"`
	KIBarrier     wireKIBarrier     `json:"ki_barrier"`
	Payoff        wirePayoff        `json:"payoff"`
}

type wireMeta struct {
	ProductID           string  `json:"product_id"`
	Currency            string  `json:"currency"`
	Notional            float64 `json:"notional"`
	TradeDate           string  `json:"trade_date"`
	ValuationDate       string  `json:"valuation_date"`
	SettlementDate      string  `json:"settlement_date"`
	MaturityDate        string  `json:"maturity_date"`
	MaturityPaymentDate string  `json:"maturity_payment_date"`
	DayCount            string  `json:"day_count"`
	Calendar            string  `json:"calendar"`
}

type wireUnderlying struct {
	ID            string              `json:"id"`
	Spot          float64             `json:"spot"`
	Currency      string              `json:"currency"`
	DividendModel wireDividendModel   `json:"dividend_model"`
	VolModel      wireVolModel        `json:"vol_model"`
}

type wireDividendModel struct {
	Type            string              `json:"type"`
	ContinuousYield float64             `json:"continuous_yield"`
	Dividends       []wireDiscreteDiv   `json:"dividends"`
}

type wireDiscreteDiv struct {
	ExDate string  `json:"ex_date"`
	Amount float64 `json:"amount"`
}

type wireVolModel struct {
	Type    string             `json:"type"`
	FlatVol float64            `json:"flat_vol"`
	Points  map[string]float64 `json:"points"`
	V0      float64            `json:"v0"`
	Theta   float64            `json:"theta"`
	Kappa   float64            `json:"kappa"`
	Xi      float64            `json:"xi"`
	Rho     float64            `json:"rho"`
}

type wireDiscountCurve struct {
	FlatRate  *float64           `json:"flat_rate"`
	Piecewise map[string]float64 `json:"piecewise"`
}

type wireCorrelation struct {
	Pairwise map[string]float64 `json:"pairwise"`
}

type wireSchedule struct {
	ObservationDates []string  `json:"observation_dates"`
	PaymentDates     []string  `json:"payment_dates"`
	AutocallLevels   []float64 `json:"autocall_levels"`
	CouponBarriers   []float64 `json:"coupon_barriers"`
	CouponRates      []float64 `json:"coupon_rates"`
}

type wireKIBarrier struct {
	Level      float64 `json:"level"`
	Monitoring string  `json:"monitoring"`
}

type wirePayoff struct {
	WorstOf              bool    `json:"worst_of"`
	CouponMemory          bool    `json:"coupon_memory"`
	Settlement            string  `json:"settlement"`
	RedemptionIfAutocall float64 `json:"redemption_if_autocall"`
	RedemptionIfNoKI     float64 `json:"redemption_if_no_ki"`
	RedemptionIfKI       string  `json:"redemption_if_ki"`
	KIRedemptionFloor    float64 `json:"ki_redemption_floor"`
}

// Parse decodes the JSON wire format of spec §6 into a validated,
// immutable TermSheet. Unknown keys are rejected. Any warnings produced
// during validation (e.g. a near-PSD correlation projection) are returned
// alongside the term sheet; they never cause Parse to fail.
func Parse(data []byte) (TermSheet, []string, error) {
	var w wireTermSheet
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return TermSheet{}, nil, fmt.Errorf("termsheet.Parse: decode: %w", err)
	}

	ts, err := fromWire(w)
	if err != nil {
		return TermSheet{}, nil, err
	}

	warnings, err := Validate(ts)
	if err != nil {
		return TermSheet{}, warnings, err
	}
	return ts, warnings, nil
}

func parseDate(op, field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %s %q: %w", op, field, s, err)
	}
	return t, nil
}

func fromWire(w wireTermSheet) (TermSheet, error) {
	const op = "termsheet.Parse"

	var ts TermSheet
	var err error

	ts.Meta.ProductID = w.Meta.ProductID
	ts.Meta.Currency = w.Meta.Currency
	ts.Meta.Notional = w.Meta.Notional
	if ts.Meta.TradeDate, err = parseDate(op, "trade_date", w.Meta.TradeDate); err != nil {
		return TermSheet{}, err
	}
	if ts.Meta.ValuationDate, err = parseDate(op, "valuation_date", w.Meta.ValuationDate); err != nil {
		return TermSheet{}, err
	}
	if ts.Meta.SettlementDate, err = parseDate(op, "settlement_date", w.Meta.SettlementDate); err != nil {
		return TermSheet{}, err
	}
	if ts.Meta.MaturityDate, err = parseDate(op, "maturity_date", w.Meta.MaturityDate); err != nil {
		return TermSheet{}, err
	}
	if ts.Meta.MaturityPaymentDate, err = parseDate(op, "maturity_payment_date", w.Meta.MaturityPaymentDate); err != nil {
		return TermSheet{}, err
	}
	switch daycount.Convention(w.Meta.DayCount) {
	case daycount.ACT365F, daycount.ACT360, daycount.Thirty360, "":
		ts.Meta.DayCount = daycount.Convention(w.Meta.DayCount)
	default:
		return TermSheet{}, fmt.Errorf("%s: meta.day_count: unknown %q", op, w.Meta.DayCount)
	}
	switch calendar.CalendarID(w.Meta.Calendar) {
	case calendar.NONE, calendar.TARGET, calendar.FD, "":
		ts.Meta.Calendar = calendar.CalendarID(w.Meta.Calendar)
	default:
		return TermSheet{}, fmt.Errorf("%s: meta.calendar: unknown %q", op, w.Meta.Calendar)
	}

	ts.Underlyings = make([]Underlying, len(w.Underlyings))
	for i, wu := range w.Underlyings {
		u := Underlying{ID: wu.ID, Spot: wu.Spot, Currency: wu.Currency}

		switch wu.DividendModel.Type {
		case "continuous", "":
			u.DividendModel = DividendModel{Kind: DivContinuous, ContinuousYield: wu.DividendModel.ContinuousYield}
		case "discrete":
			divs := make([]DiscreteDividend, len(wu.DividendModel.Dividends))
			for j, d := range wu.DividendModel.Dividends {
				dt, derr := parseDate(op, "dividend_model.dividends[].ex_date", d.ExDate)
				if derr != nil {
					return TermSheet{}, derr
				}
				divs[j] = DiscreteDividend{ExDate: dt, Amount: d.Amount}
			}
			u.DividendModel = DividendModel{Kind: DivDiscrete, Discrete: divs}
		default:
			return TermSheet{}, fmt.Errorf("%s: underlyings[%d].dividend_model.type: unknown %q", op, i, wu.DividendModel.Type)
		}

		switch wu.VolModel.Type {
		case "flat", "":
			u.VolModel = VolModel{Kind: VolFlat, FlatVol: wu.VolModel.FlatVol}
		case "piecewise":
			dates := make([]time.Time, 0, len(wu.VolModel.Points))
			for k := range wu.VolModel.Points {
				dt, derr := parseDate(op, "vol_model.points key", k)
				if derr != nil {
					return TermSheet{}, derr
				}
				dates = append(dates, dt)
			}
			sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })
			vols := make([]float64, len(dates))
			for idx, dt := range dates {
				vols[idx] = wu.VolModel.Points[dt.Format(dateLayout)]
			}
			u.VolModel = VolModel{Kind: VolPiecewise, Dates: dates, Vols: vols}
		case "lsv":
			u.VolModel = VolModel{
				Kind:  VolLSV,
				V0:    wu.VolModel.V0,
				Theta: wu.VolModel.Theta,
				Kappa: wu.VolModel.Kappa,
				Xi:    wu.VolModel.Xi,
				RhoV:  wu.VolModel.Rho,
			}
		default:
			return TermSheet{}, fmt.Errorf("%s: underlyings[%d].vol_model.type: unknown %q", op, i, wu.VolModel.Type)
		}

		ts.Underlyings[i] = u
	}

	if w.DiscountCurve.FlatRate != nil {
		ts.DiscountCurve = DiscountCurve{Kind: CurveFlat, FlatRate: *w.DiscountCurve.FlatRate}
	} else if len(w.DiscountCurve.Piecewise) > 0 {
		dates := make([]time.Time, 0, len(w.DiscountCurve.Piecewise))
		for k := range w.DiscountCurve.Piecewise {
			dt, derr := parseDate(op, "discount_curve.piecewise key", k)
			if derr != nil {
				return TermSheet{}, derr
			}
			dates = append(dates, dt)
		}
		sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })
		rates := make([]float64, len(dates))
		for idx, dt := range dates {
			rates[idx] = w.DiscountCurve.Piecewise[dt.Format(dateLayout)]
		}
		ts.DiscountCurve = DiscountCurve{Kind: CurvePiecewise, Dates: dates, Rates: rates}
	} else {
		return TermSheet{}, fmt.Errorf("%s: discount_curve: neither flat_rate nor piecewise set", op)
	}

	ts.Correlation.Pairwise = make(map[AssetPair]float64, len(w.Correlation.Pairwise))
	for k, v := range w.Correlation.Pairwise {
		a, b, perr := splitPairKey(k)
		if perr != nil {
			return TermSheet{}, fmt.Errorf("%s: correlation.pairwise key %q: %w", op, k, perr)
		}
		ts.Correlation.Pairwise[AssetPair{A: a, B: b}] = v
	}

	n := len(w.Schedules.ObservationDates)
	ts.Schedule.ObservationDates = make([]time.Time, n)
	for i, s := range w.Schedules.ObservationDates {
		if ts.Schedule.ObservationDates[i], err = parseDate(op, "schedules.observation_dates[]", s); err != nil {
			return TermSheet{}, err
		}
	}
	ts.Schedule.PaymentDates = make([]time.Time, len(w.Schedules.PaymentDates))
	for i, s := range w.Schedules.PaymentDates {
		if ts.Schedule.PaymentDates[i], err = parseDate(op, "schedules.payment_dates[]", s); err != nil {
			return TermSheet{}, err
		}
	}
	ts.Schedule.AutocallLevels = w.Schedules.AutocallLevels
	ts.Schedule.CouponBarriers = w.Schedules.CouponBarriers
	ts.Schedule.CouponRates = w.Schedules.CouponRates

	ts.KIBarrier.Level = w.KIBarrier.Level
	switch w.KIBarrier.Monitoring {
	case "continuous":
		ts.KIBarrier.Monitoring = KIContinuous
	case "discrete-at-observations", "discrete", "":
		ts.KIBarrier.Monitoring = KIDiscreteAtObservations
	default:
		return TermSheet{}, fmt.Errorf("%s: ki_barrier.monitoring: unknown %q", op, w.KIBarrier.Monitoring)
	}

	ts.Payoff.WorstOf = w.Payoff.WorstOf
	ts.Payoff.CouponMemory = w.Payoff.CouponMemory
	switch w.Payoff.Settlement {
	case "cash", "":
		ts.Payoff.Settlement = SettlementCash
	case "physical":
		ts.Payoff.Settlement = SettlementPhysical
	default:
		return TermSheet{}, fmt.Errorf("%s: payoff.settlement: unknown %q", op, w.Payoff.Settlement)
	}
	ts.Payoff.RedemptionIfAutocall = w.Payoff.RedemptionIfAutocall
	ts.Payoff.RedemptionIfNoKI = w.Payoff.RedemptionIfNoKI
	switch w.Payoff.RedemptionIfKI {
	case "worst_performance", "":
		ts.Payoff.RedemptionIfKI = KIRedemptionWorstPerformance
	case "par":
		ts.Payoff.RedemptionIfKI = KIRedemptionPar
	case "performance":
		ts.Payoff.RedemptionIfKI = KIRedemptionPerformance
	default:
		return TermSheet{}, fmt.Errorf("%s: payoff.redemption_if_ki: unknown %q", op, w.Payoff.RedemptionIfKI)
	}
	ts.Payoff.KIRedemptionFloor = w.Payoff.KIRedemptionFloor

	// Payment dates settle on a good business day under the trade's
	// calendar (Modified Following); observation/fixing dates are left
	// exactly as supplied.
	if !ts.Meta.MaturityPaymentDate.IsZero() {
		ts.Meta.MaturityPaymentDate = calendar.Adjust(ts.Meta.Calendar, ts.Meta.MaturityPaymentDate)
	}
	for i, d := range ts.Schedule.PaymentDates {
		ts.Schedule.PaymentDates[i] = calendar.Adjust(ts.Meta.Calendar, d)
	}

	return ts, nil
}

// splitPairKey splits a "A,B" correlation key into its two asset ids.
func splitPairKey(k string) (string, string, error) {
	for i := 0; i < len(k); i++ {
		if k[i] == ',' {
			return k[:i], k[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("expected \"assetA,assetB\"")
}
