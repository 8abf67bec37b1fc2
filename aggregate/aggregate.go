// Package aggregate rolls per-path cashflows into the result summary, PV
// decomposition, and cashflow table of spec §4.6.
package aggregate

import (
	"math"
	"time"

	"github.com/meenmo/autocallpricer/discount"
	"github.com/meenmo/autocallpricer/event"
	"github.com/meenmo/autocallpricer/termsheet"
)

const dateLayout = "2006-01-02"

// Summary holds the scalar PV result of spec §6's `summary` block.
type Summary struct {
	PV                  float64 `json:"pv"`
	PVStdError          float64 `json:"pv_std_error"`
	PVPctNotional       float64 `json:"pv_pct_notional"`
	AutocallProbability float64 `json:"autocall_probability"`
	KIProbability       float64 `json:"ki_probability"`
	ExpectedCouponCount float64 `json:"expected_coupon_count"`
	ExpectedLifeYears   float64 `json:"expected_life_years"`
	NumPaths            int     `json:"num_paths"`
}

// Decomposition splits total PV by cashflow category (spec §4.6).
type Decomposition struct {
	CouponPV             float64 `json:"coupon_pv"`
	RedemptionPV         float64 `json:"redemption_pv"`
	AutocallRedemptionPV float64 `json:"autocall_redemption_pv"`
	MaturityRedemptionPV float64 `json:"maturity_redemption_pv"`
	TotalPV              float64 `json:"total_pv"`
}

// CashflowRow is one row of the scheduled-payment-date table (spec §4.6,
// §6). PaymentIndex addresses the schedule's payment dates, or len(schedule)
// for the maturity payment.
type CashflowRow struct {
	PaymentIndex   int                    `json:"payment_index"`
	Category       event.CashflowCategory `json:"-"`
	CategoryName   string                 `json:"type"`
	Date           string                 `json:"date"`
	PaymentDate    string                 `json:"payment_date"`
	Probability    float64                `json:"probability"`
	ExpectedAmount float64                `json:"expected_amount"`
	DiscountFactor float64                `json:"discount_factor"`
	PVContribution float64                `json:"pv_contribution"`
}

// Result is the full aggregated output of one pricing run.
type Result struct {
	Summary       Summary         `json:"summary"`
	Decomposition Decomposition   `json:"decomposition"`
	Cashflows     []CashflowRow   `json:"cashflows"`
	// DegeneratePaths counts paths where a dividend jump was capped
	// against an asset's spot (spec §7).
	DegeneratePaths int `json:"degenerate_paths"`
}

// cashflowKey groups cashflow rows by (payment index, category) across
// every path.
type cashflowKey struct {
	paymentIndex int
	category     event.CashflowCategory
}

type cashflowAccumulator struct {
	count        int
	totalAmount  float64
	totalPV      float64
}

// Aggregate rolls every path's result into the final PV, decomposition, and
// cashflow table. Each cashflow is discounted with the curve's discount
// factor to the payment date of its PaymentIndex (len(schedule) means the
// maturity payment date), computed once per index.
func Aggregate(ts termsheet.TermSheet, curve *discount.Curve, paths []event.PathResult, degeneratePaths int) (Result, error) {
	n := len(paths)
	pvByPath := make([]float64, n)
	acc := make(map[cashflowKey]*cashflowAccumulator)

	var decomposition Decomposition
	var autocallCount, kiCount, couponCountSum int
	var lifeSum float64

	paymentDates := make([]float64, ts.Schedule.Len()+1)
	for i := 0; i <= ts.Schedule.Len(); i++ {
		paymentDates[i] = discountFactorFor(ts, curve, i)
	}

	for p, path := range paths {
		var pv float64
		for _, cf := range path.Cashflows {
			df := paymentDates[cf.PaymentIndex]
			contribution := cf.Amount * df
			pv += contribution

			switch cf.Category {
			case event.CategoryCoupon:
				decomposition.CouponPV += contribution
			case event.CategoryAutocallRedemption:
				decomposition.AutocallRedemptionPV += contribution
				decomposition.RedemptionPV += contribution
			case event.CategoryMaturityRedemption:
				decomposition.MaturityRedemptionPV += contribution
				decomposition.RedemptionPV += contribution
			}

			key := cashflowKey{paymentIndex: cf.PaymentIndex, category: cf.Category}
			a, ok := acc[key]
			if !ok {
				a = &cashflowAccumulator{}
				acc[key] = a
			}
			a.count++
			a.totalAmount += cf.Amount
			a.totalPV += contribution
		}
		pvByPath[p] = pv

		if path.Autocalled {
			autocallCount++
		}
		if path.KIHit {
			kiCount++
		}
		couponCountSum += path.CouponsPaid
		lifeSum += path.TLife
	}
	decomposition.TotalPV = decomposition.CouponPV + decomposition.RedemptionPV

	mean, stderr := meanAndStdError(pvByPath)

	rows := make([]CashflowRow, 0, len(acc))
	for key, a := range acc {
		obsDate, payDate := eventDatesFor(ts, key.paymentIndex)
		rows = append(rows, CashflowRow{
			PaymentIndex:   key.paymentIndex,
			Category:       key.category,
			CategoryName:   key.category.String(),
			Date:           obsDate.Format(dateLayout),
			PaymentDate:    payDate.Format(dateLayout),
			Probability:    float64(a.count) / float64(n),
			ExpectedAmount: a.totalAmount / float64(a.count),
			DiscountFactor: paymentDates[key.paymentIndex],
			PVContribution: a.totalPV / float64(n),
		})
	}

	summary := Summary{
		PV:                  mean,
		PVStdError:          stderr,
		AutocallProbability: float64(autocallCount) / float64(n),
		KIProbability:       float64(kiCount) / float64(n),
		ExpectedCouponCount: float64(couponCountSum) / float64(n),
		ExpectedLifeYears:   lifeSum / float64(n),
		NumPaths:            n,
	}
	if ts.Meta.Notional != 0 {
		summary.PVPctNotional = mean / ts.Meta.Notional
	}

	return Result{
		Summary:         summary,
		Decomposition:   decomposition,
		Cashflows:       rows,
		DegeneratePaths: degeneratePaths,
	}, nil
}

// discountFactorFor returns DF(valuation, payment_date_i), where i ==
// schedule length addresses the maturity payment date.
func discountFactorFor(ts termsheet.TermSheet, curve *discount.Curve, paymentIndex int) float64 {
	if paymentIndex == ts.Schedule.Len() {
		return curve.DF(ts.Meta.MaturityPaymentDate)
	}
	return curve.DF(ts.Schedule.PaymentDates[paymentIndex])
}

// eventDatesFor returns the observation and payment dates addressed by a
// PaymentIndex, with the schedule length addressing the maturity event.
func eventDatesFor(ts termsheet.TermSheet, paymentIndex int) (observation, payment time.Time) {
	if paymentIndex == ts.Schedule.Len() {
		return ts.Meta.MaturityDate, ts.Meta.MaturityPaymentDate
	}
	return ts.Schedule.ObservationDates[paymentIndex], ts.Schedule.PaymentDates[paymentIndex]
}

func meanAndStdError(x []float64) (mean, stderr float64) {
	n := len(x)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	variance := ss / float64(n-1)
	stderr = math.Sqrt(variance / float64(n))
	return mean, stderr
}
