// Package event runs the per-path autocall state machine (spec §4.5): a
// deterministic ALIVE → AUTOCALLED|MATURED transition over the schedule's
// observation dates, producing each path's realized cashflows.
package event

import "github.com/meenmo/autocallpricer/termsheet"

// CashflowCategory tags the kind of payment a cashflow entry represents.
type CashflowCategory int

const (
	CategoryCoupon CashflowCategory = iota
	CategoryAutocallRedemption
	CategoryMaturityRedemption
)

func (c CashflowCategory) String() string {
	switch c {
	case CategoryCoupon:
		return "coupon"
	case CategoryAutocallRedemption:
		return "autocall_redemption"
	case CategoryMaturityRedemption:
		return "maturity_redemption"
	default:
		return "unknown"
	}
}

// Cashflow is a single scheduled payment realized on one path.
type Cashflow struct {
	PaymentIndex int // index into the schedule's payment dates, or len(schedule) for the maturity payment
	Amount       float64
	Category     CashflowCategory
}

// PathResult is one path's full outcome: its realized cashflows plus the
// summary fields the aggregator needs (spec §4.5 "Per-path outputs").
type PathResult struct {
	Cashflows  []Cashflow
	Autocalled bool
	KIHit      bool
	// TLife is the year fraction, from valuation, of the date that ends the
	// path: the autocall observation date or the maturity date. Any lag to
	// the corresponding payment date is not included.
	TLife float64
	// CouponsPaid counts the coupon events actually paid on this path.
	CouponsPaid int
}

// PathPerformance supplies, for one path, the performance W_i at each
// observation index (the worst-of across assets, or the equal-weighted
// average when worst_of=false; the Worst* fields hold whichever applies),
// plus the discrete KI test input and the year fractions needed to record
// TLife.
type PathPerformance struct {
	// WorstAtObservation[i] is W_i, the worst-of performance at
	// observation index i.
	WorstAtObservation []float64
	// ContinuousKIHit is true if the path generator's Brownian-bridge test
	// fired at any point (only meaningful under continuous monitoring).
	ContinuousKIHit bool
	// ObservationYearFraction[i] is the year fraction from valuation of
	// observation i, for TLife bookkeeping.
	ObservationYearFraction []float64
	// MaturityYearFraction is the year fraction of the maturity date (not
	// of the maturity payment date).
	MaturityYearFraction float64
	// MaturityWorst is the worst-of performance evaluated at the maturity
	// date itself, used for the maturity redemption formula. It coincides
	// with WorstAtObservation[last] only when the final observation date
	// equals the maturity date.
	MaturityWorst float64
}

// Run evaluates one path's cashflows against the term sheet's schedule and
// payoff mechanics, following the exact ordering of spec §4.5: autocall
// check, then coupon check (which uses and resets memory), then discrete KI
// accrual.
func Run(ts termsheet.TermSheet, perf PathPerformance) PathResult {
	var result PathResult
	notional := ts.Meta.Notional
	memory := 0.0
	kiHit := ts.KIBarrier.Monitoring == termsheet.KIContinuous && perf.ContinuousKIHit
	discreteMonitoring := ts.KIBarrier.Monitoring == termsheet.KIDiscreteAtObservations

	m := ts.Schedule.Len()
	alive := true

	for i := 0; i < m && alive; i++ {
		w := perf.WorstAtObservation[i]

		// 2. Autocall check.
		if w >= ts.Schedule.AutocallLevels[i] {
			couponAmount := notional * ts.Schedule.CouponRates[i]
			if ts.Payoff.CouponMemory {
				couponAmount += notional * memory
			}
			result.Cashflows = append(result.Cashflows,
				Cashflow{PaymentIndex: i, Amount: notional * ts.Payoff.RedemptionIfAutocall, Category: CategoryAutocallRedemption},
				Cashflow{PaymentIndex: i, Amount: couponAmount, Category: CategoryCoupon},
			)
			result.CouponsPaid++
			result.Autocalled = true
			result.TLife = perf.ObservationYearFraction[i]
			alive = false
			break
		}

		// 3. Coupon check.
		if w >= ts.Schedule.CouponBarriers[i] {
			couponAmount := notional * ts.Schedule.CouponRates[i]
			if ts.Payoff.CouponMemory {
				couponAmount += notional * memory
			}
			result.Cashflows = append(result.Cashflows, Cashflow{PaymentIndex: i, Amount: couponAmount, Category: CategoryCoupon})
			result.CouponsPaid++
			memory = 0
		} else if ts.Payoff.CouponMemory {
			memory += ts.Schedule.CouponRates[i]
		}

		// 4. KI accrual, discrete monitoring only, after the coupon check
		// so a breach on the final observation never retroactively
		// forfeits that date's coupon.
		if discreteMonitoring && w <= ts.KIBarrier.Level {
			kiHit = true
		}
	}

	result.KIHit = kiHit

	if alive {
		var redemption float64
		if !kiHit {
			redemption = notional * ts.Payoff.RedemptionIfNoKI
		} else {
			wM := perf.MaturityWorst
			switch ts.Payoff.RedemptionIfKI {
			case termsheet.KIRedemptionPar:
				redemption = notional
			case termsheet.KIRedemptionPerformance:
				redemption = notional * wM
			default: // KIRedemptionWorstPerformance
				floor := notional * ts.Payoff.KIRedemptionFloor
				redemption = notional * wM
				if floor > redemption {
					redemption = floor
				}
			}
		}
		result.Cashflows = append(result.Cashflows, Cashflow{PaymentIndex: m, Amount: redemption, Category: CategoryMaturityRedemption})
		result.TLife = perf.MaturityYearFraction
	}

	return result
}
