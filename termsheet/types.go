// Package termsheet defines the immutable, validated input data model for
// the pricing engine: the declarative term sheet and the run/bump
// configuration that parameterize a simulation (spec §3).
//
// The wire shape (JSON) lives in json.go; this file holds the tagged-variant
// domain types a validated TermSheet is built from, in the style of the
// teacher's swap/types.go interfaces and plain structs.
package termsheet

import (
	"time"

	"github.com/meenmo/autocallpricer/calendar"
	"github.com/meenmo/autocallpricer/daycount"
)

// VolModelKind tags the variant of Underlying.VolModel.
type VolModelKind int

const (
	// VolFlat is a single constant volatility for the life of the trade.
	VolFlat VolModelKind = iota
	// VolPiecewise is a term structure of volatility, constant between
	// consecutive dates.
	VolPiecewise
	// VolLSV is a Heston-style local-stochastic-volatility model.
	VolLSV
)

// VolModel is a tagged variant over the three volatility model kinds
// described in spec §3.
type VolModel struct {
	Kind VolModelKind

	// Flat
	FlatVol float64

	// Piecewise: constant between consecutive dates, looked up at a step's
	// midpoint; sorted ascending by Dates.
	Dates []time.Time
	Vols  []float64

	// LSV (Heston QE)
	V0    float64 // initial variance
	Theta float64 // long-run variance
	Kappa float64 // mean-reversion speed
	Xi    float64 // vol-of-vol
	RhoV  float64 // spot/variance correlation
}

// VolAt returns the plateau volatility effective on calendar date t, used
// by the flat and piecewise variants. LSV models do
// not have a meaningful VolAt — the variance path is simulated instead.
func (v VolModel) VolAt(t time.Time) float64 {
	switch v.Kind {
	case VolFlat:
		return v.FlatVol
	case VolPiecewise:
		return piecewiseLookup(v.Dates, v.Vols, t)
	default:
		return 0
	}
}

func piecewiseLookup(dates []time.Time, vals []float64, t time.Time) float64 {
	if len(dates) == 0 {
		return 0
	}
	// Last date with dates[i] <= t; fall back to the first point if t
	// precedes every plateau boundary.
	idx := 0
	for i, d := range dates {
		if !d.After(t) {
			idx = i
		} else {
			break
		}
	}
	return vals[idx]
}

// DividendModelKind tags the variant of Underlying.DividendModel.
type DividendModelKind int

const (
	// DivContinuous is a continuous proportional dividend yield q.
	DivContinuous DividendModelKind = iota
	// DivDiscrete is a schedule of discrete cash dividends at ex-dates.
	DivDiscrete
)

// DiscreteDividend is a single cash dividend payment.
type DiscreteDividend struct {
	ExDate time.Time
	Amount float64
}

// DividendModel is a tagged variant over continuous-yield and discrete-cash
// dividend conventions.
type DividendModel struct {
	Kind DividendModelKind

	ContinuousYield float64

	Discrete []DiscreteDividend
}

// Underlying is a single asset in the basket.
type Underlying struct {
	ID            string
	Spot          float64
	Currency      string
	DividendModel DividendModel
	VolModel      VolModel
}

// CurveKind tags the variant of DiscountCurve.
type CurveKind int

const (
	// CurveFlat is a single constant continuously-compounded rate.
	CurveFlat CurveKind = iota
	// CurvePiecewise is a term structure of rates, constant between
	// consecutive dates.
	CurvePiecewise
)

// DiscountCurve is a tagged variant over flat and piecewise-rate curves
// (spec §3, §4.1). This is the term sheet's declarative description; the
// discount package turns it into a DF(t0,t) evaluator.
type DiscountCurve struct {
	Kind CurveKind

	FlatRate float64

	Dates []time.Time
	Rates []float64
}

// AssetPair is an unordered pair of underlying identifiers, used as a
// correlation-matrix key.
type AssetPair struct {
	A, B string
}

// Correlation is the sparse pairwise correlation map of spec §3; the
// diagonal is implicitly 1 and is not stored here.
type Correlation struct {
	Pairwise map[AssetPair]float64
}

// Get returns the correlation between a and b (1 if a == b, 0 if unset).
func (c Correlation) Get(a, b string) float64 {
	if a == b {
		return 1
	}
	if v, ok := c.Pairwise[AssetPair{A: a, B: b}]; ok {
		return v
	}
	if v, ok := c.Pairwise[AssetPair{A: b, B: a}]; ok {
		return v
	}
	return 0
}

// Schedule is the autocallable observation/payment schedule of spec §3: M
// equal-length parallel sequences indexed i = 1..M.
type Schedule struct {
	ObservationDates []time.Time
	PaymentDates     []time.Time
	AutocallLevels   []float64
	CouponBarriers   []float64
	CouponRates      []float64
}

// Len returns the number of scheduled observations M.
func (s Schedule) Len() int { return len(s.ObservationDates) }

// KIMonitoring names when the knock-in barrier is checked.
type KIMonitoring int

const (
	// KIDiscreteAtObservations checks the barrier only at schedule
	// observation dates.
	KIDiscreteAtObservations KIMonitoring = iota
	// KIContinuous checks the barrier path-continuously via a
	// Brownian-bridge test between grid steps (spec §4.4).
	KIContinuous
)

// KIBarrier is the knock-in barrier specification of spec §3.
type KIBarrier struct {
	Level      float64
	Monitoring KIMonitoring
}

// SettlementType names the settlement mechanics field carried on the
// payoff. It is cosmetic to PV (spec §9 Open Question (a)).
type SettlementType int

const (
	SettlementCash SettlementType = iota
	SettlementPhysical
)

// KIRedemptionPolicy selects the maturity redemption formula applied when
// the knock-in barrier was breached (spec §4.5).
type KIRedemptionPolicy int

const (
	KIRedemptionWorstPerformance KIRedemptionPolicy = iota
	KIRedemptionPar
	KIRedemptionPerformance
)

// Payoff is the redemption/coupon mechanics of spec §3.
type Payoff struct {
	WorstOf              bool
	CouponMemory         bool
	Settlement            SettlementType
	RedemptionIfAutocall float64
	RedemptionIfNoKI     float64
	RedemptionIfKI       KIRedemptionPolicy
	KIRedemptionFloor    float64
}

// Meta is the trade-level metadata of spec §3.
type Meta struct {
	ProductID           string
	Currency            string
	Notional            float64
	TradeDate           time.Time
	ValuationDate       time.Time
	SettlementDate      time.Time
	MaturityDate        time.Time
	MaturityPaymentDate time.Time

	// DayCount is the year-fraction convention the grid and discount curve
	// use for this trade. Empty defers to config.Config.DefaultDayCount
	// (spec §2: "ACT/365F by default").
	DayCount daycount.Convention

	// Calendar rolls this trade's payment dates onto a good business day
	// (Modified Following) at parse time. Empty means NONE (weekends only).
	Calendar calendar.CalendarID
}

// EffectiveDayCount returns m.DayCount, or fallback (typically
// config.Config.DefaultDayCount) when the term sheet does not specify one.
func (m Meta) EffectiveDayCount(fallback string) daycount.Convention {
	if m.DayCount != "" {
		return m.DayCount
	}
	return daycount.Convention(fallback)
}

// TermSheet is the complete, immutable pricing input of spec §3. Once
// Validate succeeds, every invariant it checks holds for the lifetime of
// the value — nothing in this package mutates a TermSheet after
// construction.
type TermSheet struct {
	Meta          Meta
	Underlyings   []Underlying
	DiscountCurve DiscountCurve
	Correlation   Correlation
	Schedule      Schedule
	KIBarrier     KIBarrier
	Payoff        Payoff
}

// AssetIndex returns the index of the underlying with the given id, or -1.
func (t TermSheet) AssetIndex(id string) int {
	for i, u := range t.Underlyings {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// Differencing selects the finite-difference scheme for the Greek engine
// (spec §4.7).
type Differencing int

const (
	DifferencingCentral Differencing = iota
	DifferencingForward
)

// RunConfig controls the Monte Carlo simulation of spec §3.
type RunConfig struct {
	Paths      int
	Seed       uint64
	BlockSize  int
	Antithetic bool
}

// BumpConfig controls the Greek engine's finite-difference bumps (spec §3).
type BumpConfig struct {
	SpotBump     float64
	VolBump      float64
	IncludeRho   bool
	Differencing Differencing
}
