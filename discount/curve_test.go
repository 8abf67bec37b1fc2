package discount_test

import (
	"math"
	"testing"
	"time"

	"github.com/meenmo/autocallpricer/daycount"
	"github.com/meenmo/autocallpricer/discount"
	"github.com/meenmo/autocallpricer/termsheet"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDF_FlatCurve(t *testing.T) {
	val := date(2026, 1, 1)
	curve := discount.FromTermSheet(termsheet.DiscountCurve{Kind: termsheet.CurveFlat, FlatRate: 0.05}, val, daycount.ACT365F)
	t1 := date(2027, 1, 1)
	yf := 365.0 / 365.0 // 2026 is not a leap year
	want := math.Exp(-0.05 * yf)
	if got := curve.DF(t1); math.Abs(got-want) > 1e-9 {
		t.Fatalf("DF(1y @ 5%%) = %v, want %v", got, want)
	}
}

func TestDF_AtValuationDateIsOne(t *testing.T) {
	val := date(2026, 1, 1)
	curve := discount.FromTermSheet(termsheet.DiscountCurve{Kind: termsheet.CurveFlat, FlatRate: 0.03}, val, daycount.ACT365F)
	if got := curve.DF(val); math.Abs(got-1) > 1e-12 {
		t.Fatalf("DF(valuation date) = %v, want 1", got)
	}
}

func TestDFFrom_IsConsistentWithDF(t *testing.T) {
	val := date(2026, 1, 1)
	curve := discount.FromTermSheet(termsheet.DiscountCurve{Kind: termsheet.CurveFlat, FlatRate: 0.04}, val, daycount.ACT365F)
	t0 := date(2026, 6, 1)
	t1 := date(2027, 6, 1)
	want := curve.DF(t1) / curve.DF(t0)
	if got := curve.DFFrom(t0, t1); math.Abs(got-want) > 1e-12 {
		t.Fatalf("DFFrom(t0,t1) = %v, want %v", got, want)
	}
}

func TestForwardRate_FlatCurveRecoversTheFlatRate(t *testing.T) {
	val := date(2026, 1, 1)
	curve := discount.FromTermSheet(termsheet.DiscountCurve{Kind: termsheet.CurveFlat, FlatRate: 0.025}, val, daycount.ACT365F)
	fwd := curve.ForwardRate(date(2026, 6, 1), date(2027, 6, 1))
	if math.Abs(fwd-0.025) > 1e-9 {
		t.Fatalf("ForwardRate on a flat curve = %v, want 0.025", fwd)
	}
}

func TestPiecewiseCurve_SegmentBoundaries(t *testing.T) {
	val := date(2026, 1, 1)
	dc := termsheet.DiscountCurve{
		Kind:  termsheet.CurvePiecewise,
		Dates: []time.Time{date(2027, 1, 1), date(2028, 1, 1)},
		Rates: []float64{0.02, 0.06},
	}
	curve := discount.FromTermSheet(dc, val, daycount.ACT365F)
	// Within the first segment the forward rate should be 2%.
	fwd := curve.ForwardRate(date(2026, 3, 1), date(2026, 9, 1))
	if math.Abs(fwd-0.02) > 1e-9 {
		t.Fatalf("ForwardRate within first segment = %v, want 0.02", fwd)
	}
	// Beyond the last boundary the final rate extends indefinitely.
	fwd2 := curve.ForwardRate(date(2029, 1, 1), date(2030, 1, 1))
	if math.Abs(fwd2-0.06) > 1e-9 {
		t.Fatalf("ForwardRate beyond the last boundary = %v, want 0.06", fwd2)
	}
}

func TestBumpParallel_ShiftsEveryRateSegment(t *testing.T) {
	val := date(2026, 1, 1)
	curve := discount.FromTermSheet(termsheet.DiscountCurve{Kind: termsheet.CurveFlat, FlatRate: 0.03}, val, daycount.ACT365F)
	bumped := curve.BumpParallel(0.0001)
	t1 := date(2027, 1, 1)
	if bumped.DF(t1) >= curve.DF(t1) {
		t.Fatalf("bumping the rate up should lower the discount factor: base=%v bumped=%v", curve.DF(t1), bumped.DF(t1))
	}
}
