package aggregate_test

import (
	"math"
	"testing"
	"time"

	"github.com/meenmo/autocallpricer/aggregate"
	"github.com/meenmo/autocallpricer/daycount"
	"github.com/meenmo/autocallpricer/discount"
	"github.com/meenmo/autocallpricer/event"
	"github.com/meenmo/autocallpricer/termsheet"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func baseTermSheet() termsheet.TermSheet {
	val := date(2026, 1, 1)
	return termsheet.TermSheet{
		Meta: termsheet.Meta{
			Notional:            1000,
			ValuationDate:       val,
			MaturityDate:        date(2027, 1, 1),
			MaturityPaymentDate: date(2027, 1, 5),
		},
		DiscountCurve: termsheet.DiscountCurve{Kind: termsheet.CurveFlat, FlatRate: 0},
		Schedule: termsheet.Schedule{
			ObservationDates: []time.Time{date(2026, 7, 1)},
			PaymentDates:     []time.Time{date(2026, 7, 5)},
			AutocallLevels:   []float64{1.0},
			CouponBarriers:   []float64{0.7},
			CouponRates:      []float64{0.05},
		},
	}
}

func TestAggregate_PVIsMeanOfPathsWithZeroRate(t *testing.T) {
	ts := baseTermSheet()
	curve := discount.FromTermSheet(ts.DiscountCurve, ts.Meta.ValuationDate, daycount.ACT365F)

	paths := []event.PathResult{
		{Cashflows: []event.Cashflow{{PaymentIndex: 1, Amount: 1000, Category: event.CategoryMaturityRedemption}}, TLife: 1.0},
		{Cashflows: []event.Cashflow{{PaymentIndex: 1, Amount: 2000, Category: event.CategoryMaturityRedemption}}, TLife: 1.0},
	}

	result, err := aggregate.Aggregate(ts, curve, paths, 0)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if math.Abs(result.Summary.PV-1500) > 1e-9 {
		t.Fatalf("PV = %v, want 1500 (mean of 1000 and 2000 at zero rate)", result.Summary.PV)
	}
	if result.Summary.NumPaths != 2 {
		t.Fatalf("NumPaths = %d, want 2", result.Summary.NumPaths)
	}
}

func TestAggregate_DecompositionSumsToTotalPV(t *testing.T) {
	ts := baseTermSheet()
	curve := discount.FromTermSheet(ts.DiscountCurve, ts.Meta.ValuationDate, daycount.ACT365F)

	paths := []event.PathResult{
		{
			Cashflows: []event.Cashflow{
				{PaymentIndex: 0, Amount: 50, Category: event.CategoryCoupon},
				{PaymentIndex: 0, Amount: 1000, Category: event.CategoryAutocallRedemption},
			},
			Autocalled: true, TLife: 0.5, CouponsPaid: 1,
		},
		{
			Cashflows: []event.Cashflow{
				{PaymentIndex: 1, Amount: 1000, Category: event.CategoryMaturityRedemption},
			},
			TLife: 1.0,
		},
	}

	result, err := aggregate.Aggregate(ts, curve, paths, 0)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	sum := result.Decomposition.CouponPV + result.Decomposition.RedemptionPV
	if math.Abs(sum-result.Decomposition.TotalPV) > 1e-9 {
		t.Fatalf("decomposition does not sum to TotalPV: %v + redemption != %v", result.Decomposition.CouponPV, result.Decomposition.TotalPV)
	}
	if result.Decomposition.AutocallRedemptionPV+result.Decomposition.MaturityRedemptionPV != result.Decomposition.RedemptionPV {
		t.Fatalf("autocall + maturity redemption PV does not sum to total redemption PV")
	}
}

func TestAggregate_CashflowRowsCarryProbabilityAndExpectedAmount(t *testing.T) {
	ts := baseTermSheet()
	curve := discount.FromTermSheet(ts.DiscountCurve, ts.Meta.ValuationDate, daycount.ACT365F)

	paths := []event.PathResult{
		{Cashflows: []event.Cashflow{{PaymentIndex: 0, Amount: 50, Category: event.CategoryCoupon}}, CouponsPaid: 1},
		{Cashflows: nil},
	}

	result, err := aggregate.Aggregate(ts, curve, paths, 0)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if len(result.Cashflows) != 1 {
		t.Fatalf("expected exactly one distinct (payment_index, category) row, got %d", len(result.Cashflows))
	}
	row := result.Cashflows[0]
	if row.Probability != 0.5 {
		t.Fatalf("probability = %v, want 0.5 (1 of 2 paths paid this cashflow)", row.Probability)
	}
	if row.ExpectedAmount != 50 {
		t.Fatalf("expected_amount = %v, want 50 (conditional on payment)", row.ExpectedAmount)
	}
	if row.CategoryName != "coupon" {
		t.Fatalf("category_name = %q, want \"coupon\"", row.CategoryName)
	}
}

func TestAggregate_DegeneratePathsPassThrough(t *testing.T) {
	ts := baseTermSheet()
	curve := discount.FromTermSheet(ts.DiscountCurve, ts.Meta.ValuationDate, daycount.ACT365F)
	result, err := aggregate.Aggregate(ts, curve, nil, 7)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if result.DegeneratePaths != 7 {
		t.Fatalf("DegeneratePaths = %d, want 7", result.DegeneratePaths)
	}
}

func TestAggregate_EmptyPathsYieldZeroPV(t *testing.T) {
	ts := baseTermSheet()
	curve := discount.FromTermSheet(ts.DiscountCurve, ts.Meta.ValuationDate, daycount.ACT365F)
	result, err := aggregate.Aggregate(ts, curve, nil, 0)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if result.Summary.PV != 0 || result.Summary.PVStdError != 0 {
		t.Fatalf("expected zero PV and stderr for an empty path set, got PV=%v stderr=%v", result.Summary.PV, result.Summary.PVStdError)
	}
}
