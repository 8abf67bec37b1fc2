package grid_test

import (
	"testing"
	"time"

	"github.com/meenmo/autocallpricer/grid"
	"github.com/meenmo/autocallpricer/termsheet"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func baseTermSheet() termsheet.TermSheet {
	val := date(2026, 1, 1)
	return termsheet.TermSheet{
		Meta: termsheet.Meta{ValuationDate: val, MaturityDate: date(2027, 1, 1), MaturityPaymentDate: date(2027, 1, 5)},
		Underlyings: []termsheet.Underlying{
			{ID: "A", Spot: 100, VolModel: termsheet.VolModel{Kind: termsheet.VolFlat, FlatVol: 0.2}},
		},
		Schedule: termsheet.Schedule{
			ObservationDates: []time.Time{date(2026, 7, 1)},
			PaymentDates:     []time.Time{date(2026, 7, 5)},
			AutocallLevels:   []float64{1.0},
			CouponBarriers:   []float64{0.8},
			CouponRates:      []float64{0.05},
		},
	}
}

func TestBuild_StartsAtZeroWithNoRefinement(t *testing.T) {
	ts := baseTermSheet()
	g, err := grid.Build(ts, 0)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if g.Steps[0].T != 0 || g.Steps[0].DT != 0 {
		t.Fatalf("first step should be t0 with T=0, DT=0: got %+v", g.Steps[0])
	}
	// Without refinement, only the observation and maturity dates appear
	// (2 events) plus t0.
	if len(g.Steps) != 3 {
		t.Fatalf("expected 3 steps (t0, observation, maturity), got %d: %+v", len(g.Steps), g.Steps)
	}
}

func TestBuild_IsStrictlyIncreasing(t *testing.T) {
	ts := baseTermSheet()
	g, err := grid.Build(ts, 12)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	for i := 1; i < len(g.Steps); i++ {
		if g.Steps[i].T <= g.Steps[i-1].T {
			t.Fatalf("grid not strictly increasing at step %d: %v <= %v", i, g.Steps[i].T, g.Steps[i-1].T)
		}
	}
}

func TestBuild_RefinementBoundsMaxStepSize(t *testing.T) {
	ts := baseTermSheet()
	nStepsPerYear := 52
	g, err := grid.Build(ts, nStepsPerYear)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	maxStep := 1.0 / float64(nStepsPerYear)
	const tol = 1e-6
	for i := 1; i < len(g.Steps); i++ {
		if g.Steps[i].DT > maxStep+tol {
			t.Fatalf("step %d has DT=%v, exceeding the refinement bound %v", i, g.Steps[i].DT, maxStep)
		}
	}
}

func TestBuild_PreservesObservationAndMaturityFlags(t *testing.T) {
	ts := baseTermSheet()
	g, err := grid.Build(ts, 52)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	var sawObservation, sawMaturity bool
	for _, s := range g.Steps {
		if s.IsObservation {
			sawObservation = true
			if s.ObservationIndex != 0 {
				t.Fatalf("observation index = %d, want 0", s.ObservationIndex)
			}
		}
		if s.IsMaturity {
			sawMaturity = true
		}
	}
	if !sawObservation || !sawMaturity {
		t.Fatalf("refinement dropped an event flag: observation=%v maturity=%v", sawObservation, sawMaturity)
	}
}

func TestBuild_MergesDividendOnSameDateAsObservation(t *testing.T) {
	ts := baseTermSheet()
	ts.Underlyings[0].DividendModel = termsheet.DividendModel{
		Kind: termsheet.DivDiscrete,
		Discrete: []termsheet.DiscreteDividend{
			{ExDate: date(2026, 7, 1), Amount: 1.5},
		},
	}
	g, err := grid.Build(ts, 0)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	found := false
	for _, s := range g.Steps {
		if s.Date.Equal(date(2026, 7, 1)) {
			found = true
			if !s.IsObservation || !s.IsExDividend {
				t.Fatalf("merged step should carry both observation and dividend flags: %+v", s)
			}
			if s.DividendJumps["A"] != 1.5 {
				t.Fatalf("dividend jump amount = %v, want 1.5", s.DividendJumps["A"])
			}
		}
	}
	if !found {
		t.Fatalf("expected a merged step on 2026-07-01")
	}
}

func TestBuild_RejectsObservationBeforeValuation(t *testing.T) {
	ts := baseTermSheet()
	ts.Schedule.ObservationDates[0] = date(2025, 1, 1)
	if _, err := grid.Build(ts, 0); err == nil {
		t.Fatalf("expected an error for an observation date preceding valuation")
	}
}

func TestBuild_IsDeterministicAcrossRepeatedCalls(t *testing.T) {
	// Running Build twice with the same inputs must produce the same grid
	// (no hidden global state), which the event-aligned merge algorithm
	// relies on for thread-count-independent determinism.
	ts := baseTermSheet()
	g1, err := grid.Build(ts, 52)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	g2, err := grid.Build(ts, 52)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(g1.Steps) != len(g2.Steps) {
		t.Fatalf("two Build calls with identical inputs produced different step counts: %d vs %d", len(g1.Steps), len(g2.Steps))
	}
	for i := range g1.Steps {
		if g1.Steps[i].T != g2.Steps[i].T {
			t.Fatalf("step %d differs between runs: %v vs %v", i, g1.Steps[i].T, g2.Steps[i].T)
		}
	}
}
