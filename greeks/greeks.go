// Package greeks drives the CRN bump-and-reprice sensitivity engine of
// spec §4.7: a small vector of bumped term sheets, each repriced with the
// identical seed/paths/block-size as the base run so every repricing shares
// the base run's random draws bit-for-bit.
package greeks

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meenmo/autocallpricer/config"
	"github.com/meenmo/autocallpricer/discount"
	"github.com/meenmo/autocallpricer/pricer"
	"github.com/meenmo/autocallpricer/termsheet"
)

// Result holds the sensitivities of spec §6's `greeks` result block.
type Result struct {
	Delta    map[string]float64 `json:"delta"`     // per asset, in price units per unit spot
	DeltaPct map[string]float64 `json:"delta_pct"` // per asset, Δ·S₀ᵃ
	Vega     map[string]float64 `json:"vega"`      // per asset
	Rho      *float64           `json:"rho"`       // PV change from a flat +1bp bump, divided by 0.0001; nil unless BumpConfig.IncludeRho
}

// RiskResult is PriceResult ⊕ Greeks (spec §6).
type RiskResult struct {
	pricer.PriceResult
	Greeks Result `json:"greeks"`
}

// Risk prices the base term sheet, then reprices a bumped variant per asset
// per Greek (plus one optional rho bump), in parallel, each sharing the
// base run's seed/paths/block-size so CRN cancels the shared noise (spec
// §4.7, §8 property 5).
func Risk(ctx context.Context, ts termsheet.TermSheet, run termsheet.RunConfig, bump termsheet.BumpConfig) (RiskResult, error) {
	base, err := pricer.Price(ctx, ts, run)
	if err != nil {
		return RiskResult{}, err
	}

	n := len(ts.Underlyings)
	deltaPlus := make([]pricer.PriceResult, n)
	deltaMinus := make([]pricer.PriceResult, n)
	vegaPlus := make([]pricer.PriceResult, n)
	vegaMinus := make([]pricer.PriceResult, n)
	var rhoPlus pricer.PriceResult
	var rhoBumped bool

	grp, grpCtx := errgroup.WithContext(ctx)
	workers := config.Get().MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	grp.SetLimit(workers)

	for a := 0; a < n; a++ {
		a := a
		grp.Go(func() error {
			bumped := bumpSpot(ts, a, bump.SpotBump)
			r, err := pricer.Price(grpCtx, bumped, run)
			if err != nil {
				return err
			}
			deltaPlus[a] = r
			return nil
		})
		if bump.Differencing == termsheet.DifferencingCentral {
			grp.Go(func() error {
				bumped := bumpSpot(ts, a, -bump.SpotBump)
				r, err := pricer.Price(grpCtx, bumped, run)
				if err != nil {
					return err
				}
				deltaMinus[a] = r
				return nil
			})
		}

		grp.Go(func() error {
			bumped := bumpVol(ts, a, bump.VolBump)
			r, err := pricer.Price(grpCtx, bumped, run)
			if err != nil {
				return err
			}
			vegaPlus[a] = r
			return nil
		})
		if bump.Differencing == termsheet.DifferencingCentral {
			grp.Go(func() error {
				bumped := bumpVol(ts, a, -bump.VolBump)
				r, err := pricer.Price(grpCtx, bumped, run)
				if err != nil {
					return err
				}
				vegaMinus[a] = r
				return nil
			})
		}
	}

	if bump.IncludeRho {
		rhoBumped = true
		grp.Go(func() error {
			conv := ts.Meta.EffectiveDayCount(config.Get().DefaultDayCount)
			curve := discount.FromTermSheet(ts.DiscountCurve, ts.Meta.ValuationDate, conv).BumpParallel(0.0001)
			r, err := pricer.PriceWithCurve(grpCtx, ts, run, curve)
			if err != nil {
				return err
			}
			rhoPlus = r
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return RiskResult{}, err
	}

	result := Result{
		Delta:    make(map[string]float64, n),
		DeltaPct: make(map[string]float64, n),
		Vega:     make(map[string]float64, n),
	}

	for a, u := range ts.Underlyings {
		if bump.Differencing == termsheet.DifferencingCentral {
			result.Delta[u.ID] = (deltaPlus[a].Summary.PV - deltaMinus[a].Summary.PV) / (2 * bump.SpotBump * u.Spot)
			result.Vega[u.ID] = (vegaPlus[a].Summary.PV - vegaMinus[a].Summary.PV) / (2 * bump.VolBump)
		} else {
			result.Delta[u.ID] = (deltaPlus[a].Summary.PV - base.Summary.PV) / (bump.SpotBump * u.Spot)
			result.Vega[u.ID] = (vegaPlus[a].Summary.PV - base.Summary.PV) / bump.VolBump
		}
		result.DeltaPct[u.ID] = result.Delta[u.ID] * u.Spot
	}

	if rhoBumped {
		rho := (rhoPlus.Summary.PV - base.Summary.PV) / 0.0001
		result.Rho = &rho
	}

	return RiskResult{PriceResult: base, Greeks: result}, nil
}

// bumpSpot returns a deep-enough copy of ts with underlying a's spot
// shifted by a relative amount (1+delta). Only the fields mutated by any
// bump path are deep-copied; everything else is shared, which is safe
// because pricer.Price never mutates its input.
func bumpSpot(ts termsheet.TermSheet, assetIdx int, delta float64) termsheet.TermSheet {
	out := ts
	out.Underlyings = append([]termsheet.Underlying(nil), ts.Underlyings...)
	u := out.Underlyings[assetIdx]
	u.Spot = u.Spot * (1 + delta)
	out.Underlyings[assetIdx] = u
	return out
}

// bumpVol shifts underlying a's volatility term structure by an absolute
// amount delta: every point of a piecewise curve, the flat vol, or the LSV
// initial variance expressed as (√v₀+delta)²−v₀ (spec §4.7.3).
func bumpVol(ts termsheet.TermSheet, assetIdx int, delta float64) termsheet.TermSheet {
	out := ts
	out.Underlyings = append([]termsheet.Underlying(nil), ts.Underlyings...)
	u := out.Underlyings[assetIdx]

	switch u.VolModel.Kind {
	case termsheet.VolFlat:
		u.VolModel.FlatVol += delta
	case termsheet.VolPiecewise:
		vols := append([]float64(nil), u.VolModel.Vols...)
		for i := range vols {
			vols[i] += delta
		}
		u.VolModel.Vols = vols
	case termsheet.VolLSV:
		sqrtV0 := math.Sqrt(u.VolModel.V0)
		u.VolModel.V0 = (sqrtV0 + delta) * (sqrtV0 + delta)
	}
	out.Underlyings[assetIdx] = u
	return out
}
