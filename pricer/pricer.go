// Package pricer exposes the engine's pure price entrypoint (spec §6):
// `(TermSheet, RunConfig) → PriceResult`, as Price and PriceWithCurve, with
// no process-wide state (spec §9). The Greek-augmented variant is
// greeks.Risk.
package pricer

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meenmo/autocallpricer/aggregate"
	"github.com/meenmo/autocallpricer/config"
	"github.com/meenmo/autocallpricer/correlation"
	"github.com/meenmo/autocallpricer/discount"
	"github.com/meenmo/autocallpricer/errs"
	"github.com/meenmo/autocallpricer/event"
	"github.com/meenmo/autocallpricer/grid"
	"github.com/meenmo/autocallpricer/simulate"
	"github.com/meenmo/autocallpricer/termsheet"
)

// PriceResult is the full output of one pricing run (spec §6's result
// shape, minus the greeks block).
type PriceResult struct {
	RunID             string                   `json:"run_id"`
	Summary           aggregate.Summary        `json:"summary"`
	Decomposition     aggregate.Decomposition  `json:"decomposition"`
	Cashflows         []aggregate.CashflowRow  `json:"cashflows"`
	Warnings          []string                 `json:"warnings,omitempty"`
	DegeneratePaths   int                      `json:"degenerate_paths"`
	ComputationTimeMS float64                  `json:"computation_time_ms"`
}

// Price runs a full Monte Carlo valuation of ts under run. It validates ts
// first (input-validation errors surface before any simulation begins, per
// spec §7), builds the simulation grid and correlated-shock Cholesky factor
// once, and fans block generation out across a worker pool whose result is
// independent of worker count (spec §5).
func Price(ctx context.Context, ts termsheet.TermSheet, run termsheet.RunConfig) (PriceResult, error) {
	conv := ts.Meta.EffectiveDayCount(config.Get().DefaultDayCount)
	curve := discount.FromTermSheet(ts.DiscountCurve, ts.Meta.ValuationDate, conv)
	return PriceWithCurve(ctx, ts, run, curve)
}

// PriceWithCurve is Price with the discount curve supplied by the caller
// instead of rebuilt from ts.DiscountCurve. It exists so the Greek engine's
// rho bump (spec §4.7.4: "bump the discount curve by a flat 1bp") can
// reprice against a shifted curve without round-tripping the bump back
// through the term sheet's wire representation.
func PriceWithCurve(ctx context.Context, ts termsheet.TermSheet, run termsheet.RunConfig, curve *discount.Curve) (PriceResult, error) {
	const op = "pricer.Price"
	start := time.Now()

	warnings, err := termsheet.Validate(ts)
	if err != nil {
		return PriceResult{}, err
	}
	if err := termsheet.ValidateRun(run); err != nil {
		return PriceResult{}, err
	}

	g, err := grid.Build(ts, config.Get().GridStepsPerYear)
	if err != nil {
		return PriceResult{}, err
	}

	l, err := cholesky(ts)
	if err != nil {
		return PriceResult{}, err
	}

	if err := checkMemoryCeiling(run, len(ts.Underlyings), len(g.Steps)); err != nil {
		return PriceResult{}, err
	}

	blockSize := run.BlockSize
	if blockSize <= 0 {
		blockSize = run.Paths
	}
	numBlocks := (run.Paths + blockSize - 1) / blockSize

	s0 := make([]float64, len(ts.Underlyings))
	for a, u := range ts.Underlyings {
		s0[a] = u.Spot
	}

	params := simulate.Params{TermSheet: ts, Grid: g, L: l, Curve: curve, Seed: run.Seed, Antithetic: run.Antithetic}

	paths := make([]event.PathResult, run.Paths)
	degenerate := make([]int, numBlocks)

	workers := config.Get().MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)

	for b := 0; b < numBlocks; b++ {
		b := b
		offset := b * blockSize
		size := blockSize
		if offset+size > run.Paths {
			size = run.Paths - offset
		}
		grp.Go(func() error {
			select {
			case <-grpCtx.Done():
				return errs.ErrCancelled
			default:
			}

			block, err := simulate.GenerateBlock(params, b, offset, size)
			if err != nil {
				return errs.New(errs.NumericFailure, op, err)
			}

			for i := 0; i < size; i++ {
				perf := pathPerformance(ts, g, block, i, s0)
				result := event.Run(ts, perf)
				for _, cf := range result.Cashflows {
					if math.IsNaN(cf.Amount) || math.IsInf(cf.Amount, 0) {
						return errs.New(errs.NumericFailure, op, fmt.Errorf("non-finite cashflow amount on path %d of block %d", offset+i, b))
					}
				}
				paths[offset+i] = result
				if block.Degenerate[i] {
					degenerate[b]++
				}
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		if err == errs.ErrCancelled {
			return PriceResult{}, errs.New(errs.Cancelled, op, err)
		}
		return PriceResult{}, err
	}

	totalDegenerate := 0
	for _, d := range degenerate {
		totalDegenerate += d
	}

	result, err := aggregate.Aggregate(ts, curve, paths, totalDegenerate)
	if err != nil {
		return PriceResult{}, err
	}

	if totalDegenerate > 0 {
		warnings = append(warnings, fmt.Sprintf("dividend capping triggered on %d degenerate path(s)", totalDegenerate))
	}

	return PriceResult{
		RunID:             uuid.NewString(),
		Summary:           result.Summary,
		Decomposition:     result.Decomposition,
		Cashflows:         result.Cashflows,
		Warnings:          warnings,
		DegeneratePaths:   result.DegeneratePaths,
		ComputationTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

// pathPerformance reads one path's log-spot trajectory out of the block and
// converts it into the observation-indexed performance series the event
// engine consumes. worst_of=true takes the minimum performance across
// assets; worst_of=false (a single- or equal-weighted multi-asset basket)
// takes the equal-weighted average, since the source schema does not
// specify a per-asset autocall path for baskets.
func pathPerformance(ts termsheet.TermSheet, g *grid.Grid, block *simulate.Block, localPath int, s0 []float64) event.PathPerformance {
	m := ts.Schedule.Len()
	perf := event.PathPerformance{
		WorstAtObservation:      make([]float64, m),
		ObservationYearFraction: make([]float64, m),
		ContinuousKIHit:         block.KIContinuousHit[localPath],
	}

	for stepIdx, step := range g.Steps {
		if !step.IsObservation && !step.IsMaturity {
			continue
		}
		w := basketPerformance(ts, block, localPath, stepIdx, s0)
		if step.IsObservation {
			perf.WorstAtObservation[step.ObservationIndex] = w
			perf.ObservationYearFraction[step.ObservationIndex] = step.T
		}
		if step.IsMaturity {
			perf.MaturityWorst = w
			perf.MaturityYearFraction = step.T
		}
	}
	return perf
}

func basketPerformance(ts termsheet.TermSheet, block *simulate.Block, localPath, stepIdx int, s0 []float64) float64 {
	if ts.Payoff.WorstOf {
		worst := math.Inf(1)
		for a := range ts.Underlyings {
			p := math.Exp(float64(block.LogSpot[localPath][stepIdx][a])) / s0[a]
			if p < worst {
				worst = p
			}
		}
		return worst
	}
	var sum float64
	for a := range ts.Underlyings {
		sum += math.Exp(float64(block.LogSpot[localPath][stepIdx][a])) / s0[a]
	}
	return sum / float64(len(ts.Underlyings))
}

// cholesky builds the basket's correlation matrix and factorizes it,
// surfacing a near-PSD projection as a warning rather than an error (spec
// §7) — already vetted by termsheet.Validate; this rebuilds the factor
// itself since Validate only reports on PSD-ness, not the factor.
func cholesky(ts termsheet.TermSheet) (correlation.Matrix, error) {
	const op = "pricer.cholesky"
	ids := make([]string, len(ts.Underlyings))
	for i, u := range ts.Underlyings {
		ids[i] = u.ID
	}
	m := correlation.Build(ids, ts.Correlation.Get)
	cfg := config.Get()
	l, _, err := correlation.Factorize(m, cfg.CorrelationEigenFloor, cfg.CorrelationPSDTolerance)
	if err != nil {
		return nil, errs.New(errs.InvalidSchema, op, err)
	}
	return l, nil
}

func checkMemoryCeiling(run termsheet.RunConfig, numAssets, numSteps int) error {
	const op = "pricer.checkMemoryCeiling"
	blockSize := run.BlockSize
	if blockSize <= 0 {
		blockSize = run.Paths
	}
	const bytesPerFloat32 = 4
	bytes := int64(blockSize) * int64(numAssets) * int64(numSteps) * bytesPerFloat32
	ceiling := config.Get().MemoryCeilingBytes
	if ceiling > 0 && bytes > ceiling {
		return errs.New(errs.ResourceExceeded, op, fmt.Errorf("block requires %d bytes, exceeding the %d byte ceiling", bytes, ceiling))
	}
	return nil
}
