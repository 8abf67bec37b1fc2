// Package simulate evolves correlated log-spot paths for a block of the
// Monte Carlo run (spec §4.4): piecewise-constant/flat vol or Heston-style
// LSV, discrete dividend jumps, and continuous-monitoring Brownian-bridge
// knock-in augmentation. A block is processed start-to-finish without
// suspension, bounding memory at O(B·K·n) per spec §5.
package simulate

import (
	"math"

	"github.com/meenmo/autocallpricer/config"
	"github.com/meenmo/autocallpricer/correlation"
	"github.com/meenmo/autocallpricer/discount"
	"github.com/meenmo/autocallpricer/errs"
	"github.com/meenmo/autocallpricer/grid"
	"github.com/meenmo/autocallpricer/rng"
	"github.com/meenmo/autocallpricer/termsheet"
)

// Block is the output of generating one block of paths: log-spot buffers
// plus the per-path diagnostics the event engine and aggregator need.
type Block struct {
	// BlockIndex is this block's position, carried for diagnostics only. It
	// plays no role in RNG stream selection: every draw is keyed off the
	// path's global offset within the run, so the block/worker partitioning
	// never changes which draws a given path receives (spec §8, property 1).
	BlockIndex int
	// NumPaths is the number of paths in this block (== len of every
	// per-path slice below).
	NumPaths int
	// LogSpot[p][k][a] is the log-spot of asset a at grid step k for path
	// p within the block. Storage is single precision; accumulation during
	// generation is double precision (spec §4.4).
	LogSpot [][][]float32
	// KIContinuousHit[p] is true if the continuous Brownian-bridge test
	// ever fired for path p, for any asset (worst-of semantics: any asset
	// crossing sets it). Only meaningful when the term sheet's KI barrier
	// uses continuous monitoring.
	KIContinuousHit []bool
	// Degenerate[p] is true if a discrete dividend amount had to be capped
	// against that path's spot at some step (spec §4.4, §7).
	Degenerate []bool
}

// Params bundles the immutable, run-wide inputs shared by every block
// (spec §5: "the term sheet, grid, and Cholesky factor are immutable and
// shared by reference").
type Params struct {
	TermSheet termsheet.TermSheet
	Grid      *grid.Grid
	L         correlation.Matrix
	Curve     *discount.Curve
	Seed      uint64
	Antithetic bool
}

// GenerateBlock evolves blockSize paths from step 0 through the end of the
// grid. offset is the global path index of this block's first path within
// the full run — it, not blockIndex or blockSize, determines the RNG
// coordinate each path draws from, so splitting a run into more or fewer
// blocks never reshuffles the sample (spec §8, property 1: price is
// invariant to block-size partitioning). Each worker owns its Block
// exclusively; nothing here is shared across goroutines (spec §5).
func GenerateBlock(p Params, blockIndex, offset, blockSize int) (*Block, error) {
	const op = "simulate.GenerateBlock"
	cfg := config.Get()
	ts := p.TermSheet
	n := len(ts.Underlyings)
	k := len(p.Grid.Steps) - 1

	logSpot := make([][][]float32, blockSize)
	for i := range logSpot {
		logSpot[i] = make([][]float32, k+1)
		for s := range logSpot[i] {
			logSpot[i][s] = make([]float32, n)
		}
	}
	kiHit := make([]bool, blockSize)
	degenerate := make([]bool, blockSize)

	s0 := make([]float64, n)
	for a, u := range ts.Underlyings {
		s0[a] = u.Spot
		v := math.Log(u.Spot)
		for path := 0; path < blockSize; path++ {
			logSpot[path][0][a] = float32(v)
		}
	}

	// Per-path, per-asset Heston variance state, carried across steps.
	variance := make([][]float64, blockSize)
	for path := range variance {
		variance[path] = make([]float64, n)
		for a, u := range ts.Underlyings {
			if u.VolModel.Kind == termsheet.VolLSV {
				variance[path][a] = u.VolModel.V0
			}
		}
	}

	continuousKI := ts.KIBarrier.Monitoring == termsheet.KIContinuous
	kiLogBarrier := make([]float64, n)
	for a := range ts.Underlyings {
		kiLogBarrier[a] = math.Log(ts.KIBarrier.Level * s0[a])
	}

	for step := 0; step < k; step++ {
		prevStep := p.Grid.Steps[step]
		curStep := p.Grid.Steps[step+1]
		dt := curStep.DT
		r := p.Curve.ForwardRate(prevStep.Date, curStep.Date)

		for path := 0; path < blockSize; path++ {
			rngPath, flip := rngPathCoord(offset+path, p.Antithetic)

			for a, u := range ts.Underlyings {
				x0 := float64(logSpot[path][step][a])

				var q float64
				if u.DividendModel.Kind == termsheet.DivContinuous {
					q = u.DividendModel.ContinuousYield
				}

				var x1 float64
				if u.VolModel.Kind == termsheet.VolLSV {
					z := rng.Normal(rng.Coord{Seed: p.Seed, Path: rngPath, Step: uint64(step), Asset: uint64(a), Stream: rng.StreamAsset})
					zv := rng.Normal(rng.Coord{Seed: p.Seed, Path: rngPath, Step: uint64(step), Asset: uint64(a), Stream: rng.StreamVariance})
					if flip {
						z = -z
						zv = -zv
					}
					v0 := variance[path][a]
					v1 := qeVarianceStep(v0, u.VolModel.Kappa, u.VolModel.Theta, u.VolModel.Xi, dt, zv, cfg.QEPsiCritical)
					inc := qeLogSpotIncrement(v0, v1, r-q, u.VolModel.Kappa, u.VolModel.Theta, u.VolModel.Xi, u.VolModel.RhoV, dt, z)
					x1 = x0 + inc
					variance[path][a] = v1
				} else {
					sigmaSqDt := curStep.SigmaSqDt[u.ID]
					drift := (r-q)*dt - 0.5*sigmaSqDt
					shock := correlatedShock(p.L, a, step, rngPath, flip, p.Seed, n, sigmaSqDt)
					x1 = x0 + drift + shock
				}

				if curStep.IsExDividend {
					if d, ok := curStep.DividendJumps[u.ID]; ok && d > 0 {
						sK := math.Exp(x0)
						if d >= sK {
							d = cfg.DividendCapFraction * sK
							degenerate[path] = true
						}
						x1 += math.Log(1 - d/sK)
					}
				}

				logSpot[path][step+1][a] = float32(x1)

				if continuousKI && !kiHit[path] {
					hit, _, prob, err := bridgeTest(x0, x1, kiLogBarrier[a], curStep.SigmaSqDt[u.ID], cfg.MinVarianceDt,
						rng.Coord{Seed: p.Seed, Path: rngPath, Step: uint64(step), Asset: uint64(a), Stream: rng.StreamBridge})
					if err != nil {
						return nil, errs.New(errs.NumericFailure, op, err)
					}
					if hit {
						kiHit[path] = true
					}
					_ = prob
				}
			}
		}
	}

	return &Block{
		BlockIndex:      blockIndex,
		NumPaths:        blockSize,
		LogSpot:         logSpot,
		KIContinuousHit: kiHit,
		Degenerate:      degenerate,
	}, nil
}

// rngPathCoord maps a path's global index within the full run to its RNG
// path coordinate and whether its draws should be negated (the antithetic
// member of a pair). Because the input is the global index rather than a
// within-block one, the mapping is the same regardless of how the run was
// sliced into blocks. Disabled antithetic returns the index unchanged.
func rngPathCoord(globalPath int, antithetic bool) (coord uint64, flip bool) {
	if !antithetic {
		return uint64(globalPath), false
	}
	return uint64(globalPath / 2), globalPath%2 == 1
}

// correlatedShock returns √(σ_a²·dt)·W_a for asset a, where W = L·Z applies
// the Cholesky factor of the correlation matrix to the block's independent
// per-asset normals drawn at this step (spec §4.4.d).
func correlatedShock(l correlation.Matrix, assetIdx, step int, rngPath uint64, flip bool, seed uint64, n int, sigmaSqDt float64) float64 {
	if sigmaSqDt <= 0 {
		return 0
	}
	var w float64
	for j := 0; j < n; j++ {
		lij := l[assetIdx][j]
		if lij == 0 {
			continue
		}
		zj := rng.Normal(rng.Coord{Seed: seed, Path: rngPath, Step: uint64(step), Asset: uint64(j), Stream: rng.StreamAsset})
		if flip {
			zj = -zj
		}
		w += lij * zj
	}
	return math.Sqrt(sigmaSqDt) * w
}

// bridgeTest runs the Brownian-bridge knock-in check for one asset at one
// step, drawing its CRN-stable uniform from the dedicated bridge stream.
func bridgeTest(x0, x1, barrier, sigmaSqDt, floor float64, coord rng.Coord) (hit bool, certain bool, prob float64, err error) {
	certain, prob, err = bridgeHitProbability(x0, x1, barrier, sigmaSqDt, floor)
	if err != nil {
		return false, false, 0, err
	}
	if certain {
		return true, true, 1, nil
	}
	u := rng.Uniform(coord)
	return u < prob, false, prob, nil
}
