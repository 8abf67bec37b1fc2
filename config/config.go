// Package config holds numerical and execution tuning parameters for the
// pricing engine. Values here were previously scattered as magic numbers
// across the grid, simulate, and greeks packages.
package config

// Config groups solver tolerances, numerical contracts, and execution
// limits for a pricing run.
type Config struct {
	// DefaultDayCount is the year-fraction convention used when a term
	// sheet does not specify one (spec §2: "ACT/365F by default").
	DefaultDayCount string

	// CorrelationEigenFloor is the eigenvalue clip used by the nearest-PSD
	// projection fallback (spec §4.2).
	CorrelationEigenFloor float64

	// CorrelationPSDTolerance is the tolerance correlation.Factorize uses
	// when checking that a correlation matrix is symmetric with a unit
	// diagonal. It is not applied to eigenvalues: the nearest-PSD
	// projection runs whenever the direct Cholesky factorization fails.
	CorrelationPSDTolerance float64

	// QEPsiCritical is Andersen's moment-ratio threshold (ψ_c) selecting
	// between the QE scheme's high-variance and low-variance branches.
	// Fixed per spec §9(c): changing it changes every LSV PV.
	QEPsiCritical float64

	// MinVarianceDt is the floor for σ²·dt below which the Brownian-bridge
	// hit probability formula is undefined; a step at or below this floor
	// is flagged as a NumericFailure (spec §7).
	MinVarianceDt float64

	// DividendCapFraction caps a discrete dividend at this fraction of
	// the pre-jump spot to keep the post-jump spot positive (spec §4.4:
	// "capped at 0.999·S_k").
	DividendCapFraction float64

	// MaxWorkers bounds the block/bump worker pool size. Zero means
	// GOMAXPROCS.
	MaxWorkers int

	// DefaultMemoryCeilingBytes records the default ResourceExceeded ceiling
	// (spec §7). No code reads it; the pricer checks MemoryCeilingBytes.
	DefaultMemoryCeilingBytes int64

	// GridStepsPerYear bounds the simulation grid's maximum step size to
	// 1/GridStepsPerYear (spec §4.1), beyond the event dates it must
	// contain regardless.
	GridStepsPerYear int

	// MemoryCeilingBytes is the active ResourceExceeded ceiling checked by
	// the pricer. The CLI's runtime config overrides it through the
	// memory_ceiling_bytes key.
	MemoryCeilingBytes int64
}

// DefaultConfig provides production-ready default values.
var DefaultConfig = Config{
	DefaultDayCount:           "ACT/365F",
	CorrelationEigenFloor:     1e-12,
	CorrelationPSDTolerance:   1e-10,
	QEPsiCritical:             1.5,
	MinVarianceDt:             1e-14,
	DividendCapFraction:       0.999,
	MaxWorkers:                0,
	DefaultMemoryCeilingBytes: 2 << 30, // 2 GiB
	GridStepsPerYear:          52,
	MemoryCeilingBytes:        2 << 30,
}

// cfg is the active configuration. Defaults to DefaultConfig.
var cfg = DefaultConfig

// Set replaces the active configuration.
func Set(c Config) { cfg = c }

// Get returns the active configuration.
func Get() Config { return cfg }
