// Package correlation assembles a correlation matrix, factorizes it via
// Cholesky, and falls back to a nearest-PSD eigenvalue-clipping projection
// when the raw matrix fails (spec §4.2).
//
// The package is deliberately termsheet-agnostic: it operates on plain
// n×n float64 matrices so termsheet.Validate can call it without a import
// cycle, and so the Greek engine can reuse the same cached factor across
// bumped repricings.
package correlation

import (
	"errors"
	"fmt"
	"math"
)

// Matrix is a dense row-major n×n matrix.
type Matrix [][]float64

// NewMatrix allocates an n×n zero matrix.
func NewMatrix(n int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

// Build assembles the n×n correlation matrix from an ordered list of asset
// ids and a lookup function returning the pairwise correlation (the
// diagonal is forced to 1 regardless of what get reports).
func Build(ids []string, get func(a, b string) float64) Matrix {
	n := len(ids)
	m := NewMatrix(n)
	for i := 0; i < n; i++ {
		m[i][i] = 1
		for j := i + 1; j < n; j++ {
			rho := get(ids[i], ids[j])
			m[i][j] = rho
			m[j][i] = rho
		}
	}
	return m
}

// ErrNotSymmetric is returned when a matrix fails a symmetry check.
var ErrNotSymmetric = errors.New("correlation: matrix is not symmetric")

// ErrDimensionMismatch is returned when a matrix is not square.
var ErrDimensionMismatch = errors.New("correlation: matrix is not square")

// Validate checks symmetry and unit diagonal, returning an error if either
// invariant fails beyond tol (spec §3).
func Validate(m Matrix, tol float64) error {
	n := len(m)
	for i := 0; i < n; i++ {
		if len(m[i]) != n {
			return fmt.Errorf("correlation.Validate: %w", ErrDimensionMismatch)
		}
		if math.Abs(m[i][i]-1) > tol {
			return fmt.Errorf("correlation.Validate: diagonal[%d]=%v is not 1: %w", i, m[i][i], ErrNotSymmetric)
		}
		for j := i + 1; j < n; j++ {
			if math.Abs(m[i][j]-m[j][i]) > tol {
				return fmt.Errorf("correlation.Validate: m[%d][%d] != m[%d][%d]: %w", i, j, j, i, ErrNotSymmetric)
			}
		}
	}
	return nil
}

// Cholesky computes the lower-triangular factor L such that L·Lᵀ = m.
// It fails (ok=false) as soon as a non-positive pivot is encountered,
// signalling that m is not positive definite.
func Cholesky(m Matrix) (Matrix, bool) {
	n := len(m)
	l := NewMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := m[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, false
				}
				l[i][j] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, true
}

// Factorize attempts a direct Cholesky factorization of m. If it fails
// (m is not PSD), it projects m to the nearest correlation matrix via
// eigenvalue clipping (eigenvalues floored to eigenFloor, then rescaled to
// unit diagonal) and retries. projected reports whether the fallback path
// was taken, so callers can attach a warning.
//
// psdTolerance is the symmetry/unit-diagonal tolerance Factorize validates
// the input against before attempting any factorization.
func Factorize(m Matrix, eigenFloor, psdTolerance float64) (l Matrix, projected bool, err error) {
	if err := Validate(m, psdTolerance); err != nil {
		return nil, false, err
	}

	if l, ok := Cholesky(m); ok {
		return l, false, nil
	}

	eigvals, eigvecs, jerr := Jacobi(m, 1e-12, 200)
	if jerr != nil {
		return nil, false, fmt.Errorf("correlation.Factorize: eigen decomposition: %w", jerr)
	}

	n := len(m)
	for i := range eigvals {
		if eigvals[i] < eigenFloor {
			eigvals[i] = eigenFloor
		}
	}

	proj := NewMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += eigvecs[i][k] * eigvals[k] * eigvecs[j][k]
			}
			proj[i][j] = sum
		}
	}

	// Rescale to unit diagonal: C' = D^-1/2 * proj * D^-1/2.
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = math.Sqrt(proj[i][i])
	}
	rescaled := NewMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rescaled[i][j] = proj[i][j] / (d[i] * d[j])
		}
	}
	for i := 0; i < n; i++ {
		rescaled[i][i] = 1
	}

	l, ok := Cholesky(rescaled)
	if !ok {
		return nil, true, fmt.Errorf("correlation.Factorize: projected matrix still not PSD")
	}
	return l, true, nil
}
