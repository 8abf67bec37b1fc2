package correlation

import (
	"fmt"
	"math"
)

// ErrEigenFailed is returned if the Jacobi sweep does not converge within
// maxIter iterations.
var ErrEigenFailed = fmt.Errorf("correlation: eigen decomposition did not converge")

// Jacobi performs Jacobi eigenvalue decomposition on a symmetric matrix m.
// It returns the eigenvalues and a matrix whose columns are the matching
// eigenvectors. tol is the convergence threshold on the largest
// off-diagonal element; maxIter caps the number of sweeps.
//
// Adapted from the classical cyclic-pivot Jacobi method: at each iteration
// the largest off-diagonal entry is rotated to zero, accumulating the
// rotation into Q until the matrix is (numerically) diagonal.
func Jacobi(m Matrix, tol float64, maxIter int) ([]float64, Matrix, error) {
	n := len(m)

	a := NewMatrix(n)
	for i := 0; i < n; i++ {
		copy(a[i], m[i])
	}

	q := NewMatrix(n)
	for i := 0; i < n; i++ {
		q[i][i] = 1
	}

	for iter := 0; iter < maxIter; iter++ {
		p, qi, maxOff := 0, 1, 0.0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if off := math.Abs(a[i][j]); off > maxOff {
					maxOff = off
					p, qi = i, j
				}
			}
		}
		if maxOff < tol {
			break
		}
		if iter == maxIter-1 {
			return nil, nil, ErrEigenFailed
		}

		app, aqq, apq := a[p][p], a[qi][qi], a[p][qi]
		var theta, t, c, s float64
		if apq != 0 {
			theta = (aqq - app) / (2 * apq)
			sign := 1.0
			if theta < 0 {
				sign = -1.0
			}
			t = sign / (math.Abs(theta) + math.Sqrt(theta*theta+1))
			c = 1 / math.Sqrt(t*t+1)
			s = t * c
		} else {
			c, s = 1, 0
		}

		for k := 0; k < n; k++ {
			akp, akq := a[k][p], a[k][qi]
			a[k][p] = c*akp - s*akq
			a[k][qi] = s*akp + c*akq
		}
		for k := 0; k < n; k++ {
			apk, aqk := a[p][k], a[qi][k]
			a[p][k] = c*apk - s*aqk
			a[qi][k] = s*apk + c*aqk
		}
		for k := 0; k < n; k++ {
			qkp, qkq := q[k][p], q[k][qi]
			q[k][p] = c*qkp - s*qkq
			q[k][qi] = s*qkp + c*qkq
		}
	}

	eigvals := make([]float64, n)
	for i := 0; i < n; i++ {
		eigvals[i] = a[i][i]
	}
	return eigvals, q, nil
}
