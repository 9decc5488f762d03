// Package linalg holds the dense linear algebra used by the implicit
// integrators: a pivoted Gauss-Jordan solver and a forward-difference
// Jacobian estimator.
package linalg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odelab/internal/dynamo"
)

// PivotThreshold is the smallest pivot magnitude accepted by Solve.
const PivotThreshold = 1e-12

// SingularError reports the elimination column whose best pivot fell below
// PivotThreshold.
type SingularError struct {
	Col   int
	Pivot float64
}

func (e *SingularError) Error() string {
	return fmt.Sprintf("linalg: singular matrix (column %d, pivot %.3g)", e.Col, e.Pivot)
}

func (e *SingularError) Unwrap() error { return dynamo.ErrSingularMatrix }

// Solve returns x with a·x = b using elimination on the augmented matrix
// [a | b] with partial pivoting. Neither a nor b is modified.
func Solve(a mat.Matrix, b []float64) ([]float64, error) {
	r, c := a.Dims()
	n := len(b)
	if r != c {
		return nil, dynamo.DimError("square matrix columns", r, c)
	}
	if r != n {
		return nil, dynamo.DimError("right-hand side length", r, n)
	}

	m := make([][]float64, n)
	for i := range m {
		row := make([]float64, n+1)
		for j := 0; j < n; j++ {
			row[j] = a.At(i, j)
		}
		row[n] = b[i]
		m[i] = row
	}

	for i := 0; i < n; i++ {
		maxRow := i
		for k := i + 1; k < n; k++ {
			if math.Abs(m[k][i]) > math.Abs(m[maxRow][i]) {
				maxRow = k
			}
		}
		m[i], m[maxRow] = m[maxRow], m[i]

		pivot := m[i][i]
		// NaN pivots fail this comparison too.
		if !(math.Abs(pivot) >= PivotThreshold) {
			return nil, &SingularError{Col: i, Pivot: pivot}
		}

		for j := i; j <= n; j++ {
			m[i][j] /= pivot
		}

		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			factor := m[k][i]
			for j := i; j <= n; j++ {
				m[k][j] -= factor * m[i][j]
			}
		}
	}

	x := make([]float64, n)
	for i := range m {
		x[i] = m[i][n]
	}
	return x, nil
}
