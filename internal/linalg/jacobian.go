package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odelab/internal/dynamo"
)

// DefaultEps is the relative perturbation used by Jacobian.
const DefaultEps = 1e-8

// Jacobian approximates ∂f/∂y at (t, y) by forward differences. Column j
// uses the perturbation eps·max(|y_j|, 1). It costs len(y)+1 model
// evaluations and leaves y untouched.
func Jacobian(model dynamo.Model, t float64, y dynamo.State, p dynamo.Params, eps float64) (*mat.Dense, error) {
	n := len(y)
	if n == 0 {
		return nil, dynamo.DimError("state length", 1, 0)
	}
	f0, err := model(t, y, p)
	if err != nil {
		return nil, err
	}
	if len(f0) != n {
		return nil, dynamo.DimError("model output length", n, len(f0))
	}

	jac := mat.NewDense(n, n, nil)
	yp := y.Clone()

	for j := 0; j < n; j++ {
		yj := y[j]
		h := eps * math.Max(math.Abs(yj), 1)
		yp[j] = yj + h
		f1, err := model(t, yp, p)
		if err != nil {
			return nil, err
		}
		if len(f1) != n {
			return nil, dynamo.DimError("model output length", n, len(f1))
		}
		yp[j] = yj

		for i := 0; i < n; i++ {
			jac.Set(i, j, (f1[i]-f0[i])/h)
		}
	}

	return jac, nil
}
