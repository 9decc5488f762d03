package integrators

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/odelab/internal/dynamo"
	"github.com/san-kum/odelab/internal/linalg"
)

// NewtonSolver computes the stage derivatives of a diagonally implicit
// tableau for one step.
//
// Stages are solved one after another inside each sweep: stage i is
// linearized around the current values of every k_j, including the ones
// already updated earlier in the same sweep. This Gauss-Seidel coupling
// approximates the fully coupled (n·s)-dimensional Newton system. On very
// stiff problems it can stall where the coupled iteration would not; the
// caller sees that as a NewtonReport with Converged false.
type NewtonSolver struct {
	Tableau *Tableau
	RTol    float64
	MaxIter int
	// Eps is the relative Jacobian perturbation; zero means linalg.DefaultEps.
	Eps float64
}

// NewtonReport summarizes one call to Solve.
type NewtonReport struct {
	Iterations  int
	Converged   bool
	MaxResidual float64
	Evaluations int
	Jacobians   int
}

// Solve returns the stage derivatives k (one row per stage) for the step
// from (t, y) with size h. A sweep cap without convergence is not an
// error: the last k is returned with report.Converged false. Model
// failures and singular iteration matrices are returned as errors.
func (s *NewtonSolver) Solve(model dynamo.Model, y dynamo.State, t float64, p dynamo.Params, h float64) ([][]float64, NewtonReport, error) {
	tab := s.Tableau
	stages := tab.Stages()
	n := len(y)
	eps := s.Eps
	if eps == 0 {
		eps = linalg.DefaultEps
	}

	k := make([][]float64, stages)
	for i := range k {
		k[i] = make([]float64, n)
	}
	r := make([]float64, n)

	var rep NewtonReport
	for it := 0; it < s.MaxIter; it++ {
		rep.Iterations++
		maxErr := 0.0

		for i := 0; i < stages; i++ {
			ti := t + tab.C[i]*h
			yi := stageState(tab, i, i, y, h, k)

			f, err := eval(model, ti, yi, p)
			rep.Evaluations++
			if err != nil {
				return nil, rep, err
			}
			floats.SubTo(r, k[i], f)
			e := floats.Norm(r, math.Inf(1))
			if floats.HasNaN(r) {
				e = math.Inf(1)
			}
			if e > maxErr {
				maxErr = e
			}

			diag := tab.A[i][i]
			if diag == 0 {
				// J = I, so the update lands exactly on f.
				floats.Sub(k[i], r)
				continue
			}

			jac, err := linalg.Jacobian(model, ti, yi, p, eps)
			rep.Jacobians++
			rep.Evaluations += n + 1
			if err != nil {
				return nil, rep, err
			}
			jac.Scale(-h*diag, jac)
			for d := 0; d < n; d++ {
				jac.Set(d, d, jac.At(d, d)+1)
			}

			dk, err := linalg.Solve(jac, r)
			if err != nil {
				return nil, rep, err
			}
			floats.Sub(k[i], dk)
		}

		rep.MaxResidual = maxErr
		if maxErr < s.RTol {
			rep.Converged = true
			break
		}
	}

	return k, rep, nil
}
