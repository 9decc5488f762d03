package models

import "github.com/san-kum/odelab/internal/dynamo"

// VanDerPol implements the Van der Pol oscillator.
// State: [x, v] where v = dx/dt. Params: [mu].
//
//	dx/dt = v
//	dv/dt = μ(1 - x²)v - x
//
// μ around 1 gives the classic limit cycle; μ of 1000 is a standard stiff test.
func VanDerPol(_ float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
	if err := checkDims("vanderpol", y, 2, p, 1); err != nil {
		return nil, err
	}
	x, v := y[0], y[1]
	mu := p[0]

	return dynamo.State{v, mu*(1-x*x)*v - x}, nil
}
