package models

import "github.com/san-kum/odelab/internal/dynamo"

// Decay is dy/dt = -λy applied to every component, with λ = p[0]. For
// λ = 1000 explicit Euler is unstable above h = 0.002.
func Decay(_ float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
	if len(p) != 1 {
		return nil, dynamo.DimError("decay params", 1, len(p))
	}
	if len(y) == 0 {
		return nil, dynamo.DimError("decay state", 1, 0)
	}
	out := make(dynamo.State, len(y))
	for i, v := range y {
		out[i] = -p[0] * v
	}
	return out, nil
}
