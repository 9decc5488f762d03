package models

import "github.com/san-kum/odelab/internal/dynamo"

// Robertson is the three-species reaction system
//
//	A -> B          (k1)
//	B + B -> C + B  (k2)
//	B + C -> A + C  (k3)
//
// with rate constants spanning eleven orders of magnitude. A+B+C is conserved.
func Robertson(_ float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
	if err := checkDims("robertson", y, 3, p, 3); err != nil {
		return nil, err
	}
	a, b, c := y[0], y[1], y[2]
	k1, k2, k3 := p[0], p[1], p[2]

	r1 := k1 * a
	r2 := k2 * b * b
	r3 := k3 * b * c
	return dynamo.State{
		-r1 + r3,
		r1 - r2 - r3,
		r2,
	}, nil
}
