package models

import (
	"math"

	"github.com/san-kum/odelab/internal/dynamo"
)

// LotkaVolterra is the predator-prey model.
// State: [prey, predator]. Params: [alpha, beta, gamma, delta].
//
//	dprey/dt = alpha·prey - beta·prey·pred
//	dpred/dt = delta·prey·pred - gamma·pred
func LotkaVolterra(_ float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
	if err := checkDims("lotka-volterra", y, 2, p, 4); err != nil {
		return nil, err
	}
	prey, pred := y[0], y[1]
	alpha, beta, gamma, delta := p[0], p[1], p[2], p[3]

	interaction := prey * pred
	return dynamo.State{
		alpha*prey - beta*interaction,
		delta*interaction - gamma*pred,
	}, nil
}

// LotkaVolterraInvariant is the first integral
// V = delta·prey - gamma·ln(prey) + beta·pred - alpha·ln(pred),
// constant along exact solutions with positive populations.
func LotkaVolterraInvariant(y dynamo.State, p dynamo.Params) float64 {
	prey, pred := y[0], y[1]
	alpha, beta, gamma, delta := p[0], p[1], p[2], p[3]
	return delta*prey - gamma*math.Log(prey) + beta*pred - alpha*math.Log(pred)
}
