package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/odelab/internal/dynamo"
)

// eval calls the model and checks that the derivative has the state's length.
func eval(model dynamo.Model, t float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
	f, err := model(t, y, p)
	if err != nil {
		return nil, err
	}
	if len(f) != len(y) {
		return nil, dynamo.DimError("model output length", len(y), len(f))
	}
	return f, nil
}

// stageState returns y + h·Σ_{j<=upto} A[i][j]·k_j.
func stageState(tab *Tableau, i, upto int, y dynamo.State, h float64, k [][]float64) dynamo.State {
	yi := y.Clone()
	for j := 0; j <= upto; j++ {
		if a := tab.A[i][j]; a != 0 {
			floats.AddScaled(yi, h*a, k[j])
		}
	}
	return yi
}

// explicitStages evaluates every stage of an explicit tableau in order.
// It returns the stage derivatives and the number of model evaluations.
func explicitStages(model dynamo.Model, tab *Tableau, t float64, y dynamo.State, p dynamo.Params, h float64) ([][]float64, int, error) {
	s := tab.Stages()
	k := make([][]float64, s)
	for i := 0; i < s; i++ {
		yi := stageState(tab, i, i-1, y, h, k)
		f, err := eval(model, t+tab.C[i]*h, yi, p)
		if err != nil {
			return nil, i, err
		}
		k[i] = f
	}
	return k, s, nil
}

// combine returns y + h·Σ w_i·k_i.
func combine(y dynamo.State, h float64, w []float64, k [][]float64) dynamo.State {
	out := y.Clone()
	for i, wi := range w {
		if wi != 0 {
			floats.AddScaled(out, h*wi, k[i])
		}
	}
	return out
}
