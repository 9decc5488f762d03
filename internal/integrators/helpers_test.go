package integrators

import (
	"math"

	"github.com/san-kum/odelab/internal/dynamo"
)

func lotkaVolterra(t float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
	if len(y) != 2 {
		return nil, dynamo.DimError("lotka-volterra state", 2, len(y))
	}
	alpha, beta, gamma, delta := p[0], p[1], p[2], p[3]
	return dynamo.State{
		alpha*y[0] - beta*y[0]*y[1],
		delta*y[0]*y[1] - gamma*y[1],
	}, nil
}

var lvParams = dynamo.Params{1.1, 0.4, 0.4, 0.1}

// decay is dy/dt = -λy for every component, λ = p[0].
func decay(t float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
	out := make(dynamo.State, len(y))
	for i, v := range y {
		out[i] = -p[0] * v
	}
	return out, nil
}

func vanDerPol(t float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
	if len(y) != 2 {
		return nil, dynamo.DimError("van der pol state", 2, len(y))
	}
	return dynamo.State{y[1], p[0]*(1-y[0]*y[0])*y[1] - y[0]}, nil
}

func oscillator(t float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
	return dynamo.State{y[1], -y[0]}, nil
}

// nanWindow behaves like decay except inside [from, to), where it returns NaN.
func nanWindow(from, to float64) dynamo.Model {
	return func(t float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
		if t >= from && t < to {
			return dynamo.State{math.NaN()}, nil
		}
		return dynamo.State{-y[0]}, nil
	}
}

func stiffOptions() dynamo.Options {
	opts := dynamo.DefaultOptions()
	opts.HInit = 0.01
	opts.HMax = 0.01
	return opts
}

// recorder keeps every event an integrator emits.
type recorder struct {
	events []dynamo.StepEvent
}

func (r *recorder) OnStep(ev dynamo.StepEvent) {
	ev.State = ev.State.Clone()
	r.events = append(r.events, ev)
}
