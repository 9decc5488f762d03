// Package models provides right-hand sides used by the CLI, presets and
// tests. Every model is a plain dynamo.Model; System adds the metadata the
// command layer needs to label and default a run.
package models

import (
	"fmt"

	"github.com/san-kum/odelab/internal/dynamo"
)

// System describes a model and its defaults. A StateDim of zero means the
// model accepts any state length.
type System struct {
	Name          string
	Description   string
	StateDim      int
	StateLabels   []string
	ParamNames    []string
	DefaultState  dynamo.State
	DefaultParams dynamo.Params
	// Stiff marks systems that need an implicit method at reasonable tolerances.
	Stiff bool
	Func  dynamo.Model
	// Invariant is a quantity the exact flow conserves, or nil.
	Invariant func(y dynamo.State, p dynamo.Params) float64
}

// Label returns the display name of state component i.
func (s *System) Label(i int) string {
	if i < len(s.StateLabels) {
		return s.StateLabels[i]
	}
	return fmt.Sprintf("y%d", i)
}

// CheckParams validates a parameter vector against ParamNames.
func (s *System) CheckParams(p dynamo.Params) error {
	if len(p) != len(s.ParamNames) {
		return dynamo.DimError(s.Name+" params", len(s.ParamNames), len(p))
	}
	return nil
}

// CheckState validates a state vector against StateDim.
func (s *System) CheckState(y dynamo.State) error {
	if s.StateDim > 0 && len(y) != s.StateDim {
		return dynamo.DimError(s.Name+" state", s.StateDim, len(y))
	}
	if len(y) == 0 {
		return dynamo.DimError(s.Name+" state", 1, 0)
	}
	return nil
}

func checkDims(name string, y dynamo.State, n int, p dynamo.Params, m int) error {
	if len(y) != n {
		return dynamo.DimError(name+" state", n, len(y))
	}
	if len(p) != m {
		return dynamo.DimError(name+" params", m, len(p))
	}
	return nil
}

var all = []*System{
	{
		Name:          "lotka-volterra",
		Description:   "predator-prey population dynamics",
		StateDim:      2,
		StateLabels:   []string{"prey", "predator"},
		ParamNames:    []string{"alpha", "beta", "gamma", "delta"},
		DefaultState:  dynamo.State{10, 10},
		DefaultParams: dynamo.Params{1.1, 0.4, 0.4, 0.1},
		Func:          LotkaVolterra,
		Invariant:     LotkaVolterraInvariant,
	},
	{
		Name:          "decay",
		Description:   "linear decay dy/dt = -λy, stiff for large λ",
		StateLabels:   []string{"y"},
		ParamNames:    []string{"lambda"},
		DefaultState:  dynamo.State{1},
		DefaultParams: dynamo.Params{1000},
		Stiff:         true,
		Func:          Decay,
	},
	{
		Name:          "vanderpol",
		Description:   "Van der Pol relaxation oscillator",
		StateDim:      2,
		StateLabels:   []string{"x", "v"},
		ParamNames:    []string{"mu"},
		DefaultState:  dynamo.State{2, 0},
		DefaultParams: dynamo.Params{1},
		Func:          VanDerPol,
	},
	{
		Name:          "robertson",
		Description:   "Robertson autocatalytic reaction kinetics",
		StateDim:      3,
		StateLabels:   []string{"A", "B", "C"},
		ParamNames:    []string{"k1", "k2", "k3"},
		DefaultState:  dynamo.State{1, 0, 0},
		DefaultParams: dynamo.Params{0.04, 3e7, 1e4},
		Stiff:         true,
		Func:          Robertson,
		Invariant:     func(y dynamo.State, _ dynamo.Params) float64 { return y[0] + y[1] + y[2] },
	},
}

// All returns every shipped system in a stable order.
func All() []*System {
	out := make([]*System, len(all))
	copy(out, all)
	return out
}

// Get looks a system up by name.
func Get(name string) (*System, bool) {
	for _, s := range all {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}
