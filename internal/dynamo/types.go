package dynamo

import (
	"context"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// MaxAbs returns the infinity norm of s.
func (s State) MaxAbs() float64 {
	m := 0.0
	for _, v := range s {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

type Params []float64

// Model is the right-hand side of dy/dt = f(t, y, p). It must be pure and
// deterministic, must not retain or modify y or p, and reports a length
// mismatch by returning an error wrapping ErrDimensionMismatch.
type Model func(t float64, y State, p Params) (State, error)

// Trajectory is the discretized solution. Time[0] is 0, Values[0] is y0, and
// Time is strictly increasing.
type Trajectory struct {
	Time   []float64 `json:"time"`
	Values []State   `json:"values"`
}

func (tr *Trajectory) Len() int { return len(tr.Time) }

func (tr *Trajectory) append(t float64, y State) {
	tr.Time = append(tr.Time, t)
	tr.Values = append(tr.Values, y.Clone())
}

// Last returns the final sample.
func (tr *Trajectory) Last() (float64, State) {
	n := len(tr.Time)
	if n == 0 {
		return 0, nil
	}
	return tr.Time[n-1], tr.Values[n-1]
}

// Component extracts state component i of every sample.
func (tr *Trajectory) Component(i int) []float64 {
	out := make([]float64, len(tr.Values))
	for k, v := range tr.Values {
		if i < len(v) {
			out[k] = v[i]
		}
	}
	return out
}

type Stats struct {
	Accepted         int     `json:"accepted"`
	Rejected         int     `json:"rejected"`
	Evaluations      int     `json:"evaluations"`
	Jacobians        int     `json:"jacobians"`
	NewtonIterations int     `json:"newton_iterations"`
	NonConverged     int     `json:"non_converged"`
	LastStep         float64 `json:"last_step"`
	NextStep         float64 `json:"next_step"`
}

type Result struct {
	Trajectory
	Method   string    `json:"method"`
	Stats    Stats     `json:"stats"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// NewResult starts a result holding the initial sample (0, y0).
func NewResult(method string, y0 State, capacity int) *Result {
	r := &Result{
		Method: method,
		Trajectory: Trajectory{
			Time:   make([]float64, 0, capacity),
			Values: make([]State, 0, capacity),
		},
	}
	r.append(0, y0)
	return r
}

// Append records an accepted sample. y is copied.
func (r *Result) Append(t float64, y State) {
	r.append(t, y)
}

func (r *Result) Warn(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// StepEvent describes one outer iteration of a run.
type StepEvent struct {
	Step             int
	Time             float64
	H                float64
	Err              float64
	Accepted         bool
	State            State
	NewtonIterations int
	Converged        bool
}

type Observer interface {
	OnStep(ev StepEvent)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ev StepEvent)

func (f ObserverFunc) OnStep(ev StepEvent) { f(ev) }

// Integrator runs a model from t=0 to tEnd.
type Integrator interface {
	Name() string
	Integrate(ctx context.Context, model Model, y0 State, p Params, tEnd float64) (*Result, error)
}
