package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/san-kum/odelab/internal/dynamo"
)

// FixedStep integrates with an explicit tableau and a constant step. The
// last step is shortened so the trajectory ends exactly at tEnd.
type FixedStep struct {
	Tableau  *Tableau
	Step     float64
	Observer dynamo.Observer
}

func NewFixedStep(tab *Tableau, step float64) *FixedStep {
	return &FixedStep{Tableau: tab, Step: step}
}

func NewEuler(step float64) *FixedStep { return NewFixedStep(ExplicitEuler(), step) }

func NewHeun(step float64) *FixedStep { return NewFixedStep(Heun(), step) }

func NewRK4(step float64) *FixedStep { return NewFixedStep(ClassicRK4(), step) }

func (f *FixedStep) Name() string { return f.Tableau.Name }

// RunExplicitEuler integrates dy/dt = model(t, y, pars) from 0 to tEnd
// with forward Euler and returns ceil(tEnd/stepSize)+1 samples.
func RunExplicitEuler(model dynamo.Model, y0 dynamo.State, pars dynamo.Params, stepSize, tEnd float64) (*dynamo.Result, error) {
	return NewEuler(stepSize).Integrate(context.Background(), model, y0, pars, tEnd)
}

// Steps returns the number of steps taken to reach tEnd.
func (f *FixedStep) Steps(tEnd float64) int {
	n := int(math.Ceil(tEnd / f.Step))
	// Rounding in the division can add a step whose start already sits on tEnd.
	for n > 0 && float64(n-1)*f.Step >= tEnd {
		n--
	}
	return n
}

func (f *FixedStep) Integrate(ctx context.Context, model dynamo.Model, y0 dynamo.State, p dynamo.Params, tEnd float64) (*dynamo.Result, error) {
	if err := f.validate(y0, tEnd); err != nil {
		return nil, err
	}

	nSteps := f.Steps(tEnd)
	res := dynamo.NewResult(f.Name(), y0, nSteps+1)
	y := y0.Clone()

	for i := 0; i < nSteps; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		t := float64(i) * f.Step
		h, tNext := f.Step, float64(i+1)*f.Step
		if i == nSteps-1 {
			h, tNext = tEnd-t, tEnd
		}

		k, evals, err := explicitStages(model, f.Tableau, t, y, p, h)
		res.Stats.Evaluations += evals
		if err != nil {
			return res, &dynamo.StepError{Step: i, Time: t, H: h, State: y.Clone(), Wrapped: err}
		}
		y = combine(y, h, f.Tableau.B, k)

		res.Append(tNext, y)
		res.Stats.Accepted++
		res.Stats.LastStep = h

		if f.Observer != nil {
			f.Observer.OnStep(dynamo.StepEvent{
				Step:      i,
				Time:      tNext,
				H:         h,
				Accepted:  true,
				State:     y,
				Converged: true,
			})
		}
	}
	res.Stats.NextStep = f.Step

	zerolog.Ctx(ctx).Debug().
		Str("method", f.Name()).
		Int("steps", nSteps).
		Msg("fixed-step run complete")

	return res, nil
}

func (f *FixedStep) validate(y0 dynamo.State, tEnd float64) error {
	if f.Tableau == nil || !f.Tableau.IsExplicit() {
		return fmt.Errorf("%w: fixed-step driver needs an explicit tableau", dynamo.ErrInvalidConfig)
	}
	if err := f.Tableau.Validate(); err != nil {
		return err
	}
	if !(f.Step > 0) || math.IsInf(f.Step, 0) {
		return fmt.Errorf("%w: step size must be positive and finite, got %v", dynamo.ErrInvalidConfig, f.Step)
	}
	if !(tEnd >= 0) || math.IsInf(tEnd, 0) {
		return fmt.Errorf("%w: t_end must be non-negative and finite, got %v", dynamo.ErrInvalidConfig, tEnd)
	}
	if len(y0) == 0 {
		return dynamo.DimError("initial state length", 1, 0)
	}
	if !y0.IsValid() {
		return dynamo.ErrInvalidState
	}
	return nil
}
