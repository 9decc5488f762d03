package integrators

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/san-kum/odelab/internal/dynamo"
)

// Step-size controller constants.
const (
	safety    = 0.9
	errExp    = 1.0 / 5.0
	minFactor = 0.2
	maxFactor = 5.0
	errFloor  = 1e-10
)

// Adaptive integrates with an embedded Runge-Kutta pair, accepting a step
// when the weighted RMS error norm is at most one. Implicit tableaux have
// their stages solved by NewtonSolver; explicit ones are evaluated
// directly. Options is copied on construction and never modified.
type Adaptive struct {
	Tableau  *Tableau
	Options  dynamo.Options
	Observer dynamo.Observer
}

func NewAdaptive(tab *Tableau, opts dynamo.Options) *Adaptive {
	return &Adaptive{Tableau: tab, Options: opts}
}

func NewKvaerno5(opts dynamo.Options) *Adaptive { return NewAdaptive(Kvaerno5(), opts) }

func NewKvaerno45(opts dynamo.Options) *Adaptive { return NewAdaptive(Kvaerno45(), opts) }

func NewBackwardEuler(opts dynamo.Options) *Adaptive { return NewAdaptive(BackwardEuler(), opts) }

func NewDormandPrince(opts dynamo.Options) *Adaptive { return NewAdaptive(DormandPrince(), opts) }

func NewBogackiShampine(opts dynamo.Options) *Adaptive { return NewAdaptive(BogackiShampine(), opts) }

func (a *Adaptive) Name() string { return a.Tableau.Name }

// RunImplicitRK integrates from 0 to tEnd with the given tableau. When the
// step budget runs out the partial result is returned together with an
// error wrapping dynamo.ErrStepBudgetExhausted.
func RunImplicitRK(model dynamo.Model, y0 dynamo.State, pars dynamo.Params, tEnd float64, opts dynamo.Options, tab *Tableau) (*dynamo.Result, error) {
	return NewAdaptive(tab, opts).Integrate(context.Background(), model, y0, pars, tEnd)
}

// Integrate runs the accept/reject loop. A non-nil Result is returned with
// every error raised after validation; it holds the samples accepted so far.
func (a *Adaptive) Integrate(ctx context.Context, model dynamo.Model, y0 dynamo.State, p dynamo.Params, tEnd float64) (*dynamo.Result, error) {
	if err := a.validate(y0, tEnd); err != nil {
		return nil, err
	}

	opts := a.Options
	tab := a.Tableau
	log := zerolog.Ctx(ctx)
	explicit := tab.IsExplicit()
	newton := &NewtonSolver{Tableau: tab, RTol: opts.RTol, MaxIter: opts.MaxIter}

	res := dynamo.NewResult(a.Name(), y0, 64)
	t, h := 0.0, opts.HInit
	y := y0.Clone()

	for step := 0; t < tEnd; step++ {
		if step >= opts.MaxSteps {
			log.Warn().
				Str("method", a.Name()).
				Int("max_steps", opts.MaxSteps).
				Float64("t", t).
				Msg("step budget exhausted")
			return res, &dynamo.StepError{Step: step, Time: t, H: h, State: y.Clone(), Wrapped: dynamo.ErrStepBudgetExhausted}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		last := false
		if t+h >= tEnd {
			h = tEnd - t
			last = true
		}

		var (
			k   [][]float64
			rep NewtonReport
			err error
		)
		if explicit {
			var evals int
			k, evals, err = explicitStages(model, tab, t, y, p, h)
			res.Stats.Evaluations += evals
			rep.Converged = true
		} else {
			k, rep, err = newton.Solve(model, y, t, p, h)
			res.Stats.Evaluations += rep.Evaluations
			res.Stats.Jacobians += rep.Jacobians
			res.Stats.NewtonIterations += rep.Iterations
		}

		if err != nil {
			if !errors.Is(err, dynamo.ErrSingularMatrix) || h <= opts.HMin {
				return res, &dynamo.StepError{Step: step, Time: t, H: h, State: y.Clone(), Wrapped: err}
			}
			res.Warn(dynamo.Warning{
				Kind:    dynamo.WarnSingularMatrix,
				Step:    step,
				Time:    t,
				H:       h,
				Message: err.Error(),
			})
			log.Warn().Err(err).Int("step", step).Float64("t", t).Float64("h", h).
				Msg("singular stage matrix, shrinking step")
			res.Stats.Rejected++
			a.notify(dynamo.StepEvent{Step: step, Time: t, H: h, Err: math.Inf(1), State: y, NewtonIterations: rep.Iterations})
			h = clamp(h*minFactor, opts.HMin, opts.HMax)
			continue
		}

		if !rep.Converged {
			res.Stats.NonConverged++
			res.Warn(dynamo.Warning{
				Kind:    dynamo.WarnNonConvergence,
				Step:    step,
				Time:    t,
				H:       h,
				Message: fmt.Sprintf("%v after %d sweeps (residual %.3g)", dynamo.ErrNonConvergence, rep.Iterations, rep.MaxResidual),
			})
			log.Warn().Int("step", step).Float64("t", t).Float64("h", h).
				Int("sweeps", rep.Iterations).Float64("residual", rep.MaxResidual).
				Msg("newton iteration did not converge")
		}

		y5 := combine(y, h, tab.B, k)
		y4 := combine(y, h, tab.BHat, k)
		errNorm := errorNorm(y, y5, y4, opts.ATol, opts.RTol)

		accepted := errNorm <= 1
		hUsed := h
		if accepted {
			if last {
				t = tEnd
			} else {
				t += h
			}
			y = y5
			res.Append(t, y)
			res.Stats.Accepted++
			res.Stats.LastStep = hUsed
		} else {
			res.Stats.Rejected++
			log.Debug().Int("step", step).Float64("t", t).Float64("h", h).Float64("err", errNorm).
				Msg("step rejected")
		}

		fac := safety * math.Pow(1/(errNorm+errFloor), errExp)
		h *= clamp(fac, minFactor, maxFactor)
		h = clamp(h, opts.HMin, opts.HMax)

		a.notify(dynamo.StepEvent{
			Step:             step,
			Time:             t,
			H:                hUsed,
			Err:              errNorm,
			Accepted:         accepted,
			State:            y,
			NewtonIterations: rep.Iterations,
			Converged:        rep.Converged,
		})
	}
	res.Stats.NextStep = h

	return res, nil
}

func (a *Adaptive) notify(ev dynamo.StepEvent) {
	if a.Observer != nil {
		a.Observer.OnStep(ev)
	}
}

func (a *Adaptive) validate(y0 dynamo.State, tEnd float64) error {
	if a.Tableau == nil {
		return fmt.Errorf("%w: no tableau", dynamo.ErrInvalidConfig)
	}
	if err := a.Tableau.Validate(); err != nil {
		return err
	}
	if !a.Tableau.Embedded() {
		return fmt.Errorf("%w: tableau %q has no embedded weights", dynamo.ErrInvalidConfig, a.Tableau.Name)
	}
	if err := a.Options.Validate(); err != nil {
		return err
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

// errorNorm is the weighted RMS of y5-y4 with per-component scale
// atol + rtol·max(|y|, |y5|). NaN and Inf collapse to +Inf.
func errorNorm(y, y5, y4 dynamo.State, atol, rtol float64) float64 {
	sum := 0.0
	for i := range y {
		sc := atol + rtol*math.Max(math.Abs(y[i]), math.Abs(y5[i]))
		d := (y5[i] - y4[i]) / sc
		sum += d * d
	}
	e := math.Sqrt(sum / float64(len(y)))
	if math.IsNaN(e) {
		return math.Inf(1)
	}
	return e
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
