package integrators

import (
	"bytes"
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/san-kum/odelab/internal/dynamo"
)

func TestStiffDecayBackwardVersusExplicit(t *testing.T) {
	const lambda = 1000.0
	p := dynamo.Params{lambda}

	explicit, err := RunExplicitEuler(decay, dynamo.State{1}, p, 0.01, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, y := explicit.Last(); math.Abs(y[0]) < 1e90 {
		t.Errorf("explicit Euler should diverge at h=0.01, got %v", y[0])
	}

	implicit, err := RunImplicitRK(decay, dynamo.State{1}, p, 1, stiffOptions(), BackwardEuler())
	if err != nil {
		t.Fatal(err)
	}
	if implicit.Len() != 101 {
		t.Errorf("expected 101 samples, got %d", implicit.Len())
	}
	if implicit.Stats.Rejected != 0 {
		t.Errorf("expected no rejections, got %d", implicit.Stats.Rejected)
	}
	for i, v := range implicit.Values {
		if v[0] < 0 || v[0] > 1 {
			t.Fatalf("sample %d out of bounds: %v", i, v[0])
		}
		if i > 0 && v[0] >= implicit.Values[i-1][0] {
			t.Fatalf("sample %d not decaying: %v >= %v", i, v[0], implicit.Values[i-1][0])
		}
	}
	tEnd, y := implicit.Last()
	if tEnd != 1 {
		t.Errorf("final time %v, want 1", tEnd)
	}
	// Each step divides by 1 + hλ = 11.
	if want := math.Pow(11, -100); math.Abs(y[0]-want) > 1e-3*want {
		t.Errorf("final value %e, want %e", y[0], want)
	}
}

func TestAdaptiveAccuracy(t *testing.T) {
	tests := []struct {
		name string
		tab  *Tableau
	}{
		{"kvaerno5", Kvaerno5()},
		{"dopri5", DormandPrince()},
		{"bosh3", BogackiShampine()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := RunImplicitRK(decay, dynamo.State{1}, dynamo.Params{1}, 1, dynamo.DefaultOptions(), tt.tab)
			if err != nil {
				t.Fatal(err)
			}
			tEnd, y := res.Last()
			if tEnd != 1 {
				t.Errorf("final time %v, want 1", tEnd)
			}
			if !scalar.EqualWithinAbs(y[0], math.Exp(-1), 1e-5) {
				t.Errorf("y(1) = %v, want %v", y[0], math.Exp(-1))
			}
		})
	}
}

func TestAdaptiveMethodsAgree(t *testing.T) {
	opts := dynamo.DefaultOptions()
	y0 := dynamo.State{10, 10}

	stiff, err := RunImplicitRK(lotkaVolterra, y0, lvParams, 10, opts, Kvaerno5())
	if err != nil {
		t.Fatal(err)
	}
	explicit, err := RunImplicitRK(lotkaVolterra, y0, lvParams, 10, opts, DormandPrince())
	if err != nil {
		t.Fatal(err)
	}

	_, a := stiff.Last()
	_, b := explicit.Last()
	if !floats.EqualApprox(a, b, 1e-3) {
		t.Errorf("kvaerno5 %v and dopri5 %v disagree", a, b)
	}
	if stiff.Stats.Jacobians == 0 || explicit.Stats.Jacobians != 0 {
		t.Errorf("unexpected jacobian counts: %d, %d", stiff.Stats.Jacobians, explicit.Stats.Jacobians)
	}
}

func TestAdaptiveDeterministic(t *testing.T) {
	run := func() *dynamo.Result {
		res, err := RunImplicitRK(vanDerPol, dynamo.State{2, 0}, dynamo.Params{1}, 5, dynamo.DefaultOptions(), Kvaerno5())
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	a, b := run(), run()
	if !reflect.DeepEqual(a.Trajectory, b.Trajectory) {
		t.Error("repeated runs produced different trajectories")
	}
	if a.Stats != b.Stats {
		t.Errorf("stats differ: %+v vs %+v", a.Stats, b.Stats)
	}
}

func TestAdaptiveZeroEnd(t *testing.T) {
	res, err := RunImplicitRK(decay, dynamo.State{3}, dynamo.Params{1}, 0, dynamo.DefaultOptions(), Kvaerno5())
	if err != nil {
		t.Fatal(err)
	}
	if res.Len() != 1 || res.Values[0][0] != 3 {
		t.Errorf("expected the initial sample only, got %v", res.Trajectory)
	}
}

func TestAdaptiveStepBudget(t *testing.T) {
	opts := dynamo.DefaultOptions()
	opts.MaxSteps = 2

	res, err := RunImplicitRK(decay, dynamo.State{1}, dynamo.Params{1}, 10, opts, Kvaerno5())
	if !errors.Is(err, dynamo.ErrStepBudgetExhausted) {
		t.Fatalf("expected ErrStepBudgetExhausted, got %v", err)
	}
	var se *dynamo.StepError
	if !errors.As(err, &se) || se.Step != 2 {
		t.Errorf("expected StepError at step 2, got %v", err)
	}
	if res == nil {
		t.Fatal("expected partial result")
	}
	if res.Stats.Accepted+res.Stats.Rejected != 2 {
		t.Errorf("expected 2 outer iterations, got %+v", res.Stats)
	}
	if last, _ := res.Last(); last >= 10 || last != se.Time {
		t.Errorf("partial result ends at %v, error reports %v", last, se.Time)
	}
}

func TestKvaerno45ExhaustsBudget(t *testing.T) {
	opts := dynamo.DefaultOptions()
	opts.MaxSteps = 300

	res, err := RunImplicitRK(lotkaVolterra, dynamo.State{10, 10}, lvParams, 10, opts, Kvaerno45())
	if !errors.Is(err, dynamo.ErrStepBudgetExhausted) {
		t.Fatalf("expected ErrStepBudgetExhausted, got %v", err)
	}
	if res.Len() < 2 {
		t.Fatalf("expected accepted samples, got %d", res.Len())
	}
	for i := 1; i < res.Len(); i++ {
		if res.Time[i] <= res.Time[i-1] {
			t.Fatalf("time not increasing at %d", i)
		}
	}
	if !res.Values[res.Len()-1].IsValid() {
		t.Error("partial result holds an invalid state")
	}
}

func TestAdaptiveInvalidConfig(t *testing.T) {
	bad := dynamo.DefaultOptions()
	bad.HInit = 2 * bad.HMax

	cases := []struct {
		name string
		run  func() (*dynamo.Result, error)
	}{
		{"options", func() (*dynamo.Result, error) {
			return RunImplicitRK(decay, dynamo.State{1}, dynamo.Params{1}, 1, bad, Kvaerno5())
		}},
		{"no embedded weights", func() (*dynamo.Result, error) {
			return RunImplicitRK(decay, dynamo.State{1}, dynamo.Params{1}, 1, dynamo.DefaultOptions(), ClassicRK4())
		}},
		{"negative end", func() (*dynamo.Result, error) {
			return RunImplicitRK(decay, dynamo.State{1}, dynamo.Params{1}, -1, dynamo.DefaultOptions(), Kvaerno5())
		}},
		{"ragged tableau", func() (*dynamo.Result, error) {
			tab := BackwardEuler()
			tab.B = []float64{0.5, 0.5}
			return RunImplicitRK(decay, dynamo.State{1}, dynamo.Params{1}, 1, dynamo.DefaultOptions(), tab)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := tc.run()
			if !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if res != nil {
				t.Error("expected no result")
			}
		})
	}

	_, err := RunImplicitRK(decay, dynamo.State{math.NaN()}, dynamo.Params{1}, 1, dynamo.DefaultOptions(), Kvaerno5())
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("nan y0: expected ErrInvalidState, got %v", err)
	}
}

func TestAdaptiveDimensionMismatch(t *testing.T) {
	res, err := RunImplicitRK(lotkaVolterra, dynamo.State{1}, lvParams, 1, dynamo.DefaultOptions(), Kvaerno5())
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if res.Len() != 1 {
		t.Errorf("expected only the initial sample, got %d", res.Len())
	}
}

func TestAdaptiveSingularRecovery(t *testing.T) {
	opts := dynamo.DefaultOptions()
	opts.HInit = 0.5
	opts.HMax = 0.5

	rec := &recorder{}
	a := NewBackwardEuler(opts)
	a.Observer = rec

	// The first attempted stage lands at t=0.5, inside the NaN window.
	res, err := a.Integrate(context.Background(), nanWindow(0.45, 0.55), dynamo.State{1}, nil, 1)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if last, _ := res.Last(); last != 1 {
		t.Errorf("final time %v, want 1", last)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != dynamo.WarnSingularMatrix || res.Warnings[0].Step != 0 {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}
	if res.Stats.Rejected != 1 {
		t.Errorf("expected 1 rejection, got %d", res.Stats.Rejected)
	}
	if rec.events[0].Accepted || !scalar.EqualWithinAbs(rec.events[1].H, 0.1, 1e-15) {
		t.Errorf("expected a rejected first attempt followed by h=0.1, got %+v", rec.events[:2])
	}
}

func TestAdaptiveSingularAtMinimumStep(t *testing.T) {
	opts := dynamo.DefaultOptions()
	opts.HInit = 0.5
	opts.HMax = 0.5
	opts.HMin = 0.05

	res, err := RunImplicitRK(nanWindow(0.3, math.Inf(1)), dynamo.State{1}, nil, 1, opts, BackwardEuler())
	if !errors.Is(err, dynamo.ErrSingularMatrix) {
		t.Fatalf("expected ErrSingularMatrix, got %v", err)
	}
	var se *dynamo.StepError
	if !errors.As(err, &se) || se.H != opts.HMin {
		t.Errorf("expected StepError at h_min, got %v", err)
	}
	if last, _ := res.Last(); last >= 0.3 {
		t.Errorf("partial result should stop before 0.3, ends at %v", last)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected singular-matrix warnings before the abort")
	}
}

func TestAdaptiveNonConvergenceIsReported(t *testing.T) {
	opts := dynamo.DefaultOptions()
	opts.MaxIter = 1

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.WarnLevel)
	ctx := logger.WithContext(context.Background())

	rec := &recorder{}
	a := NewKvaerno5(opts)
	a.Observer = rec

	res, err := a.Integrate(ctx, decay, dynamo.State{1}, dynamo.Params{1}, 1)
	if err != nil {
		t.Fatal(err)
	}

	iterations := res.Stats.Accepted + res.Stats.Rejected
	if res.Stats.NonConverged != iterations {
		t.Errorf("expected every step flagged, got %d of %d", res.Stats.NonConverged, iterations)
	}
	if len(res.Warnings) != res.Stats.NonConverged {
		t.Errorf("expected %d warnings, got %d", res.Stats.NonConverged, len(res.Warnings))
	}
	for _, w := range res.Warnings {
		if w.Kind != dynamo.WarnNonConvergence {
			t.Errorf("unexpected warning kind %q", w.Kind)
		}
	}
	for _, ev := range rec.events {
		if ev.Converged {
			t.Errorf("step %d reported as converged", ev.Step)
		}
	}
	if got := strings.Count(buf.String(), "newton iteration did not converge"); got != res.Stats.NonConverged {
		t.Errorf("expected %d log lines, got %d", res.Stats.NonConverged, got)
	}
}

func TestAdaptiveCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := NewKvaerno5(dynamo.DefaultOptions())
	a.Observer = dynamo.ObserverFunc(func(ev dynamo.StepEvent) {
		if ev.Step == 1 {
			cancel()
		}
	})

	res, err := a.Integrate(ctx, lotkaVolterra, dynamo.State{10, 10}, lvParams, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || res.Stats.Accepted+res.Stats.Rejected != 2 {
		t.Errorf("expected the run to stop after 2 iterations, got %+v", res)
	}
}

func TestErrorNorm(t *testing.T) {
	y := dynamo.State{1, 100}
	y5 := dynamo.State{1, 100}
	y4 := dynamo.State{1 + 1e-6, 100}

	got := errorNorm(y, y5, y4, 1e-8, 1e-6)
	want := math.Sqrt(0.5) * 1e-6 / (1e-8 + 1e-6)
	if !scalar.EqualWithinRel(got, want, 1e-9) {
		t.Errorf("errorNorm = %v, want %v", got, want)
	}

	if e := errorNorm(y, dynamo.State{math.NaN(), 0}, y4, 1e-8, 1e-6); !math.IsInf(e, 1) {
		t.Errorf("nan norm = %v, want +Inf", e)
	}
}
