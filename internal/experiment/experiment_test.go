package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/odelab/internal/config"
	"github.com/san-kum/odelab/internal/dynamo"
	"github.com/san-kum/odelab/internal/integrators"
)

func TestRegistryCoversConfigMethods(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"euler", "heun", "rk4", "bosh3", "dopri5", "kvaerno5", "kvaerno45", "backward-euler"} {
		m, err := reg.GetMethod(name)
		if err != nil {
			t.Fatalf("method %s: %v", name, err)
		}
		cfg := config.DefaultConfig()
		cfg.Method = name
		if m.Adaptive != cfg.Adaptive() {
			t.Errorf("%s: registry adaptive=%v, config adaptive=%v", name, m.Adaptive, cfg.Adaptive())
		}
		opts := dynamo.DefaultOptions()
		opts.RTol = 1e-4
		integ := m.Build(0.1, opts, nil)
		if integ.Name() != name {
			t.Errorf("built integrator named %q, want %q", integ.Name(), name)
		}
		switch it := integ.(type) {
		case *integrators.FixedStep:
			if m.Adaptive || it.Step != 0.1 {
				t.Errorf("%s: fixed integrator with step %v, adaptive=%v", name, it.Step, m.Adaptive)
			}
		case *integrators.Adaptive:
			if !m.Adaptive || it.Options != opts {
				t.Errorf("%s: adaptive integrator options %+v, want %+v", name, it.Options, opts)
			}
		default:
			t.Errorf("%s: unexpected integrator type %T", name, integ)
		}
	}
	if _, err := reg.GetMethod("verlet"); err == nil {
		t.Error("expected error for unknown method")
	}
	if got := reg.ListModels(); len(got) != 4 || got[0] != "decay" {
		t.Errorf("unexpected models %v", got)
	}
}

func TestRunFixturePreset(t *testing.T) {
	exp, err := New(NewRegistry(), config.GetPreset("lotka-volterra", "fixture"))
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	exp.AddObserver(dynamo.ObserverFunc(func(dynamo.StepEvent) { count++ }))

	out, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 101 || count != 100 {
		t.Errorf("samples=%d events=%d", out.Len(), count)
	}
	_, y := out.Last()
	if math.Abs(y[0]-0.4723574042081896) > 1e-9 {
		t.Errorf("final prey %v", y[0])
	}
	if out.Metrics["stability"] != 1 {
		t.Errorf("stability = %v", out.Metrics["stability"])
	}
	if _, ok := out.Metrics["invariant_drift"]; !ok {
		t.Errorf("missing invariant drift in %v", out.Metrics)
	}
	if out.Metrics["peak_y1"] < 10 {
		t.Errorf("predator peak %v below initial value", out.Metrics["peak_y1"])
	}
}

func TestNewUsesModelDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model = "vanderpol"
	exp, err := New(NewRegistry(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if y := exp.InitialState(); len(y) != 2 || y[0] != 2 {
		t.Errorf("initial state %v", y)
	}
	if p := exp.Params(); len(p) != 1 || p[0] != 1 {
		t.Errorf("params %v", p)
	}
}

func TestNewRejectsMismatchedVectors(t *testing.T) {
	reg := NewRegistry()

	cfg := config.DefaultConfig()
	cfg.Pars = []float64{1, 2}
	if _, err := New(reg, cfg); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("short pars: expected ErrDimensionMismatch, got %v", err)
	}

	cfg = config.DefaultConfig()
	cfg.Y0 = []float64{1, 2, 3}
	if _, err := New(reg, cfg); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("long y0: expected ErrDimensionMismatch, got %v", err)
	}

	cfg = config.GetPreset("lotka-volterra", "seasons")
	cfg.Protocol[1].Pars = []float64{1}
	if _, err := New(reg, cfg); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("segment pars: expected ErrDimensionMismatch, got %v", err)
	}

	cfg = config.DefaultConfig()
	cfg.Model = "pendulum"
	if _, err := New(reg, cfg); err == nil {
		t.Error("expected unknown model error")
	}
}

func TestRunReturnsPartialOutcome(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Options.MaxSteps = 3

	exp, err := New(NewRegistry(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	out, err := exp.Run(context.Background())
	if !errors.Is(err, dynamo.ErrStepBudgetExhausted) {
		t.Fatalf("expected ErrStepBudgetExhausted, got %v", err)
	}
	if out == nil || out.Len() < 1 || out.Metrics == nil {
		t.Errorf("expected partial outcome, got %+v", out)
	}
}

func TestProtocolRun(t *testing.T) {
	cfg := config.GetPreset("lotka-volterra", "seasons")
	cfg.Method = "dopri5"

	exp, err := New(NewRegistry(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	var last dynamo.StepEvent
	steps := 0
	exp.AddObserver(dynamo.ObserverFunc(func(ev dynamo.StepEvent) {
		if ev.Step != steps {
			t.Errorf("event step %d, want %d", ev.Step, steps)
		}
		steps++
		last = ev
	}))

	out, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i < out.Len(); i++ {
		if out.Time[i] <= out.Time[i-1] {
			t.Fatalf("time not increasing at %d: %v <= %v", i, out.Time[i], out.Time[i-1])
		}
	}
	for _, boundary := range []float64{10, 20, 30} {
		found := false
		for _, tm := range out.Time {
			if tm == boundary {
				found = true
			}
		}
		if !found {
			t.Errorf("segment end %v missing from trajectory", boundary)
		}
	}
	if last.Time != 30 {
		t.Errorf("last event at %v, want 30", last.Time)
	}
	if out.Stats.Accepted != out.Len()-1 {
		t.Errorf("accepted %d, samples %d", out.Stats.Accepted, out.Len())
	}
	if steps != out.Stats.Accepted+out.Stats.Rejected {
		t.Errorf("events %d, iterations %d", steps, out.Stats.Accepted+out.Stats.Rejected)
	}
}

func TestProtocolMatchesSingleRunForConstantParams(t *testing.T) {
	reg := NewRegistry()

	single := config.GetPreset("lotka-volterra", "fixture")
	single.TEnd = 2

	split := single.Clone()
	split.Protocol = []config.Segment{
		{TEnd: 1, Pars: single.Pars},
		{TEnd: 2, Pars: single.Pars},
	}

	a, err := New(reg, single)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(reg, split)
	if err != nil {
		t.Fatal(err)
	}
	ra, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rb, err := b.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if ra.Len() != rb.Len() {
		t.Fatalf("sample counts differ: %d vs %d", ra.Len(), rb.Len())
	}
	_, ya := ra.Last()
	_, yb := rb.Last()
	for i := range ya {
		if math.Abs(ya[i]-yb[i]) > 1e-9*math.Max(1, math.Abs(ya[i])) {
			t.Errorf("component %d: %v vs %v", i, ya[i], yb[i])
		}
	}
}

func TestRunFunc(t *testing.T) {
	exp, err := New(NewRegistry(), config.GetPreset("decay", "stiff"))
	if err != nil {
		t.Fatal(err)
	}
	run := exp.RunFunc()

	res, err := run(context.Background(), dynamo.State{2}, dynamo.Params{10})
	if err != nil {
		t.Fatal(err)
	}
	if _, y := res.Last(); y[0] <= 0 || y[0] >= 2 {
		t.Errorf("unexpected final value %v", y[0])
	}

	if _, err := run(context.Background(), dynamo.State{2}, dynamo.Params{1, 2}); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
