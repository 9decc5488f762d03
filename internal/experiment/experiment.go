package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/odelab/internal/config"
	"github.com/san-kum/odelab/internal/dynamo"
	"github.com/san-kum/odelab/internal/metrics"
	"github.com/san-kum/odelab/internal/models"
)

// Outcome is a finished (or partial) run with its metric summaries.
type Outcome struct {
	*dynamo.Result
	Metrics map[string]float64
	Elapsed time.Duration
}

// Experiment binds a validated config to a model and a method.
type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	system    *models.System
	method    Method
	y0        dynamo.State
	pars      dynamo.Params
	observers multiObserver
}

// New resolves cfg against the registry. Missing y0 and pars take the
// model defaults; every parameter vector is checked against the model.
func New(reg *Registry, cfg *config.Config) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sys, err := reg.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	method, err := reg.GetMethod(cfg.Method)
	if err != nil {
		return nil, err
	}

	y0 := dynamo.State(cfg.Y0).Clone()
	if len(y0) == 0 {
		y0 = sys.DefaultState.Clone()
	}
	pars := dynamo.Params(append([]float64(nil), cfg.Pars...))
	if len(pars) == 0 {
		pars = append(dynamo.Params(nil), sys.DefaultParams...)
	}

	if err := sys.CheckState(y0); err != nil {
		return nil, err
	}
	if err := sys.CheckParams(pars); err != nil {
		return nil, err
	}
	for i, seg := range cfg.Protocol {
		if err := sys.CheckParams(seg.Pars); err != nil {
			return nil, fmt.Errorf("protocol segment %d: %w", i, err)
		}
	}

	return &Experiment{
		cfg:      cfg.Clone(),
		registry: reg,
		system:   sys,
		method:   method,
		y0:       y0,
		pars:     pars,
	}, nil
}

func (e *Experiment) AddObserver(o dynamo.Observer) { e.observers = append(e.observers, o) }

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) System() *models.System { return e.system }

func (e *Experiment) InitialState() dynamo.State { return e.y0.Clone() }

func (e *Experiment) Params() dynamo.Params { return append(dynamo.Params(nil), e.pars...) }

func (e *Experiment) integrator(obs dynamo.Observer) dynamo.Integrator {
	return e.method.Build(e.cfg.StepSize, e.cfg.Options, obs)
}

// Run integrates the configured problem. On error the Outcome still holds
// whatever was computed, so callers can inspect or persist a partial run.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	log := zerolog.Ctx(ctx).With().
		Str("model", e.system.Name).
		Str("method", e.method.Name).
		Logger()

	start := time.Now()
	var (
		res *dynamo.Result
		err error
	)
	if len(e.cfg.Protocol) > 0 {
		res, err = e.runProtocol(ctx)
	} else {
		res, err = e.integrator(e.observerOrNil()).Integrate(ctx, e.system.Func, e.y0, e.pars, e.cfg.TEnd)
	}
	elapsed := time.Since(start)

	if res == nil {
		return nil, err
	}

	out := &Outcome{
		Result:  res,
		Metrics: e.evaluate(res),
		Elapsed: elapsed,
	}

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("samples", res.Len()).
		Int("accepted", res.Stats.Accepted).
		Int("rejected", res.Stats.Rejected).
		Int("warnings", len(res.Warnings)).
		Dur("elapsed", elapsed).
		Msg("run finished")

	return out, err
}

// RunFunc integrates the same problem from other initial states or
// parameters. Observers are not attached, so the function is safe to use
// from several goroutines.
func (e *Experiment) RunFunc() dynamo.RunFunc {
	return func(ctx context.Context, y0 dynamo.State, p dynamo.Params) (*dynamo.Result, error) {
		if err := e.system.CheckParams(p); err != nil {
			return nil, err
		}
		return e.integrator(nil).Integrate(ctx, e.system.Func, y0, p, e.cfg.TEnd)
	}
}

// Evaluate computes the default metrics of a result produced with params p.
func (e *Experiment) Evaluate(res *dynamo.Result, p dynamo.Params) map[string]float64 {
	ms := e.registry.DefaultMetrics(e.system, len(e.y0), p)
	return metrics.Evaluate(&res.Trajectory, ms...)
}

func (e *Experiment) evaluate(res *dynamo.Result) map[string]float64 {
	return e.Evaluate(res, e.pars)
}

func (e *Experiment) observerOrNil() dynamo.Observer {
	if len(e.observers) == 0 {
		return nil
	}
	return e.observers
}

type multiObserver []dynamo.Observer

func (m multiObserver) OnStep(ev dynamo.StepEvent) {
	for _, o := range m {
		o.OnStep(ev)
	}
}
