package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/odelab/internal/dynamo"
	"github.com/san-kum/odelab/internal/integrators"
	"github.com/san-kum/odelab/internal/metrics"
	"github.com/san-kum/odelab/internal/models"
)

// Method builds an integrator. Fixed-step methods read stepSize, adaptive
// ones read opts.
type Method struct {
	Name        string
	Description string
	Adaptive    bool
	Build       func(stepSize float64, opts dynamo.Options, obs dynamo.Observer) dynamo.Integrator
}

// StabilityBound is the magnitude above which a sample counts as blown up.
const StabilityBound = 1e6

type Registry struct {
	models  map[string]*models.System
	methods map[string]Method
}

func fixed(newFixed func(step float64) *integrators.FixedStep) func(float64, dynamo.Options, dynamo.Observer) dynamo.Integrator {
	return func(step float64, _ dynamo.Options, obs dynamo.Observer) dynamo.Integrator {
		f := newFixed(step)
		f.Observer = obs
		return f
	}
}

func adaptive(newAdaptive func(opts dynamo.Options) *integrators.Adaptive) func(float64, dynamo.Options, dynamo.Observer) dynamo.Integrator {
	return func(_ float64, opts dynamo.Options, obs dynamo.Observer) dynamo.Integrator {
		a := newAdaptive(opts)
		a.Observer = obs
		return a
	}
}

func NewRegistry() *Registry {
	r := &Registry{
		models:  make(map[string]*models.System),
		methods: make(map[string]Method),
	}

	for _, s := range models.All() {
		r.models[s.Name] = s
	}

	for _, m := range []Method{
		{"euler", "explicit Euler, fixed step", false, fixed(integrators.NewEuler)},
		{"heun", "explicit trapezoid, fixed step", false, fixed(integrators.NewHeun)},
		{"rk4", "classic Runge-Kutta, fixed step", false, fixed(integrators.NewRK4)},
		{"bosh3", "Bogacki-Shampine 3(2), adaptive explicit", true, adaptive(integrators.NewBogackiShampine)},
		{"dopri5", "Dormand-Prince 5(4), adaptive explicit", true, adaptive(integrators.NewDormandPrince)},
		{"kvaerno5", "Kvaerno 5(4) ESDIRK, adaptive implicit", true, adaptive(integrators.NewKvaerno5)},
		{"kvaerno45", "six-stage reference ESDIRK pair, adaptive implicit", true, adaptive(integrators.NewKvaerno45)},
		{"backward-euler", "backward Euler through the adaptive driver", true, adaptive(integrators.NewBackwardEuler)},
	} {
		r.methods[m.Name] = m
	}

	return r
}

func (r *Registry) GetModel(name string) (*models.System, error) {
	s, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return s, nil
}

func (r *Registry) GetMethod(name string) (Method, error) {
	m, ok := r.methods[name]
	if !ok {
		return Method{}, fmt.Errorf("unknown method: %s", name)
	}
	return m, nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListMethods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns the summaries recorded for every run of a model
// with n state components and parameters p.
func (r *Registry) DefaultMetrics(s *models.System, n int, p dynamo.Params) []metrics.Metric {
	ms := []metrics.Metric{metrics.NewStability(StabilityBound)}
	for i := 0; i < n; i++ {
		ms = append(ms, metrics.NewPeak(i))
	}
	if s.Invariant != nil {
		inv := s.Invariant
		ms = append(ms, metrics.NewDrift("invariant_drift", func(y dynamo.State) float64 { return inv(y, p) }))
	}
	return ms
}
