// Package automation runs scripted scenarios and Monte Carlo ensembles on
// top of experiments.
package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/odelab/internal/config"
	"github.com/san-kum/odelab/internal/dynamo"
	"github.com/san-kum/odelab/internal/experiment"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
	// ContinueOnError keeps going after a failed step.
	ContinueOnError bool `yaml:"continue_on_error"`
}

// ScenarioStep is one run. Unset fields take the defaults of config.DefaultConfig
// or, when Preset is named, of that preset.
type ScenarioStep struct {
	Name          string `yaml:"name"`
	Preset        string `yaml:"preset,omitempty"`
	config.Config `yaml:",inline"`
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var raw struct {
		Name            string      `yaml:"name"`
		Description     string      `yaml:"description"`
		ContinueOnError bool        `yaml:"continue_on_error"`
		Steps           []yaml.Node `yaml:"steps"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	sc := &Scenario{Name: raw.Name, Description: raw.Description, ContinueOnError: raw.ContinueOnError}
	for i, node := range raw.Steps {
		var head struct {
			Name   string `yaml:"name"`
			Model  string `yaml:"model"`
			Preset string `yaml:"preset"`
		}
		if err := node.Decode(&head); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}

		// Decode over the base config so omitted fields keep their defaults.
		base := config.DefaultConfig()
		if head.Preset != "" {
			if base = config.GetPreset(head.Model, head.Preset); base == nil {
				return nil, fmt.Errorf("step %d: unknown preset %s/%s", i+1, head.Model, head.Preset)
			}
		}
		step := ScenarioStep{Name: head.Name, Preset: head.Preset, Config: *base}
		if err := node.Decode(&step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Name == "" {
			step.Name = fmt.Sprintf("%s-%d", step.Model, i+1)
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err)
		}
		sc.Steps = append(sc.Steps, step)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario has no steps", dynamo.ErrInvalidConfig)
	}
	return sc, nil
}

// StepReport is handed to the RunScenario callback after every step.
type StepReport struct {
	Index      int
	Step       *ScenarioStep
	Experiment *experiment.Experiment
	Outcome    *experiment.Outcome
	Err        error
}

// RunScenario executes the steps in order. done, if non-nil, sees every
// step including failed ones; an error it returns stops the scenario.
func RunScenario(ctx context.Context, reg *experiment.Registry, sc *Scenario, done func(StepReport) error) ([]StepReport, error) {
	log := zerolog.Ctx(ctx).With().Str("scenario", sc.Name).Logger()
	reports := make([]StepReport, 0, len(sc.Steps))

	for i := range sc.Steps {
		step := &sc.Steps[i]
		log.Info().Int("step", i+1).Int("of", len(sc.Steps)).Str("name", step.Name).
			Str("model", step.Model).Str("method", step.Method).Msg("scenario step")

		rep := StepReport{Index: i, Step: step}
		rep.Experiment, rep.Err = experiment.New(reg, &step.Config)
		if rep.Err == nil {
			rep.Outcome, rep.Err = rep.Experiment.Run(ctx)
		}
		reports = append(reports, rep)

		if done != nil {
			if err := done(rep); err != nil {
				return reports, err
			}
		}
		if rep.Err != nil && (!sc.ContinueOnError || ctx.Err() != nil) {
			return reports, fmt.Errorf("step %d (%s): %w", i+1, step.Name, rep.Err)
		}
	}
	return reports, nil
}

// MonteCarlo perturbs the initial state of an experiment uniformly and
// integrates every trial in parallel.
type MonteCarlo struct {
	Trials int
	// Perturbation is the half-width of the uniform noise added to each
	// component, relative to max(|y0_i|, 1).
	Perturbation float64
	Seed         int64
	Workers      int
	// Bound is the magnitude above which a final state counts as unstable.
	Bound float64
}

type TrialResult struct {
	Trial  int
	Y0     dynamo.State
	Final  dynamo.State
	Stable bool
	Err    error
}

type MonteCarloSummary struct {
	Trials    []TrialResult
	Stable    int
	Unstable  int
	Failed    int
	FinalMean []float64
	FinalStd  []float64
}

func (mc MonteCarlo) Run(ctx context.Context, exp *experiment.Experiment) (*MonteCarloSummary, error) {
	if mc.Trials <= 0 || mc.Perturbation < 0 {
		return nil, fmt.Errorf("%w: trials=%d perturbation=%g", dynamo.ErrInvalidConfig, mc.Trials, mc.Perturbation)
	}
	bound := mc.Bound
	if bound <= 0 {
		bound = experiment.StabilityBound
	}

	base := exp.InitialState()
	rng := rand.New(rand.NewSource(mc.Seed))
	jobs := make([]dynamo.Job, mc.Trials)
	for k := range jobs {
		y0 := base.Clone()
		for i, v := range y0 {
			y0[i] = v + (rng.Float64()*2-1)*mc.Perturbation*math.Max(math.Abs(v), 1)
		}
		jobs[k] = dynamo.Job{Name: fmt.Sprint(k), Y0: y0, Params: exp.Params()}
	}

	results, errs := dynamo.NewEnsemble(exp.RunFunc(), mc.Workers).Run(ctx, jobs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := &MonteCarloSummary{Trials: make([]TrialResult, mc.Trials)}
	finals := make([][]float64, len(base))
	for k, job := range jobs {
		tr := TrialResult{Trial: k, Y0: job.Y0, Err: errs[k]}
		if results[k] != nil {
			_, tr.Final = results[k].Last()
		}
		switch {
		case errs[k] != nil:
			sum.Failed++
		case tr.Final.IsValid() && tr.Final.MaxAbs() <= bound:
			tr.Stable = true
			sum.Stable++
			for i, v := range tr.Final {
				finals[i] = append(finals[i], v)
			}
		default:
			sum.Unstable++
		}
		sum.Trials[k] = tr
	}

	sum.FinalMean = make([]float64, len(base))
	sum.FinalStd = make([]float64, len(base))
	for i, xs := range finals {
		if len(xs) == 0 {
			sum.FinalMean[i], sum.FinalStd[i] = math.NaN(), math.NaN()
			continue
		}
		sum.FinalMean[i], sum.FinalStd[i] = stat.MeanStdDev(xs, nil)
	}

	zerolog.Ctx(ctx).Info().Int("trials", mc.Trials).Int("stable", sum.Stable).
		Int("unstable", sum.Unstable).Int("failed", sum.Failed).Msg("monte carlo finished")
	return sum, nil
}
