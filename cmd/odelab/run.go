package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/odelab/internal/config"
	"github.com/san-kum/odelab/internal/dynamo"
	"github.com/san-kum/odelab/internal/experiment"
	"github.com/san-kum/odelab/internal/storage"
	"github.com/san-kum/odelab/internal/telemetry"
)

// runFlags are shared by every command that builds a run.
type runFlags struct {
	method     string
	tEnd       float64
	step       float64
	y0         []float64
	pars       []float64
	opts       dynamo.Options
	configFile string
	preset     string
}

func (f *runFlags) register(cmd *cobra.Command) {
	def := config.DefaultConfig()
	fl := cmd.Flags()
	fl.StringVar(&f.method, "method", def.Method, "integration method")
	fl.Float64Var(&f.tEnd, "t-end", def.TEnd, "final time")
	fl.Float64Var(&f.step, "step", def.StepSize, "step size for fixed-step methods")
	fl.Float64SliceVar(&f.y0, "y0", nil, "initial state (default: model default)")
	fl.Float64SliceVar(&f.pars, "pars", nil, "model parameters (default: model default)")
	fl.Float64Var(&f.opts.RTol, "rtol", def.Options.RTol, "relative tolerance")
	fl.Float64Var(&f.opts.ATol, "atol", def.Options.ATol, "absolute tolerance")
	fl.Float64Var(&f.opts.HMin, "h-min", def.Options.HMin, "minimum step size")
	fl.Float64Var(&f.opts.HMax, "h-max", def.Options.HMax, "maximum step size")
	fl.Float64Var(&f.opts.HInit, "h-init", def.Options.HInit, "initial step size")
	fl.IntVar(&f.opts.MaxSteps, "max-steps", def.Options.MaxSteps, "outer step budget")
	fl.IntVar(&f.opts.MaxIter, "max-iter", def.Options.MaxIter, "newton sweep cap per step")
	fl.StringVar(&f.configFile, "config", "", "config file path (yaml)")
	fl.StringVar(&f.preset, "preset", "", "use preset configuration")
}

// build layers defaults, preset, config file and explicitly set flags, in
// that order.
func (f *runFlags) build(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Model = model

	if f.preset != "" {
		p := config.GetPreset(model, f.preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", f.preset, config.ListPresets(model))
		}
		cfg = p
	}
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if loaded.Model != model {
			return nil, fmt.Errorf("config %s is for model %s, not %s", f.configFile, loaded.Model, model)
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("method") {
		cfg.Method = f.method
	}
	if changed("t-end") {
		cfg.TEnd = f.tEnd
		cfg.Protocol = nil
	}
	if changed("step") {
		cfg.StepSize = f.step
	}
	if changed("y0") {
		cfg.Y0 = f.y0
	}
	if changed("pars") {
		cfg.Pars = f.pars
	}
	if changed("rtol") {
		cfg.Options.RTol = f.opts.RTol
	}
	if changed("atol") {
		cfg.Options.ATol = f.opts.ATol
	}
	if changed("h-min") {
		cfg.Options.HMin = f.opts.HMin
	}
	if changed("h-max") {
		cfg.Options.HMax = f.opts.HMax
	}
	if changed("h-init") {
		cfg.Options.HInit = f.opts.HInit
	}
	if changed("max-steps") {
		cfg.Options.MaxSteps = f.opts.MaxSteps
	}
	if changed("max-iter") {
		cfg.Options.MaxIter = f.opts.MaxIter
	}
	return cfg, cfg.Validate()
}

func (f *runFlags) experiment(cmd *cobra.Command, model string) (*experiment.Experiment, error) {
	cfg, err := f.build(cmd, model)
	if err != nil {
		return nil, err
	}
	return experiment.New(experiment.NewRegistry(), cfg)
}

func labels(exp *experiment.Experiment) []string {
	n := len(exp.InitialState())
	out := make([]string, n)
	for i := range out {
		out[i] = exp.System().Label(i)
	}
	return out
}

// save persists a finished or partial run.
func save(ctx context.Context, exp *experiment.Experiment, out *experiment.Outcome, runErr error) (string, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return "", err
	}
	meta := storage.NewMetadata(exp.Config(), exp.Config().Adaptive(), exp.InitialState(), exp.Params(),
		out.Result, out.Metrics, out.Elapsed, runErr)
	runID, err := st.Save(meta, &out.Trajectory, labels(exp))
	if err != nil {
		return "", err
	}
	zerolog.Ctx(ctx).Debug().Str("run", runID).Str("dir", st.Dir()).Msg("run saved")
	return runID, nil
}

func newRunCmd() *cobra.Command {
	var (
		flags      runFlags
		noSave     bool
		showProm   bool
		saveConfig string
	)
	cmd := &cobra.Command{
		Use:   "run [model]",
		Short: "integrate a model and save the run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exp, err := flags.experiment(cmd, args[0])
			if err != nil {
				return err
			}
			if saveConfig != "" {
				if err := config.Save(saveConfig, exp.Config()); err != nil {
					return err
				}
			}

			var prom *telemetry.StepMetrics
			if showProm {
				prom = telemetry.NewStepMetrics(exp.Config().Method)
				exp.AddObserver(prom)
			}

			fmt.Printf("running %s with %s...\n", args[0], exp.Config().Method)
			out, runErr := exp.Run(ctx)
			if out == nil {
				return runErr
			}

			if !noSave {
				runID, err := save(ctx, exp, out, runErr)
				if err != nil {
					return err
				}
				fmt.Printf("run id: %s\n", runID)
			}
			printOutcome(exp, out)
			if prom != nil {
				fmt.Println()
				if err := prom.WriteText(os.Stdout); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run")
	cmd.Flags().BoolVar(&showProm, "metrics", false, "print step metrics in Prometheus text format")
	cmd.Flags().StringVar(&saveConfig, "save-config", "", "write the resolved config to this path")
	return cmd
}

func printOutcome(exp *experiment.Experiment, out *experiment.Outcome) {
	t, y := out.Last()
	st := out.Stats
	fmt.Printf("completed in %v\n", out.Elapsed)
	fmt.Printf("samples: %d (accepted %d, rejected %d)\n", out.Len(), st.Accepted, st.Rejected)
	fmt.Printf("evaluations: %d, jacobians: %d, newton sweeps: %d\n", st.Evaluations, st.Jacobians, st.NewtonIterations)
	fmt.Printf("final t: %.10g\n", t)
	for i, v := range y {
		fmt.Printf("  %s: %.10g\n", exp.System().Label(i), v)
	}
	if n := len(out.Warnings); n > 0 {
		fmt.Printf("\nwarnings (%d):\n", n)
		for i, w := range out.Warnings {
			if i == 5 {
				fmt.Printf("  ... %d more\n", n-i)
				break
			}
			fmt.Printf("  %s\n", w)
		}
	}

	names := make([]string, 0, len(out.Metrics))
	for name := range out.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, out.Metrics[name])
	}
}
