package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/odelab/internal/automation"
	"github.com/san-kum/odelab/internal/dynamo"
	"github.com/san-kum/odelab/internal/experiment"
	"github.com/san-kum/odelab/internal/optim"
	"github.com/san-kum/odelab/internal/viz"
)

func newCompareCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "compare [model] [method1] [method2] ...",
		Short: "compare integration methods on the same problem",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := flags.build(cmd, args[0])
			if err != nil {
				return err
			}
			reg := experiment.NewRegistry()

			fmt.Printf("comparing methods for %s (t_end=%g)\n\n", args[0], base.FinalTime())
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "METHOD\tSAMPLES\tREJECTED\tEVALS\tFINAL_T\tFINAL_Y0\tSTABILITY\tDRIFT\tTIME_MS\tSTATUS\t")

			for _, name := range args[1:] {
				cfg := base.Clone()
				cfg.Method = name
				exp, err := experiment.New(reg, cfg)
				if err != nil {
					fmt.Fprintf(w, "%s\terror: %v\t\t\t\t\t\t\t\t\t\n", name, err)
					continue
				}
				out, runErr := exp.Run(cmd.Context())
				if out == nil {
					fmt.Fprintf(w, "%s\terror: %v\t\t\t\t\t\t\t\t\t\n", name, runErr)
					continue
				}
				status := "ok"
				if runErr != nil {
					status = shortError(runErr)
				}
				t, y := out.Last()
				drift, ok := out.Metrics["invariant_drift"]
				if !ok {
					drift = math.NaN()
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.6g\t%.8g\t%.3f\t%.2e\t%.2f\t%s\t\n",
					name, out.Len(), out.Stats.Rejected, out.Stats.Evaluations,
					t, y[0], out.Metrics["stability"], drift,
					float64(out.Elapsed.Microseconds())/1000, status)
			}
			return w.Flush()
		},
	}
	flags.register(cmd)
	return cmd
}

func shortError(err error) string {
	for _, known := range []error{dynamo.ErrStepBudgetExhausted, dynamo.ErrSingularMatrix, dynamo.ErrInvalidState, context.Canceled} {
		if errors.Is(err, known) {
			return strings.TrimPrefix(known.Error(), "dynamo: ")
		}
	}
	return err.Error()
}

func newSweepCmd() *cobra.Command {
	var (
		flags    runFlags
		ranges   []string
		metric   string
		maximize bool
		workers  int
		top      int
	)
	cmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "run a parameter grid in parallel and rank the runs by a metric",
		Example: `  odelab sweep decay --method euler --t-end 1 --param lambda=1:300:6 --metric peak_y0
  odelab sweep lotka-volterra --param alpha=0.8,1.1 --param delta=0.05:0.2:4 --metric invariant_drift`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := flags.experiment(cmd, args[0])
			if err != nil {
				return err
			}
			if len(ranges) == 0 {
				return fmt.Errorf("at least one --param is required")
			}
			names := make([]string, len(ranges))
			values := make([][]float64, len(ranges))
			for i, spec := range ranges {
				if names[i], values[i], err = parseRange(spec); err != nil {
					return err
				}
			}

			g := optim.NewGridSearch(names, values)
			g.Maximize = maximize
			g.Workers = workers
			res, err := g.Search(cmd.Context(), exp, metric)
			if err != nil {
				return err
			}

			points := make([]optim.Point, 0, len(res.Points))
			for _, p := range res.Points {
				if p.Err == nil {
					points = append(points, p)
				}
			}
			sort.SliceStable(points, func(i, j int) bool {
				a, b := points[i].Metrics[metric], points[j].Metrics[metric]
				if maximize {
					return a > b
				}
				return a < b
			})
			if top > 0 && len(points) > top {
				points = points[:top]
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(metric))
			for _, p := range points {
				for _, n := range names {
					fmt.Fprintf(w, "%g\t", p.Params[n])
				}
				fmt.Fprintf(w, "%.6g\n", p.Metrics[metric])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d points, %d failed; best %s = %.6g at %v\n", len(res.Points), res.Failed, metric, res.Value, res.Best)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&ranges, "param", nil, "name=lo:hi:n or name=v1,v2,... (repeatable)")
	cmd.Flags().StringVar(&metric, "metric", "stability", "metric to rank by")
	cmd.Flags().BoolVar(&maximize, "maximize", false, "rank by largest value")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (default GOMAXPROCS)")
	cmd.Flags().IntVar(&top, "top", 10, "rows to print (0 for all)")
	return cmd
}

// parseRange reads "name=lo:hi:n" or "name=v1,v2,...".
func parseRange(spec string) (string, []float64, error) {
	name, list, ok := strings.Cut(spec, "=")
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("bad --param %q: want name=lo:hi:n or name=v1,v2", spec)
	}
	if parts := strings.Split(list, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil || n < 1 {
			return "", nil, fmt.Errorf("bad --param range %q", spec)
		}
		return name, optim.Linspace(lo, hi, n), nil
	}
	var vals []float64
	for _, s := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return "", nil, fmt.Errorf("bad --param value in %q: %w", spec, err)
		}
		vals = append(vals, v)
	}
	return name, vals, nil
}

func newLiveCmd() *cobra.Command {
	var (
		flags  runFlags
		fps    int
		noSave bool
	)
	cmd := &cobra.Command{
		Use:   "live [model]",
		Short: "integrate with a live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := flags.experiment(cmd, args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			title := fmt.Sprintf("%s · %s", args[0], exp.Config().Method)
			p := tea.NewProgram(viz.NewLiveModel(title, labels(exp), exp.Config().FinalTime(), cancel))
			fwd := viz.NewForwarder(p.Send, fps)
			exp.AddObserver(fwd)

			type result struct {
				out *experiment.Outcome
				err error
			}
			done := make(chan result, 1)
			go func() {
				out, err := exp.Run(ctx)
				fwd.Flush()
				msg := viz.DoneMsg{Err: err}
				if out != nil {
					msg.Samples, msg.Stats = out.Len(), out.Stats
				}
				p.Send(msg)
				done <- result{out, err}
			}()

			if _, err := p.Run(); err != nil {
				cancel()
				return err
			}
			cancel()
			r := <-done
			if r.out == nil {
				return r.err
			}
			if !noSave {
				runID, err := save(cmd.Context(), exp, r.out, r.err)
				if err != nil {
					return err
				}
				fmt.Printf("run id: %s\n", runID)
			}
			printOutcome(exp, r.out)
			return r.err
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&fps, "fps", 30, "refresh rate")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run")
	return cmd
}

func newScenarioCmd() *cobra.Command {
	var noSave bool
	cmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML scenario of consecutive runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("scenario %s: %d steps\n", sc.Name, len(sc.Steps))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tMODEL\tMETHOD\tSAMPLES\tRUN\tSTATUS")
			_, err = automation.RunScenario(cmd.Context(), experiment.NewRegistry(), sc, func(r automation.StepReport) error {
				status, runID, samples := "ok", "-", 0
				if r.Err != nil {
					status = shortError(r.Err)
				}
				if r.Outcome != nil {
					samples = r.Outcome.Len()
					if !noSave {
						id, err := save(cmd.Context(), r.Experiment, r.Outcome, r.Err)
						if err != nil {
							return err
						}
						runID = id
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", r.Step.Name, r.Step.Model, r.Step.Method, samples, runID, status)
				return nil
			})
			if ferr := w.Flush(); err == nil {
				err = ferr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the runs")
	return cmd
}

func newMonteCarloCmd() *cobra.Command {
	var (
		flags runFlags
		mc    automation.MonteCarlo
	)
	cmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "integrate an ensemble of perturbed initial states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := flags.experiment(cmd, args[0])
			if err != nil {
				return err
			}
			sum, err := mc.Run(cmd.Context(), exp)
			if err != nil {
				return err
			}

			fmt.Printf("%d trials: %d stable, %d unstable, %d failed\n\n", mc.Trials, sum.Stable, sum.Unstable, sum.Failed)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COMPONENT\tY0\tFINAL_MEAN\tFINAL_STD")
			y0 := exp.InitialState()
			for i := range y0 {
				fmt.Fprintf(w, "%s\t%g\t%.6g\t%.3g\n", exp.System().Label(i), y0[i], sum.FinalMean[i], sum.FinalStd[i])
			}
			return w.Flush()
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&mc.Trials, "trials", 100, "number of trials")
	cmd.Flags().Float64Var(&mc.Perturbation, "perturb", 0.05, "relative half-width of the initial-state noise")
	cmd.Flags().Int64Var(&mc.Seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&mc.Workers, "workers", 0, "parallel runs (default GOMAXPROCS)")
	cmd.Flags().Float64Var(&mc.Bound, "bound", 0, "instability threshold (default 1e6)")
	return cmd
}
