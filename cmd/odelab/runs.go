package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/odelab/internal/analysis"
	"github.com/san-kum/odelab/internal/config"
	"github.com/san-kum/odelab/internal/experiment"
	"github.com/san-kum/odelab/internal/export"
	"github.com/san-kum/odelab/internal/storage"
	"github.com/san-kum/odelab/internal/viz"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(dataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tMETHOD\tTIME\tT_END\tSAMPLES\tREJECTED\tSTATUS")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%d\t%d\t%s\n",
					run.ID,
					run.Model,
					run.Method,
					run.Timestamp.Local().Format("2006-01-02 15:04:05"),
					run.TEnd,
					run.Samples,
					run.Stats.Rejected,
					run.Status,
				)
			}
			return w.Flush()
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := storage.New(dataDir).Load(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}
}

func newPlotCmd() *cobra.Command {
	var (
		phase   []int
		svgPath string
		width   int
		height  int
	)
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run in the terminal or as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			tr, labels, err := st.LoadStates(args[0])
			if err != nil {
				return err
			}
			if tr.Len() == 0 {
				return fmt.Errorf("no data to plot")
			}
			if len(phase) != 0 && len(phase) != 2 {
				return fmt.Errorf("--phase takes two component indices, got %v", phase)
			}

			if svgPath != "" {
				series := export.TimeSeries(tr, labels)
				if len(phase) == 2 {
					s, err := export.Phase(tr, phase[0], phase[1])
					if err != nil {
						return err
					}
					series = []export.Series{s}
				}
				f, err := os.Create(svgPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := export.WriteSVG(f, export.Plot{}, series...); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", svgPath)
				return nil
			}

			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("model: %s (%s)\n", meta.Model, meta.Method)
			fmt.Printf("samples: %d\n\n", tr.Len())

			if len(phase) == 2 {
				out, err := viz.PhasePortrait(tr, phase[0], phase[1], width/2, height)
				if err != nil {
					return err
				}
				fmt.Printf("%s vs %s\n%s", label(labels, phase[1]), label(labels, phase[0]), out)
				return nil
			}
			for _, chart := range viz.Charts(tr, labels, width, height) {
				fmt.Println(chart)
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&phase, "phase", nil, "plot component j against i (--phase i,j)")
	cmd.Flags().StringVar(&svgPath, "svg", "", "write an SVG file instead of terminal output")
	cmd.Flags().IntVar(&width, "width", 80, "chart width")
	cmd.Flags().IntVar(&height, "height", 10, "chart height")
	return cmd
}

func label(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return fmt.Sprintf("y%d", i)
}

// outputFile returns stdout when path is empty.
func outputFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func newExportJSONCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run trajectory as JSON {time, values}",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, _, err := storage.New(dataDir).LoadStates(args[0])
			if err != nil {
				return err
			}
			w, err := outputFile(out)
			if err != nil {
				return err
			}
			defer w.Close()
			return storage.WriteJSON(w, tr)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newExportCSVCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a run trajectory as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, labels, err := storage.New(dataDir).LoadStates(args[0])
			if err != nil {
				return err
			}
			w, err := outputFile(out)
			if err != nil {
				return err
			}
			defer w.Close()
			return storage.WriteCSV(w, tr, labels)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "list models and integration methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tDIM\tPARAMS\tSTIFF\tDESCRIPTION")
			for _, name := range reg.ListModels() {
				s, _ := reg.GetModel(name)
				dim := "any"
				if s.StateDim > 0 {
					dim = fmt.Sprint(s.StateDim)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", s.Name, dim, strings.Join(s.ParamNames, ","), s.Stiff, s.Description)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "METHOD\tADAPTIVE\tDESCRIPTION")
			for _, name := range reg.ListMethods() {
				m, _ := reg.GetMethod(name)
				fmt.Fprintf(w, "%s\t%v\t%s\n", m.Name, m.Adaptive, m.Description)
			}
			return w.Flush()
		},
	}
}

func newPresetsCmd() *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				cfg := config.GetPreset(args[0], p)
				fmt.Printf("  %-12s %s, t_end=%g\n", p, cfg.Method, cfg.FinalTime())
				if dump {
					path := fmt.Sprintf("%s-%s.yaml", args[0], p)
					if err := config.Save(path, cfg); err != nil {
						return err
					}
					fmt.Printf("  %-12s wrote %s\n", "", path)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "write", false, "write each preset as <model>-<preset>.yaml")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		samples int
		chart   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of each state component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			tr, labels, err := st.LoadStates(args[0])
			if err != nil {
				return err
			}
			if tr.Len() < 2 {
				return fmt.Errorf("no data")
			}

			fmt.Printf("frequency analysis: %s\n", meta.ID)
			fmt.Printf("model: %s\n\n", meta.Model)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COMPONENT\tPERIOD\tFREQUENCY")
			var first *analysis.Spectrum
			for i := range tr.Values[0] {
				s, err := analysis.PowerSpectrum(tr, i, samples)
				if err != nil {
					fmt.Fprintf(w, "%s\terror: %v\t\n", label(labels, i), err)
					continue
				}
				if first == nil {
					first = s
				}
				fmt.Fprintf(w, "%s\t%.6g\t%.6g\n", label(labels, i), s.Period, 1/s.Period)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if chart && first != nil {
				n := min(len(first.Amplitude), 80)
				fmt.Println()
				fmt.Println(asciigraph.Plot(first.Amplitude[1:n],
					asciigraph.Height(12),
					asciigraph.Width(80),
					asciigraph.Caption("amplitude spectrum ("+label(labels, 0)+")"),
				))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 1024, "uniform resampling size")
	cmd.Flags().BoolVar(&chart, "chart", true, "plot the spectrum of the first component")
	return cmd
}
