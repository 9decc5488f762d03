// Package optim sweeps model parameters over a grid and ranks the runs by
// one of their metrics.
package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/odelab/internal/dynamo"
	"github.com/san-kum/odelab/internal/experiment"
)

// Point is one evaluated grid node.
type Point struct {
	Params  map[string]float64
	Metrics map[string]float64
	Err     error
}

type SearchResult struct {
	Best   map[string]float64
	Value  float64
	Points []Point
	Failed int
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Maximize ranks by the largest metric value instead of the smallest.
	Maximize bool
	Workers  int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search runs exp once per grid node, each node overriding the named
// parameters of the experiment's base parameter vector. Runs execute in
// parallel and a failed run only marks its own Point. Protocol segments
// are not applied.
func (g *GridSearch) Search(ctx context.Context, exp *experiment.Experiment, metricName string) (*SearchResult, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("%w: %d parameter names for %d ranges", dynamo.ErrInvalidConfig, len(g.paramNames), len(g.ranges))
	}
	index, err := paramIndex(exp.System().ParamNames, g.paramNames)
	if err != nil {
		return nil, err
	}

	grid := g.expand(exp.Params(), index)
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: empty parameter grid", dynamo.ErrInvalidConfig)
	}

	jobs := make([]dynamo.Job, len(grid))
	for i, p := range grid {
		jobs[i] = dynamo.Job{Name: fmt.Sprint(i), Y0: exp.InitialState(), Params: p}
	}

	results, errs := dynamo.NewEnsemble(exp.RunFunc(), g.Workers).Run(ctx, jobs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &SearchResult{Value: math.Inf(1), Points: make([]Point, len(grid))}
	if g.Maximize {
		out.Value = math.Inf(-1)
	}
	log := zerolog.Ctx(ctx)

	for i, p := range grid {
		pt := Point{Params: make(map[string]float64, len(g.paramNames)), Err: errs[i]}
		for k, name := range g.paramNames {
			pt.Params[name] = p[index[k]]
		}
		out.Points[i] = pt

		if errs[i] != nil {
			out.Failed++
			log.Debug().Err(errs[i]).Interface("params", pt.Params).Msg("sweep point failed")
			continue
		}
		pt.Metrics = exp.Evaluate(results[i], p)
		out.Points[i].Metrics = pt.Metrics

		val, ok := pt.Metrics[metricName]
		if !ok {
			return nil, fmt.Errorf("unknown metric: %s", metricName)
		}
		if math.IsNaN(val) {
			continue
		}
		if (g.Maximize && val > out.Value) || (!g.Maximize && val < out.Value) || out.Best == nil {
			out.Value = val
			out.Best = pt.Params
		}
	}

	log.Info().Int("points", len(grid)).Int("failed", out.Failed).
		Str("metric", metricName).Float64("best", out.Value).Msg("sweep finished")
	return out, nil
}

// expand enumerates the cartesian product of the ranges, last parameter
// varying fastest.
func (g *GridSearch) expand(base dynamo.Params, index []int) []dynamo.Params {
	var grid []dynamo.Params
	var rec func(depth int, current dynamo.Params)
	rec = func(depth int, current dynamo.Params) {
		if depth == len(g.paramNames) {
			grid = append(grid, append(dynamo.Params(nil), current...))
			return
		}
		for _, val := range g.ranges[depth] {
			current[index[depth]] = val
			rec(depth+1, current)
		}
	}
	rec(0, append(dynamo.Params(nil), base...))
	return grid
}

func paramIndex(known, names []string) ([]int, error) {
	index := make([]int, len(names))
	for k, name := range names {
		index[k] = -1
		for i, n := range known {
			if n == name {
				index[k] = i
			}
		}
		if index[k] < 0 {
			return nil, fmt.Errorf("%w: unknown parameter %q (have %v)", dynamo.ErrInvalidConfig, name, known)
		}
	}
	return index, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
