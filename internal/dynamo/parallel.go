package dynamo

import (
	"context"
	"runtime"
	"sync"
)

// Job is one independent run of an ensemble.
type Job struct {
	Name   string
	Y0     State
	Params Params
}

// RunFunc integrates a single job. It must not share mutable state with
// other invocations.
type RunFunc func(ctx context.Context, y0 State, p Params) (*Result, error)

type Ensemble struct {
	run     RunFunc
	workers int
}

func NewEnsemble(run RunFunc, workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{run: run, workers: workers}
}

// Run executes all jobs and returns results and errors index-aligned with
// jobs. A failed job does not stop the others.
func (e *Ensemble) Run(ctx context.Context, jobs []Job) ([]*Result, []error) {
	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	ParallelFor(len(jobs), 1, e.workers, func(start, end int) {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				continue
			}
			results[i], errs[i] = e.run(ctx, jobs[i].Y0.Clone(), jobs[i].Params)
		}
	})

	return results, errs
}

// ParallelFor executes a function in parallel over a range [0, n)
func ParallelFor(n, minChunk, numWorkers int, fn func(start, end int)) {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || numWorkers <= 1 {
		fn(0, n)
		return
	}

	workers := numWorkers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
