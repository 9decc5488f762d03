package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/odelab/internal/dynamo"
)

// runProtocol integrates the configured segments back to back. Each
// segment starts from the final state of the previous one with its own
// parameters; times, warnings and observer events are reported on the
// absolute clock.
func (e *Experiment) runProtocol(ctx context.Context) (*dynamo.Result, error) {
	segments := e.cfg.Protocol
	merged := dynamo.NewResult(e.method.Name, e.y0, 128)
	y := e.y0.Clone()
	start := 0.0
	stepBase := 0

	for i, seg := range segments {
		offset, base := start, stepBase
		model := func(t float64, y dynamo.State, p dynamo.Params) (dynamo.State, error) {
			return e.system.Func(t+offset, y, p)
		}

		var obs dynamo.Observer
		if len(e.observers) > 0 {
			obs = dynamo.ObserverFunc(func(ev dynamo.StepEvent) {
				ev.Time += offset
				ev.Step += base
				e.observers.OnStep(ev)
			})
		}

		res, err := e.integrator(obs).Integrate(ctx, model, y, seg.Pars, seg.TEnd-start)
		if res != nil {
			mergeSegment(merged, res, offset, base, seg.TEnd, err == nil)
			stepBase += res.Stats.Accepted + res.Stats.Rejected
			_, y = res.Last()
		}
		if err != nil {
			return merged, fmt.Errorf("protocol segment %d: %w", i, err)
		}
		start = seg.TEnd
	}

	return merged, nil
}

// mergeSegment appends res, shifted by offset, to dst. The first sample of
// res repeats the last sample of dst and is skipped. A completed segment's
// final sample is pinned to tEnd.
func mergeSegment(dst, res *dynamo.Result, offset float64, stepBase int, tEnd float64, complete bool) {
	n := res.Len()
	for k := 1; k < n; k++ {
		t := offset + res.Time[k]
		if complete && k == n-1 {
			t = tEnd
		}
		dst.Append(t, res.Values[k])
	}

	st := &dst.Stats
	st.Accepted += res.Stats.Accepted
	st.Rejected += res.Stats.Rejected
	st.Evaluations += res.Stats.Evaluations
	st.Jacobians += res.Stats.Jacobians
	st.NewtonIterations += res.Stats.NewtonIterations
	st.NonConverged += res.Stats.NonConverged
	st.LastStep = res.Stats.LastStep
	st.NextStep = res.Stats.NextStep

	for _, w := range res.Warnings {
		w.Time += offset
		w.Step += stepBase
		dst.Warn(w)
	}
}
