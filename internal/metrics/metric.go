// Package metrics reduces a trajectory to scalar summaries.
package metrics

import "github.com/san-kum/odelab/internal/dynamo"

// Metric accumulates over the samples of one trajectory.
type Metric interface {
	Name() string
	Observe(t float64, y dynamo.State)
	Value() float64
	Reset()
}

// Evaluate resets every metric, feeds it the whole trajectory and returns
// the values by name.
func Evaluate(tr *dynamo.Trajectory, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for i, t := range tr.Time {
			m.Observe(t, tr.Values[i])
		}
		out[m.Name()] = m.Value()
	}
	return out
}
