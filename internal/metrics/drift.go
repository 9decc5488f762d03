package metrics

import (
	"math"

	"github.com/san-kum/odelab/internal/dynamo"
)

// Drift reports the maximum relative deviation of a conserved quantity from
// its value at the first sample.
type Drift struct {
	name      string
	invariant func(y dynamo.State) float64
	initial   float64
	maxDrift  float64
	samples   int
}

func NewDrift(name string, invariant func(y dynamo.State) float64) *Drift {
	return &Drift{
		name:      name,
		invariant: invariant,
	}
}

func (d *Drift) Name() string { return d.name }

func (d *Drift) Observe(_ float64, y dynamo.State) {
	v := d.invariant(y)
	if d.samples == 0 {
		d.initial = v
	}
	d.samples++

	diff := math.Abs(v - d.initial)
	if d.initial != 0 {
		diff /= math.Abs(d.initial)
	}
	if diff > d.maxDrift || math.IsNaN(diff) {
		d.maxDrift = diff
	}
}

func (d *Drift) Value() float64 {
	return d.maxDrift
}

func (d *Drift) Reset() {
	d.initial = 0
	d.maxDrift = 0
	d.samples = 0
}
