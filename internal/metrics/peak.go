package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/odelab/internal/dynamo"
)

// Peak tracks the largest value reached by one state component.
type Peak struct {
	component int
	max       float64
	at        float64
	seen      bool
}

func NewPeak(component int) *Peak {
	return &Peak{component: component}
}

func (p *Peak) Name() string { return fmt.Sprintf("peak_y%d", p.component) }

func (p *Peak) Observe(t float64, y dynamo.State) {
	if p.component >= len(y) {
		return
	}
	v := y[p.component]
	if !p.seen || v > p.max {
		p.max, p.at, p.seen = v, t, true
	}
}

// Value is the peak, or NaN when nothing was observed.
func (p *Peak) Value() float64 {
	if !p.seen {
		return math.NaN()
	}
	return p.max
}

// Time returns when the peak was first reached.
func (p *Peak) Time() float64 { return p.at }

func (p *Peak) Reset() {
	p.max, p.at, p.seen = 0, 0, false
}
