package metrics

import (
	"math"

	"github.com/san-kum/odelab/internal/dynamo"
)

// Stability is the fraction of samples inside the box |y_i| <= bound.
// NaN and Inf components are outside.
type Stability struct {
	bound     float64
	inside    int
	total     int
	firstExit float64
}

func NewStability(bound float64) *Stability {
	s := &Stability{bound: bound}
	s.Reset()
	return s
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(t float64, y dynamo.State) {
	s.total++
	if y.IsValid() && y.MaxAbs() <= s.bound {
		s.inside++
		return
	}
	if math.IsNaN(s.firstExit) {
		s.firstExit = t
	}
}

// Value is 1 for an empty trajectory.
func (s *Stability) Value() float64 {
	if s.total == 0 {
		return 1
	}
	return float64(s.inside) / float64(s.total)
}

// FirstExit is the time of the first sample outside the box, or NaN.
func (s *Stability) FirstExit() float64 { return s.firstExit }

func (s *Stability) Reset() {
	s.inside, s.total = 0, 0
	s.firstExit = math.NaN()
}
