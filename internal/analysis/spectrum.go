package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/odelab/internal/dynamo"
)

// Resample interpolates component i linearly onto n evenly spaced times
// spanning the trajectory. It returns the sample spacing.
func Resample(tr *dynamo.Trajectory, i, n int) ([]float64, float64, error) {
	if tr.Len() < 2 || n < 2 {
		return nil, 0, fmt.Errorf("%w: need at least 2 samples", dynamo.ErrInvalidConfig)
	}
	if dim := len(tr.Values[0]); i < 0 || i >= dim {
		return nil, 0, dynamo.DimError("component index", dim, i+1)
	}

	t0, t1 := tr.Time[0], tr.Time[tr.Len()-1]
	dt := (t1 - t0) / float64(n-1)
	ts := floats.Span(make([]float64, n), t0, t1)
	out := make([]float64, n)

	for k, t := range ts {
		j := sort.SearchFloat64s(tr.Time, t)
		switch {
		case j == 0:
			out[k] = tr.Values[0][i]
		case j >= tr.Len():
			out[k] = tr.Values[tr.Len()-1][i]
		default:
			ta, tb := tr.Time[j-1], tr.Time[j]
			ya, yb := tr.Values[j-1][i], tr.Values[j][i]
			out[k] = ya + (yb-ya)*(t-ta)/(tb-ta)
		}
		if !dynamo.State(out[k : k+1]).IsValid() {
			return nil, 0, fmt.Errorf("%w: component %d at t=%g", dynamo.ErrInvalidState, i, t)
		}
	}
	return out, dt, nil
}

// Spectrum is the one-sided amplitude spectrum of a resampled component
// with its mean removed.
type Spectrum struct {
	Freq      []float64
	Amplitude []float64
	// Period of the strongest non-zero frequency, or +Inf when the signal
	// is constant.
	Period float64
}

// PowerSpectrum resamples component i onto n points and transforms it.
func PowerSpectrum(tr *dynamo.Trajectory, i, n int) (*Spectrum, error) {
	data, dt, err := Resample(tr, i, n)
	if err != nil {
		return nil, err
	}
	mean := stat.Mean(data, nil)
	floats.AddConst(-mean, data)

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, data)

	s := &Spectrum{
		Freq:      make([]float64, len(coeff)),
		Amplitude: make([]float64, len(coeff)),
		Period:    math.Inf(1),
	}
	best := 0
	for k, c := range coeff {
		s.Freq[k] = fft.Freq(k) / dt
		s.Amplitude[k] = math.Hypot(real(c), imag(c)) / float64(n)
		if k > 0 && s.Amplitude[k] > s.Amplitude[best] {
			best = k
		}
	}
	if best > 0 && s.Amplitude[best] > 1e-12 {
		s.Period = 1 / s.Freq[best]
	}
	return s, nil
}
