package telemetry

import (
	"io"
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/san-kum/odelab/internal/dynamo"
)

const namespace = "odelab"

// StepMetrics is a dynamo.Observer that counts step outcomes and records
// step sizes and error norms on a private registry.
type StepMetrics struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	nonConverged prometheus.Counter
	newtonIters  prometheus.Counter
	stepSize     prometheus.Histogram
	errNorm      prometheus.Gauge
	simTime      prometheus.Gauge
}

func NewStepMetrics(method string) *StepMetrics {
	labels := prometheus.Labels{"method": method}
	m := &StepMetrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "steps_total",
			Help:        "Outer integration steps by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		nonConverged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "newton_nonconverged_total",
			Help:        "Steps whose Newton iteration hit the sweep cap.",
			ConstLabels: labels,
		}),
		newtonIters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "newton_iterations_total",
			Help:        "Newton sweeps over all steps.",
			ConstLabels: labels,
		}),
		stepSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "step_size",
			Help:        "Size of accepted steps.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-8, 10, 10),
		}),
		errNorm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "error_norm",
			Help:        "Weighted error norm of the latest step.",
			ConstLabels: labels,
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sim_time",
			Help:        "Integration time reached.",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(m.steps, m.nonConverged, m.newtonIters, m.stepSize, m.errNorm, m.simTime)
	return m
}

// OnStep classifies ev. A rejected step with an infinite error norm is a
// failed linear solve and is counted as "singular".
func (m *StepMetrics) OnStep(ev dynamo.StepEvent) {
	m.newtonIters.Add(float64(ev.NewtonIterations))
	if !ev.Accepted && math.IsInf(ev.Err, 1) {
		m.steps.WithLabelValues("singular").Inc()
		return
	}
	if !ev.Converged {
		m.nonConverged.Inc()
	}
	m.errNorm.Set(ev.Err)
	if !ev.Accepted {
		m.steps.WithLabelValues("rejected").Inc()
		return
	}
	m.steps.WithLabelValues("accepted").Inc()
	m.stepSize.Observe(ev.H)
	m.simTime.Set(ev.Time)
}

func (m *StepMetrics) Registry() *prometheus.Registry { return m.registry }

// WriteText dumps every collected family in the Prometheus text format,
// sorted by name.
func (m *StepMetrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
