package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "motivate"

// Metrics exposes Prometheus collectors for pipeline activity. It implements
// session.Observer.
type Metrics struct {
	runs          *prometheus.CounterVec
	duration      prometheus.Histogram
	enginesActive prometheus.Gauge

	gatherer prometheus.Gatherer
}

// MustNewMetrics registers the collectors with reg and panics on any
// registration error other than a collector already being present.
// Pass a fresh prometheus.NewRegistry() in tests.
func MustNewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by result (ok, invalid, pipeline_error, error).",
		},
		[]string{"result"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent running the full pipeline.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
	enginesActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engines_active",
			Help:      "Number of per-user engines held in memory.",
		},
	)

	for _, c := range []prometheus.Collector{runs, duration, enginesActive} {
		if err := reg.Register(c); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch c {
			case runs:
				runs = already.ExistingCollector.(*prometheus.CounterVec)
			case duration:
				duration = already.ExistingCollector.(prometheus.Histogram)
			case enginesActive:
				enginesActive = already.ExistingCollector.(prometheus.Gauge)
			}
		}
	}

	return &Metrics{
		runs:          runs,
		duration:      duration,
		enginesActive: enginesActive,
		gatherer:      reg,
	}
}

// ObserveRun counts a Generate call and records its duration.
func (m *Metrics) ObserveRun(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

// SetActiveEngines reports the current engine cache size.
func (m *Metrics) SetActiveEngines(n int) {
	if m == nil {
		return
	}
	m.enginesActive.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
