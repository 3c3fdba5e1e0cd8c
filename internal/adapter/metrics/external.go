package metrics

import "github.com/prometheus/client_golang/prometheus"

// ExternalMetrics tracks calls to the remote emotion classifier.
type ExternalMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	CircuitState    prometheus.Gauge
}

// NewExternalMetrics creates and registers classifier client metrics on the given registry.
func NewExternalMetrics(reg prometheus.Registerer) *ExternalMetrics {
	m := &ExternalMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "requests_total",
			Help:      "Total number of classifier requests, by result.",
		}, []string{"result"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "request_duration_seconds",
			Help:      "Duration of classifier requests in seconds, retries included.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		CircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "circuit_breaker_state",
			Help:      "Classifier circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Requests, m.RequestDuration, m.CircuitState)
	return m
}
