package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/emofusion/internal/domain"
)

// FusionMetrics records sampling loop telemetry. It satisfies app.Recorder.
type FusionMetrics struct {
	TicksRecorded   prometheus.Counter
	TicksDropped    *prometheus.CounterVec
	ProducerErrors  *prometheus.CounterVec
	DeviationDeltas *prometheus.HistogramVec
	AlertsRaised    *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
}

// NewFusionMetrics creates and registers fusion metrics on the given registry.
func NewFusionMetrics(reg prometheus.Registerer) *FusionMetrics {
	m := &FusionMetrics{
		TicksRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "ticks_recorded_total",
			Help:      "Total number of samples appended to a fusion window.",
		}),
		TicksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "ticks_dropped_total",
			Help:      "Total number of ticks dropped without a sample, by reason.",
		}, []string{"reason"}),
		ProducerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "producer_errors_total",
			Help:      "Total number of failed modality reads, by modality.",
		}, []string{"modality"}),
		DeviationDeltas: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "significant_deviation",
			Help:      "Absolute size of significant deviations from the window mean, by emotion.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1.0},
		}, []string{"emotion"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "alerts_total",
			Help:      "Total number of sustained-emotion alerts, by level.",
		}, []string{"level"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "active_sessions",
			Help:      "Number of running fusion sessions.",
		}),
	}

	reg.MustRegister(m.TicksRecorded, m.TicksDropped, m.ProducerErrors, m.DeviationDeltas, m.AlertsRaised, m.ActiveSessions)
	return m
}

func (m *FusionMetrics) TickRecorded() { m.TicksRecorded.Inc() }

func (m *FusionMetrics) TickDropped(reason string) { m.TicksDropped.WithLabelValues(reason).Inc() }

func (m *FusionMetrics) ProducerFailed(mod domain.Modality) {
	m.ProducerErrors.WithLabelValues(mod.String()).Inc()
}

func (m *FusionMetrics) DeviationObserved(l domain.Label, delta float64) {
	if delta < 0 {
		delta = -delta
	}
	m.DeviationDeltas.WithLabelValues(l.String()).Observe(delta)
}

func (m *FusionMetrics) AlertRaised(level domain.AlertLevel) {
	m.AlertsRaised.WithLabelValues(string(level)).Inc()
}

func (m *FusionMetrics) SessionsActive(n int) { m.ActiveSessions.Set(float64(n)) }
