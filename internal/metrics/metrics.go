// Package metrics exposes generation progress as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shadowgen"

type Metrics struct {
	events         *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	activeUsers    prometheus.Gauge
	simulatedHours prometheus.Counter
	simulatedTime  prometheus.Gauge
	hourDuration   prometheus.Histogram
}

// New registers every collector with reg. A nil reg gives unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Encoded log lines written, by format, outcome and kind",
			},
			[]string{"format", "outcome", "kind"},
		),
		sessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Sessions generated, by service status",
			},
			[]string{"status"},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejected_events_total",
				Help:      "Events an encoder refused to render",
			},
			[]string{"format"},
		),
		activeUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_users",
			Help:      "Users active in the most recently generated hour",
		}),
		simulatedHours: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulated_hours_total",
			Help:      "Simulated hours completed",
		}),
		simulatedTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulated_time_seconds",
			Help:      "Start of the most recently completed simulated hour, as a unix timestamp",
		}),
		hourDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hour_generation_duration_seconds",
			Help:      "Wall time spent generating one simulated hour",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
}

func (m *Metrics) ObserveEvent(format, outcome, kind string) {
	m.events.WithLabelValues(format, outcome, kind).Inc()
}

func (m *Metrics) ObserveSession(status string) {
	m.sessions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveReject(format string) {
	m.rejected.WithLabelValues(format).Inc()
}

func (m *Metrics) SetActiveUsers(n int) {
	m.activeUsers.Set(float64(n))
}

// ObserveHour records a finished simulated hour and its wall time.
func (m *Metrics) ObserveHour(start time.Time, took time.Duration) {
	m.simulatedHours.Inc()
	m.simulatedTime.Set(float64(start.Unix()))
	m.hourDuration.Observe(took.Seconds())
}
