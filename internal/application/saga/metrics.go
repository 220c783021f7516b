package saga

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts coordinator operations by outcome and times them. Register
// the collectors once at startup.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trade_saga_operations_total",
				Help: "Coordinator operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trade_saga_operation_duration_seconds",
				Help:    "Coordinator operation latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Operations, m.Duration}
}
