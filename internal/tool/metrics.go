package tool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for tool calls.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mail_mcp",
			Name:      "tool_calls_total",
			Help:      "Number of tool calls by tool and status.",
		}, []string{"tool", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mail_mcp",
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	reg.MustRegister(m.calls, m.duration)

	return m
}

func (m *Metrics) observe(tool, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(tool, status).Inc()
	m.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
