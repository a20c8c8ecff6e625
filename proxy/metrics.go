package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus counters backing C7's observability
// hooks. Registration failures (e.g. double-registering the same
// collector in tests) are swallowed: metrics are best-effort and must
// never gate correctness, per spec §4.5.
type Metrics struct {
	SessionsTotal      prometheus.Counter
	SessionErrorsTotal *prometheus.CounterVec
	BytesForwarded     *prometheus.CounterVec
}

// NewMetrics registers dropperoni's proxy counters against reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests) or
// prometheus.DefaultRegisterer to expose them process-wide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropperoni_sessions_total",
			Help: "Total number of proxy sessions that reached bridging with an upstream.",
		}),
		SessionErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropperoni_session_errors_total",
			Help: "Total number of proxy sessions terminated by error, by kind.",
		}, []string{"kind"}),
		BytesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropperoni_bytes_forwarded_total",
			Help: "Total bytes forwarded, by direction.",
		}, []string{"direction"}),
	}
	for _, c := range []prometheus.Collector{m.SessionsTotal, m.SessionErrorsTotal, m.BytesForwarded} {
		_ = reg.Register(c)
	}
	return m
}
