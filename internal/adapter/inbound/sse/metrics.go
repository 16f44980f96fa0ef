package sse

import (
	"github.com/crmbridge/crmbridge/internal/domain/ratelimit"
	"github.com/crmbridge/crmbridge/internal/domain/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the SSE transport.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveSessions   prometheus.GaugeFunc
	UpstreamInFlight prometheus.GaugeFunc
}

// NewMetrics creates and registers all metrics with the given registry.
// Session count and upstream gate occupancy are sampled on scrape.
func NewMetrics(reg prometheus.Registerer, sessions *session.Registry, gate *ratelimit.Gate) *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "crmbridge",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "crmbridge",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	m.ActiveSessions = promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "crmbridge",
			Name:      "active_sessions",
			Help:      "Number of live SSE sessions",
		},
		func() float64 {
			if sessions == nil {
				return 0
			}
			return float64(sessions.Len())
		},
	)
	m.UpstreamInFlight = promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "crmbridge",
			Name:      "upstream_in_flight",
			Help:      "CRM calls currently holding a rate gate slot",
		},
		func() float64 {
			if gate == nil {
				return 0
			}
			return float64(gate.InFlight())
		},
	)
	return m
}
