// Package metrics exposes the Prometheus metrics emitted by the orchestrator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EdgeClientMetrics tracks outbound HTTP calls to edge servers.
type EdgeClientMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// BusinessMetrics tracks domain-level state transitions.
type BusinessMetrics struct {
	RelationTransitions *prometheus.CounterVec
	BotTransitions      *prometheus.CounterVec
	TasksPolled         prometheus.Counter
	TasksResolved       *prometheus.CounterVec
	WalletCalls         *prometheus.CounterVec
}

func NewEdgeClientMetrics(serviceName string) *EdgeClientMetrics {
	return &EdgeClientMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_edge_requests_total",
				Help: "Total number of outbound edge-server HTTP requests",
			},
			[]string{"endpoint", "outcome"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_edge_request_duration_seconds",
				Help:    "Edge-server HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}
}

func NewBusinessMetrics(serviceName string) *BusinessMetrics {
	return &BusinessMetrics{
		RelationTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_relation_transitions_total",
				Help: "Total relation commitment-level transitions",
			},
			[]string{"from", "to"},
		),
		BotTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_bot_transitions_total",
				Help: "Total edge-bot status transitions",
			},
			[]string{"to"},
		),
		TasksPolled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_tasks_polled_total",
				Help: "Total number of pending-task polls issued",
			},
		),
		TasksResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_tasks_resolved_total",
				Help: "Total number of tasks resolved by terminal status",
			},
			[]string{"status"},
		),
		WalletCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_wallet_calls_total",
				Help: "Total external wallet SDK calls by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *EdgeClientMetrics) Record(endpoint, outcome string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
