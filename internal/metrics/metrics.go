// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_outcomes_total",
			Help: "Webhook ingestions by outcome (success, duplicate, malformed, store_failure)",
		},
		[]string{"status"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Time spent validating and applying a webhook, including the transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconcileJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_jobs_total",
			Help: "Aggregate recount jobs processed by the worker pool",
		},
		[]string{"kind", "result"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Currently connected live-feed clients",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
