// Package metrics exposes the Prometheus collectors of the backend API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var defBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.125, 0.15, 0.175, 0.2,
	0.25, 0.3, 0.5, 0.75, 1.0, 2.5, 5.0, 7.5,
}

var (
	RequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total count of HTTP requests",
	}, []string{"method", "endpoint", "http_status"})

	ClientErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_errors_total",
		Help: "Total count of HTTP client errors",
	}, []string{"method", "endpoint", "http_status"})

	ServerErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_server_errors_total",
		Help: "Total count of HTTP server errors",
	}, []string{"method", "endpoint", "http_status"})

	IntegrationsLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tictactoe_integrations_latency_seconds",
		Help:    "Latency of database and cache calls",
		Buckets: defBuckets,
	}, []string{"integration"})

	RoutesLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tictactoe_routes_latency_seconds",
		Help:    "Latency of API routes",
		Buckets: defBuckets,
	}, []string{"method", "endpoint"})
)

// ObserveIntegration times one storage or cache call.
func ObserveIntegration(name string, f func() error) error {
	start := time.Now()
	err := f()
	IntegrationsLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}
