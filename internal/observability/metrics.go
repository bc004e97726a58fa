package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for Actiondex.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Discovery metrics.
	DiscoveriesTotal  *prometheus.CounterVec
	DiscoveryDuration prometheus.Histogram
	DiscoveryResults  prometheus.Histogram
	MatchScores       prometheus.Histogram

	// Catalog metrics.
	CatalogSize         prometheus.Gauge
	AdvertisementsTotal *prometheus.CounterVec

	// Gateway metrics.
	ConnectedAgents     prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActiveRequests      prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		DiscoveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actiondex",
			Subsystem: "discovery",
			Name:      "requests_total",
			Help:      "Total discovery requests.",
		}, []string{"status"}),

		DiscoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "actiondex",
			Subsystem: "discovery",
			Name:      "duration_seconds",
			Help:      "Catalog ranking duration in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		DiscoveryResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "actiondex",
			Subsystem: "discovery",
			Name:      "results",
			Help:      "Number of results returned per discovery request.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),

		MatchScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "actiondex",
			Subsystem: "discovery",
			Name:      "top_score",
			Help:      "Top composite match score per discovery request.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		CatalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "actiondex",
			Subsystem: "catalog",
			Name:      "size",
			Help:      "Advertisements currently registered in the catalog.",
		}),

		AdvertisementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actiondex",
			Subsystem: "catalog",
			Name:      "advertisements_total",
			Help:      "Total advertisement operations.",
		}, []string{"op"}), // "register", "withdraw", "prune"

		ConnectedAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "actiondex",
			Subsystem: "gateway",
			Name:      "connected_agents",
			Help:      "Agents currently connected over WebSocket.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actiondex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "actiondex",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "actiondex",
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "In-flight HTTP requests.",
		}),
	}

	reg.MustRegister(
		m.DiscoveriesTotal,
		m.DiscoveryDuration,
		m.DiscoveryResults,
		m.MatchScores,
		m.CatalogSize,
		m.AdvertisementsTotal,
		m.ConnectedAgents,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}
