// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	TicksIngested    *prometheus.CounterVec
	TicksFlushed     *prometheus.CounterVec
	TicksDropped     *prometheus.CounterVec
	FlushErrors      *prometheus.CounterVec
	BufferSize       *prometheus.GaugeVec
	StreamReconnects *prometheus.CounterVec

	// Resampling metrics
	BarsUpserted     *prometheus.CounterVec
	ResampleErrors   *prometheus.CounterVec
	ResampleDuration prometheus.Histogram

	// Alerting metrics
	AlertsFired *prometheus.CounterVec
	ActiveRules prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulFlush    prometheus.Gauge
	LastSuccessfulResample prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
// Register once per process; Handler serves the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_tick_lab"
	}

	return &Metrics{
		TicksIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_ingested_total",
			Help:      "Total number of ticks received from the stream",
		}, []string{"symbol"}),
		TicksFlushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_flushed_total",
			Help:      "Total number of ticks persisted to storage",
		}, []string{"symbol"}),
		TicksDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_dropped_total",
			Help:      "Total number of ticks dropped by the capacity bound",
		}, []string{"symbol"}),
		FlushErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "flush_errors_total",
			Help:      "Total number of failed flush attempts",
		}, []string{"symbol"}),
		BufferSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "buffer_size",
			Help:      "Current number of buffered ticks per symbol",
		}, []string{"symbol"}),
		StreamReconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnections",
		}, []string{"symbol"}),

		BarsUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resample",
			Name:      "bars_upserted_total",
			Help:      "Total number of bars written by the resampler",
		}, []string{"symbol"}),
		ResampleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resample",
			Name:      "errors_total",
			Help:      "Total number of failed resample passes",
		}, []string{"symbol"}),
		ResampleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resample",
			Name:      "pass_duration_seconds",
			Help:      "Duration of one full resample pass",
			Buckets:   prometheus.DefBuckets,
		}),

		AlertsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_fired_total",
			Help:      "Total number of alert rule firings",
		}, []string{"symbol"}),
		ActiveRules: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "active_rules",
			Help:      "Current number of alert rules",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Storage query latency by backend and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_errors_total",
			Help:      "Storage query errors by backend and operation",
		}, []string{"backend", "operation"}),

		LastSuccessfulFlush: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_flush_timestamp",
			Help:      "Unix timestamp of the last successful flush",
		}),
		LastSuccessfulResample: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_resample_timestamp",
			Help:      "Unix timestamp of the last successful resample pass",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
