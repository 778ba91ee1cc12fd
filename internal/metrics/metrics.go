// Package metrics holds the Prometheus collectors of the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// APICalls counts YouTube Data API calls by method and outcome.
	APICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytload_api_calls_total",
			Help: "YouTube Data API calls, by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	// ExportedRows is the row count of the last exported file per record set.
	ExportedRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ytload_exported_rows",
			Help: "Rows written to the last extract file, by record set.",
		},
		[]string{"record_set"},
	)

	// Statements counts warehouse statements by kind and outcome.
	Statements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytload_warehouse_statements_total",
			Help: "Warehouse statements executed, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// UnitDuration observes load unit durations by record set and status.
	UnitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytload_load_unit_duration_seconds",
			Help:    "Duration of one staged load (ingest + reconcile), by record set and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"record_set", "status"},
	)

	// LastSuccess is the unix time of the last successful load per record set.
	LastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ytload_last_success_timestamp_seconds",
			Help: "Unix time of the last successful load, by record set.",
		},
		[]string{"record_set"},
	)

	// CycleDuration observes full pipeline cycles.
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ytload_cycle_duration_seconds",
			Help:    "Duration of a full extract and load cycle.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// RequestDuration observes ops HTTP requests by path, method and status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytload_http_request_duration_seconds",
			Help:    "Ops HTTP request duration in seconds, by path, method and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

// Register adds every collector to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		APICalls,
		ExportedRows,
		Statements,
		UnitDuration,
		LastSuccess,
		CycleDuration,
		RequestDuration,
	)
}

// RegisterPool adds in-use and idle gauges for a connection pool, read live
// from the pool's own statistics.
func RegisterPool(reg prometheus.Registerer, name string, inUse, idle func() float64) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "ytload_connection_pool_active",
				Help:        "Number of connections in use.",
				ConstLabels: prometheus.Labels{"pool": name},
			},
			inUse,
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "ytload_connection_pool_idle",
				Help:        "Number of idle connections.",
				ConstLabels: prometheus.Labels{"pool": name},
			},
			idle,
		),
	)
}
