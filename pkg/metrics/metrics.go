// Package metrics provides Prometheus collectors for the client: query
// counts and latency, block and row volumes, and frame compression ratios.
// All collectors are registered on the default registry at package init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts queries by outcome.
	// Labels: kind (select/insert/ping), status (success/failure)
	//
	// Example:
	//	metrics.QueriesTotal.WithLabelValues("select", "success").Inc()
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chnative_queries_total",
			Help: "Total number of queries issued",
		},
		[]string{"kind", "status"},
	)

	// QueryDuration tracks end-to-end query latency in seconds, from the
	// query packet to end-of-stream.
	// Labels: kind (select/insert/ping)
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chnative_query_duration_seconds",
			Help:    "Query latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"kind"},
	)

	// BlocksTotal counts data blocks by direction.
	// Labels: direction (sent/received)
	BlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chnative_blocks_total",
			Help: "Total number of data blocks transferred",
		},
		[]string{"direction"},
	)

	// RowsTotal counts rows by direction.
	// Labels: direction (sent/received)
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chnative_rows_total",
			Help: "Total number of rows transferred",
		},
		[]string{"direction"},
	)

	// BytesTotal counts wire bytes by direction, after compression.
	// Labels: direction (sent/received)
	BytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chnative_bytes_total",
			Help: "Total wire bytes transferred",
		},
		[]string{"direction"},
	)

	// ActiveConnections tracks open native protocol connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chnative_active_connections",
			Help: "Number of open connections",
		},
	)

	// ServerExceptions counts exceptions returned by the server.
	// Labels: code (the server's numeric error code)
	ServerExceptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chnative_server_exceptions_total",
			Help: "Total number of server exceptions",
		},
		[]string{"code"},
	)
)

// Timer measures one operation and reports it to QueryDuration on Stop.
type Timer struct {
	start time.Time
	kind  string
}

// NewTimer starts timing an operation of the given kind.
//
// Example:
//
//	timer := metrics.NewTimer("select")
//	defer timer.Stop()
func NewTimer(kind string) *Timer {
	return &Timer{start: time.Now(), kind: kind}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	QueryDuration.WithLabelValues(t.kind).Observe(d.Seconds())
	return d
}
