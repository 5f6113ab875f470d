// Package telemetry provides application-level observability for the Nexo
// activity service.
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<NXC_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is NOT served by the Gin router so the
// scrape path stays off the public ingress and outside rate limiting.
//
// HTTP metrics use c.FullPath() (route template such as
// /api/system-activities/entity/:type/:id) rather than the raw request URL to
// prevent unbounded label cardinality from user-supplied path segments.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Activity log metrics.
//
// ActivitiesRecordedTotal counts successfully persisted entries by action.
// ActivitiesDroppedTotal counts entries the writer refused or failed to
// persist; the reason label is one of "no_actor", "unknown_actor",
// "persist_error". Because the writer never surfaces errors to callers, this
// counter is the only operational signal that entries are being lost — alert
// on a nonzero rate of reason="persist_error".
var (
	ActivitiesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activities_recorded_total",
			Help: "Total number of activity log entries persisted, by action.",
		},
		[]string{"action"},
	)

	ActivitiesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activities_dropped_total",
			Help: "Total number of activity log entries dropped by the writer, by reason.",
		},
		[]string{"reason"},
	)

	ActivityShipErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activity_ship_errors_total",
			Help: "Total number of failures shipping activity entries to external destinations.",
		},
	)
)

// Aggregate gauges maintained by the stats poller job.
var (
	ActivityLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "activity_log_entries",
			Help: "Current total number of rows in the system activity log.",
		},
	)

	ActivityDistinctUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "activity_log_distinct_users",
			Help: "Number of distinct actors present in the system activity log.",
		},
	)
)

// Database connection pool gauges, polled periodically.
var (
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established database connections both in use and idle.",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections currently in use.",
		},
	)
)

// StartDBPoolGaugePoller polls sql.DB.Stats into the pool gauges every
// interval until ctx is cancelled. Pool stats are only observable by polling;
// database/sql offers no callback hook.
func StartDBPoolGaugePoller(ctx context.Context, db *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				DBConnectionsOpen.Set(float64(stats.OpenConnections))
				DBConnectionsInUse.Set(float64(stats.InUse))
			case <-ctx.Done():
				slog.Debug("db pool gauge poller stopped")
				return
			}
		}
	}()
}
