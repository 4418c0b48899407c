// Package metrics exposes Prometheus metrics for the scheduler and the
// document store.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	schedulerDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curio_scheduler_dispatch_total",
			Help: "Total number of task dispatches",
		},
		[]string{"task"},
	)

	schedulerTaskFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curio_scheduler_task_failures_total",
			Help: "Total number of task executions that returned an error",
		},
		[]string{"task"},
	)

	schedulerRunningTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curio_scheduler_running_tasks",
			Help: "Number of task executions currently in flight",
		},
	)

	docstoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curio_docstore_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"collection", "op", "status"},
	)

	eventsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curio_events_logged_total",
			Help: "Total number of events written to the event logger",
		},
		[]string{"kind"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curio_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	dbConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curio_db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)
)

// TaskDispatched increments the dispatch counter for a task.
func TaskDispatched(task string) {
	schedulerDispatchTotal.WithLabelValues(task).Inc()
}

// TaskFailed increments the failure counter for a task.
func TaskFailed(task string) {
	schedulerTaskFailures.WithLabelValues(task).Inc()
}

// TaskStarted marks a task execution as in flight.
func TaskStarted() {
	schedulerRunningTasks.Inc()
}

// TaskFinished marks a task execution as complete.
func TaskFinished() {
	schedulerRunningTasks.Dec()
}

// StoreOperation records a document store operation outcome.
func StoreOperation(collection, op, status string) {
	docstoreOperations.WithLabelValues(collection, op, status).Inc()
}

// EventLogged records an event-logger write.
func EventLogged(kind string) {
	eventsLogged.WithLabelValues(kind).Inc()
}

// UpdateDBStats refreshes the connection pool gauges.
func UpdateDBStats(stats sql.DBStats) {
	dbConnectionsOpen.Set(float64(stats.OpenConnections))
	dbConnectionsInUse.Set(float64(stats.InUse))
}

// Handler returns the HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
