// Package metrics provides Prometheus metrics for the solstice core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Traversal metrics
	traversalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solstice_traversals_total",
			Help: "Total number of traversals by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	traversalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solstice_traversal_duration_seconds",
			Help:    "Traversal wall-clock duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	dirsListed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solstice_traversal_dirs_listed_total",
			Help: "Directories listed by the traversal engine",
		},
	)

	listErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solstice_traversal_list_errors_total",
			Help: "Directory listings that failed and were skipped",
		},
	)

	resultsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solstice_traversal_results_total",
			Help: "Entries returned by traversals",
		},
		[]string{"kind"},
	)

	// File operation metrics
	fileOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solstice_file_operations_total",
			Help: "File operations by op and status",
		},
		[]string{"op", "status"},
	)

	// Undo metrics
	undoTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solstice_undo_operations_total",
			Help: "Undo and redo executions by direction, action kind and status",
		},
		[]string{"direction", "kind", "status"},
	)

	undoDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solstice_undo_stack_depth",
			Help: "Current depth of the undo and redo stacks",
		},
		[]string{"stack"},
	)

	// Thumbnail metrics
	thumbnailLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solstice_thumbnail_lookups_total",
			Help: "Thumbnail cache lookups by result",
		},
		[]string{"result"},
	)

	// Event metrics
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solstice_events_published_total",
			Help: "Events published to subscribers by type",
		},
		[]string{"type"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTraversal records one finished traversal.
func RecordTraversal(kind, outcome string, duration time.Duration, results int) {
	traversalsTotal.WithLabelValues(kind, outcome).Inc()
	traversalDuration.WithLabelValues(kind).Observe(duration.Seconds())
	resultsReturned.WithLabelValues(kind).Add(float64(results))
}

// RecordDirListed records a directory listing attempt.
func RecordDirListed(failed bool) {
	dirsListed.Inc()
	if failed {
		listErrors.Inc()
	}
}

// RecordFileOp records a file operation outcome.
func RecordFileOp(op string, success bool) {
	fileOpsTotal.WithLabelValues(op, status(success)).Inc()
}

// RecordUndo records an undo or redo execution.
func RecordUndo(direction, kind string, success bool) {
	undoTotal.WithLabelValues(direction, kind, status(success)).Inc()
}

// SetUndoDepth updates the stack depth gauges.
func SetUndoDepth(undo, redo int) {
	undoDepth.WithLabelValues("undo").Set(float64(undo))
	undoDepth.WithLabelValues("redo").Set(float64(redo))
}

// RecordThumbnailLookup records a cache hit or miss.
func RecordThumbnailLookup(hit bool) {
	if hit {
		thumbnailLookups.WithLabelValues("hit").Inc()
		return
	}
	thumbnailLookups.WithLabelValues("miss").Inc()
}

// RecordEvent records a published event.
func RecordEvent(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
