package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage labels used with StageDuration.
const (
	StageTempWrite    = "temp_write"
	StageProbe        = "probe"
	StageRemux        = "remux"
	StageObjectUpload = "object_upload"
	StageRecordUpdate = "record_update"
)

// Pipeline metrics
var (
	// UploadsTotal counts upload pipeline runs by asset kind and outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "uploads_total",
			Help:      "Total number of upload pipeline runs",
		},
		[]string{"kind", "status"},
	)

	// StageDuration tracks the time spent in each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ingest",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Time spent in each upload pipeline stage",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 180, 600},
		},
		[]string{"stage"},
	)

	// ActivePipelines tracks the number of in-flight upload pipelines.
	ActivePipelines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ingest",
			Name:      "active_pipelines",
			Help:      "Number of in-flight upload pipelines",
		},
	)

	// TempFilesOrphaned counts temp files whose cleanup failed.
	TempFilesOrphaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "temp_files_orphaned_total",
			Help:      "Temporary files that could not be removed after a pipeline run",
		},
	)

	// EventsPublished counts ingest events by outcome.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "events_published_total",
			Help:      "Ingest events published to the queue",
		},
		[]string{"status"},
	)
)

// API metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AuthFailures counts authentication failures by type.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)
)

// RecordUploadSuccess records a successful pipeline run.
func RecordUploadSuccess(kind string) {
	UploadsTotal.WithLabelValues(kind, "success").Inc()
}

// RecordUploadFailure records a failed pipeline run.
func RecordUploadFailure(kind string) {
	UploadsTotal.WithLabelValues(kind, "failed").Inc()
}
