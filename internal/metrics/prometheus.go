package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	BatchLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainscope_batch_loads_total",
			Help: "Total number of batch loads",
		},
		[]string{"status"}, // status: success|error
	)

	FilesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainscope_files_processed_total",
			Help: "Snapshot files seen by the loader",
		},
		[]string{"result"}, // result: accepted|skipped
	)

	LoadWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainscope_load_warnings_total",
			Help: "Per-file load warnings by kind",
		},
		[]string{"kind"},
	)

	RowsLoaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chainscope_rows_loaded_total",
			Help: "Snapshot rows accepted into combined datasets",
		},
	)

	BatchesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chainscope_batches_expired_total",
			Help: "Batches dropped by the janitor after their TTL",
		},
	)

	// Pipeline metrics
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainscope_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"stage"}, // stage: load|deltas|indicators
	)

	// Query metrics
	Queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainscope_queries_total",
			Help: "Analysis queries by operation and outcome",
		},
		[]string{"operation", "status"}, // status: ok|empty|insufficient|not_found|invalid|error
	)

	QueryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainscope_query_latency_seconds",
			Help:    "Analysis query latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"operation"},
	)

	// HTTP metrics
	UploadsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainscope_uploads_rejected_total",
			Help: "Uploads rejected before loading",
		},
		[]string{"reason"}, // reason: rate_limited|too_large|no_files
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(BatchLoads)
		prometheus.MustRegister(FilesProcessed)
		prometheus.MustRegister(LoadWarnings)
		prometheus.MustRegister(RowsLoaded)
		prometheus.MustRegister(BatchesExpired)
		prometheus.MustRegister(StageDuration)
		prometheus.MustRegister(Queries)
		prometheus.MustRegister(QueryLatency)
		prometheus.MustRegister(UploadsRejected)
	})
}

// Handler exposes the default registry for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBatchLoad records the outcome of one Load call
func RecordBatchLoad(duration time.Duration, rows int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	BatchLoads.WithLabelValues(status).Inc()
	StageDuration.WithLabelValues("load").Observe(duration.Seconds())
	if rows > 0 {
		RowsLoaded.Add(float64(rows))
	}
}

// RecordFile records whether a file made it into the combined dataset
func RecordFile(accepted bool) {
	if accepted {
		FilesProcessed.WithLabelValues("accepted").Inc()
		return
	}
	FilesProcessed.WithLabelValues("skipped").Inc()
}

// RecordWarning records a per-file warning by kind
func RecordWarning(kind string) {
	LoadWarnings.WithLabelValues(kind).Inc()
}

// RecordStage records the duration of a derivation stage
func RecordStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordQuery records an analysis query
func RecordQuery(operation, status string, latency time.Duration) {
	Queries.WithLabelValues(operation, status).Inc()
	QueryLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordUploadRejected records an upload refused before loading
func RecordUploadRejected(reason string) {
	UploadsRejected.WithLabelValues(reason).Inc()
}

// RecordBatchesExpired records batches removed by the janitor
func RecordBatchesExpired(n int) {
	BatchesExpired.Add(float64(n))
}
