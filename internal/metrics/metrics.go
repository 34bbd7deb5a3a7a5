package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_gallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics. The "db" label is one of gallery, settings, history, index.
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"db", "operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_gallery_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"db", "operation"},
	)

	DBBusyRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_db_busy_retries_total",
			Help: "Total number of SQLITE_BUSY retry attempts",
		},
		[]string{"db"},
	)

	DBQueryTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_db_query_timeouts_total",
			Help: "Total number of queries aborted by the query timeout",
		},
		[]string{"db"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_gallery_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"db", "file"}, // file is "main", "wal", or "shm"
	)
)

// Cache metrics. The "cache" label distinguishes the route cache from the
// cover and dimension key/value caches.
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_cache_invalidations_total",
			Help: "Total number of cache invalidation operations",
		},
		[]string{"mode"}, // "tags" or "pattern"
	)

	CacheKeysInvalidated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_cache_keys_invalidated_total",
			Help: "Total number of cache keys removed by invalidation",
		},
	)

	CacheBackendUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_cache_backend_up",
			Help: "Whether the Redis cache backend is reachable (1 = up, 0 = down)",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_indexer_runs_total",
			Help: "Total number of indexer runs",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_indexer_last_run_timestamp",
			Help: "Timestamp of the last indexer run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_indexer_last_run_duration_seconds",
			Help: "Duration of the last indexer run in seconds",
		},
	)

	IndexerFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_indexer_files_processed_total",
			Help: "Total number of files processed by the indexer",
		},
	)

	IndexerFoldersProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_indexer_folders_processed_total",
			Help: "Total number of folders processed by the indexer",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_indexer_running",
			Help: "Whether the indexer is currently running (1 = running, 0 = idle)",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_watcher_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)

	WatcherBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_watcher_batches_total",
			Help: "Total number of debounced change batches applied",
		},
	)

	WatcherBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_gallery_watcher_batch_size",
			Help:    "Number of consolidated changes per applied batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)

	WatcherRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_watcher_rebuilds_total",
			Help: "Total number of full rebuilds triggered by oversized change batches",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"type", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_gallery_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	ThumbnailQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_gallery_thumbnail_queue_depth",
			Help: "Number of tasks waiting in the thumbnail queues",
		},
		[]string{"priority"}, // "high" or "low"
	)

	ThumbnailRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_thumbnail_retries_total",
			Help: "Total number of thumbnail generation retries",
		},
	)

	ThumbnailPermanentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_thumbnail_permanent_failures_total",
			Help: "Total number of thumbnails marked permanently failed",
		},
	)

	ThumbnailCorruptDeletes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_thumbnail_corrupt_deletes_total",
			Help: "Total number of source files deleted after repeated corruption failures",
		},
	)

	ThumbnailGeneratorRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_thumbnail_generator_running",
			Help: "Whether the idle thumbnail generator is currently running (1 = running, 0 = idle)",
		},
	)

	ReconcilerBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_reconciler_batches_total",
			Help: "Total number of reconciler verification batches",
		},
	)

	ReconcilerRepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_reconciler_repairs_total",
			Help: "Total number of thumbnails re-queued by the reconciler",
		},
	)
)

// Search metrics
var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"status"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_gallery_search_duration_seconds",
			Help:    "Search query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// Event stream metrics
var (
	SSEClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_sse_clients_connected",
			Help: "Number of connected server-sent event clients",
		},
	)

	SSEEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_sse_events_sent_total",
			Help: "Total number of server-sent events delivered",
		},
		[]string{"event"},
	)

	SSEEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_sse_events_dropped_total",
			Help: "Total number of events dropped on slow subscriber buffers",
		},
	)
)

// Background job metrics. The "queue" label is the job stream name.
var (
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_jobs_enqueued_total",
			Help: "Total number of background jobs enqueued",
		},
		[]string{"queue"},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_jobs_completed_total",
			Help: "Total number of background jobs completed",
		},
		[]string{"queue", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_gallery_job_duration_seconds",
			Help:    "Background job processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"queue"},
	)

	JobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_job_retries_total",
			Help: "Total number of background job retry attempts",
		},
		[]string{"queue"},
	)
)

// Video optimizer metrics
var (
	OptimizerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_optimizer_queue_depth",
			Help: "Number of videos waiting for background optimization",
		},
	)

	OptimizerTranscodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_optimizer_transcodes_total",
			Help: "Total number of video optimization outcomes",
		},
		[]string{"status"}, // "done", "failed" or "skipped"
	)

	OptimizerTranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_gallery_optimizer_transcode_duration_seconds",
			Help:    "Video transcode duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)
)

// Memory pressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_memory_usage_ratio",
			Help: "Current memory usage as a ratio of the configured limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_memory_paused",
			Help: "Whether background processing is paused for memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_memory_pauses_total",
			Help: "Total number of times background processing was paused for memory",
		},
	)
)

// Filesystem metrics record per-volume operation latency and the retry
// behavior of the NFS stale-handle helpers.
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_gallery_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_filesystem_operation_errors_total",
			Help: "Total number of filesystem operation errors",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after stale handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded on retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_filesystem_stale_errors_total",
			Help: "Total number of NFS stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_gallery_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Media library metrics
var (
	MediaFilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_gallery_media_files_total",
			Help: "Total number of media files by type",
		},
		[]string{"type"},
	)

	MediaAlbumsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_media_albums_total",
			Help: "Total number of albums",
		},
	)

	ThumbnailsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_gallery_thumbnails_by_status",
			Help: "Number of indexed items by thumbnail status",
		},
		[]string{"status"}, // "pending", "done", "failed"
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_gallery_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
