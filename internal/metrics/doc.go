// Package metrics provides Prometheus instrumentation for the media gallery server.
//
// This package defines and exposes various metrics that can be scraped by Prometheus
// to monitor the health, performance, and behavior of the application. All metrics
// are prefixed with "media_gallery_" to avoid naming collisions with other applications.
//
// # Metric Categories
//
// The metrics are organized into the following categories:
//
// ## HTTP Metrics
//
// Track HTTP request performance and error rates:
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Database Metrics
//
// Monitor query performance across the four SQLite databases (gallery,
// settings, history, index):
//   - DBQueryTotal: Counter of queries by database, operation, and status
//   - DBQueryDuration: Histogram of query duration by database and operation
//   - DBBusyRetries: Counter of SQLITE_BUSY retry attempts by database
//   - DBQueryTimeouts: Counter of queries aborted by the query timeout
//   - DBSizeBytes: Gauge of database file sizes (main, WAL, SHM)
//
// ## Cache Metrics
//
// Monitor the Redis route cache and the cover/dimension key/value caches:
//   - CacheHits, CacheMisses: Counters by cache name
//   - CacheInvalidationsTotal: Counter of invalidation operations by mode
//   - CacheKeysInvalidated: Counter of keys removed by invalidation
//   - CacheBackendUp: Gauge indicating Redis reachability
//
// ## Indexer and Watcher Metrics
//
// Track media library indexing and filesystem watching:
//   - IndexerRunsTotal, IndexerLastRunTimestamp, IndexerLastRunDuration
//   - IndexerFilesProcessed, IndexerFoldersProcessed, IndexerErrors
//   - IndexerIsRunning: Gauge indicating if indexing is active
//   - WatcherEventsTotal: Counter of raw filesystem events by type
//   - WatcherBatchesTotal, WatcherBatchSize: debounced batch activity
//   - WatcherRebuildsTotal: Counter of threshold-triggered full rebuilds
//   - WatchedDirectories: Gauge of directories under watch
//
// ## Thumbnail Metrics
//
// Monitor on-demand and background thumbnail generation:
//   - ThumbnailGenerationsTotal: Counter by type (photo/video) and status
//   - ThumbnailGenerationDuration: Histogram of generation time by type
//   - ThumbnailQueueDepth: Gauge of queued tasks by priority
//   - ThumbnailRetriesTotal, ThumbnailPermanentFailures
//   - ThumbnailCorruptDeletes: Counter of sources removed as corrupt
//   - ReconcilerBatchesTotal, ReconcilerRepairsTotal: background verification
//
// ## Search, Events, and Jobs
//
//   - SearchQueriesTotal: Counter by outcome; SearchDuration histogram
//   - SSEClientsConnected, SSEEventsSent, SSEEventsDropped
//   - JobsEnqueuedTotal, JobsCompletedTotal, JobDuration, JobRetriesTotal
//
// ## Memory Metrics
//
// Monitor memory pressure and backpressure pauses:
//   - MemoryUsageRatio: Gauge of memory usage as ratio of limit (0.0-1.0)
//   - MemoryPaused: Gauge indicating if background work is paused
//   - MemoryPausesTotal: Counter of pause events
//
// ## Filesystem Metrics
//
// Record per-volume operation latency and NFS stale-handle retries, fed by
// the [NewFilesystemObserver] implementation:
//   - FilesystemOperationDuration, FilesystemOperationErrors
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures
//   - FilesystemStaleErrors, FilesystemRetryDuration
//
// # Usage
//
// Metrics are automatically registered with the default Prometheus registry
// using promauto. To expose them, mount the promhttp.Handler() on your
// metrics endpoint:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Recording Metrics
//
// To record metrics from other packages, import this package and use the
// exported metric variables:
//
//	import "media-gallery/internal/metrics"
//
//	// Increment a counter
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/browse", "200").Inc()
//
//	// Observe a histogram value
//	metrics.DBQueryDuration.WithLabelValues("index", "list_directory").Observe(0.123)
//
// # Collector
//
// The package provides a [Collector] type that periodically gathers
// statistics from a [StatsProvider] and updates the corresponding gauges:
//
//	collector := metrics.NewCollector(statsProvider, 1*time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Example PromQL queries for common use cases:
//
// Request rate by endpoint:
//
//	sum(rate(media_gallery_http_requests_total[5m])) by (path)
//
// P95 response time:
//
//	histogram_quantile(0.95, sum(rate(media_gallery_http_request_duration_seconds_bucket[5m])) by (le))
//
// Route cache hit rate:
//
//	rate(media_gallery_cache_hits_total{cache="route"}[5m]) /
//	(rate(media_gallery_cache_hits_total{cache="route"}[5m]) + rate(media_gallery_cache_misses_total{cache="route"}[5m]))
//
// Database query latency by operation:
//
//	histogram_quantile(0.95, sum(rate(media_gallery_db_query_duration_seconds_bucket[5m])) by (le, db, operation))
//
// Thumbnail failure rate:
//
//	sum(rate(media_gallery_thumbnail_generations_total{status=~"error.*"}[5m])) /
//	sum(rate(media_gallery_thumbnail_generations_total[5m]))
package metrics
