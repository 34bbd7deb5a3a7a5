package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Per-database metrics ---
	databases := []string{"gallery", "settings", "history", "index"}

	for _, db := range databases {
		DBBusyRetries.WithLabelValues(db)
		DBQueryTimeouts.WithLabelValues(db)
		for _, file := range []string{"main", "wal", "shm"} {
			DBSizeBytes.WithLabelValues(db, file)
		}
	}

	// --- Cache metrics ---
	for _, cache := range []string{"route", "cover", "dimensions"} {
		CacheHits.WithLabelValues(cache)
		CacheMisses.WithLabelValues(cache)
	}
	for _, mode := range []string{"tags", "pattern"} {
		CacheInvalidationsTotal.WithLabelValues(mode)
	}

	// --- Filesystem operation metrics (per volume x operation) ---
	volumes := []string{"media", "thumbs", "data", "unknown"}
	fsOps := []string{"read", "write", "stat", "readdir"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
	}

	// --- Filesystem retry metrics (per retry-operation x volume) ---
	retryOps := []string{"stat", "open", "readdir", "write"}

	for _, op := range retryOps {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	// --- Thumbnail generation by type and status ---
	for _, t := range []string{"photo", "video"} {
		ThumbnailGenerationDuration.WithLabelValues(t)
		ThumbnailGenerationsTotal.WithLabelValues(t, "success")
		ThumbnailGenerationsTotal.WithLabelValues(t, "error")
		ThumbnailGenerationsTotal.WithLabelValues(t, "error_not_found")
		ThumbnailGenerationsTotal.WithLabelValues(t, "error_corrupt")
	}
	for _, p := range []string{"high", "low"} {
		ThumbnailQueueDepth.WithLabelValues(p)
	}
	for _, s := range []string{"pending", "done", "failed"} {
		ThumbnailsByStatus.WithLabelValues(s)
	}

	// --- Watcher event types ---
	for _, ev := range []string{"create", "write", "remove", "rename"} {
		WatcherEventsTotal.WithLabelValues(ev)
	}

	// --- Search outcomes ---
	for _, s := range []string{"success", "invalid", "unavailable", "error"} {
		SearchQueriesTotal.WithLabelValues(s)
	}

	// --- Job queues ---
	for _, q := range []string{"captioning", "settings-update"} {
		JobsEnqueuedTotal.WithLabelValues(q)
		JobRetriesTotal.WithLabelValues(q)
		JobDuration.WithLabelValues(q)
		for _, s := range []string{"success", "error", "dead"} {
			JobsCompletedTotal.WithLabelValues(q, s)
		}
	}

	// --- Event stream ---
	for _, ev := range []string{"connected", "thumbnail-generated"} {
		SSEEventsSent.WithLabelValues(ev)
	}
}
