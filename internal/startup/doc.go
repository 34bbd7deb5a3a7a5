// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - PHOTOS_DIR: Path to the media library root (default: /photos)
//   - DATA_DIR: Path for databases and the thumbnail mirror (default: /data)
//   - REDIS_URL: Redis connection URL (default: redis://localhost:6379)
//   - PORT: HTTP server port (default: 8080)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - INDEX_STABILIZATION_MS: Watcher write-stability window (default: 2000)
//   - INDEX_DEBOUNCE_MS: Watcher batch debounce window (default: 5000)
//   - TAG_INVALIDATION_CEILING: Max keys per tag before falling back to a
//     pattern delete (default: 200)
//   - THUMB_CHECK_BATCH: Thumbnail reconciler batch size (default: 300)
//   - THUMB_CHECK_DELAY_MS: Pause between reconciler batches (default: 500)
//   - THUMB_MAX_RETRIES: Thumbnail generation attempts (default: 5)
//   - THUMB_RETRY_INITIAL_MS: First retry delay, doubled per attempt (default: 1000)
//   - COVER_LRU_SIZE: In-process album cover cache entries (default: 1024)
//   - WATCH_MODE: notify (fsnotify) or poll (default: notify)
//   - WATCH_POLL_INTERVAL_MS: Poll mode scan interval (default: 30000)
//   - DB_BUSY_TIMEOUT_MS: SQLite busy_timeout, clamped to [10s,60s] (default: 10000)
//   - DB_QUERY_TIMEOUT_MS: Per-query deadline, clamped to [15s,60s] (default: 30000)
//   - DB_MMAP_SIZE: SQLite mmap_size in bytes; overrides the RAM tier
//   - DB_CACHE_SIZE: SQLite page cache in bytes; overrides the RAM tier
//   - REBUILD_THRESHOLD: Change-set size that triggers a full rebuild (default: 5000)
//   - CORRUPT_DELETE_THRESHOLD: Decode failures before a source file is
//     deleted; 0 disables (default: 10)
//   - LIST_HARD_CAP: Per-listing page size ceiling (default: 10000)
//   - ADMIN_SECRET: Secret required for sensitive settings writes
//   - PUBLIC_ACCESS: Allow unauthenticated browsing (default: false)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT / MEMORY_RATIO / GOMEMLIMIT: see internal/memory
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Data directory: Required, must be writable (databases live here)
//   - Thumbnails directory: Optional, thumbnails degrade to placeholders
//     when it is not writable
//   - Photos directory: Checked but not created (should be mounted)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogCacheInit]: Redis availability
//   - [LogMediaToolsInit]: ffmpeg/ffprobe availability (video thumbnails)
//   - [LogIndexerInit]: Indexer startup
//   - [LogWatcherInit]: Watch mode and poll interval
//   - [LogThumbnailerInit]: Worker pool size
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup
