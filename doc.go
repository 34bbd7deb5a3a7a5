// Package main is the entry point for the Media Gallery server.
//
// Media Gallery is a self-hosted web application for browsing and
// searching large photo and video libraries. The server indexes a media
// directory into SQLite, mirrors it as a thumbnail tree, and serves a
// JSON API for directory listings, full-text search, album covers, and
// live progress events.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Memory Configuration: sets GOMEMLIMIT from the environment or a
//     container memory limit
//  2. Configuration Loading: reads environment variables and validates
//     the photos and data directories
//  3. Image Tooling: initializes libvips; ffmpeg and ffprobe are probed
//     and video features degrade when they are missing
//  4. Database Initialization: opens the four SQLite stores (gallery,
//     settings, history, index) and runs schema migrations
//  5. Cache Initialization: connects to Redis for response caching,
//     tag invalidation, and the job streams
//  6. Component Initialization: event bus, job workers, video
//     optimizer, thumbnail engine, browse and search services, indexer,
//     filesystem watcher, stats collector
//  7. HTTP Server Setup: registers routes and middleware, then serves
//  8. Graceful Shutdown: handles SIGINT/SIGTERM and stops every
//     component in dependency order
//
// # Background Services
//
// Several goroutines run for the life of the process:
//
//   - Indexer: rebuilds the library index when it is empty or a prior
//     rebuild was interrupted, and applies watcher change-sets
//   - Watcher: follows filesystem events (or polls network mounts) and
//     feeds consolidated changes to the indexer
//   - Thumbnail Engine: a worker pool that mirrors media files as WebP
//     thumbnails, plus an idle generator and a reconciler
//   - Video Optimizer: transcodes browser-hostile videos in the
//     background
//   - Settings Worker: consumes queued settings updates from Redis
//   - Stats Collector: refreshes library gauges for Prometheus
//   - Memory Monitor: pauses idle thumbnail generation near the memory
//     limit
//
// # Environment Variables
//
// Configuration is entirely through environment variables:
//
//   - PHOTOS_DIR: root directory containing media files
//   - DATA_DIR: directory for databases, thumbnails, optimized videos
//   - REDIS_URL: Redis connection URL
//   - PORT: HTTP server port (default: 8080)
//   - LOG_LEVEL: logging level (debug/info/warn/error)
//   - WATCH_MODE: notify or poll (poll suits network filesystems)
//   - WATCH_POLL_INTERVAL_MS, INDEX_STABILIZATION_MS, INDEX_DEBOUNCE_MS,
//     REBUILD_THRESHOLD: watcher tuning
//   - THUMBNAIL_WORKERS, THUMB_CHECK_BATCH, THUMB_CHECK_DELAY_MS,
//     THUMB_MAX_RETRIES, THUMB_RETRY_INITIAL_MS,
//     CORRUPT_DELETE_THRESHOLD: thumbnail engine tuning
//   - LIST_HARD_CAP: largest page size a listing request may ask for
//   - TAG_INVALIDATION_CEILING, COVER_LRU_SIZE: cache tuning
//   - DB_BUSY_TIMEOUT_MS, DB_QUERY_TIMEOUT_MS, DB_MMAP_SIZE,
//     DB_CACHE_SIZE: SQLite tuning
//   - ADMIN_SECRET, PUBLIC_ACCESS: access control bootstrap
//   - LOG_STATIC_FILES, LOG_HEALTH_CHECKS: request log noise control
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO: memory limit sources
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server stops components in order:
//
//  1. Filesystem watcher (flushes pending change-sets to the indexer)
//  2. Indexer (commits its current batch and checkpoints)
//  3. Thumbnail engine (in-progress thumbnails complete)
//  4. Video optimizer (the in-flight transcode is aborted)
//  5. Settings worker (the in-flight message stays pending for reclaim)
//  6. Stats collector and memory monitor
//  7. HTTP server (30s drain timeout)
//  8. Redis client and the SQLite stores
//
// # Build Requirements
//
// The application requires CGO for SQLite and libvips:
//
//   - SQLite: FTS5 full-text search support
//   - libvips: memory-efficient image decoding and resizing
//   - FFmpeg: video thumbnails, dimension probing, and optimization
//     (optional at runtime; features degrade without it)
//
// Build tags:
//
//	go build -tags 'fts5' -o media-gallery .
//
// # Related Packages
//
//   - [media-gallery/internal/database]: the four SQLite stores
//   - [media-gallery/internal/indexer]: library scanning and FTS documents
//   - [media-gallery/internal/watcher]: filesystem change detection
//   - [media-gallery/internal/thumbnailer]: thumbnail worker pool
//   - [media-gallery/internal/optimizer]: background video transcoding
//   - [media-gallery/internal/browse]: directory listing service
//   - [media-gallery/internal/search]: n-gram full-text search
//   - [media-gallery/internal/handlers]: HTTP API handlers
//   - [media-gallery/internal/middleware]: request id, logging, metrics,
//     compression, response caching
//   - [media-gallery/internal/jobs]: Redis stream job queues
//   - [media-gallery/internal/startup]: configuration and boot logging
package main
