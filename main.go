package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"media-gallery/internal/browse"
	"media-gallery/internal/cache"
	"media-gallery/internal/database"
	"media-gallery/internal/events"
	"media-gallery/internal/handlers"
	"media-gallery/internal/indexer"
	"media-gallery/internal/jobs"
	"media-gallery/internal/logging"
	"media-gallery/internal/media"
	"media-gallery/internal/memory"
	"media-gallery/internal/metrics"
	"media-gallery/internal/middleware"
	"media-gallery/internal/optimizer"
	"media-gallery/internal/search"
	"media-gallery/internal/startup"
	"media-gallery/internal/thumbnailer"
	"media-gallery/internal/watcher"
	"media-gallery/internal/workers"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// GOMEMLIMIT before anything allocates in earnest
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// libvips powers image thumbnailing; without it the pure-Go decoder
	// path takes over
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable: %v", err)
	}
	defer media.ShutdownVips()

	startup.LogMediaToolsInit()

	ctx := context.Background()

	// Open the four stores
	dbStart := time.Now()
	db, err := database.Open(ctx, config.DataDir, database.Options{
		BusyTimeout:  config.DBBusyTimeout,
		QueryTimeout: config.DBQueryTimeout,
		MmapBytes:    config.DBMmapBytes,
		CacheKiB:     config.DBCacheBytes / 1024,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize databases: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Redis cache; the server runs degraded without it
	cacheClient, err := cache.New(config.RedisURL, config.TagInvalidationCeiling)
	if err != nil {
		startup.LogFatal("Invalid REDIS_URL: %v", err)
	}
	defer cacheClient.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	cacheUp := cacheClient.Ping(pingCtx) == nil
	cancelPing()
	startup.LogCacheInit(config.RedisURL, cacheUp)

	// In-process event bus feeding the SSE endpoint
	bus := events.NewBus()

	// Job queues: settings updates are consumed here, captioning by an
	// external worker
	queue := jobs.NewQueue(cacheClient)
	queue.EnsureStreams(ctx)
	startup.LogJobsInit([]string{jobs.StreamSettingsUpdate, jobs.StreamCaptioning})

	settingsWorker := jobs.NewWorker(queue, jobs.StreamSettingsUpdate, jobs.NewSettingsHandler(db), jobs.Config{})
	settingsWorker.Start()

	// Memory backpressure for background work
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Video optimizer
	opt := optimizer.New(cacheClient, optimizer.Config{
		MediaRoot:    config.PhotosDir,
		OptimizedDir: filepath.Join(config.DataDir, "optimized"),
	})
	opt.Start()

	// Thumbnail engine
	thumbWorkers := workers.ForThumbnails()
	startup.LogThumbnailerInit(thumbWorkers)
	startup.LogThumbnailInit(config.ThumbnailsEnabled)
	thumbs := thumbnailer.New(db, cacheClient, bus, thumbnailer.Config{
		MediaRoot:              config.PhotosDir,
		ThumbsDir:              config.ThumbsDir,
		Workers:                thumbWorkers,
		MaxRetries:             config.ThumbMaxRetries,
		RetryInitial:           config.ThumbRetryInitial,
		CorruptDeleteThreshold: config.CorruptDeleteThreshold,
		IdleBatch:              config.ThumbCheckBatch,
		IdleDelay:              config.ThumbCheckDelay,
		Memory:                 monitor,
	})
	if config.ThumbnailsEnabled {
		thumbs.Start()
	}

	// Listing and search services
	browseSvc := browse.New(db, cacheClient, browse.Config{
		MediaRoot:    config.PhotosDir,
		HardCap:      config.ListHardCap,
		CoverLRUSize: config.CoverLRUSize,
	})
	searchSvc := search.New(db, browseSvc, config.ListHardCap)

	// Indexer; a rebuild runs in the background when the index is empty
	// or a previous run left a checkpoint
	startup.LogIndexerInit()
	idx := indexer.New(db, cacheClient, config.PhotosDir)
	if needed, reason := idx.NeedsRebuild(ctx); needed {
		idx.TriggerRebuild(reason)
	}
	startup.LogIndexerStarted()

	// Filesystem watcher keeps the index live between rebuilds
	startup.LogWatcherInit(config.WatchMode, config.WatchPollInterval)
	watch := watcher.New(watcher.Config{
		Root:             config.PhotosDir,
		ThumbsDir:        config.ThumbsDir,
		Mode:             config.WatchMode,
		PollInterval:     config.WatchPollInterval,
		Stabilization:    config.Stabilization,
		Debounce:         config.Debounce,
		RebuildThreshold: config.RebuildThreshold,
	}, idx, opt)
	if err := watch.Start(); err != nil {
		logging.Error("Failed to start filesystem watcher: %v", err)
	}

	// Library stats for the /metrics endpoint
	collector := metrics.NewCollector(db, time.Minute)
	collector.Start()

	// HTTP surface
	h := handlers.New(db, cacheClient, bus, thumbs, browseSvc, searchSvc, queue, opt, config)
	router := setupRouter(h)

	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	handler := setupMiddleware(router, cacheClient, config)

	// WriteTimeout stays zero: SSE connections are long-lived
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, &background{
		watcher:   watch,
		indexer:   idx,
		thumbs:    thumbs,
		optimizer: opt,
		jobs:      settingsWorker,
		collector: collector,
		monitor:   monitor,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// setupRouter builds the application router. Route registration lives in
// the handlers package next to the handlers themselves.
func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

// setupMiddleware layers the shared middleware chain over the router.
// Request IDs are assigned outermost so every later stage can log them;
// the route cache sits innermost so cached responses still pass through
// logging, metrics, and compression.
func setupMiddleware(router http.Handler, cacheClient *cache.Client, config *startup.Config) http.Handler {
	handler := middleware.RouteCache(cacheClient, middleware.DefaultRouteRules())(router)

	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	handler = middleware.Recovery(handler)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	return middleware.RequestID(handler)
}

// background bundles the long-running components for ordered shutdown.
type background struct {
	watcher   *watcher.Watcher
	indexer   *indexer.Indexer
	thumbs    *thumbnailer.Thumbnailer
	optimizer *optimizer.Optimizer
	jobs      *jobs.Worker
	collector *metrics.Collector
	monitor   *memory.Monitor
}

func handleShutdown(srv *http.Server, bg *background) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The watcher flushes pending change-sets into the indexer on stop,
	// so it goes first and the indexer second.
	startup.LogShutdownStep("Stopping filesystem watcher")
	bg.watcher.Stop()
	startup.LogShutdownStepComplete("Filesystem watcher stopped")

	startup.LogShutdownStep("Stopping indexer")
	bg.indexer.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Stopping thumbnail engine")
	bg.thumbs.Stop()
	startup.LogShutdownStepComplete("Thumbnail engine stopped")

	startup.LogShutdownStep("Stopping video optimizer")
	bg.optimizer.Stop()
	startup.LogShutdownStepComplete("Video optimizer stopped")

	startup.LogShutdownStep("Stopping job workers")
	bg.jobs.Stop()
	startup.LogShutdownStepComplete("Job workers stopped")

	bg.collector.Stop()
	bg.monitor.Stop()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
