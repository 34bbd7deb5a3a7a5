package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-gallery/internal/logging"
	"media-gallery/internal/memory"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Watch modes. Poll is for network filesystems where inotify events
// never arrive.
const (
	WatchModeNotify = "notify"
	WatchModePoll   = "poll"
)

// Config holds all application configuration
type Config struct {
	PhotosDir string
	DataDir   string
	RedisURL  string
	Port      string

	// Watcher and indexer tuning
	Stabilization     time.Duration
	Debounce          time.Duration
	WatchMode         string
	WatchPollInterval time.Duration
	RebuildThreshold  int

	// Cache tuning
	TagInvalidationCeiling int
	CoverLRUSize           int

	// Thumbnail engine tuning
	ThumbCheckBatch        int
	ThumbCheckDelay        time.Duration
	ThumbMaxRetries        int
	ThumbRetryInitial      time.Duration
	CorruptDeleteThreshold int

	// Listing
	ListHardCap int

	// SQLite tuning; zero means derive from the RAM tier
	DBBusyTimeout  time.Duration
	DBQueryTimeout time.Duration
	DBMmapBytes    int64
	DBCacheBytes   int64

	// Access control
	AdminSecret  string
	PublicAccess bool

	// Request logging
	LogStaticFiles  bool
	LogHealthChecks bool

	// Derived paths
	ThumbsDir string

	// Feature flags based on directory availability
	ThumbnailsEnabled bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config := &Config{
		PhotosDir: getEnv("PHOTOS_DIR", "/photos"),
		DataDir:   getEnv("DATA_DIR", "/data"),
		RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379"),
		Port:      getEnv("PORT", "8080"),

		Stabilization:     getEnvMillis("INDEX_STABILIZATION_MS", 2000),
		Debounce:          getEnvMillis("INDEX_DEBOUNCE_MS", 5000),
		WatchMode:         strings.ToLower(getEnv("WATCH_MODE", WatchModeNotify)),
		WatchPollInterval: getEnvMillis("WATCH_POLL_INTERVAL_MS", 30000),
		RebuildThreshold:  getEnvInt("REBUILD_THRESHOLD", 5000),

		TagInvalidationCeiling: getEnvInt("TAG_INVALIDATION_CEILING", 200),
		CoverLRUSize:           getEnvInt("COVER_LRU_SIZE", 1024),

		ThumbCheckBatch:        getEnvInt("THUMB_CHECK_BATCH", 300),
		ThumbCheckDelay:        getEnvMillis("THUMB_CHECK_DELAY_MS", 500),
		ThumbMaxRetries:        getEnvInt("THUMB_MAX_RETRIES", 5),
		ThumbRetryInitial:      getEnvMillis("THUMB_RETRY_INITIAL_MS", 1000),
		CorruptDeleteThreshold: getEnvInt("CORRUPT_DELETE_THRESHOLD", 10),

		ListHardCap: getEnvInt("LIST_HARD_CAP", 10000),

		DBBusyTimeout:  getEnvMillis("DB_BUSY_TIMEOUT_MS", 10000),
		DBQueryTimeout: getEnvMillis("DB_QUERY_TIMEOUT_MS", 30000),
		DBMmapBytes:    getEnvInt64("DB_MMAP_SIZE", 0),
		DBCacheBytes:   getEnvInt64("DB_CACHE_SIZE", 0),

		AdminSecret:  os.Getenv("ADMIN_SECRET"),
		PublicAccess: getEnvBool("PUBLIC_ACCESS", false),

		LogStaticFiles:  getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	logging.Info("  PHOTOS_DIR:               %s", config.PhotosDir)
	logging.Info("  DATA_DIR:                 %s", config.DataDir)
	logging.Info("  REDIS_URL:                %s", config.RedisURL)
	logging.Info("  PORT:                     %s", config.Port)
	logging.Info("  LOG_LEVEL:                %s", logging.GetLevel())
	logging.Info("  WATCH_MODE:               %s", config.WatchMode)
	logging.Info("  INDEX_STABILIZATION_MS:   %d", config.Stabilization.Milliseconds())
	logging.Info("  INDEX_DEBOUNCE_MS:        %d", config.Debounce.Milliseconds())
	logging.Info("  WATCH_POLL_INTERVAL_MS:   %d", config.WatchPollInterval.Milliseconds())
	logging.Info("  REBUILD_THRESHOLD:        %d", config.RebuildThreshold)
	logging.Info("  TAG_INVALIDATION_CEILING: %d", config.TagInvalidationCeiling)
	logging.Info("  COVER_LRU_SIZE:           %d", config.CoverLRUSize)
	logging.Info("  THUMB_CHECK_BATCH:        %d", config.ThumbCheckBatch)
	logging.Info("  THUMB_CHECK_DELAY_MS:     %d", config.ThumbCheckDelay.Milliseconds())
	logging.Info("  THUMB_MAX_RETRIES:        %d", config.ThumbMaxRetries)
	logging.Info("  THUMB_RETRY_INITIAL_MS:   %d", config.ThumbRetryInitial.Milliseconds())
	logging.Info("  CORRUPT_DELETE_THRESHOLD: %d", config.CorruptDeleteThreshold)
	logging.Info("  LIST_HARD_CAP:            %d", config.ListHardCap)
	logging.Info("  DB_BUSY_TIMEOUT_MS:       %d", config.DBBusyTimeout.Milliseconds())
	logging.Info("  DB_QUERY_TIMEOUT_MS:      %d", config.DBQueryTimeout.Milliseconds())
	if config.DBMmapBytes > 0 {
		logging.Info("  DB_MMAP_SIZE:             %s", memory.FormatBytes(config.DBMmapBytes))
	}
	if config.DBCacheBytes > 0 {
		logging.Info("  DB_CACHE_SIZE:            %s", memory.FormatBytes(config.DBCacheBytes))
	}
	logging.Info("  PUBLIC_ACCESS:            %v", config.PublicAccess)
	logging.Info("  ADMIN_SECRET:             %s", setString(config.AdminSecret != ""))
	logging.Info("  LOG_STATIC_FILES:         %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:        %v", config.LogHealthChecks)

	if err := config.validate(); err != nil {
		return nil, err
	}

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	config.PhotosDir, err = filepath.Abs(config.PhotosDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve photos directory path: %w", err)
	}
	logging.Info("  Photos directory (absolute): %s", config.PhotosDir)

	config.DataDir, err = filepath.Abs(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute):   %s", config.DataDir)

	config.ThumbsDir = filepath.Join(config.DataDir, "thumbnails")

	// Check photos directory (warning only; an empty library is valid)
	if err := ensureDirectory(config.PhotosDir, "photos"); err != nil {
		logging.Warn("  Photos directory issue: %v", err)
	}

	// Data directory is required: all four databases live there
	if err := ensureDirectory(config.DataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}

	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(config.DataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable (required for databases): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	// Thumbnail mirror is optional; listings fall back to placeholders
	config.ThumbnailsEnabled = setupOptionalDir(config.ThumbsDir, "thumbnails")

	// Summary
	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Databases:   ENABLED (required)")
	logging.Info("    Thumbnails:  %s", enabledString(config.ThumbnailsEnabled))
	logging.Info("    Watcher:     %s mode", config.WatchMode)

	return config, nil
}

// validate normalizes tunables that arrived with nonsense values. Invalid
// settings degrade to defaults with a warning rather than refusing to boot.
func (c *Config) validate() error {
	if c.WatchMode != WatchModeNotify && c.WatchMode != WatchModePoll {
		logging.Warn("  Invalid WATCH_MODE %q, using %q", c.WatchMode, WatchModeNotify)
		c.WatchMode = WatchModeNotify
	}
	if c.ListHardCap < 1 {
		logging.Warn("  LIST_HARD_CAP must be positive, using 10000")
		c.ListHardCap = 10000
	}
	if c.ThumbMaxRetries < 1 {
		logging.Warn("  THUMB_MAX_RETRIES must be at least 1, using 5")
		c.ThumbMaxRetries = 5
	}
	if c.ThumbCheckBatch < 1 {
		logging.Warn("  THUMB_CHECK_BATCH must be positive, using 300")
		c.ThumbCheckBatch = 300
	}
	if c.CoverLRUSize < 1 {
		logging.Warn("  COVER_LRU_SIZE must be positive, using 1024")
		c.CoverLRUSize = 1024
	}
	if c.RebuildThreshold < 1 {
		logging.Warn("  REBUILD_THRESHOLD must be positive, using 5000")
		c.RebuildThreshold = 5000
	}
	if c.TagInvalidationCeiling < 0 {
		logging.Warn("  TAG_INVALIDATION_CEILING must not be negative, using 200")
		c.TagInvalidationCeiling = 200
	}
	if c.CorruptDeleteThreshold < 0 {
		logging.Warn("  CORRUPT_DELETE_THRESHOLD must not be negative, disabling")
		c.CorruptDeleteThreshold = 0
	}
	return nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	testFile := filepath.Join(path, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("    failed to remove test file %s: %v", testFile, err)
		// Still return true since write succeeded
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func setString(set bool) string {
	if set {
		return "(set)"
	}
	return "(not set)"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Databases initialized in %v", duration)
}

// LogCacheInit logs Redis cache initialization
func LogCacheInit(addr string, available bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CACHE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if available {
		logging.Info("  [OK] Redis connected: %s", addr)
	} else {
		logging.Warn("  Redis unavailable: %s", addr)
		logging.Warn("  Responses will not be cached; job queues are degraded")
	}
}

// LogMediaToolsInit checks for ffmpeg and ffprobe and logs availability.
// Video thumbnails and dimension probing degrade when they are missing.
func LogMediaToolsInit() (ffmpegOK, ffprobeOK bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA TOOLING")
	logging.Info("------------------------------------------------------------")

	if err := checkTool("ffmpeg"); err != nil {
		logging.Warn("  ffmpeg check failed: %v", err)
		logging.Warn("  Video thumbnails will use placeholders")
	} else {
		logging.Info("  [OK] ffmpeg is available")
		ffmpegOK = true
	}

	if err := checkTool("ffprobe"); err != nil {
		logging.Warn("  ffprobe check failed: %v", err)
		logging.Warn("  Video dimensions will not be probed")
	} else {
		logging.Info("  [OK] ffprobe is available")
		ffprobeOK = true
	}

	return ffmpegOK, ffprobeOK
}

// LogThumbnailInit logs thumbnail engine degradation when the mirror
// directory is unusable
func LogThumbnailInit(enabled bool) {
	if !enabled {
		logging.Info("  Thumbnails disabled (thumbnails directory not writable)")
		logging.Info("  Placeholder images will be served instead")
	}
}

// LogThumbnailerInit logs thumbnail worker pool startup
func LogThumbnailerInit(workers int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("THUMBNAIL ENGINE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Worker pool size: %d", workers)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit() {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Starting indexer...")
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// LogWatcherInit logs filesystem watcher startup
func LogWatcherInit(mode string, pollInterval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("FILESYSTEM WATCHER")
	logging.Info("------------------------------------------------------------")
	if mode == WatchModePoll {
		logging.Info("  Mode: poll (interval %v)", pollInterval)
	} else {
		logging.Info("  Mode: notify (fsnotify)")
	}
}

// LogJobsInit logs background job queue startup
func LogJobsInit(streams []string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("JOB QUEUES")
	logging.Info("------------------------------------------------------------")
	for _, s := range streams {
		logging.Info("  Consuming stream: %s", s)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		// Sort group keys
		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		// Print routes by group
		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	// Remove leading slash
	path = strings.TrimPrefix(path, "/")

	// Get first segment
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   http://localhost:%s", config.Port)
	logging.Info("    Metrics:       http://localhost:%s/metrics", config.Port)
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___          ______       ____
   /  |/  /__  ____/ (_)___ _   / ____/___ _ / / /__  _______  __
  / /|_/ / _ \/ __  / / __ '/  / / __/ __ '// / / _ \/ ___/ / / /
 / /  / /  __/ /_/ / / /_/ /  / /_/ / /_/ // / /  __/ /  / /_/ /
/_/  /_/\___/\__,_/_/\__,_/   \____/\__,_//_/_/\___/_/   \__, /
                                                        /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")

	if name == "photos" && logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			fileCount := 0
			dirCount := 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				} else {
					fileCount++
				}
			}
			logging.Debug("    Contents: %d files, %d directories (top level)", fileCount, dirCount)
		}
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func checkTool(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvMillis reads an integer number of milliseconds.
func getEnvMillis(key string, defaultMs int64) time.Duration {
	return time.Duration(getEnvInt64(key, defaultMs)) * time.Millisecond
}
