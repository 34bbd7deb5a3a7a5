package media

import (
	"sync"

	"media-gallery/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Map our log level to vips log level
	// Configure vips logging BEFORE Startup() to respect LOG_LEVEL environment variable
	var vipsLogLevel vips.LogLevel
	var logHandler func(string, vips.LogLevel, string)

	appLevel := logging.GetLevel()
	switch appLevel {
	case logging.LevelDebug:
		// Debug: Show all vips messages including INFO
		vipsLogLevel = vips.LogLevelInfo
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			case vips.LogLevelMessage, vips.LogLevelInfo, vips.LogLevelDebug:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	case logging.LevelInfo:
		// Info: Only show warnings and errors
		vipsLogLevel = vips.LogLevelWarning
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			case vips.LogLevelMessage, vips.LogLevelInfo, vips.LogLevelDebug:
				// Suppressed at Info level
			}
		}
	case logging.LevelWarn:
		// Warn: Only show errors
		vipsLogLevel = vips.LogLevelError
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			if level >= vips.LogLevelError {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	case logging.LevelError:
		// Error: Only show critical errors
		vipsLogLevel = vips.LogLevelCritical
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			if level >= vips.LogLevelCritical {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	default:
		// Default to suppressing most logs
		vipsLogLevel = vips.LogLevelWarning
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			if level >= vips.LogLevelError {
				logging.Warn("[%s] %s", domain, msg)
			}
		}
	}

	vips.LoggingSettings(logHandler, vipsLogLevel)

	// Start vips with conservative memory settings
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,                // Process one image at a time to control memory
		MaxCacheMem:      50 * 1024 * 1024, // 50MB cache
		MaxCacheSize:     100,              // Max 100 operations cached
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}
