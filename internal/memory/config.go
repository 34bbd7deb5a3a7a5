package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"media-gallery/internal/logging"
)

const (
	// DefaultMemoryRatio is the fraction of container memory given to the Go
	// heap. The rest is reserved for libvips buffers, ffmpeg children, and
	// SQLite mmap regions.
	DefaultMemoryRatio = 0.85
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether GOMEMLIMIT was set
	Configured bool

	// Source indicates where the configuration came from:
	// "GOMEMLIMIT", "MEMORY_LIMIT", or "none"
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64

	// GoMemLimit is the configured GOMEMLIMIT in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable)
	Ratio float64
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit.
// Call this early in main() before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: if set, takes precedence (standard Go env var)
//   - MEMORY_LIMIT: container memory limit in bytes (e.g. Downward API)
//   - MEMORY_RATIO: fraction of memory for the Go heap (default 0.85)
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{}

	if goMemLimitEnv := os.Getenv("GOMEMLIMIT"); goMemLimitEnv != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimitEnv)
		return result
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		result.Source = "none"
		return result
	}

	memLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", memLimitStr, err)
		result.Source = "none"
		return result
	}

	result.ContainerLimit = memLimit

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv("MEMORY_RATIO"); ratioStr != "" {
		if parsedRatio, err := strconv.ParseFloat(ratioStr, 64); err == nil && parsedRatio > 0 && parsedRatio <= 1.0 {
			ratio = parsedRatio
		} else {
			logging.Warn("MEMORY_RATIO %q invalid, using default %.2f", ratioStr, DefaultMemoryRatio)
		}
	}

	result.Ratio = ratio

	goMemLimit := int64(float64(memLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result.Configured = true
	result.Source = "MEMORY_LIMIT"
	result.GoMemLimit = goMemLimit

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(goMemLimit),
		ratio*100,
		FormatBytes(memLimit),
	)

	return result
}

// FormatBytes formats a byte count into a human-readable string.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
