package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns a worker count derived from the CPUs available to this
// process. It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics (0.5 leaves half the
// CPUs free for request serving, 1.0 saturates them). The limit parameter
// caps the result; use 0 for no cap.
//
// Can be overridden with the THUMBNAIL_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("THUMBNAIL_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForThumbnails returns the thumbnail pool size: half the available CPUs,
// never less than one. Thumbnail generation is CPU-heavy (decode, resize,
// encode) and shares the host with the HTTP server, so saturating every
// core would starve request handling.
func ForThumbnails() int {
	return Count(0.5, 0)
}
