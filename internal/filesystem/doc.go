/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

# Purpose

This package wraps standard filesystem operations (os.Stat, os.Open, os.ReadDir) with
retry logic specifically designed to handle transient NFS failures, particularly ESTALE
(stale file handle) errors that occur when NFS-mounted media libraries are accessed
during network issues or server-side changes.

# Key Features

  - Automatic retry with exponential backoff for NFS ESTALE errors (errno 116)
  - Configurable retry attempts (default: 3) and backoff timings
  - Transparent fallback to standard os operations for non-NFS errors
  - Per-volume metric labeling through the [VolumeResolver]

# Usage

Basic usage with default retry configuration:

	import "media-gallery/internal/filesystem"

	// Stat a file with automatic NFS retry
	info, err := filesystem.StatWithRetry("/media/vacation/photo.jpg", filesystem.DefaultRetryConfig())
	if err != nil {
	    log.Fatal(err)
	}

	// Open a file with automatic NFS retry
	file, err := filesystem.OpenWithRetry("/media/vacation/photo.jpg", filesystem.DefaultRetryConfig())
	if err != nil {
	    log.Fatal(err)
	}
	defer file.Close()

Custom retry configuration:

	config := filesystem.RetryConfig{
	    MaxRetries:     5,
	    InitialBackoff: 100 * time.Millisecond,
	    MaxBackoff:     1 * time.Second,
	}
	info, err := filesystem.StatWithRetry(path, config)

# Retry Behavior

The retry logic implements exponential backoff with the following defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only NFS stale file handle errors (ESTALE) trigger retries. All other errors
fail immediately without retry attempts.

# Metrics

Retry activity is recorded through the [Observer] interface rather than by
importing the metrics package directly, which would create an import cycle.
Wire the observer once at startup:

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "media":  cfg.PhotosDir,
	    "thumbs": cfg.ThumbsDir,
	    "data":   cfg.DataDir,
	}))

With no observer set, operations behave identically but record nothing,
which keeps tests free of metric plumbing.
*/
package filesystem
