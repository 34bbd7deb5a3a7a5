// Package filesystem provides utilities for filesystem operations with retry logic for NFS
package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"media-gallery/internal/logging"
)

// VolumeResolver maps file paths to known volume names for metric labeling.
// It uses longest-prefix matching on absolute paths.
type VolumeResolver struct {
	// mounts is sorted by path length descending for longest-prefix matching
	mounts []volumeMount
}

type volumeMount struct {
	path string // absolute path with trailing slash (e.g., "/media/")
	name string // volume label (e.g., "media")
}

// NewVolumeResolver creates a resolver from a map of volume name → absolute path.
// Example:
//
//	NewVolumeResolver(map[string]string{
//	    "media":  "/media",
//	    "thumbs": "/data/thumbs",
//	    "data":   "/data",
//	})
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, path := range volumes {
		// Normalize: ensure absolute path with trailing slash for prefix matching
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}
		if !strings.HasSuffix(absPath, "/") {
			absPath += "/"
		}
		mounts = append(mounts, volumeMount{path: absPath, name: name})
	}

	// Sort by path length descending so longest (most specific) prefix matches first
	sort.Slice(mounts, func(i, j int) bool {
		return len(mounts[i].path) > len(mounts[j].path)
	})

	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the volume name for a given file path.
// Returns "unknown" if the path doesn't match any configured volume.
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}

	// Ensure trailing slash for directory-level comparison,
	// but also match the path itself (for exact directory matches)
	for _, mount := range vr.mounts {
		if strings.HasPrefix(absPath+"/", mount.path) || strings.HasPrefix(absPath, mount.path) {
			return mount.name
		}
	}

	return "unknown"
}

// defaultResolver is the package-level resolver set at startup
var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver sets the package-level volume resolver.
// Call this once at startup after loading configuration.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver overrides the package-level resolver for this operation.
	// If nil, the package-level default is used.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// resolveVolume returns the volume label for a path using the config's resolver
// or the package-level default.
func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}

	// Check for ESTALE (stale file handle) - errno 116 on Linux
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// withRetry runs op with exponential backoff on NFS stale file handle errors,
// recording retry metrics through the package observer. retryOp labels the
// operation for metrics ("stat", "open", "readdir").
func withRetry(retryOp, path string, config RetryConfig, op func() error) error {
	start := time.Now()
	volume := config.resolveVolume(path)
	obs := observe()
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", retryOp, attempt, path)
				if obs != nil {
					obs.ObserveRetrySuccess(retryOp, volume)
				}
			}
			if obs != nil {
				obs.ObserveRetryDuration(retryOp, volume, time.Since(start).Seconds())
			}
			return nil
		}

		lastErr = err

		// Only retry on NFS stale file handle errors
		if !isNFSStaleError(err) {
			if obs != nil {
				obs.ObserveRetryDuration(retryOp, volume, time.Since(start).Seconds())
			}
			return err
		}

		// Record ESTALE error occurrence
		if obs != nil {
			obs.ObserveStaleError(retryOp, volume)
		}

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			if obs != nil {
				obs.ObserveRetryAttempt(retryOp, volume)
			}
			logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				retryOp, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			// Exponential backoff with cap
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", retryOp, config.MaxRetries, path, lastErr)
	if obs != nil {
		obs.ObserveRetryFailure(retryOp, volume)
		obs.ObserveRetryDuration(retryOp, volume, time.Since(start).Seconds())
	}
	return lastErr
}

// StatWithRetry performs os.Stat with retry logic for NFS stale file handle errors
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() error {
		var err error
		info, err = os.Stat(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// OpenWithRetry performs os.Open with retry logic for NFS stale file handle errors
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var file *os.File
	err := withRetry("open", path, config, func() error {
		var err error
		file, err = os.Open(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// ReadDirWithRetry performs os.ReadDir with retry logic for NFS stale file handle errors
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	var entries []os.DirEntry
	err := withRetry("readdir", path, config, func() error {
		var err error
		entries, err = os.ReadDir(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
