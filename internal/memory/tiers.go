package memory

import (
	"os"
	"strconv"

	"github.com/shirou/gopsutil/v4/mem"

	"media-gallery/internal/logging"
)

const (
	gib = int64(1) << 30
	mib = int64(1) << 20
)

// Tier holds the SQLite tuning values derived from host memory. Each of
// the four databases gets its own mmap region and page cache, so the
// values are deliberately conservative fractions of the host total.
type Tier struct {
	// MmapBytes is the PRAGMA mmap_size value per database.
	MmapBytes int64
	// CacheKiB is the page-cache size in KiB, applied as a negative
	// PRAGMA cache_size.
	CacheKiB int64
}

// TierFor maps total host memory to SQLite tuning values.
func TierFor(totalBytes uint64) Tier {
	switch {
	case totalBytes >= 16*uint64(gib):
		return Tier{MmapBytes: 1 * gib, CacheKiB: 64 * mib / 1024}
	case totalBytes >= 8*uint64(gib):
		return Tier{MmapBytes: 512 * mib, CacheKiB: 32 * mib / 1024}
	case totalBytes >= 4*uint64(gib):
		return Tier{MmapBytes: 384 * mib, CacheKiB: 16 * mib / 1024}
	default:
		return Tier{MmapBytes: 256 * mib, CacheKiB: 8 * mib / 1024}
	}
}

// Total returns the host's total physical memory in bytes. When detection
// fails (heavily restricted containers), it falls back to the MEMORY_LIMIT
// environment value and finally to zero, which selects the smallest tier.
func Total() uint64 {
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		return vm.Total
	}
	if s := os.Getenv("MEMORY_LIMIT"); s != "" {
		if v, err := strconv.ParseUint(s, 10, 64); err == nil {
			return v
		}
	}
	logging.Warn("Could not detect host memory, using smallest database tier")
	return 0
}
