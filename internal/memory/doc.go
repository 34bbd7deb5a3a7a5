// Package memory provides memory management utilities: GOMEMLIMIT
// configuration, host-memory detection for database tuning, and a
// backpressure monitor for background work.
//
// # GOMEMLIMIT Configuration
//
// Unlike GOMAXPROCS, which Go automatically detects from cgroup CPU limits,
// GOMEMLIMIT must be configured explicitly or the process risks an OOM kill
// under its container limit. Call [ConfigureFromEnv] early in main, before
// any significant allocations:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go env var; takes precedence when set.
//   - MEMORY_LIMIT: container memory limit in bytes (Kubernetes Downward
//     API resourceFieldRef works well here).
//   - MEMORY_RATIO: fraction of MEMORY_LIMIT for the Go heap, default 0.85.
//     Lower it when libvips and ffmpeg children need more headroom.
//
// # Database Tuning Tiers
//
// The storage layer sizes each database's mmap region and page cache from
// the host's total memory. [Total] detects the host total (gopsutil, with a
// MEMORY_LIMIT fallback for restricted containers) and [TierFor] maps it:
//
//	>= 16 GiB   1 GiB mmap   64 MiB cache
//	>=  8 GiB   512 MiB      32 MiB
//	>=  4 GiB   384 MiB      16 MiB
//	else        256 MiB       8 MiB
//
// # Backpressure Monitor
//
// Background thumbnail generation is the only memory-hungry work that can
// be deferred, so it is the only consumer of the [Monitor]:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	// in the low-priority dispatch path:
//	if !monitor.WaitIfPaused() {
//	    return // shutting down
//	}
//
// The monitor samples heap usage every CheckInterval, pauses above the
// critical watermark, and resumes below the high watermark. GOMEMLIMIT is
// a soft limit: the pause keeps the GC from thrashing when vips buffers
// push the heap toward it.
package memory
