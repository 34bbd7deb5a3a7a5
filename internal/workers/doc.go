/*
Package workers determines worker pool sizes in containerized environments.

When running in a container, the number of usable CPUs may be limited by
cgroup constraints. Go 1.19+ sets GOMAXPROCS from the container CPU limit,
while runtime.NumCPU() still reports the host count, so every calculation
here starts from runtime.GOMAXPROCS(0).

The thumbnail pool uses half the available CPUs:

	numWorkers := workers.ForThumbnails() // ⌊GOMAXPROCS/2⌋, at least 1

For other pools, use Count directly with a multiplier and an optional cap:

	n := workers.Count(1.0, 8)

All functions honor the THUMBNAIL_WORKERS environment variable as an
operator override, which is useful when tuning a deployment without a
rebuild:

	env:
	- name: THUMBNAIL_WORKERS
	  value: "4"
*/
package workers
