// Package cache wraps the shared Redis client behind the small surface the
// rest of the application uses: byte-value get/set with TTLs, pattern
// deletes, and tag-based invalidation.
//
// # Tagging
//
// Cached responses are registered under tags (one Redis SET per tag,
// tag:<name> -> keys). Invalidating a tag deletes every registered key plus
// the tag set itself, pipelined. When a filesystem change batch would touch
// more tags than the adaptive ceiling, callers fall back to a coarse
// pattern delete of the browse route cache instead (see [Client.TagCeiling]).
//
// # Degradation
//
// Redis being down never fails a request. Reads report a miss, writes and
// invalidations return the error for the caller to log, and the backend
// gauge flips so the outage is visible. The go-redis client reconnects on
// its own.
//
// All Redis key shapes used by the application are defined in keys.go so
// the layout is auditable in one place. Job queue stream keys live in
// internal/jobs, which shares the same client.
package cache
