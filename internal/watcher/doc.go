// Package watcher observes the media root for filesystem changes and
// feeds the indexer consolidated change-sets.
//
// Two modes are supported: notify, backed by native filesystem
// notifications, and poll, which diffs interval snapshots of the tree
// for filesystems where notifications are unreliable. In both modes
// file adds and updates are held until the file stops growing, raw
// events accumulate behind a trailing debounce that stretches with
// backlog, and each flushed burst is consolidated to at most one change
// per path. Bursts larger than the rebuild threshold trigger a full
// index rebuild instead of row-by-row application.
package watcher
