// Package indexer keeps the gallery store in sync with the media tree.
//
// It has two entry points. FullRebuild walks the whole tree and rebuilds
// the items, search, and thumbnail-status tables in batched transactions,
// recording a checkpoint after each commit so an interrupted run resumes
// where it stopped instead of starting over. ApplyChanges takes the
// consolidated change-sets the watcher produces and applies them
// incrementally: deletes and upserts in one transaction, then cover
// recomputes and cache invalidation for the touched albums.
//
// Both paths share a single task slot. A rebuild or change-set arriving
// while another task runs is dropped with a warning; the running task
// already sees the newer filesystem state, and the watcher will report
// anything it misses.
//
// Media dimensions are probed in parallel with bounded concurrency and
// memoized per (path, mtime), because probing videos costs a process
// spawn each.
package indexer
