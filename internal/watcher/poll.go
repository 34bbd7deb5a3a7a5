package watcher

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"media-gallery/internal/indexer"
	"media-gallery/internal/logging"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/metrics"
	"media-gallery/internal/relpath"
)

// pollEntry is one row of a poll snapshot.
type pollEntry struct {
	mtime int64
	isDir bool
}

// pollLoop rescans the tree on an interval and reports the differences
// between consecutive snapshots. Files whose mtime is younger than the
// stabilization window are held back until a later tick, which gives
// poll mode the same write-stability guarantee as notify mode.
func (w *Watcher) pollLoop() {
	defer w.wg.Done()

	snap, err := w.scanTree()
	if err != nil {
		logging.Error("Initial poll scan failed: %v", err)
		metrics.WatcherErrors.Inc()
		snap = map[string]pollEntry{}
	}
	metrics.WatchedDirectories.Set(float64(countDirs(snap)))
	w.markReady()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cur, scanErr := w.scanTree()
			if scanErr != nil {
				logging.Error("Poll scan failed: %v", scanErr)
				metrics.WatcherErrors.Inc()
				continue
			}
			w.diffSnapshots(snap, cur, time.Now())
			metrics.WatchedDirectories.Set(float64(countDirs(snap)))

		case <-w.stopChan:
			return
		}
	}
}

// scanTree walks the media root and snapshots every indexable entry.
func (w *Watcher) scanTree() (map[string]pollEntry, error) {
	snap := make(map[string]pollEntry)
	err := filepath.WalkDir(w.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("poll walk error at %s: %v", path, err)
			metrics.WatcherErrors.Inc()
			return nil
		}
		rel, relErr := relpath.FromFS(w.cfg.Root, path)
		if relErr != nil {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if rel.IsRoot() {
			return nil
		}
		name := rel.Name()

		if d.IsDir() {
			if mediatypes.IsHiddenName(name) || mediatypes.IsIgnoredDir(name) {
				return filepath.SkipDir
			}
			snap[rel.String()] = pollEntry{isDir: true}
			return nil
		}

		if mediatypes.IsHiddenName(name) || !mediatypes.IsMediaFile(name) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		snap[rel.String()] = pollEntry{mtime: info.ModTime().UnixMilli()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// diffSnapshots reports the differences between snap and cur, mutating
// snap in place so entries held back for stability stay pending.
func (w *Watcher) diffSnapshots(snap, cur map[string]pollEntry, now time.Time) {
	settled := func(mtime int64) bool {
		return now.Sub(time.UnixMilli(mtime)) >= w.cfg.Stabilization
	}

	for path, entry := range cur {
		rel, err := relpath.New(path)
		if err != nil {
			continue
		}
		old, seen := snap[path]
		switch {
		case !seen && entry.isDir:
			snap[path] = entry
			w.observeRaw(rawEvent{typ: indexer.ChangeAddDir, rel: rel})

		case !seen:
			if !settled(entry.mtime) {
				continue
			}
			snap[path] = entry
			w.observeRaw(w.promote(indexer.ChangeAdd, rel))

		case !entry.isDir && entry.mtime != old.mtime:
			if !settled(entry.mtime) {
				continue
			}
			snap[path] = entry
			w.observeRaw(rawEvent{typ: indexer.ChangeUpdate, rel: rel})
		}
	}

	// A removed directory's descendants vanish with it. The subtree
	// delete is reported once, at the topmost removed directory.
	var removedDirs []string
	for path, entry := range snap {
		if entry.isDir {
			if _, ok := cur[path]; !ok {
				removedDirs = append(removedDirs, path)
			}
		}
	}
	underRemovedDir := func(path string) bool {
		for _, d := range removedDirs {
			if path != d && strings.HasPrefix(path, d+"/") {
				return true
			}
		}
		return false
	}

	for path, entry := range snap {
		if _, ok := cur[path]; ok {
			continue
		}
		delete(snap, path)
		if underRemovedDir(path) {
			continue
		}
		rel, err := relpath.New(path)
		if err != nil {
			continue
		}
		w.reportUnlink(rel, entry.isDir)
	}
}

func countDirs(snap map[string]pollEntry) int {
	n := 0
	for _, e := range snap {
		if e.isDir {
			n++
		}
	}
	return n
}
