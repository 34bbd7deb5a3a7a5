package watcher

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"media-gallery/internal/indexer"
	"media-gallery/internal/logging"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/metrics"
	"media-gallery/internal/relpath"
)

// startNotify creates the native watcher, registers every directory
// under the media root, and launches the event loop.
func (w *Watcher) startNotify() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w.watchTree(fw, w.cfg.Root, false)
	metrics.WatchedDirectories.Set(float64(w.dirCount()))
	logging.Info("Watcher started in notify mode, watching %d directories", w.dirCount())
	w.markReady()

	w.wg.Add(1)
	go w.notifyLoop(fw)
	return nil
}

func (w *Watcher) notifyLoop(fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer func() {
		if err := fw.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleNotifyEvent(fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()

		case <-w.stopChan:
			return
		}
	}
}

// handleNotifyEvent routes a single fsnotify event. Removals cannot be
// stat'ed, so the tracked directory set decides file versus dir.
func (w *Watcher) handleNotifyEvent(fw *fsnotify.Watcher, event fsnotify.Event) {
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	rel, err := relpath.FromFS(w.cfg.Root, event.Name)
	if err != nil || rel.IsRoot() {
		return
	}
	if mediatypes.IsHiddenName(rel.Name()) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		w.handleCreate(fw, event.Name, rel)

	case event.Op&fsnotify.Write != 0:
		if mediatypes.IsMediaFile(rel.Name()) {
			w.trackFile(indexer.ChangeUpdate, rel)
		}

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename within the root shows up as Rename for the old path
		// plus Create for the new one, so both halves are covered.
		if w.wasDir(rel) {
			w.forgetDir(rel)
			metrics.WatchedDirectories.Set(float64(w.dirCount()))
			w.reportUnlink(rel, true)
		} else if mediatypes.IsMediaFile(rel.Name()) {
			w.settleMu.Lock()
			delete(w.settling, rel.String())
			w.settleMu.Unlock()
			w.reportUnlink(rel, false)
		}
	}
}

// handleCreate stats the new entry. Directories are watched recursively
// and announced along with anything already copied inside them, since
// those contents predate the watch registration.
func (w *Watcher) handleCreate(fw *fsnotify.Watcher, abs string, rel relpath.Path) {
	info, err := os.Stat(abs)
	if err != nil {
		return
	}
	if !info.IsDir() {
		if mediatypes.IsMediaFile(rel.Name()) {
			w.trackFile(indexer.ChangeAdd, rel)
		}
		return
	}
	if mediatypes.IsIgnoredDir(rel.Name()) {
		return
	}
	w.watchTree(fw, abs, true)
	metrics.WatchedDirectories.Set(float64(w.dirCount()))
}

// watchTree registers every non-hidden directory under absRoot with the
// notify watcher. When announce is true each directory and media file
// found is also reported as an add.
func (w *Watcher) watchTree(fw *fsnotify.Watcher, absRoot string, announce bool) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("watch walk error at %s: %v", path, err)
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
		name := rel.Name()

		if d.IsDir() {
			if !rel.IsRoot() && (mediatypes.IsHiddenName(name) || mediatypes.IsIgnoredDir(name)) {
				return filepath.SkipDir
			}
			if addErr := fw.Add(path); addErr != nil {
				logging.Warn("failed to add directory to watcher %s: %v", path, addErr)
				metrics.WatcherErrors.Inc()
				return nil
			}
			if !rel.IsRoot() {
				w.markDir(rel)
				if announce {
					w.observeRaw(rawEvent{typ: indexer.ChangeAddDir, rel: rel})
				}
			}
			return nil
		}

		if announce && !mediatypes.IsHiddenName(name) && mediatypes.IsMediaFile(name) {
			w.trackFile(indexer.ChangeAdd, rel)
		}
		return nil
	})
	if err != nil {
		logging.Error("failed to walk media directory for watcher: %v", err)
		metrics.WatcherErrors.Inc()
	}
}

// eventType labels fsnotify operations for metrics.
func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
