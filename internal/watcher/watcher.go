package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"media-gallery/internal/indexer"
	"media-gallery/internal/logging"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/metrics"
	"media-gallery/internal/relpath"
)

// Watch modes.
const (
	// ModeNotify uses inotify-style filesystem notifications.
	ModeNotify = "notify"
	// ModePoll walks the tree on an interval, for network filesystems
	// that do not deliver notifications reliably.
	ModePoll = "poll"
)

// maxDebounce caps the adaptive trailing debounce.
const maxDebounce = 30 * time.Second

// Applier receives the watcher's consolidated change-sets.
type Applier interface {
	ApplyChanges(ctx context.Context, changes []indexer.Change) error
	TriggerRebuild(reason string)
}

// VideoQueue accepts newly added videos for background optimization.
type VideoQueue interface {
	Enqueue(rel relpath.Path)
}

// Config tunes the watcher. Zero durations select the defaults.
type Config struct {
	Root             string
	ThumbsDir        string
	Mode             string
	PollInterval     time.Duration
	Stabilization    time.Duration
	Debounce         time.Duration
	RebuildThreshold int
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeNotify
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.Stabilization <= 0 {
		c.Stabilization = 2 * time.Second
	}
	if c.Debounce <= 0 {
		c.Debounce = 5 * time.Second
	}
	if c.RebuildThreshold <= 0 {
		c.RebuildThreshold = 5000
	}
}

// Watcher observes the media root and turns bursts of filesystem events
// into consolidated change-sets for the indexer. Adds and updates are
// held until the file stops growing; all events then sit in a pending
// buffer behind a trailing debounce whose delay scales with backlog.
type Watcher struct {
	cfg     Config
	applier Applier
	videos  VideoQueue

	stopChan  chan struct{}
	stopOnce  sync.Once
	ready     chan struct{}
	readyOnce sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending []rawEvent
	timer   *time.Timer

	settleMu sync.Mutex
	settling map[string]*settleEntry

	dirMu sync.Mutex
	dirs  map[string]bool
}

// settleEntry tracks a file waiting for write stability. Size and mtime
// start unknown; the settle loop records them on its first pass.
type settleEntry struct {
	typ         indexer.ChangeType
	size        int64
	mtime       int64
	stableSince time.Time
	known       bool
}

// New builds a Watcher. videos may be nil when video optimization is
// disabled.
func New(cfg Config, applier Applier, videos VideoQueue) *Watcher {
	cfg.applyDefaults()
	return &Watcher{
		cfg:      cfg,
		applier:  applier,
		videos:   videos,
		stopChan: make(chan struct{}),
		ready:    make(chan struct{}),
		settling: make(map[string]*settleEntry),
		dirs:     make(map[string]bool),
	}
}

// Ready returns a channel that closes once the initial watch
// registration or poll snapshot is complete.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

func (w *Watcher) markReady() {
	w.readyOnce.Do(func() { close(w.ready) })
}

// Start launches the watch loops. In notify mode a failure to create the
// native watcher (inotify limits, unsupported filesystem) falls back to
// polling rather than running blind.
func (w *Watcher) Start() error {
	if w.cfg.Mode == ModePoll {
		logging.Info("Watcher starting in poll mode (interval %v)", w.cfg.PollInterval)
		w.wg.Add(1)
		go w.pollLoop()
		return nil
	}

	if err := w.startNotify(); err != nil {
		logging.Warn("Native filesystem watch unavailable (%v), falling back to polling", err)
		metrics.WatcherErrors.Inc()
		w.cfg.Mode = ModePoll
		w.wg.Add(1)
		go w.pollLoop()
		return nil
	}

	w.wg.Add(1)
	go w.settleLoop()
	return nil
}

// Stop halts the loops, applying any still-pending changes first.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		w.flush()
	})
	w.wg.Wait()
}

// observeRaw appends one event to the pending buffer and re-arms the
// trailing debounce.
func (w *Watcher) observeRaw(ev rawEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopChan:
		return
	default:
	}

	w.pending = append(w.pending, ev)
	delay := debounceDelay(w.cfg.Debounce, len(w.pending))
	if w.timer == nil {
		w.timer = time.AfterFunc(delay, w.flush)
	} else {
		w.timer.Reset(delay)
	}
}

// debounceDelay scales the trailing debounce with backlog size, so a
// mass copy settles into a few large batches instead of many small ones.
func debounceDelay(base time.Duration, backlog int) time.Duration {
	d := base + base*time.Duration(backlog)/500
	if d > maxDebounce {
		return maxDebounce
	}
	if d < base {
		return base
	}
	return d
}

// flush consolidates and dispatches the pending buffer. Oversized
// change-sets trigger a full rebuild instead; applying them one row at a
// time would be slower than walking the tree.
func (w *Watcher) flush() {
	w.mu.Lock()
	events := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(events) == 0 {
		return
	}

	changes := consolidate(events)
	if len(changes) == 0 {
		logging.Debug("All %d raw events canceled out", len(events))
		return
	}

	metrics.WatcherBatchesTotal.Inc()
	metrics.WatcherBatchSize.Observe(float64(len(changes)))

	if len(changes) > w.cfg.RebuildThreshold {
		metrics.WatcherRebuildsTotal.Inc()
		w.applier.TriggerRebuild(fmt.Sprintf("%d consolidated changes exceed threshold %d",
			len(changes), w.cfg.RebuildThreshold))
		return
	}

	logging.Info("Applying %d consolidated changes (%d raw events)", len(changes), len(events))
	if err := w.applier.ApplyChanges(context.Background(), changes); err != nil {
		metrics.WatcherErrors.Inc()
		logging.Error("Change application failed: %v", err)
	}
}

// trackFile queues an add or update behind the write-stability check.
func (w *Watcher) trackFile(typ indexer.ChangeType, rel relpath.Path) {
	w.settleMu.Lock()
	defer w.settleMu.Unlock()
	if e, ok := w.settling[rel.String()]; ok {
		// An add already waiting stays an add; everything else is an
		// update of whatever lands.
		if e.typ != indexer.ChangeAdd {
			e.typ = typ
		}
		e.known = false
		return
	}
	w.settling[rel.String()] = &settleEntry{typ: typ}
}

// settleLoop promotes tracked files once their size and mtime hold still
// for the stabilization window. Files that vanish while settling are
// dropped; their unlink arrives as its own event.
func (w *Watcher) settleLoop() {
	defer w.wg.Done()

	interval := w.cfg.Stabilization / 4
	if interval < 250*time.Millisecond {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, ev := range w.collectSettled() {
				w.observeRaw(ev)
			}
		case <-w.stopChan:
			return
		}
	}
}

// collectSettled re-stats every settling file and returns the promoted
// events for those that held still long enough.
func (w *Watcher) collectSettled() []rawEvent {
	now := time.Now()

	w.settleMu.Lock()
	var ready []string
	for key, e := range w.settling {
		info, err := os.Stat(filepath.Join(w.cfg.Root, filepath.FromSlash(key)))
		if err != nil {
			delete(w.settling, key)
			continue
		}
		size, mtime := info.Size(), info.ModTime().UnixMilli()
		if !e.known || size != e.size || mtime != e.mtime {
			e.size, e.mtime, e.stableSince, e.known = size, mtime, now, true
			continue
		}
		if now.Sub(e.stableSince) >= w.cfg.Stabilization {
			ready = append(ready, key)
		}
	}
	promoted := make([]rawEvent, 0, len(ready))
	for _, key := range ready {
		typ := w.settling[key].typ
		delete(w.settling, key)
		rel, err := relpath.New(key)
		if err != nil {
			continue
		}
		promoted = append(promoted, w.promote(typ, rel))
	}
	w.settleMu.Unlock()

	return promoted
}

// promote finalizes a stable file into a raw event, hashing adds and
// forwarding new videos to the optimizer queue.
func (w *Watcher) promote(typ indexer.ChangeType, rel relpath.Path) rawEvent {
	ev := rawEvent{typ: typ, rel: rel}
	if typ == indexer.ChangeAdd {
		ev.hash = contentHash(rel.Under(w.cfg.Root))
		if w.videos != nil && mediatypes.TypeForName(rel.Name()) == mediatypes.TypeVideo {
			w.videos.Enqueue(rel)
		}
	}
	return ev
}

// reportUnlink records a removal and deletes the mirrored thumbnail so
// the thumbs tree cannot accumulate orphans.
func (w *Watcher) reportUnlink(rel relpath.Path, wasDir bool) {
	if wasDir {
		w.removeMirroredThumbDir(rel)
		w.observeRaw(rawEvent{typ: indexer.ChangeUnlinkDir, rel: rel})
		return
	}
	w.removeMirroredThumb(rel)
	w.observeRaw(rawEvent{typ: indexer.ChangeUnlink, rel: rel})
}

func (w *Watcher) removeMirroredThumb(rel relpath.Path) {
	if w.cfg.ThumbsDir == "" {
		return
	}
	mirror := filepath.Join(w.cfg.ThumbsDir, filepath.FromSlash(mediatypes.ThumbRelPath(rel.String())))
	if err := os.Remove(mirror); err != nil && !os.IsNotExist(err) {
		logging.Debug("Could not remove mirrored thumbnail %s: %v", mirror, err)
	}
}

func (w *Watcher) removeMirroredThumbDir(rel relpath.Path) {
	if w.cfg.ThumbsDir == "" || rel.IsRoot() {
		return
	}
	mirror := filepath.Join(w.cfg.ThumbsDir, filepath.FromSlash(rel.String()))
	if err := os.RemoveAll(mirror); err != nil {
		logging.Debug("Could not remove mirrored thumbnail dir %s: %v", mirror, err)
	}
}

// markDir / forgetDir / wasDir classify removal events, which arrive
// after the entry is gone and can no longer be stat'ed.
func (w *Watcher) markDir(rel relpath.Path) {
	w.dirMu.Lock()
	w.dirs[rel.String()] = true
	w.dirMu.Unlock()
}

func (w *Watcher) forgetDir(rel relpath.Path) {
	w.dirMu.Lock()
	prefix := rel.String() + "/"
	for d := range w.dirs {
		if d == rel.String() || len(d) > len(prefix) && d[:len(prefix)] == prefix {
			delete(w.dirs, d)
		}
	}
	w.dirMu.Unlock()
}

func (w *Watcher) wasDir(rel relpath.Path) bool {
	w.dirMu.Lock()
	defer w.dirMu.Unlock()
	return w.dirs[rel.String()]
}

func (w *Watcher) dirCount() int {
	w.dirMu.Lock()
	defer w.dirMu.Unlock()
	return len(w.dirs)
}
