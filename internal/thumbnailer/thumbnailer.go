package thumbnailer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-gallery/internal/cache"
	"media-gallery/internal/database"
	"media-gallery/internal/events"
	"media-gallery/internal/filesystem"
	"media-gallery/internal/logging"
	"media-gallery/internal/media"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/memory"
	"media-gallery/internal/metrics"
	"media-gallery/internal/relpath"
	"media-gallery/internal/workers"
)

// permanentFailTTL keeps a permanently failed path out of the generator
// long enough for an operator to replace the file.
const permanentFailTTL = 7 * 24 * time.Hour

// State of a thumbnail as reported to the HTTP layer.
type State string

const (
	StateExists     State = "exists"
	StateProcessing State = "processing"
	StateFailed     State = "failed"
)

// Result is EnsureThumbnailExists' answer. ThumbPath is set only when
// State is StateExists.
type Result struct {
	State     State
	ThumbPath string
}

// Config tunes the engine. Zero values select the documented defaults,
// except CorruptDeleteThreshold where zero disables source deletion.
type Config struct {
	MediaRoot string
	ThumbsDir string

	Workers                int
	MaxRetries             int
	RetryInitial           time.Duration
	CorruptDeleteThreshold int

	IdleBatch int
	IdleDelay time.Duration

	ReconcileBatch int
	ReconcilePause time.Duration

	// Memory, when set, pauses idle generation while the process is
	// near its memory limit. On-demand work is never paused.
	Memory *memory.Monitor
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = workers.ForThumbnails()
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = time.Second
	}
	if c.IdleBatch <= 0 {
		c.IdleBatch = 300
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = 500 * time.Millisecond
	}
	if c.ReconcileBatch <= 0 {
		c.ReconcileBatch = 300
	}
	if c.ReconcilePause <= 0 {
		c.ReconcilePause = 500 * time.Millisecond
	}
}

// Thumbnailer generates mirrored thumbnails through a fixed worker pool
// fed by two in-memory queues. High priority serves browsing users; low
// priority is background fill-in.
type Thumbnailer struct {
	db    *database.Manager
	cache *cache.Client
	bus   *events.Bus
	cfg   Config
	retry filesystem.RetryConfig

	mu          sync.Mutex
	cond        *sync.Cond
	high, low   deque
	active      map[string]bool
	idleWorkers int
	stopped     bool

	failMu   sync.Mutex
	failures map[string]*failureRecord

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// failureRecord tracks consecutive generation failures for one path.
type failureRecord struct {
	attempts int
	corrupt  int
}

// New builds a Thumbnailer over the shared stores and event bus.
func New(db *database.Manager, cacheClient *cache.Client, bus *events.Bus, cfg Config) *Thumbnailer {
	cfg.applyDefaults()
	t := &Thumbnailer{
		db:       db,
		cache:    cacheClient,
		bus:      bus,
		cfg:      cfg,
		retry:    filesystem.DefaultRetryConfig(),
		active:   make(map[string]bool),
		failures: make(map[string]*failureRecord),
		stopChan: make(chan struct{}),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Start heals stale on-disk state, then launches the worker pool, the
// idle generator, and the reconciler.
func (t *Thumbnailer) Start() {
	t.selfHeal(context.Background())

	for i := 0; i < t.cfg.Workers; i++ {
		t.wg.Add(1)
		go t.worker(i)
	}
	t.wg.Add(1)
	go t.generatorLoop()
	t.wg.Add(1)
	go t.reconcileLoop()

	logging.Info("Thumbnail engine started with %d workers", t.cfg.Workers)
}

// Stop lets workers finish their current task, then waits for every
// loop to exit. Queued tasks are abandoned; the status table re-feeds
// them on the next start.
func (t *Thumbnailer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		t.cond.Broadcast()
	})
	t.wg.Wait()
}

// EnsureThumbnailExists answers the on-demand HTTP path. An existing
// mirrored file wins; a permanent failure short-circuits; anything else
// jumps to the head of the high-priority queue and reports processing.
func (t *Thumbnailer) EnsureThumbnailExists(ctx context.Context, abs string, rel relpath.Path) Result {
	if !mediatypes.IsMediaFile(rel.Name()) {
		return Result{State: StateFailed}
	}

	thumbAbs := t.thumbPath(rel.String())
	if _, err := os.Stat(thumbAbs); err == nil {
		return Result{State: StateExists, ThumbPath: thumbAbs}
	}

	if t.permanentlyFailed(ctx, rel.String()) {
		return Result{State: StateFailed}
	}

	t.enqueue(task{rel: rel, abs: abs}, true, true)
	return Result{State: StateProcessing}
}

// permanentlyFailed checks the cache short-circuit first, then the
// durable status row.
func (t *Thumbnailer) permanentlyFailed(ctx context.Context, rel string) bool {
	if _, ok := t.cache.Get(ctx, cache.ThumbFailedKey(rel)); ok {
		return true
	}
	row, err := t.db.GetThumbStatus(ctx, rel)
	if err != nil || row == nil {
		return false
	}
	return row.Status == database.ThumbFailed
}

// QueueDepths reports current queue and in-flight sizes.
func (t *Thumbnailer) QueueDepths() (high, low, active int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.high.len(), t.low.len(), len(t.active)
}

// enqueue adds a task to one of the queues. Tasks arriving after Stop
// are dropped.
func (t *Thumbnailer) enqueue(tk task, highPriority, head bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	q := &t.low
	if highPriority {
		q = &t.high
	}
	if head {
		q.pushHead(tk)
	} else {
		q.pushTail(tk)
	}
	t.updateQueueGauges()
	t.cond.Broadcast()
}

func (t *Thumbnailer) updateQueueGauges() {
	metrics.ThumbnailQueueDepth.WithLabelValues("high").Set(float64(t.high.len()))
	metrics.ThumbnailQueueDepth.WithLabelValues("low").Set(float64(t.low.len()))
}

func (t *Thumbnailer) worker(id int) {
	defer t.wg.Done()
	logging.Debug("Thumbnail worker %d started", id)

	for {
		tk, ok := t.next()
		if !ok {
			logging.Debug("Thumbnail worker %d stopped", id)
			return
		}
		t.process(tk)
		t.mu.Lock()
		delete(t.active, tk.rel.String())
		t.mu.Unlock()
	}
}

// next blocks until the dispatch rules yield a task. High-priority work
// drains first; the last idle worker never takes low-priority work, so
// one worker stays free for on-demand requests. A popped task whose path
// is already in flight is dropped.
func (t *Thumbnailer) next() (task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.idleWorkers++
	defer func() { t.idleWorkers-- }()

	for {
		if t.stopped {
			return task{}, false
		}
		if tk, ok := t.popLocked(); ok {
			t.active[tk.rel.String()] = true
			return tk, true
		}
		t.cond.Wait()
	}
}

// popLocked applies the priority and reservation rules. Caller holds mu.
func (t *Thumbnailer) popLocked() (task, bool) {
	for {
		tk, ok := t.high.pop()
		if !ok {
			break
		}
		t.updateQueueGauges()
		if !t.active[tk.rel.String()] {
			return tk, true
		}
	}

	// Only low-priority work remains. A single-worker pool has no one to
	// hold in reserve.
	if t.idleWorkers <= 1 && t.cfg.Workers > 1 {
		return task{}, false
	}
	for {
		tk, ok := t.low.pop()
		if !ok {
			break
		}
		t.updateQueueGauges()
		if !t.active[tk.rel.String()] {
			return tk, true
		}
	}
	return task{}, false
}

// process generates one thumbnail, recording status, metrics, and
// failure bookkeeping.
func (t *Thumbnailer) process(tk task) {
	ctx := context.Background()
	rel := tk.rel.String()

	if !mediatypes.IsMediaFile(tk.rel.Name()) {
		return
	}
	if _, ok := t.cache.Get(ctx, cache.ThumbFailedKey(rel)); ok {
		return
	}

	info, err := filesystem.StatWithRetry(tk.abs, t.retry)
	if err != nil {
		logging.Debug("Thumbnail source unavailable %s: %v", rel, err)
		return
	}
	srcMtime := info.ModTime().UnixMilli()

	thumbAbs := t.thumbPath(rel)
	if t.upToDate(ctx, rel, srcMtime, thumbAbs) {
		return
	}

	typ := string(mediatypes.TypeForName(tk.rel.Name()))
	start := time.Now()
	genErr := t.render(ctx, tk.abs, thumbAbs, tk.rel)
	metrics.ThumbnailGenerationDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())

	if genErr != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(typ, "error").Inc()
		t.handleFailure(ctx, tk, srcMtime, genErr)
		return
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues(typ, "success").Inc()
	t.clearFailures(rel)
	if err := t.db.SetThumbStatus(ctx, rel, srcMtime, database.ThumbExists); err != nil {
		logging.Error("Failed to record thumbnail status for %s: %v", rel, err)
	}
	t.bus.Publish(events.ThumbnailGenerated, map[string]string{"path": rel})
	logging.Debug("Generated thumbnail for %s in %v", rel, time.Since(start))
}

func (t *Thumbnailer) render(ctx context.Context, srcAbs, dstAbs string, rel relpath.Path) error {
	if mediatypes.TypeForName(rel.Name()) == mediatypes.TypeVideo {
		return media.RenderVideoThumb(ctx, srcAbs, dstAbs)
	}
	return media.RenderImageThumb(srcAbs, dstAbs)
}

// handleFailure applies the retry ladder: corruption counting with
// optional source deletion, exponential backoff re-queues, and the
// permanent-failure mark after the final attempt.
func (t *Thumbnailer) handleFailure(ctx context.Context, tk task, srcMtime int64, genErr error) {
	rel := tk.rel.String()

	t.failMu.Lock()
	rec := t.failures[rel]
	if rec == nil {
		rec = &failureRecord{}
		t.failures[rel] = rec
	}
	rec.attempts++
	if isCorruptionError(genErr) {
		rec.corrupt++
	}
	attempts, corrupt := rec.attempts, rec.corrupt
	t.failMu.Unlock()

	if t.cfg.CorruptDeleteThreshold > 0 && corrupt >= t.cfg.CorruptDeleteThreshold {
		logging.Warn("Deleting unrecoverable source %s after %d corruption failures: %v",
			rel, corrupt, genErr)
		if rmErr := os.Remove(tk.abs); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Error("Failed to delete corrupt source %s: %v", rel, rmErr)
		}
		metrics.ThumbnailCorruptDeletes.Inc()
		t.clearFailures(rel)
		return
	}

	if attempts >= t.cfg.MaxRetries {
		logging.Warn("Thumbnail for %s failed permanently after %d attempts: %v",
			rel, attempts, genErr)
		if err := t.cache.Set(ctx, cache.ThumbFailedKey(rel), []byte("1"), permanentFailTTL); err != nil {
			logging.Debug("Could not record permanent failure for %s: %v", rel, err)
		}
		if err := t.db.SetThumbStatus(ctx, rel, srcMtime, database.ThumbFailed); err != nil {
			logging.Error("Failed to record thumbnail status for %s: %v", rel, err)
		}
		metrics.ThumbnailPermanentFailures.Inc()
		t.clearFailures(rel)
		return
	}

	delay := t.cfg.RetryInitial * (1 << (attempts - 1))
	logging.Debug("Thumbnail for %s failed (attempt %d/%d), retrying in %v: %v",
		rel, attempts, t.cfg.MaxRetries, delay, genErr)
	metrics.ThumbnailRetriesTotal.Inc()
	time.AfterFunc(delay, func() {
		t.enqueue(tk, false, false)
	})
}

func (t *Thumbnailer) clearFailures(rel string) {
	t.failMu.Lock()
	delete(t.failures, rel)
	t.failMu.Unlock()
}

// thumbPath maps a media relative path to its mirrored thumbnail file.
func (t *Thumbnailer) thumbPath(rel string) string {
	return filepath.Join(t.cfg.ThumbsDir, filepath.FromSlash(mediatypes.ThumbRelPath(rel)))
}

// upToDate reports whether a fresh mirrored thumbnail already exists, so
// duplicate queue entries fall through cheaply.
func (t *Thumbnailer) upToDate(ctx context.Context, rel string, srcMtime int64, thumbAbs string) bool {
	if _, err := os.Stat(thumbAbs); err != nil {
		return false
	}
	row, err := t.db.GetThumbStatus(ctx, rel)
	if err != nil || row == nil {
		return false
	}
	return row.Status == database.ThumbExists && row.Mtime == srcMtime
}

// corruptSignatures match decoder errors that indicate a damaged source
// rather than a transient failure. These never succeed on retry.
var corruptSignatures = []string{
	"not in a known format",
	"unknown format",
	"premature end",
	"truncated",
	"unexpected eof",
	"invalid jpeg",
	"invalid data found",
	"moov atom not found",
	"no decodable frame",
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range corruptSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
