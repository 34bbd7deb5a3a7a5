package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-gallery/internal/cache"
	"media-gallery/internal/logging"
	"media-gallery/internal/media"
	"media-gallery/internal/metrics"
	"media-gallery/internal/relpath"
)

// permanentFailTTL matches the thumbnail engine: a failed source is
// retried once the mark expires.
const permanentFailTTL = 7 * 24 * time.Hour

const defaultQueueCap = 1024

// tempPrefix marks in-progress transcode output. Startup sweeps orphans
// left by a crash.
const tempPrefix = ".opt-"

// compatibleCodecs are the video codecs browsers decode natively.
var compatibleCodecs = map[string]bool{
	"h264": true,
	"vp8":  true,
	"vp9":  true,
	"av1":  true,
}

// compatibleContainers are the container extensions browsers accept in a
// <video> element.
var compatibleContainers = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
}

// NeedsTranscode reports whether a video must be converted before browsers
// can play it. Codec may be empty when probing failed; unknown codecs
// count as incompatible.
func NeedsTranscode(codec, ext string) bool {
	return !compatibleCodecs[strings.ToLower(codec)] ||
		!compatibleContainers[strings.ToLower(ext)]
}

// Config tunes the optimizer. Zero values select the defaults.
type Config struct {
	MediaRoot    string
	OptimizedDir string
	QueueCap     int
}

func (c *Config) applyDefaults() {
	if c.QueueCap <= 0 {
		c.QueueCap = defaultQueueCap
	}
}

// Optimizer drains a bounded in-memory queue of video paths through a
// single transcode worker. Enqueue never blocks; a full queue drops the
// path and a later watcher event or rescan offers it again.
type Optimizer struct {
	cache *cache.Client
	cfg   Config

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []relpath.Path
	pending map[string]bool
	stopped bool

	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds an Optimizer over the shared cache client.
func New(cacheClient *cache.Client, cfg Config) *Optimizer {
	cfg.applyDefaults()
	o := &Optimizer{
		cache:   cacheClient,
		cfg:     cfg,
		pending: make(map[string]bool),
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Start sweeps temp files orphaned by a previous crash, then launches the
// worker.
func (o *Optimizer) Start() {
	o.sweepOrphans()

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.wg.Add(1)
	go o.worker(ctx)

	logging.Info("Video optimizer started (mirror %s)", o.cfg.OptimizedDir)
}

// Stop aborts any in-flight transcode and waits for the worker to exit.
// Queued paths are abandoned; future watcher events re-offer them.
func (o *Optimizer) Stop() {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.stopped = true
		o.mu.Unlock()
		if o.cancel != nil {
			o.cancel()
		}
		o.cond.Broadcast()
	})
	o.wg.Wait()
}

// Enqueue adds a video for background optimization. Paths already waiting
// are not queued twice.
func (o *Optimizer) Enqueue(rel relpath.Path) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped || o.pending[rel.String()] {
		return
	}
	if len(o.queue) >= o.cfg.QueueCap {
		logging.Warn("Optimizer queue full (%d), dropping %s", o.cfg.QueueCap, rel)
		return
	}
	o.queue = append(o.queue, rel)
	o.pending[rel.String()] = true
	metrics.OptimizerQueueDepth.Set(float64(len(o.queue)))
	o.cond.Signal()
}

// QueueDepth reports how many videos are waiting.
func (o *Optimizer) QueueDepth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// OutputPath returns where the optimized copy of rel lives. The mirror
// rewrites every extension to .mp4 since that is the only output format.
func (o *Optimizer) OutputPath(rel relpath.Path) string {
	p := rel.String()
	p = strings.TrimSuffix(p, path.Ext(p)) + ".mp4"
	return filepath.Join(o.cfg.OptimizedDir, filepath.FromSlash(p))
}

func (o *Optimizer) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		rel, ok := o.next()
		if !ok {
			logging.Debug("Optimizer worker stopped")
			return
		}
		o.process(ctx, rel)
	}
}

func (o *Optimizer) next() (relpath.Path, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.queue) == 0 && !o.stopped {
		o.cond.Wait()
	}
	if o.stopped {
		return relpath.Path{}, false
	}
	rel := o.queue[0]
	o.queue = o.queue[1:]
	delete(o.pending, rel.String())
	metrics.OptimizerQueueDepth.Set(float64(len(o.queue)))
	return rel, true
}

// process optimizes one video. Cheap skips come first: the permanent
// failure mark, a vanished source, an already fresh copy, then a probe
// showing the file is playable as-is.
func (o *Optimizer) process(ctx context.Context, rel relpath.Path) {
	if _, ok := o.cache.Get(ctx, cache.OptimizeFailedKey(rel.String())); ok {
		logging.Debug("Skipping %s: optimization marked permanently failed", rel)
		metrics.OptimizerTranscodesTotal.WithLabelValues("skipped").Inc()
		return
	}

	src := rel.Under(o.cfg.MediaRoot)
	srcInfo, err := os.Stat(src)
	if err != nil {
		logging.Debug("Skipping %s: source gone before optimization", rel)
		metrics.OptimizerTranscodesTotal.WithLabelValues("skipped").Inc()
		return
	}

	dst := o.OutputPath(rel)
	if dstInfo, err := os.Stat(dst); err == nil && !dstInfo.ModTime().Before(srcInfo.ModTime()) {
		metrics.OptimizerTranscodesTotal.WithLabelValues("skipped").Inc()
		return
	}

	info, err := media.ProbeVideo(ctx, src)
	switch {
	case err != nil:
		// ffmpeg is the authority; let it decide whether the file decodes.
		logging.Debug("Probe failed for %s, transcoding anyway: %v", rel, err)
	case !NeedsTranscode(info.Codec, rel.Ext()):
		logging.Debug("%s is already browser-playable (%s)", rel, info.Codec)
		metrics.OptimizerTranscodesTotal.WithLabelValues("skipped").Inc()
		return
	}

	start := time.Now()
	err = o.transcode(ctx, src, dst)
	metrics.OptimizerTranscodeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Warn("Optimization of %s failed permanently: %v", rel, err)
		if setErr := o.cache.Set(ctx, cache.OptimizeFailedKey(rel.String()), []byte("1"), permanentFailTTL); setErr != nil {
			logging.Debug("Could not record optimization failure for %s: %v", rel, setErr)
		}
		metrics.OptimizerTranscodesTotal.WithLabelValues("failed").Inc()
		return
	}

	logging.Info("Optimized %s in %s", rel, time.Since(start).Round(time.Second))
	metrics.OptimizerTranscodesTotal.WithLabelValues("done").Inc()
}

// transcode converts src into an MP4 at dst via a temp file in the target
// directory so the rename is atomic. The mux format is forced because the
// temp name carries no extension ffmpeg could infer it from.
func (o *Optimizer) transcode(ctx context.Context, src, dst string) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create optimized dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y",
		tmpName,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		o.removeTemp(tmpName)
		return fmt.Errorf("ffmpeg: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	if err := os.Rename(tmpName, dst); err != nil {
		o.removeTemp(tmpName)
		return fmt.Errorf("publish optimized file: %w", err)
	}
	return nil
}

func (o *Optimizer) removeTemp(name string) {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		logging.Warn("Failed to remove temp transcode output %s: %v", name, err)
	}
}

// sweepOrphans removes temp transcode output left behind by a crash. A
// missing mirror directory is fine; the first transcode creates it.
func (o *Optimizer) sweepOrphans() {
	removed := 0
	_ = filepath.WalkDir(o.cfg.OptimizedDir, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil || d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), tempPrefix) {
			if rmErr := os.Remove(p); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	if removed > 0 {
		logging.Info("Removed %d orphaned transcode temp files", removed)
	}
}
