package thumbnailer

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"media-gallery/internal/logging"
	"media-gallery/internal/metrics"
	"media-gallery/internal/relpath"
)

// Generator pass cadence. The first pass runs shortly after startup so a
// fresh index starts filling in; later passes only start once the low
// queue has drained, which keeps re-paged rows from piling up.
const (
	generatorFirstDelay = 5 * time.Second
	generatorRescan     = time.Minute
)

func (t *Thumbnailer) generatorLoop() {
	defer t.wg.Done()

	timer := time.NewTimer(generatorFirstDelay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if low := t.lowDepth(); low == 0 {
				t.runGenerator()
			}
			timer.Reset(generatorRescan)
		case <-t.stopChan:
			return
		}
	}
}

func (t *Thumbnailer) lowDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.low.len()
}

// runGenerator pages every media row whose thumbnail is missing, stale,
// or previously failed, queueing low-priority work in batches.
func (t *Thumbnailer) runGenerator() {
	metrics.ThumbnailGeneratorRunning.Set(1)
	defer metrics.ThumbnailGeneratorRunning.Set(0)

	ctx := context.Background()
	after := ""
	queued := 0

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		if t.cfg.Memory != nil && !t.cfg.Memory.WaitIfPaused() {
			return
		}

		items, err := t.db.MediaNeedingThumbs(ctx, after, t.cfg.IdleBatch)
		if err != nil {
			logging.Error("Idle thumbnail page failed: %v", err)
			return
		}
		if len(items) == 0 {
			break
		}

		for _, it := range items {
			rel, relErr := relpath.New(it.Path)
			if relErr != nil {
				continue
			}
			t.enqueue(task{rel: rel, abs: rel.Under(t.cfg.MediaRoot), mtime: it.Mtime}, false, false)
		}
		queued += len(items)
		after = items[len(items)-1].Path

		select {
		case <-time.After(t.cfg.IdleDelay):
		case <-t.stopChan:
			return
		}
	}

	if queued > 0 {
		logging.Info("Idle thumbnail generator queued %d items", queued)
	}
}

// selfHeal detects a wiped thumbnail tree. When a shallow walk finds no
// files and none of a sample of "exists" rows has its mirrored file, the
// promise in the status table is false; every exists row resets to
// pending so the generator rebuilds the tree.
func (t *Thumbnailer) selfHeal(ctx context.Context) {
	if !t.thumbsTreeLooksEmpty() {
		return
	}

	sample, err := t.db.SampleExistsPaths(ctx, 50)
	if err != nil {
		logging.Error("Thumbnail self-heal sample failed: %v", err)
		return
	}
	if len(sample) == 0 {
		return
	}
	for _, p := range sample {
		if _, err := os.Stat(t.thumbPath(p)); err == nil {
			return
		}
	}

	n, err := t.db.ResetAllExists(ctx)
	if err != nil {
		logging.Error("Thumbnail self-heal reset failed: %v", err)
		return
	}
	if n > 0 {
		logging.Warn("Thumbnail store looks empty; reset %d rows for regeneration", n)
	}
}

// thumbsTreeLooksEmpty walks at most two levels of the thumbs root
// looking for any regular file. Deeper files are caught by the sample
// check in selfHeal.
func (t *Thumbnailer) thumbsTreeLooksEmpty() bool {
	entries, err := os.ReadDir(t.cfg.ThumbsDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			return false
		}
	}
	for _, e := range entries {
		sub, err := os.ReadDir(filepath.Join(t.cfg.ThumbsDir, e.Name()))
		if err != nil {
			continue
		}
		for _, s := range sub {
			if !s.IsDir() {
				return false
			}
		}
	}
	return true
}
