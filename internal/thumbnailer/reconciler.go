package thumbnailer

import (
	"context"
	"os"
	"time"

	"media-gallery/internal/filesystem"
	"media-gallery/internal/logging"
	"media-gallery/internal/metrics"
)

// reconcileLoop continuously re-verifies "exists" rows against the
// filesystem. Ordering by last_checked rotates the scan across the whole
// table, so every thumbnail is eventually re-verified no matter how
// large the library is.
func (t *Thumbnailer) reconcileLoop() {
	defer t.wg.Done()

	for {
		select {
		case <-time.After(t.cfg.ReconcilePause):
		case <-t.stopChan:
			return
		}
		t.reconcileBatch(context.Background())
	}
}

// reconcileBatch verifies one page of exists rows: missing mirrored
// files reset to pending for regeneration, everything checked gets its
// last_checked bumped.
func (t *Thumbnailer) reconcileBatch(ctx context.Context) {
	rows, err := t.db.ExistsBatch(ctx, t.cfg.ReconcileBatch)
	if err != nil {
		logging.Error("Reconciler page failed: %v", err)
		return
	}
	if len(rows) == 0 {
		return
	}
	metrics.ReconcilerBatchesTotal.Inc()

	now := time.Now().UnixMilli()
	var checked []string
	var missing []string
	for _, row := range rows {
		_, statErr := filesystem.StatWithRetry(t.thumbPath(row.Path), t.retry)
		switch {
		case statErr == nil:
			checked = append(checked, row.Path)
		case os.IsNotExist(statErr):
			missing = append(missing, row.Path)
		default:
			// Transient stat failure. Bump last_checked so the scan keeps
			// rotating instead of hammering the same row.
			logging.Debug("Reconciler stat failed for %s: %v", row.Path, statErr)
			checked = append(checked, row.Path)
		}
	}

	if len(missing) > 0 {
		if err := t.db.ResetThumbStatuses(ctx, missing); err != nil {
			logging.Error("Reconciler reset failed: %v", err)
		} else {
			metrics.ReconcilerRepairsTotal.Add(float64(len(missing)))
			logging.Info("Reconciler found %d thumbnails missing on disk, queued for regeneration", len(missing))
		}
	}
	if len(checked) > 0 {
		if err := t.db.TouchThumbChecks(ctx, checked, now); err != nil {
			logging.Error("Reconciler touch failed: %v", err)
		}
	}
}
