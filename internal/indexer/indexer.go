package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-gallery/internal/cache"
	"media-gallery/internal/database"
	"media-gallery/internal/logging"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/metrics"
	"media-gallery/internal/ngram"
	"media-gallery/internal/relpath"
)

const (
	// rebuildBatchSize is how many entries commit per transaction during a
	// full rebuild. The resume checkpoint advances once per batch, so this
	// is also the most work a crash can lose.
	rebuildBatchSize = 1000

	// rebuildBatchDelay yields the write lock between batches so browse
	// queries stay responsive during a rebuild.
	rebuildBatchDelay = 10 * time.Millisecond
)

// Indexer keeps the gallery store in sync with the media tree. It runs
// full rebuilds (resumable across restarts) and applies the consolidated
// change-sets the watcher produces. At most one task runs at a time; a
// second rebuild or change-set arriving mid-task is dropped with a
// warning rather than queued, because the running task already reflects
// newer filesystem state.
type Indexer struct {
	db     *database.Manager
	cache  *cache.Client
	root   string
	prober *prober

	stopChan chan struct{}
	stopOnce sync.Once

	taskMu sync.Mutex
	busy   bool

	processed atomic.Int64
	total     atomic.Int64
}

// New creates an Indexer over the media root. Nothing runs until
// FullRebuild or ApplyChanges is called.
func New(db *database.Manager, cacheClient *cache.Client, mediaRoot string) *Indexer {
	return &Indexer{
		db:       db,
		cache:    cacheClient,
		root:     mediaRoot,
		prober:   newProber(),
		stopChan: make(chan struct{}),
	}
}

// Stop signals any running task to commit its current batch and exit.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })
}

// tryStartTask claims the single task slot.
func (idx *Indexer) tryStartTask() bool {
	idx.taskMu.Lock()
	defer idx.taskMu.Unlock()
	if idx.busy {
		return false
	}
	idx.busy = true
	return true
}

func (idx *Indexer) finishTask() {
	idx.taskMu.Lock()
	idx.busy = false
	idx.taskMu.Unlock()
}

// IsIndexing reports whether a rebuild or change application is running.
func (idx *Indexer) IsIndexing() bool {
	idx.taskMu.Lock()
	defer idx.taskMu.Unlock()
	return idx.busy
}

// Progress returns the live counters of the current (or last) rebuild.
func (idx *Indexer) Progress() (processed, total int64) {
	return idx.processed.Load(), idx.total.Load()
}

// NeedsRebuild decides whether startup should launch a full rebuild:
// an interrupted run left a checkpoint or a building status, or the
// index is empty.
func (idx *Indexer) NeedsRebuild(ctx context.Context) (bool, string) {
	if resume, err := idx.db.GetProgress(ctx, database.ProgressLastProcessedPath); err == nil && resume != "" {
		return true, "interrupted rebuild checkpoint found"
	}
	if st, err := idx.db.GetIndexStatus(ctx); err == nil && st.Status == database.IndexBuilding {
		return true, "previous rebuild never finished"
	}
	n, err := idx.db.CountItems(ctx)
	if err != nil {
		logging.Warn("Could not count indexed items: %v", err)
		return false, ""
	}
	if n == 0 {
		return true, "index is empty"
	}
	return false, ""
}

// TriggerRebuild starts a full rebuild in the background. Used by the
// watcher when a change-set is too large to apply incrementally.
func (idx *Indexer) TriggerRebuild(reason string) {
	logging.Info("Full rebuild triggered: %s", reason)
	go func() {
		if err := idx.FullRebuild(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Triggered rebuild failed: %v", err)
		}
	}()
}

// FullRebuild walks the media tree and rebuilds the items, FTS, and
// thumb-status tables, then recomputes every album cover. A checkpoint
// recorded after each committed batch makes the run resumable: if a
// previous run left one, this run keeps the existing rows and skips walk
// entries up to the checkpoint instead of clearing the store.
func (idx *Indexer) FullRebuild(ctx context.Context) error {
	if !idx.tryStartTask() {
		logging.Warn("Index task already running, dropping rebuild request")
		return nil
	}
	defer idx.finishTask()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	start := time.Now()

	resumeFrom, err := idx.db.GetProgress(ctx, database.ProgressLastProcessedPath)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("read resume checkpoint: %w", err)
	}

	files, folders, err := countEntries(ctx, idx.root)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("count media entries: %w", err)
	}
	total := files + folders
	idx.total.Store(total)
	idx.processed.Store(0)

	if resumeFrom == "" {
		logging.Info("Starting full index rebuild: %d files, %d albums", files, folders)
		if err := idx.clearStore(ctx); err != nil {
			metrics.IndexerErrors.Inc()
			return err
		}
	} else {
		logging.Info("Resuming index rebuild from %q (%d entries on disk)", resumeFrom, total)
	}

	if err := idx.db.StartIndexRun(ctx, total); err != nil {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("mark index run started: %w", err)
	}

	if err := idx.indexTree(ctx, resumeFrom); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, errStopped) {
			logging.Info("Index rebuild interrupted after %d entries; will resume from checkpoint", idx.processed.Load())
			return context.Canceled
		}
		metrics.IndexerErrors.Inc()
		if recErr := idx.db.RecordIndexError(context.Background(), err.Error()); recErr != nil {
			logging.Error("Could not record index error: %v", recErr)
		}
		return err
	}

	processed := idx.processed.Load()
	if err := idx.db.DeleteProgress(ctx, database.ProgressLastProcessedPath); err != nil {
		logging.Warn("Could not clear rebuild checkpoint: %v", err)
	}
	if err := idx.db.FinishIndexRun(ctx, processed, ""); err != nil {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("mark index run complete: %w", err)
	}

	if err := idx.rebuildCovers(ctx); err != nil {
		metrics.IndexerErrors.Inc()
		logging.Error("Album cover rebuild failed: %v", err)
	}

	// Every cached listing predates the rebuild.
	if _, err := idx.cache.DeletePattern(ctx, cache.BrowseRoutePattern); err != nil {
		logging.Warn("Could not flush browse route cache: %v", err)
	}
	if _, err := idx.cache.DeletePattern(ctx, cache.CoverPattern); err != nil {
		logging.Warn("Could not flush cover cache: %v", err)
	}

	duration := time.Since(start)
	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(duration.Seconds())
	metrics.IndexerFilesProcessed.Add(float64(files))
	metrics.IndexerFoldersProcessed.Add(float64(folders))

	logging.Info("Index rebuild complete: %d entries in %v", processed, duration.Round(time.Millisecond))
	return nil
}

// clearStore wipes items, FTS, and covers ahead of a fresh rebuild.
func (idx *Indexer) clearStore(ctx context.Context) error {
	batch, err := idx.db.Gallery.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("begin clear transaction: %w", err)
	}
	if err := batch.End(idx.db.ClearItems(batch.Tx)); err != nil {
		return fmt.Errorf("clear index store: %w", err)
	}
	return nil
}

// errStopped reports a graceful interrupt by Stop.
var errStopped = errors.New("indexer stopped")

// indexTree streams the walk into committed batches. When resumeFrom is
// set, entries are skipped (but counted) until the checkpoint path is
// seen; a checkpoint that no longer exists on disk falls back to a full
// pass, which is safe because batch inserts keep existing rows.
func (idx *Indexer) indexTree(ctx context.Context, resumeFrom string) error {
	skipping := resumeFrom != ""
	batch := make([]entry, 0, rebuildBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := idx.writeBatch(ctx, batch); err != nil {
			return err
		}
		idx.processed.Add(int64(len(batch)))
		last := batch[len(batch)-1].rel.String()
		if err := idx.db.SetProgress(ctx, database.ProgressLastProcessedPath, last); err != nil {
			return fmt.Errorf("record rebuild checkpoint: %w", err)
		}
		if err := idx.db.UpdateIndexProgress(ctx, idx.processed.Load(), idx.total.Load()); err != nil {
			logging.Warn("Could not update index progress: %v", err)
		}
		batch = batch[:0]
		time.Sleep(rebuildBatchDelay)
		return nil
	}

	err := walk(ctx, idx.root, func(e entry) error {
		select {
		case <-idx.stopChan:
			return errStopped
		default:
		}

		if skipping {
			idx.processed.Add(1)
			if e.rel.String() == resumeFrom {
				skipping = false
			}
			return nil
		}

		batch = append(batch, e)
		if len(batch) >= rebuildBatchSize {
			return flush()
		}
		return nil
	})
	if errors.Is(err, errStopped) {
		// Commit what we have so the checkpoint reflects it.
		if flushErr := flush(); flushErr != nil {
			logging.Error("Could not commit final batch on stop: %v", flushErr)
		}
		return errStopped
	}
	if err != nil {
		return err
	}

	if skipping {
		logging.Warn("Rebuild checkpoint %q no longer exists, reindexing from the start", resumeFrom)
		idx.processed.Store(0)
		return idx.indexTree(ctx, "")
	}

	return flush()
}

// writeBatch probes dimensions in parallel then commits one transaction
// covering items, their FTS tokens, and thumb-status seeds.
func (idx *Indexer) writeBatch(ctx context.Context, entries []entry) error {
	dims := idx.prober.probeBatch(ctx, entries)

	batch, err := idx.db.Gallery.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("begin batch transaction: %w", err)
	}

	err = func() error {
		for i := range entries {
			e := entries[i]
			it := database.Item{
				Name:   e.rel.Name(),
				Path:   e.rel.String(),
				Type:   e.typ,
				Mtime:  e.mtime,
				Width:  dims[i].Width,
				Height: dims[i].Height,
			}
			id, err := idx.db.InsertItemIgnore(batch.Tx, &it)
			if err != nil {
				return err
			}
			if err := idx.db.UpsertItemFTS(batch.Tx, id, searchTokens(e.rel, e.typ)); err != nil {
				return err
			}
			if e.typ != mediatypes.TypeAlbum {
				if err := idx.db.SeedThumbStatus(batch.Tx, it.Path, it.Mtime); err != nil {
					return err
				}
			}
		}
		return nil
	}()
	return batch.End(err)
}

// searchTokens builds the FTS document for one item: grams of the path
// with its extension dropped, plus the type label so queries like
// "video" match by kind.
func searchTokens(rel relpath.Path, typ mediatypes.ItemType) string {
	p := rel.String()
	if ext := rel.Ext(); ext != "" {
		p = strings.TrimSuffix(p, ext)
	}
	return ngram.Tokens(p, string(typ))
}

// ApplyChanges applies one consolidated change-set: deletes first, then
// probed upserts, all in a single transaction, followed by cover
// recomputes for every touched album and tag-based cache invalidation.
// Unsafe paths are dropped individually so one bad event cannot poison
// the batch.
func (idx *Indexer) ApplyChanges(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	if !idx.tryStartTask() {
		logging.Warn("Index task already running, dropping change-set of %d changes", len(changes))
		return nil
	}
	defer idx.finishTask()

	var delPaths, delDirs []string
	var upserts []entry
	albums := make(map[string]bool)
	tagSet := make(map[string]struct{})

	addAlbumChain := func(rel relpath.Path) {
		for _, anc := range rel.Ancestors() {
			albums[anc.String()] = true
			tagSet[cache.AlbumTag(anc.String())] = struct{}{}
		}
	}

	for _, ch := range changes {
		rel, err := relpath.New(ch.Path)
		if err != nil || rel.IsRoot() {
			logging.Warn("Dropping change %s %q: %v", ch.Type, ch.Path, err)
			continue
		}

		switch ch.Type {
		case ChangeUnlink:
			delPaths = append(delPaths, rel.String())
			tagSet[cache.ItemTag(rel.String())] = struct{}{}
			addAlbumChain(rel)
		case ChangeUnlinkDir:
			delPaths = append(delPaths, rel.String())
			delDirs = append(delDirs, rel.String())
			tagSet[cache.AlbumTag(rel.String())] = struct{}{}
			albums[rel.String()] = true
			addAlbumChain(rel)
		case ChangeAdd, ChangeUpdate, ChangeAddDir:
			info, statErr := os.Stat(rel.Under(idx.root))
			if statErr != nil {
				logging.Warn("Dropping change %s %q: %v", ch.Type, ch.Path, statErr)
				continue
			}
			typ := mediatypes.TypeForName(rel.Name())
			if ch.Type == ChangeAddDir || info.IsDir() {
				typ = mediatypes.TypeAlbum
			}
			if typ == mediatypes.TypeAlbum {
				albums[rel.String()] = true
				tagSet[cache.AlbumTag(rel.String())] = struct{}{}
			} else {
				tagSet[cache.ItemTag(rel.String())] = struct{}{}
			}
			addAlbumChain(rel)
			upserts = append(upserts, entry{
				rel:   rel,
				abs:   rel.Under(idx.root),
				typ:   typ,
				mtime: info.ModTime().UnixMilli(),
			})
		default:
			logging.Warn("Dropping change with unknown type %q for %q", ch.Type, ch.Path)
		}
	}

	if len(delPaths) == 0 && len(delDirs) == 0 && len(upserts) == 0 {
		return nil
	}

	dims := idx.prober.probeBatch(ctx, upserts)

	batch, err := idx.db.Gallery.BeginBatch(ctx)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("begin change transaction: %w", err)
	}
	err = func() error {
		if _, err := idx.db.DeleteItems(batch.Tx, delPaths, delDirs); err != nil {
			return err
		}
		for i := range upserts {
			e := upserts[i]
			it := database.Item{
				Name:   e.rel.Name(),
				Path:   e.rel.String(),
				Type:   e.typ,
				Mtime:  e.mtime,
				Width:  dims[i].Width,
				Height: dims[i].Height,
			}
			id, err := idx.db.UpsertItem(batch.Tx, &it)
			if err != nil {
				return err
			}
			if err := idx.db.UpsertItemFTS(batch.Tx, id, searchTokens(e.rel, e.typ)); err != nil {
				return err
			}
			if e.typ != mediatypes.TypeAlbum {
				if err := idx.db.SeedThumbStatus(batch.Tx, it.Path, it.Mtime); err != nil {
					return err
				}
			}
		}
		return nil
	}()
	if err := batch.End(err); err != nil {
		metrics.IndexerErrors.Inc()
		if recErr := idx.db.RecordIndexError(context.Background(), err.Error()); recErr != nil {
			logging.Error("Could not record index error: %v", recErr)
		}
		return fmt.Errorf("apply %d changes: %w", len(changes), err)
	}

	if err := idx.recomputeCovers(ctx, albums); err != nil {
		metrics.IndexerErrors.Inc()
		logging.Error("Cover recompute after changes failed: %v", err)
	}

	idx.invalidateFor(ctx, tagSet, albums, len(changes))

	logging.Info("Applied %d changes: %d deletes, %d upserts, %d albums touched",
		len(changes), len(delPaths), len(upserts), len(albums))
	return nil
}

// invalidateFor drops cached responses made stale by a change-set. Under
// the adaptive ceiling the tag index pinpoints exactly the affected
// browse pages; past it a coarse pattern delete is cheaper than walking
// thousands of tag sets.
func (idx *Indexer) invalidateFor(ctx context.Context, tagSet map[string]struct{}, albums map[string]bool, changeCount int) {
	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}

	ceiling := idx.cache.TagCeiling(changeCount)
	if len(tags) > ceiling {
		logging.Debug("Tag count %d exceeds ceiling %d, falling back to pattern delete", len(tags), ceiling)
		if _, err := idx.cache.DeletePattern(ctx, cache.BrowseRoutePattern); err != nil {
			logging.Warn("Browse cache pattern delete failed: %v", err)
		}
	} else if len(tags) > 0 {
		if _, err := idx.cache.InvalidateTags(ctx, tags); err != nil {
			logging.Warn("Tag invalidation failed: %v", err)
		}
	}

	coverKeys := make([]string, 0, len(albums))
	for a := range albums {
		coverKeys = append(coverKeys, cache.CoverKey(a))
	}
	if err := idx.cache.Delete(ctx, coverKeys...); err != nil {
		logging.Warn("Cover cache delete failed: %v", err)
	}
}
