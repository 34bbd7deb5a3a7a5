package indexer

import (
	"context"
	"fmt"
	"sort"

	"media-gallery/internal/database"
	"media-gallery/internal/logging"
	"media-gallery/internal/relpath"
)

// rebuildCovers recomputes every album's cover in one pass: all media
// streamed newest-first, the first row seen under each album wins. One
// stream replaces one query per album, which matters on large libraries.
func (idx *Indexer) rebuildCovers(ctx context.Context) error {
	albums, err := idx.db.AllAlbumPaths(ctx)
	if err != nil {
		return fmt.Errorf("load album paths: %w", err)
	}

	pending := make(map[string]bool, len(albums)+1)
	pending[""] = true // the root is an album too
	for _, a := range albums {
		pending[a] = true
	}

	covers := make([]database.Cover, 0, len(pending))
	err = idx.db.MediaByRecency(ctx, func(path string, width, height int, mtime int64) bool {
		rel, relErr := relpath.New(path)
		if relErr != nil {
			return true
		}
		for _, anc := range rel.Ancestors() {
			key := anc.String()
			if !pending[key] {
				continue
			}
			delete(pending, key)
			covers = append(covers, database.Cover{
				AlbumPath: key,
				CoverPath: path,
				Width:     width,
				Height:    height,
				Mtime:     mtime,
			})
		}
		return len(pending) > 0
	})
	if err != nil {
		return fmt.Errorf("stream media for covers: %w", err)
	}

	if err := idx.db.ReplaceAlbumCovers(ctx, covers); err != nil {
		return fmt.Errorf("store covers: %w", err)
	}

	logging.Info("Album covers rebuilt: %d of %d albums have media", len(covers), len(albums)+1)
	return nil
}

// recomputeCovers refreshes stored covers for a set of albums after a
// change-set, deleting rows for albums that no longer contain media.
func (idx *Indexer) recomputeCovers(ctx context.Context, albums map[string]bool) error {
	// Deterministic order keeps logs and lock patterns stable.
	paths := make([]string, 0, len(albums))
	for a := range albums {
		paths = append(paths, a)
	}
	sort.Strings(paths)

	for _, album := range paths {
		cover, err := idx.db.LatestMediaUnder(ctx, album)
		if err != nil {
			return fmt.Errorf("recompute cover for %q: %w", album, err)
		}
		if err := idx.db.SetAlbumCover(ctx, album, cover); err != nil {
			return fmt.Errorf("store cover for %q: %w", album, err)
		}
	}
	return nil
}
