package indexer

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"media-gallery/internal/logging"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/relpath"
)

// entry is one indexable filesystem object seen by the walk: an album
// (directory) or a media file, with its mtime in unix milliseconds.
type entry struct {
	rel   relpath.Path
	abs   string
	typ   mediatypes.ItemType
	mtime int64
}

// errWalkStopped distinguishes a cancellation from a real walk failure.
var errWalkStopped = errors.New("walk stopped")

// walk streams every indexable entry under root in deterministic
// (lexical, depth-first) order. Hidden entries, vendor system
// directories, database files, and non-media extensions are skipped.
// Unreadable entries are logged and skipped rather than failing the
// whole walk.
func walk(ctx context.Context, root string, fn func(entry) error) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return errWalkStopped
		}
		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if mediatypes.IsIgnoredDir(name) {
				return filepath.SkipDir
			}
		} else if mediatypes.IsHiddenName(name) || !mediatypes.IsMediaFile(name) {
			return nil
		}

		rel, relErr := relpath.FromFS(root, path)
		if relErr != nil {
			logging.Warn("Skipping unindexable path %s: %v", path, relErr)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			logging.Warn("Error reading info for %s: %v", path, infoErr)
			return nil
		}

		typ := mediatypes.TypeAlbum
		if !d.IsDir() {
			typ = mediatypes.TypeForName(name)
		}

		return fn(entry{
			rel:   rel,
			abs:   path,
			typ:   typ,
			mtime: info.ModTime().UnixMilli(),
		})
	})

	if errors.Is(err, errWalkStopped) {
		return ctx.Err()
	}
	return err
}

// countEntries walks the tree once without touching the database, so a
// fresh rebuild can report a meaningful total up front.
func countEntries(ctx context.Context, root string) (files, folders int64, err error) {
	err = walk(ctx, root, func(e entry) error {
		if e.typ == mediatypes.TypeAlbum {
			folders++
		} else {
			files++
		}
		return nil
	})
	return files, folders, err
}
