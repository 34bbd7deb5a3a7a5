package browse

import (
	"context"
	"encoding/json"
	"io/fs"
	"path/filepath"

	"media-gallery/internal/cache"
	"media-gallery/internal/database"
	"media-gallery/internal/logging"
	"media-gallery/internal/media"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/metrics"
	"media-gallery/internal/relpath"
)

// coverScanBudget caps how many directory entries one legacy cover scan
// visits. Albums missing from the index can be arbitrarily deep; within
// budget the scan picks the newest media it saw, not the true newest.
const coverScanBudget = 512

// coversFor resolves covers for a page's albums, cheapest source first:
// the in-process LRU, Redis, the album_covers table, a windowed query
// over items, and last a bounded filesystem scan. Albums with no media
// anywhere are simply absent from the result.
func (s *Service) coversFor(ctx context.Context, albumPaths []string) map[string]database.Cover {
	out := make(map[string]database.Cover, len(albumPaths))
	if len(albumPaths) == 0 {
		return out
	}

	var missing []string
	for _, p := range albumPaths {
		if cv, ok := s.coverLRU.Get(p); ok {
			out[p] = cv
			continue
		}
		if cv, ok := s.coverFromRedis(ctx, p); ok {
			out[p] = cv
			s.coverLRU.Add(p, cv)
			continue
		}
		missing = append(missing, p)
	}
	if len(missing) == 0 {
		return out
	}

	stored, err := s.db.CoversForAlbums(ctx, missing)
	if err != nil {
		logging.Warn("browse: stored covers: %v", err)
		stored = nil
	}
	missing = s.absorb(ctx, out, stored, missing)
	if len(missing) == 0 {
		return out
	}

	windowed, err := s.db.CoversForAlbumsWindowed(ctx, missing)
	if err != nil {
		logging.Warn("browse: windowed covers: %v", err)
		windowed = nil
	}
	missing = s.absorb(ctx, out, windowed, missing)

	for _, p := range missing {
		if cv, ok := s.scanCover(ctx, p); ok {
			out[p] = cv
			s.remember(ctx, cv)
		}
	}
	return out
}

// absorb moves resolved covers into out, caches them, and returns the
// still-missing album paths in their original order.
func (s *Service) absorb(ctx context.Context, out, found map[string]database.Cover, requested []string) []string {
	var missing []string
	for _, p := range requested {
		cv, ok := found[p]
		if !ok {
			missing = append(missing, p)
			continue
		}
		out[p] = cv
		s.remember(ctx, cv)
	}
	return missing
}

func (s *Service) remember(ctx context.Context, cv database.Cover) {
	s.coverLRU.Add(cv.AlbumPath, cv)
	raw, err := json.Marshal(cv)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.CoverKey(cv.AlbumPath), raw, coverTTL); err != nil {
		logging.Debug("browse: cache cover for %s: %v", cv.AlbumPath, err)
	}
}

func (s *Service) coverFromRedis(ctx context.Context, albumPath string) (database.Cover, bool) {
	raw, ok := s.cache.Get(ctx, cache.CoverKey(albumPath))
	if !ok {
		metrics.CacheMisses.WithLabelValues("cover").Inc()
		return database.Cover{}, false
	}
	var cv database.Cover
	if err := json.Unmarshal(raw, &cv); err != nil {
		return database.Cover{}, false
	}
	metrics.CacheHits.WithLabelValues("cover").Inc()
	return cv, true
}

// scanCover walks an album on disk looking for its newest media file.
// This is the path for legacy albums that exist on disk but have no index
// rows yet, so the index and the cover table cannot answer.
func (s *Service) scanCover(ctx context.Context, albumPath string) (database.Cover, bool) {
	rel, err := relpath.New(albumPath)
	if err != nil {
		return database.Cover{}, false
	}
	root := rel.Under(s.cfg.MediaRoot)

	var (
		best    string
		bestMt  int64
		visited int
	)
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return nil
		}
		if visited >= coverScanBudget {
			return fs.SkipAll
		}
		visited++
		if d.IsDir() {
			if p != root && mediatypes.IsIgnoredDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if mediatypes.IsHiddenName(d.Name()) || !mediatypes.IsMediaFile(d.Name()) {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		frel, ferr := relpath.FromFS(s.cfg.MediaRoot, p)
		if ferr != nil {
			return nil
		}
		// Same tie-break as the cover table: mtime DESC, path DESC.
		mt := info.ModTime().UnixMilli()
		if mt > bestMt || (mt == bestMt && frel.String() > best) {
			best, bestMt = frel.String(), mt
		}
		return nil
	})
	if best == "" {
		return database.Cover{}, false
	}

	brel, err := relpath.New(best)
	if err != nil {
		return database.Cover{}, false
	}
	dims := media.ProbeDimensions(ctx, brel.Under(s.cfg.MediaRoot), mediatypes.TypeForName(best))
	return database.Cover{
		AlbumPath: albumPath,
		CoverPath: best,
		Width:     dims.Width,
		Height:    dims.Height,
		Mtime:     bestMt,
	}, true
}
