package database

import (
	"context"
	"database/sql"
	"errors"
)

// Cover is the precomputed cover row for one album: its most recent media
// descendant at any depth.
type Cover struct {
	AlbumPath string `json:"albumPath"`
	CoverPath string `json:"coverPath"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Mtime     int64  `json:"mtime"`
}

// CoversForAlbums batch-fetches stored covers. Albums without a row are
// absent from the result.
func (m *Manager) CoversForAlbums(ctx context.Context, albumPaths []string) (map[string]Cover, error) {
	out := make(map[string]Cover, len(albumPaths))
	if len(albumPaths) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(albumPaths))
	for i, p := range albumPaths {
		args[i] = p
	}
	err := m.Gallery.All(ctx, "covers_for_albums",
		`SELECT album_path, cover_path, width, height, mtime FROM album_covers
		 WHERE album_path IN (`+placeholders(len(albumPaths))+`)`,
		func(rows *sql.Rows) error {
			var c Cover
			if err := rows.Scan(&c.AlbumPath, &c.CoverPath, &c.Width, &c.Height, &c.Mtime); err != nil {
				return err
			}
			out[c.AlbumPath] = c
			return nil
		}, args...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CoversForAlbumsWindowed computes covers straight from items for albums
// that have no stored row yet, one windowed pass instead of one query per
// album.
func (m *Manager) CoversForAlbumsWindowed(ctx context.Context, albumPaths []string) (map[string]Cover, error) {
	out := make(map[string]Cover, len(albumPaths))
	if len(albumPaths) == 0 {
		return out, nil
	}

	// Root ("") cannot ride the LIKE prefix join; resolve it separately.
	var nonRoot []string
	wantRoot := false
	for _, p := range albumPaths {
		if p == "" {
			wantRoot = true
			continue
		}
		nonRoot = append(nonRoot, p)
	}

	if len(nonRoot) > 0 {
		args := make([]interface{}, len(nonRoot))
		for i, p := range nonRoot {
			args[i] = p
		}
		err := m.Gallery.All(ctx, "covers_windowed", `
			SELECT album_path, path, width, height, mtime FROM (
				SELECT a.path AS album_path, i.path AS path, i.width, i.height, i.mtime,
				       ROW_NUMBER() OVER (PARTITION BY a.path ORDER BY i.mtime DESC, i.path DESC) AS rn
				FROM items a
				JOIN items i ON i.type != 'album' AND i.path LIKE a.path || '/%'
				WHERE a.type = 'album' AND a.path IN (`+placeholders(len(nonRoot))+`)
			) WHERE rn = 1`,
			func(rows *sql.Rows) error {
				var c Cover
				if err := rows.Scan(&c.AlbumPath, &c.CoverPath, &c.Width, &c.Height, &c.Mtime); err != nil {
					return err
				}
				out[c.AlbumPath] = c
				return nil
			}, args...)
		if err != nil {
			return nil, err
		}
	}

	if wantRoot {
		c, err := m.LatestMediaUnder(ctx, "")
		if err != nil {
			return nil, err
		}
		if c != nil {
			out[""] = *c
		}
	}
	return out, nil
}

// LatestMediaUnder returns the cover candidate for one album: the media
// descendant with the greatest mtime, path DESC breaking ties. Returns
// nil when the album has no media.
func (m *Manager) LatestMediaUnder(ctx context.Context, albumPath string) (*Cover, error) {
	where := `type != 'album'`
	var args []interface{}
	if albumPath != "" {
		where += ` AND path LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(albumPath)+"/%")
	}

	c := Cover{AlbumPath: albumPath}
	err := m.Gallery.Get(ctx, "latest_media_under",
		`SELECT path, width, height, mtime FROM items WHERE `+where+
			` ORDER BY mtime DESC, path DESC LIMIT 1`, args...,
	).Scan(&c.CoverPath, &c.Width, &c.Height, &c.Mtime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetAlbumCover upserts the stored cover, or deletes the row when the
// album no longer has media (cover == nil).
func (m *Manager) SetAlbumCover(ctx context.Context, albumPath string, cover *Cover) error {
	if cover == nil {
		_, err := m.Gallery.Run(ctx, "delete_album_cover",
			`DELETE FROM album_covers WHERE album_path = ?`, albumPath)
		return err
	}
	_, err := m.Gallery.Run(ctx, "upsert_album_cover", `
		INSERT INTO album_covers (album_path, cover_path, width, height, mtime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(album_path) DO UPDATE SET
			cover_path = excluded.cover_path,
			width = excluded.width,
			height = excluded.height,
			mtime = excluded.mtime`,
		albumPath, cover.CoverPath, cover.Width, cover.Height, cover.Mtime)
	return err
}

// ReplaceAlbumCovers upserts a full cover set in one transaction. Used by
// the rebuild, which recomputes every album.
func (m *Manager) ReplaceAlbumCovers(ctx context.Context, covers []Cover) error {
	rows := make([][]interface{}, len(covers))
	for i, c := range covers {
		rows[i] = []interface{}{c.AlbumPath, c.CoverPath, c.Width, c.Height, c.Mtime}
	}
	return m.Gallery.RunPreparedBatch(ctx, "replace_album_covers", `
		INSERT INTO album_covers (album_path, cover_path, width, height, mtime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(album_path) DO UPDATE SET
			cover_path = excluded.cover_path,
			width = excluded.width,
			height = excluded.height,
			mtime = excluded.mtime`,
		rows, DefaultBatchOptions())
}

// AllAlbumPaths streams every album path, the rebuild's input set.
func (m *Manager) AllAlbumPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := m.Gallery.All(ctx, "all_album_paths",
		`SELECT path FROM items WHERE type = 'album' ORDER BY path`,
		func(rows *sql.Rows) error {
			var p string
			if err := rows.Scan(&p); err != nil {
				return err
			}
			paths = append(paths, p)
			return nil
		})
	return paths, err
}

// MediaByRecency streams all media ordered newest first, calling fn per
// row until it returns false. The cover rebuild walks this once, taking
// the first hit per ancestor album.
func (m *Manager) MediaByRecency(ctx context.Context, fn func(path string, width, height int, mtime int64) bool) error {
	stop := errors.New("stop")
	err := m.Gallery.All(ctx, "media_by_recency",
		`SELECT path, width, height, mtime FROM items WHERE type != 'album' ORDER BY mtime DESC, path DESC`,
		func(rows *sql.Rows) error {
			var p string
			var w, h int
			var mt int64
			if err := rows.Scan(&p, &w, &h, &mt); err != nil {
				return err
			}
			if !fn(p, w, h, mt) {
				return stop
			}
			return nil
		})
	if errors.Is(err, stop) {
		return nil
	}
	return err
}

// AlbumCoversPage returns stored covers ordered by album path for the
// cursor endpoint. cursor is the row offset.
func (m *Manager) AlbumCoversPage(ctx context.Context, cursor, limit int) ([]Cover, error) {
	var covers []Cover
	err := m.Gallery.All(ctx, "album_covers_page",
		`SELECT album_path, cover_path, width, height, mtime FROM album_covers
		 ORDER BY album_path LIMIT ? OFFSET ?`,
		func(rows *sql.Rows) error {
			var c Cover
			if err := rows.Scan(&c.AlbumPath, &c.CoverPath, &c.Width, &c.Height, &c.Mtime); err != nil {
				return err
			}
			covers = append(covers, c)
			return nil
		}, limit, cursor)
	return covers, err
}

// CountAlbumCovers returns the stored cover count, used by the cursor
// endpoint to report whether more pages remain.
func (m *Manager) CountAlbumCovers(ctx context.Context) (int64, error) {
	var n int64
	err := m.Gallery.Get(ctx, "count_album_covers", `SELECT COUNT(*) FROM album_covers`).Scan(&n)
	return n, err
}
