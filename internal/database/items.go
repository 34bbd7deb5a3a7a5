package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-gallery/internal/errs"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/relpath"
)

// Item is one row of the gallery index: an album (directory) or a media
// file. Mtime is milliseconds since the epoch, matching what the walker
// records from stat.
type Item struct {
	ID           int64
	Name         string
	Path         string
	Type         mediatypes.ItemType
	Mtime        int64
	Width        int
	Height       int
	CoverPath    string
	LastViewedAt int64
}

// IsAlbum reports whether the item is a directory row.
func (it *Item) IsAlbum() bool { return it.Type == mediatypes.TypeAlbum }

const itemColumns = `id, name, path, type, mtime, width, height, cover_path, last_viewed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(s rowScanner) (Item, error) {
	var it Item
	var typ string
	var cover sql.NullString
	var viewed sql.NullInt64
	err := s.Scan(&it.ID, &it.Name, &it.Path, &typ, &it.Mtime, &it.Width, &it.Height, &cover, &viewed)
	if err != nil {
		return Item{}, err
	}
	it.Type = mediatypes.ItemType(typ)
	it.CoverPath = cover.String
	it.LastViewedAt = viewed.Int64
	return it, nil
}

// UpsertItem inserts or updates one item inside a batch transaction and
// returns its rowid for the FTS write that follows.
func (m *Manager) UpsertItem(tx *sql.Tx, it *Item) (int64, error) {
	var id int64
	err := tx.QueryRowContext(context.Background(), `
		INSERT INTO items (name, path, type, mtime, width, height)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			mtime = excluded.mtime,
			width = excluded.width,
			height = excluded.height
		RETURNING id`,
		it.Name, it.Path, string(it.Type), it.Mtime, it.Width, it.Height,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert item %s: %w", it.Path, err)
	}
	it.ID = id
	return id, nil
}

// InsertItemIgnore inserts one item, keeping any existing row for the
// same path. Used by the full rebuild, where a resumed run re-reads the
// batch that straddled the checkpoint.
func (m *Manager) InsertItemIgnore(tx *sql.Tx, it *Item) (int64, error) {
	var id int64
	err := tx.QueryRowContext(context.Background(), `
		INSERT INTO items (name, path, type, mtime, width, height)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING
		RETURNING id`,
		it.Name, it.Path, string(it.Type), it.Mtime, it.Width, it.Height,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Row already existed; fetch its id for the FTS upsert.
		err = tx.QueryRowContext(context.Background(),
			`SELECT id FROM items WHERE path = ?`, it.Path).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("insert item %s: %w", it.Path, err)
	}
	it.ID = id
	return id, nil
}

// UpsertItemFTS writes the search tokens for an item. Rowids mirror
// items.id; the FTS table has no triggers, so every item write must be
// paired with one of these in the same transaction.
func (m *Manager) UpsertItemFTS(tx *sql.Tx, itemID int64, tokens string) error {
	_, err := tx.ExecContext(context.Background(),
		`INSERT OR REPLACE INTO items_fts (rowid, name) VALUES (?, ?)`,
		itemID, tokens)
	if err != nil {
		return fmt.Errorf("upsert fts row %d: %w", itemID, err)
	}
	return nil
}

// ClearItems wipes items and the FTS table. First step of a fresh full
// rebuild.
func (m *Manager) ClearItems(tx *sql.Tx) error {
	for _, q := range []string{
		`DELETE FROM items_fts`,
		`DELETE FROM items`,
		`DELETE FROM album_covers`,
	} {
		if _, err := tx.ExecContext(context.Background(), q); err != nil {
			return fmt.Errorf("clear items: %w", err)
		}
	}
	return nil
}

// DeleteItems removes exact paths and, for each dir, everything beneath
// it, keeping items, FTS, thumb_status, and album_covers consistent in
// one transaction. Returns the number of item rows removed.
func (m *Manager) DeleteItems(tx *sql.Tx, paths []string, dirs []string) (int64, error) {
	if len(paths) == 0 && len(dirs) == 0 {
		return 0, nil
	}

	where, args := pathMatchClause("path", paths, dirs)
	ctx := context.Background()

	// FTS rows reference items.id, so they go first.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM items_fts WHERE rowid IN (SELECT id FROM items WHERE `+where+`)`,
		args...); err != nil {
		return 0, fmt.Errorf("delete fts rows: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete items: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM thumb_status WHERE `+where, args...); err != nil {
		return 0, fmt.Errorf("delete thumb status: %w", err)
	}

	coverWhere, coverArgs := pathMatchClause("album_path", paths, dirs)
	if _, err := tx.ExecContext(ctx, `DELETE FROM album_covers WHERE `+coverWhere, coverArgs...); err != nil {
		return 0, fmt.Errorf("delete album covers: %w", err)
	}

	return res.RowsAffected()
}

// pathMatchClause builds "col IN (...) OR col LIKE d1/% OR ..." for a set
// of exact paths and directory prefixes.
func pathMatchClause(col string, paths, dirs []string) (string, []interface{}) {
	var parts []string
	var args []interface{}

	if len(paths) > 0 {
		parts = append(parts, col+` IN (`+placeholders(len(paths))+`)`)
		for _, p := range paths {
			args = append(args, p)
		}
	}
	for _, d := range dirs {
		parts = append(parts, col+` LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(d)+"/%")
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// escapeLike escapes LIKE metacharacters so user paths cannot widen a
// pattern match.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// GetItemByPath fetches one row. Missing rows surface as sql.ErrNoRows.
func (m *Manager) GetItemByPath(ctx context.Context, path string) (*Item, error) {
	it, err := scanItem(m.Gallery.Get(ctx, "get_item",
		`SELECT `+itemColumns+` FROM items WHERE path = ?`, path))
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CountItems returns the number of indexed rows.
func (m *Manager) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := m.Gallery.Get(ctx, "count_items", `SELECT COUNT(*) FROM items`).Scan(&n)
	return n, err
}

// CountFTS returns the number of search rows.
func (m *Manager) CountFTS(ctx context.Context) (int64, error) {
	var n int64
	err := m.Gallery.Get(ctx, "count_fts", `SELECT COUNT(*) FROM items_fts`).Scan(&n)
	return n, err
}

// Sort names a directory-listing order.
type Sort string

const (
	SortNameAsc    Sort = "name_asc"
	SortNameDesc   Sort = "name_desc"
	SortMtimeAsc   Sort = "mtime_asc"
	SortMtimeDesc  Sort = "mtime_desc"
	SortViewedDesc Sort = "viewed_desc"
	SortSmart      Sort = "smart"
)

// ParseSort validates a client-supplied sort name. Empty input selects
// the smart default.
func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case "":
		return SortSmart, nil
	case SortNameAsc, SortNameDesc, SortMtimeAsc, SortMtimeDesc, SortViewedDesc, SortSmart:
		return Sort(s), nil
	}
	return "", errs.Ef(errs.ValidationError, "unknown sort %q", s)
}

// recentAlbumWindow is how long a root album floats to the top under the
// smart sort.
const recentAlbumWindow = 24 * time.Hour

// ListChildren returns one page of an album's direct children plus the
// unpaged total. Albums always order before media. viewed_desc pages by
// name here; the browse layer re-sorts the page against view history.
func (m *Manager) ListChildren(ctx context.Context, dir relpath.Path, sort Sort, limit, offset int) ([]Item, int, error) {
	var where string
	var args []interface{}
	if dir.IsRoot() {
		where = `path NOT LIKE '%/%'`
	} else {
		where = `path LIKE ? ESCAPE '\' AND substr(path, length(?) + 2) NOT LIKE '%/%'`
		args = append(args, escapeLike(dir.String())+"/%", dir.String())
	}

	var total int
	if err := m.Gallery.Get(ctx, "count_children",
		`SELECT COUNT(*) FROM items WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := `(type = 'album') DESC, `
	switch sort {
	case SortNameDesc:
		order += `name COLLATE NATCASE DESC`
	case SortMtimeAsc:
		order += `mtime ASC, name COLLATE NATCASE ASC`
	case SortMtimeDesc:
		order += `mtime DESC, name COLLATE NATCASE ASC`
	case SortSmart:
		if dir.IsRoot() {
			cutoff := time.Now().Add(-recentAlbumWindow).UnixMilli()
			order += `CASE WHEN type = 'album' AND mtime >= ? THEN 0 ELSE 1 END, ` +
				`CASE WHEN type = 'album' AND mtime >= ? THEN mtime END DESC, ` +
				`name COLLATE NATCASE ASC`
			args = append(args, cutoff, cutoff)
			break
		}
		order += `name COLLATE NATCASE ASC`
	default: // name_asc, viewed_desc
		order += `name COLLATE NATCASE ASC`
	}

	args = append(args, limit, offset)
	var items []Item
	err := m.Gallery.All(ctx, "list_children",
		`SELECT `+itemColumns+` FROM items WHERE `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		func(rows *sql.Rows) error {
			it, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, it)
			return nil
		}, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// AllMediaItems pages every media row ordered by path. afterPath is the
// exclusive cursor; empty starts from the beginning.
func (m *Manager) AllMediaItems(ctx context.Context, afterPath string, limit int) ([]Item, error) {
	var items []Item
	err := m.Gallery.All(ctx, "all_media_items",
		`SELECT `+itemColumns+` FROM items WHERE type != 'album' AND path > ? ORDER BY path LIMIT ?`,
		func(rows *sql.Rows) error {
			it, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, it)
			return nil
		}, afterPath, limit)
	return items, err
}

// MediaNeedingThumbs pages media whose thumbnail is missing, stale, or
// retriable, feeding the idle generator.
func (m *Manager) MediaNeedingThumbs(ctx context.Context, afterPath string, limit int) ([]Item, error) {
	var items []Item
	err := m.Gallery.All(ctx, "media_needing_thumbs", `
		SELECT i.id, i.name, i.path, i.type, i.mtime, i.width, i.height, i.cover_path, i.last_viewed_at
		FROM items i
		LEFT JOIN thumb_status ts ON ts.path = i.path
		WHERE i.type != 'album' AND i.path > ?
		  AND (ts.status IS NULL OR ts.mtime < i.mtime OR ts.status IN ('pending', 'failed'))
		ORDER BY i.path
		LIMIT ?`,
		func(rows *sql.Rows) error {
			it, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, it)
			return nil
		}, afterPath, limit)
	return items, err
}

// searchSuppression keeps an album hit only when no other matched album
// strictly contains it, so a query matching a whole subtree returns the
// top album instead of every nesting level.
const searchSuppression = `
	h.type != 'album' OR NOT EXISTS (
		SELECT 1 FROM hits h2
		WHERE h2.type = 'album' AND h2.path != h.path AND h.path LIKE h2.path || '/%'
	)`

// SearchItems runs an FTS match, album hits first, best rank first.
// match must already be a sanitized FTS5 query string.
func (m *Manager) SearchItems(ctx context.Context, match string, limit, offset int) ([]Item, int, error) {
	const hitsCTE = `
		WITH hits AS (
			SELECT i.id, i.name, i.path, i.type, i.mtime, i.width, i.height,
			       i.cover_path, i.last_viewed_at, items_fts.rank AS r
			FROM items_fts
			JOIN items i ON i.id = items_fts.rowid
			WHERE items_fts MATCH ?
		)`

	var total int
	if err := m.Gallery.Get(ctx, "search_count",
		hitsCTE+` SELECT COUNT(*) FROM hits h WHERE `+searchSuppression, match).Scan(&total); err != nil {
		return nil, 0, err
	}

	var items []Item
	err := m.Gallery.All(ctx, "search_items",
		hitsCTE+`
		SELECT id, name, path, type, mtime, width, height, cover_path, last_viewed_at
		FROM hits h WHERE `+searchSuppression+`
		ORDER BY CASE h.type WHEN 'album' THEN 0 ELSE 1 END, h.r ASC
		LIMIT ? OFFSET ?`,
		func(rows *sql.Rows) error {
			it, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, it)
			return nil
		}, match, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
