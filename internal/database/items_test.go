package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"media-gallery/internal/mediatypes"
)

func TestUpsertItemRoundTrip(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()

	it := Item{Name: "sunset.jpg", Path: "beach/sunset.jpg", Type: mediatypes.TypePhoto,
		Mtime: 1700000000000, Width: 4000, Height: 3000}
	insertTestItems(t, m, it)

	got, err := m.GetItemByPath(ctx, "beach/sunset.jpg")
	if err != nil {
		t.Fatalf("GetItemByPath() failed: %v", err)
	}
	if got.Name != it.Name || got.Type != it.Type || got.Mtime != it.Mtime ||
		got.Width != it.Width || got.Height != it.Height {
		t.Errorf("got %+v, want fields of %+v", got, it)
	}

	// Re-adding the same path updates in place instead of duplicating.
	it.Mtime = 1800000000000
	it.Width = 1920
	insertTestItems(t, m, it)

	got, err = m.GetItemByPath(ctx, "beach/sunset.jpg")
	if err != nil {
		t.Fatalf("GetItemByPath() after update failed: %v", err)
	}
	if got.Mtime != 1800000000000 || got.Width != 1920 {
		t.Errorf("update not applied: %+v", got)
	}
	if n, _ := m.CountItems(ctx); n != 1 {
		t.Errorf("CountItems() = %d, want 1", n)
	}
}

func TestGetItemByPathMissing(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)

	_, err := m.GetItemByPath(context.Background(), "nope.jpg")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestInsertItemIgnoreKeepsExistingRow(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()

	insertTestItems(t, m, Item{Name: "a.jpg", Path: "a.jpg", Type: mediatypes.TypePhoto, Mtime: 100, Width: 10})
	existing, err := m.GetItemByPath(ctx, "a.jpg")
	if err != nil {
		t.Fatalf("GetItemByPath() failed: %v", err)
	}

	batch, err := m.Gallery.BeginBatch(ctx)
	if err != nil {
		t.Fatalf("BeginBatch() failed: %v", err)
	}
	dup := Item{Name: "a.jpg", Path: "a.jpg", Type: mediatypes.TypePhoto, Mtime: 999, Width: 99}
	id, err := m.InsertItemIgnore(batch.Tx, &dup)
	if err != nil {
		t.Fatalf("InsertItemIgnore() failed: %v", err)
	}
	if err := batch.End(nil); err != nil {
		t.Fatalf("End() failed: %v", err)
	}
	if id != existing.ID {
		t.Errorf("id = %d, want existing row id %d", id, existing.ID)
	}

	got, err := m.GetItemByPath(ctx, "a.jpg")
	if err != nil {
		t.Fatalf("GetItemByPath() failed: %v", err)
	}
	if got.Mtime != 100 || got.Width != 10 {
		t.Errorf("existing row was overwritten: %+v", got)
	}
}

// listFixture builds a small tree: two albums and three files at root,
// plus media inside the albums.
func listFixture(t testing.TB, m *Manager, now int64) {
	t.Helper()
	insertTestItems(t, m,
		Item{Name: "zoo", Path: "zoo", Type: mediatypes.TypeAlbum, Mtime: now - 100},
		Item{Name: "alps", Path: "alps", Type: mediatypes.TypeAlbum, Mtime: now - 200},
		Item{Name: "b.jpg", Path: "b.jpg", Type: mediatypes.TypePhoto, Mtime: now - 10},
		Item{Name: "a.jpg", Path: "a.jpg", Type: mediatypes.TypePhoto, Mtime: now - 30},
		Item{Name: "c.mp4", Path: "c.mp4", Type: mediatypes.TypeVideo, Mtime: now - 20},
		Item{Name: "inner.jpg", Path: "zoo/inner.jpg", Type: mediatypes.TypePhoto, Mtime: now - 5},
		Item{Name: "deep", Path: "zoo/deep", Type: mediatypes.TypeAlbum, Mtime: now - 5},
		Item{Name: "deep.jpg", Path: "zoo/deep/deep.jpg", Type: mediatypes.TypePhoto, Mtime: now - 1},
	)
}

func TestListChildrenOnlyDirectChildren(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	now := time.Now().UnixMilli()
	listFixture(t, m, now)

	items, total, err := m.ListChildren(context.Background(), mustRel(t, "zoo"), SortNameAsc, 50, 0)
	if err != nil {
		t.Fatalf("ListChildren(zoo) failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2 (deep + inner.jpg)", total)
	}
	for _, it := range items {
		if it.Path == "zoo/deep/deep.jpg" {
			t.Errorf("grandchild leaked into listing: %+v", it)
		}
	}
}

func TestListChildrenAlbumsAlwaysFirst(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	now := time.Now().UnixMilli()
	listFixture(t, m, now)

	for _, sort := range []Sort{SortNameAsc, SortNameDesc, SortMtimeAsc, SortMtimeDesc} {
		items, _, err := m.ListChildren(context.Background(), mustRel(t, ""), sort, 50, 0)
		if err != nil {
			t.Fatalf("ListChildren(%s) failed: %v", sort, err)
		}
		seenMedia := false
		for _, it := range items {
			if it.Type != mediatypes.TypeAlbum {
				seenMedia = true
			} else if seenMedia {
				t.Errorf("sort %s: album %s after media", sort, it.Path)
			}
		}
	}
}

func TestListChildrenSortOrders(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	now := time.Now().UnixMilli()
	listFixture(t, m, now)
	ctx := context.Background()

	tests := []struct {
		sort      Sort
		wantMedia []string // expected media order at root
	}{
		{SortNameAsc, []string{"a.jpg", "b.jpg", "c.mp4"}},
		{SortNameDesc, []string{"c.mp4", "b.jpg", "a.jpg"}},
		{SortMtimeDesc, []string{"b.jpg", "c.mp4", "a.jpg"}},
		{SortMtimeAsc, []string{"a.jpg", "c.mp4", "b.jpg"}},
	}

	for _, tt := range tests {
		items, _, err := m.ListChildren(ctx, mustRel(t, ""), tt.sort, 50, 0)
		if err != nil {
			t.Fatalf("ListChildren(%s) failed: %v", tt.sort, err)
		}
		var media []string
		for _, it := range items {
			if it.Type != mediatypes.TypeAlbum {
				media = append(media, it.Name)
			}
		}
		for i := range tt.wantMedia {
			if media[i] != tt.wantMedia[i] {
				t.Errorf("sort %s media order = %v, want %v", tt.sort, media, tt.wantMedia)
				break
			}
		}
	}
}

func TestListChildrenSmartFloatsRecentAlbums(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	now := time.Now().UnixMilli()

	insertTestItems(t, m,
		Item{Name: "aaa old", Path: "aaa old", Type: mediatypes.TypeAlbum, Mtime: now - 48*3600*1000},
		Item{Name: "zzz fresh", Path: "zzz fresh", Type: mediatypes.TypeAlbum, Mtime: now - 3600*1000},
		Item{Name: "mmm fresher", Path: "mmm fresher", Type: mediatypes.TypeAlbum, Mtime: now - 1800*1000},
	)

	items, _, err := m.ListChildren(context.Background(), mustRel(t, ""), SortSmart, 50, 0)
	if err != nil {
		t.Fatalf("ListChildren(smart) failed: %v", err)
	}
	got := []string{items[0].Name, items[1].Name, items[2].Name}
	// Fresh albums first by recency, then older ones alphabetically.
	want := []string{"mmm fresher", "zzz fresh", "aaa old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("smart order = %v, want %v", got, want)
		}
	}
}

func TestListChildrenPagination(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	now := time.Now().UnixMilli()
	listFixture(t, m, now)

	page1, total, err := m.ListChildren(context.Background(), mustRel(t, ""), SortNameAsc, 2, 0)
	if err != nil {
		t.Fatalf("page 1 failed: %v", err)
	}
	page2, _, err := m.ListChildren(context.Background(), mustRel(t, ""), SortNameAsc, 2, 2)
	if err != nil {
		t.Fatalf("page 2 failed: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page1) != 2 || len(page2) != 2 {
		t.Errorf("page sizes = %d, %d; want 2, 2", len(page1), len(page2))
	}
	if page1[0].Path == page2[0].Path {
		t.Error("pages overlap")
	}
}

func TestDeleteItemsCascades(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()
	listFixture(t, m, now)

	if err := m.SetThumbStatus(ctx, "zoo/inner.jpg", now, ThumbExists); err != nil {
		t.Fatalf("SetThumbStatus() failed: %v", err)
	}
	if err := m.SetAlbumCover(ctx, "zoo", &Cover{AlbumPath: "zoo", CoverPath: "zoo/inner.jpg", Mtime: now}); err != nil {
		t.Fatalf("SetAlbumCover() failed: %v", err)
	}

	batch, err := m.Gallery.BeginBatch(ctx)
	if err != nil {
		t.Fatalf("BeginBatch() failed: %v", err)
	}
	removed, err := m.DeleteItems(batch.Tx, []string{"zoo"}, []string{"zoo"})
	if err := batch.End(err); err != nil {
		t.Fatalf("DeleteItems() failed: %v", err)
	}
	// zoo + inner.jpg + deep + deep/deep.jpg
	if removed != 4 {
		t.Errorf("removed = %d, want 4", removed)
	}

	if _, err := m.GetItemByPath(ctx, "zoo/deep/deep.jpg"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("descendant survived delete: %v", err)
	}
	if ts, _ := m.GetThumbStatus(ctx, "zoo/inner.jpg"); ts != nil {
		t.Error("thumb status survived delete")
	}
	covers, err := m.CoversForAlbums(ctx, []string{"zoo"})
	if err != nil {
		t.Fatalf("CoversForAlbums() failed: %v", err)
	}
	if _, ok := covers["zoo"]; ok {
		t.Error("album cover survived delete")
	}

	// Search rows must be gone too, or stale hits would 404.
	hits, _, err := m.SearchItems(ctx, `"inner"`, 10, 0)
	if err != nil {
		t.Fatalf("SearchItems() failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("FTS rows survived delete: %+v", hits)
	}
}

func TestSearchItemsAlbumFirstAndSuppressed(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	// Tokens mimic the indexer: name fragments per row.
	batch, err := m.Gallery.BeginBatch(ctx)
	if err != nil {
		t.Fatalf("BeginBatch() failed: %v", err)
	}
	rows := []struct {
		item   Item
		tokens string
	}{
		{Item{Name: "vacation", Path: "vacation", Type: mediatypes.TypeAlbum, Mtime: now}, "vacation album"},
		{Item{Name: "2024", Path: "vacation/2024", Type: mediatypes.TypeAlbum, Mtime: now}, "vacation 2024 album"},
		{Item{Name: "pic.jpg", Path: "vacation/2024/pic.jpg", Type: mediatypes.TypePhoto, Mtime: now}, "vacation 2024 pic photo"},
		{Item{Name: "other.jpg", Path: "other.jpg", Type: mediatypes.TypePhoto, Mtime: now}, "other photo"},
	}
	for i := range rows {
		id, err := m.UpsertItem(batch.Tx, &rows[i].item)
		if err != nil {
			t.Fatalf("UpsertItem() failed: %v", err)
		}
		if err := m.UpsertItemFTS(batch.Tx, id, rows[i].tokens); err != nil {
			t.Fatalf("UpsertItemFTS() failed: %v", err)
		}
	}
	if err := batch.End(nil); err != nil {
		t.Fatalf("End() failed: %v", err)
	}

	hits, total, err := m.SearchItems(ctx, `"vacation"`, 10, 0)
	if err != nil {
		t.Fatalf("SearchItems() failed: %v", err)
	}
	// vacation/2024 is suppressed: its ancestor album also matched.
	if total != 2 {
		t.Fatalf("total = %d, want 2 (album + photo, nested album suppressed)", total)
	}
	if hits[0].Path != "vacation" || hits[0].Type != mediatypes.TypeAlbum {
		t.Errorf("first hit = %+v, want the top album", hits[0])
	}
	for _, h := range hits {
		if h.Path == "vacation/2024" {
			t.Error("nested album was not suppressed")
		}
	}
}

func TestAllMediaItemsCursor(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	now := time.Now().UnixMilli()
	listFixture(t, m, now)
	ctx := context.Background()

	first, err := m.AllMediaItems(ctx, "", 2)
	if err != nil {
		t.Fatalf("AllMediaItems() failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("len = %d, want 2", len(first))
	}
	rest, err := m.AllMediaItems(ctx, first[len(first)-1].Path, 100)
	if err != nil {
		t.Fatalf("AllMediaItems(cursor) failed: %v", err)
	}
	for _, it := range rest {
		if it.Path <= first[len(first)-1].Path {
			t.Errorf("cursor did not advance: %s", it.Path)
		}
		if it.Type == mediatypes.TypeAlbum {
			t.Errorf("album leaked into media paging: %s", it.Path)
		}
	}
	if got := len(first) + len(rest); got != 5 {
		t.Errorf("paged %d media, want 5", got)
	}
}

func TestMediaNeedingThumbs(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	insertTestItems(t, m,
		Item{Name: "fresh.jpg", Path: "fresh.jpg", Type: mediatypes.TypePhoto, Mtime: now},
		Item{Name: "stale.jpg", Path: "stale.jpg", Type: mediatypes.TypePhoto, Mtime: now},
		Item{Name: "done.jpg", Path: "done.jpg", Type: mediatypes.TypePhoto, Mtime: now},
		Item{Name: "failed.jpg", Path: "failed.jpg", Type: mediatypes.TypePhoto, Mtime: now},
	)
	// stale: generated against an older source mtime.
	if err := m.SetThumbStatus(ctx, "stale.jpg", now-5000, ThumbExists); err != nil {
		t.Fatal(err)
	}
	if err := m.SetThumbStatus(ctx, "done.jpg", now, ThumbExists); err != nil {
		t.Fatal(err)
	}
	if err := m.SetThumbStatus(ctx, "failed.jpg", now, ThumbFailed); err != nil {
		t.Fatal(err)
	}

	items, err := m.MediaNeedingThumbs(ctx, "", 100)
	if err != nil {
		t.Fatalf("MediaNeedingThumbs() failed: %v", err)
	}
	got := map[string]bool{}
	for _, it := range items {
		got[it.Path] = true
	}
	for _, want := range []string{"fresh.jpg", "stale.jpg", "failed.jpg"} {
		if !got[want] {
			t.Errorf("missing %s in %v", want, got)
		}
	}
	if got["done.jpg"] {
		t.Error("done.jpg should not need a thumbnail")
	}
}

func TestParseSort(t *testing.T) {
	t.Parallel()

	if s, err := ParseSort(""); err != nil || s != SortSmart {
		t.Errorf("ParseSort(\"\") = %v, %v; want smart default", s, err)
	}
	if _, err := ParseSort("bogus"); err == nil {
		t.Error("ParseSort(bogus) should fail")
	}
	for _, valid := range []string{"name_asc", "name_desc", "mtime_asc", "mtime_desc", "viewed_desc", "smart"} {
		if _, err := ParseSort(valid); err != nil {
			t.Errorf("ParseSort(%s) failed: %v", valid, err)
		}
	}
}
