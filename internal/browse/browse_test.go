package browse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"media-gallery/internal/cache"
	"media-gallery/internal/database"
	"media-gallery/internal/errs"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/relpath"
)

func setupBrowse(t testing.TB, cfg Config) (*Service, *database.Manager, *miniredis.Miniredis) {
	t.Helper()

	db, err := database.Open(context.Background(), t.TempDir(), database.Options{})
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	c, err := cache.New("redis://"+mr.Addr(), 200)
	if err != nil {
		t.Fatalf("cache.New() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if cfg.MediaRoot == "" {
		cfg.MediaRoot = t.TempDir()
	}
	return New(db, c, cfg), db, mr
}

func seedItems(t testing.TB, db *database.Manager, items []database.Item) {
	t.Helper()
	ctx := context.Background()
	batch, err := db.Gallery.BeginBatch(ctx)
	if err != nil {
		t.Fatalf("BeginBatch() failed: %v", err)
	}
	for i := range items {
		if _, err := db.UpsertItem(batch.Tx, &items[i]); err != nil {
			t.Fatalf("UpsertItem(%s) failed: %v", items[i].Path, err)
		}
	}
	if err := batch.End(nil); err != nil {
		t.Fatalf("batch.End() failed: %v", err)
	}
}

func mustRel(t testing.TB, s string) relpath.Path {
	t.Helper()
	rel, err := relpath.New(s)
	if err != nil {
		t.Fatalf("relpath.New(%q): %v", s, err)
	}
	return rel
}

func pagePaths(l *Listing) []string {
	out := make([]string, len(l.Items))
	for i, e := range l.Items {
		out[i] = e.Data.Path
	}
	return out
}

func TestListDirectoryPagination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, db, _ := setupBrowse(t, Config{})
	seedItems(t, db, []database.Item{
		{Name: "beta", Path: "beta", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "alpha", Path: "alpha", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "p1.jpg", Path: "p1.jpg", Type: mediatypes.TypePhoto, Mtime: 1000, Width: 10, Height: 10},
		{Name: "p2.jpg", Path: "p2.jpg", Type: mediatypes.TypePhoto, Mtime: 1000, Width: 10, Height: 10},
		{Name: "p3.jpg", Path: "p3.jpg", Type: mediatypes.TypePhoto, Mtime: 1000, Width: 10, Height: 10},
	})

	l, err := svc.ListDirectory(ctx, relpath.Root, 1, 2, "u1", "name_asc")
	if err != nil {
		t.Fatalf("ListDirectory() failed: %v", err)
	}
	if got := pagePaths(l); got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("page 1 = %v, want albums alpha, beta first", got)
	}
	if l.TotalResults != 5 || l.TotalPages != 3 || l.Page != 1 {
		t.Errorf("counts = %d results %d pages page %d, want 5/3/1", l.TotalResults, l.TotalPages, l.Page)
	}

	l, err = svc.ListDirectory(ctx, relpath.Root, 3, 2, "u1", "name_asc")
	if err != nil {
		t.Fatalf("ListDirectory() page 3 failed: %v", err)
	}
	if got := pagePaths(l); len(got) != 1 || got[0] != "p3.jpg" {
		t.Errorf("page 3 = %v, want [p3.jpg]", got)
	}
}

func TestListDirectoryEntryShape(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, db, _ := setupBrowse(t, Config{})
	seedItems(t, db, []database.Item{
		{Name: "beach day", Path: "beach day", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "a b.jpg", Path: "beach day/a b.jpg", Type: mediatypes.TypePhoto, Mtime: 42, Width: 800, Height: 600},
	})

	l, err := svc.ListDirectory(ctx, mustRel(t, "beach day"), 1, 10, "", "")
	if err != nil {
		t.Fatalf("ListDirectory() failed: %v", err)
	}
	if len(l.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(l.Items))
	}
	e := l.Items[0]
	if e.Type != "photo" {
		t.Errorf("type = %q, want photo", e.Type)
	}
	if e.Data.OriginalURL != "/static/beach%20day/a%20b.jpg" {
		t.Errorf("originalUrl = %q", e.Data.OriginalURL)
	}
	if e.Data.ThumbnailURL != "/api/thumbnail?path=beach+day%2Fa+b.jpg&v=42" {
		t.Errorf("thumbnailUrl = %q", e.Data.ThumbnailURL)
	}
	if e.Data.Width != 800 || e.Data.Height != 600 {
		t.Errorf("dimensions = %dx%d, want 800x600", e.Data.Width, e.Data.Height)
	}
}

func TestListDirectoryUnknownPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, db, _ := setupBrowse(t, Config{})
	seedItems(t, db, []database.Item{
		{Name: "a.jpg", Path: "a.jpg", Type: mediatypes.TypePhoto, Mtime: 1000},
	})

	if _, err := svc.ListDirectory(ctx, mustRel(t, "nope"), 1, 10, "", ""); errs.KindOf(err) != errs.PathNotFound {
		t.Errorf("unknown dir error = %v, want PATH_NOT_FOUND", err)
	}
	// A media path is not browsable either.
	if _, err := svc.ListDirectory(ctx, mustRel(t, "a.jpg"), 1, 10, "", ""); errs.KindOf(err) != errs.PathNotFound {
		t.Errorf("file path error = %v, want PATH_NOT_FOUND", err)
	}
}

func TestListDirectoryRejectsOversizedLimit(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupBrowse(t, Config{HardCap: 10})
	_, err := svc.ListDirectory(context.Background(), relpath.Root, 1, 11, "", "")
	if errs.KindOf(err) != errs.ValidationError {
		t.Errorf("error = %v, want VALIDATION_ERROR", err)
	}
}

func TestListDirectoryRejectsUnknownSort(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupBrowse(t, Config{})
	_, err := svc.ListDirectory(context.Background(), relpath.Root, 1, 10, "", "size_desc")
	if errs.KindOf(err) != errs.ValidationError {
		t.Errorf("error = %v, want VALIDATION_ERROR", err)
	}
}

func TestViewedDescPutsRecentAlbumsFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, db, _ := setupBrowse(t, Config{})
	seedItems(t, db, []database.Item{
		{Name: "alpha", Path: "alpha", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "beta", Path: "beta", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "gamma", Path: "gamma", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "z.jpg", Path: "z.jpg", Type: mediatypes.TypePhoto, Mtime: 1000, Width: 1, Height: 1},
	})
	if err := db.TouchViewTimes(ctx, "u1", []string{"gamma"}, 500); err != nil {
		t.Fatal(err)
	}
	if err := db.TouchViewTimes(ctx, "u1", []string{"beta"}, 900); err != nil {
		t.Fatal(err)
	}

	l, err := svc.ListDirectory(ctx, relpath.Root, 1, 10, "u1", "viewed_desc")
	if err != nil {
		t.Fatalf("ListDirectory() failed: %v", err)
	}
	want := []string{"beta", "gamma", "alpha", "z.jpg"}
	got := pagePaths(l)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if l.Items[0].Data.LastViewedAt != 900 {
		t.Errorf("beta lastViewedAt = %d, want 900", l.Items[0].Data.LastViewedAt)
	}

	// Another user's history does not leak in.
	l, err = svc.ListDirectory(ctx, relpath.Root, 1, 10, "u2", "viewed_desc")
	if err != nil {
		t.Fatalf("ListDirectory() for u2 failed: %v", err)
	}
	if got := pagePaths(l); got[0] != "alpha" {
		t.Errorf("u2 order = %v, want name order", got)
	}
}

func TestSmartSortUsesHistoryInSubdirectories(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, db, _ := setupBrowse(t, Config{})
	seedItems(t, db, []database.Item{
		{Name: "trips", Path: "trips", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "oslo", Path: "trips/oslo", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "rome", Path: "trips/rome", Type: mediatypes.TypeAlbum, Mtime: 1000},
	})
	if err := db.TouchViewTimes(ctx, "u1", []string{"trips/rome"}, 700); err != nil {
		t.Fatal(err)
	}

	l, err := svc.ListDirectory(ctx, mustRel(t, "trips"), 1, 10, "u1", "smart")
	if err != nil {
		t.Fatalf("ListDirectory() failed: %v", err)
	}
	if got := pagePaths(l); got[0] != "trips/rome" || got[1] != "trips/oslo" {
		t.Errorf("smart subdir order = %v, want viewed album first", got)
	}

	// At root, smart does not consult history; old albums sort by name.
	l, err = svc.ListDirectory(ctx, relpath.Root, 1, 10, "u1", "smart")
	if err != nil {
		t.Fatalf("ListDirectory() root failed: %v", err)
	}
	if got := pagePaths(l); got[0] != "trips" {
		t.Errorf("smart root order = %v", got)
	}
}

func TestUpdateViewTimeTouchesAncestorChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, db, _ := setupBrowse(t, Config{})
	if err := svc.UpdateViewTime(ctx, "u1", mustRel(t, "trips/rome/img.jpg")); err != nil {
		t.Fatalf("UpdateViewTime() failed: %v", err)
	}

	viewed, err := db.LastViewedForPaths(ctx, "u1", []string{"trips/rome/img.jpg", "trips/rome", "trips"})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"trips/rome/img.jpg", "trips/rome", "trips"} {
		if viewed[p] == 0 {
			t.Errorf("path %q not touched", p)
		}
	}
}

func TestUpdateViewTimeRejectsRoot(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupBrowse(t, Config{})
	err := svc.UpdateViewTime(context.Background(), "u1", relpath.Root)
	if errs.KindOf(err) != errs.ValidationError {
		t.Errorf("error = %v, want VALIDATION_ERROR", err)
	}
}

func TestUpdateViewTimeDropsCachedListingsUnderParent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, mr := setupBrowse(t, Config{})
	keep := "route:u1:/api/browse/other?page=1"
	for _, k := range []string{
		"route:u1:/api/browse/trips?page=1",
		"route:anonymous:/api/browse/trips?page=2&sort=smart",
		keep,
	} {
		if err := mr.Set(k, "cached"); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.UpdateViewTime(ctx, "u1", mustRel(t, "trips/rome")); err != nil {
		t.Fatalf("UpdateViewTime() failed: %v", err)
	}

	if mr.Exists("route:u1:/api/browse/trips?page=1") {
		t.Error("u1 trips listing still cached")
	}
	if mr.Exists("route:anonymous:/api/browse/trips?page=2&sort=smart") {
		t.Error("anonymous trips listing still cached")
	}
	if !mr.Exists(keep) {
		t.Error("unrelated listing was dropped")
	}
}

func TestDimensionsProbedAndCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := t.TempDir()
	svc, db, mr := setupBrowse(t, Config{MediaRoot: root})
	if err := os.WriteFile(filepath.Join(root, "p.jpg"), []byte("not a real image"), 0o644); err != nil {
		t.Fatal(err)
	}
	seedItems(t, db, []database.Item{
		{Name: "p.jpg", Path: "p.jpg", Type: mediatypes.TypePhoto, Mtime: 77},
	})

	l, err := svc.ListDirectory(ctx, relpath.Root, 1, 10, "", "name_asc")
	if err != nil {
		t.Fatalf("ListDirectory() failed: %v", err)
	}
	// An unreadable image probes to the fallback, which still gets cached
	// so the next listing skips the probe.
	if l.Items[0].Data.Width != 1920 || l.Items[0].Data.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want fallback 1920x1080", l.Items[0].Data.Width, l.Items[0].Data.Height)
	}
	if got, err := mr.Get(cache.DimKey("p.jpg", 77)); err != nil || got != "1920x1080" {
		t.Errorf("cached dims = %q, %v", got, err)
	}
}

func TestParseDims(t *testing.T) {
	t.Parallel()

	if d, ok := parseDims("800x600"); !ok || d.Width != 800 || d.Height != 600 {
		t.Errorf("parseDims(800x600) = %+v, %v", d, ok)
	}
	for _, bad := range []string{"", "800", "800x", "ax600", "800xb"} {
		if _, ok := parseDims(bad); ok {
			t.Errorf("parseDims(%q) accepted", bad)
		}
	}
}
