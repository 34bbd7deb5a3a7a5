package search

import (
	"context"
	"path"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"media-gallery/internal/browse"
	"media-gallery/internal/cache"
	"media-gallery/internal/database"
	"media-gallery/internal/errs"
	"media-gallery/internal/mediatypes"
	"media-gallery/internal/ngram"
)

func setupSearch(t testing.TB) (*Service, *database.Manager) {
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

	decor := browse.New(db, c, browse.Config{MediaRoot: t.TempDir()})
	return New(db, decor, 0), db
}

// seedSearchable writes items plus their FTS tokens the way the indexer
// does: n-grams of the extension-less path and a type label.
func seedSearchable(t testing.TB, db *database.Manager, items []database.Item) {
	t.Helper()
	ctx := context.Background()
	batch, err := db.Gallery.BeginBatch(ctx)
	if err != nil {
		t.Fatalf("BeginBatch() failed: %v", err)
	}
	for i := range items {
		id, err := db.UpsertItem(batch.Tx, &items[i])
		if err != nil {
			t.Fatalf("UpsertItem(%s) failed: %v", items[i].Path, err)
		}
		name := strings.TrimSuffix(items[i].Path, path.Ext(items[i].Path))
		if err := db.UpsertItemFTS(batch.Tx, id, ngram.Tokens(name, string(items[i].Type))); err != nil {
			t.Fatalf("UpsertItemFTS(%s) failed: %v", items[i].Path, err)
		}
	}
	if err := batch.End(nil); err != nil {
		t.Fatalf("batch.End() failed: %v", err)
	}
}

func resultPaths(r *Results) []string {
	out := make([]string, len(r.Results))
	for i, e := range r.Results {
		out[i] = e.Data.Path
	}
	return out
}

func TestSearchMatchesSubstrings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, db := setupSearch(t)
	seedSearchable(t, db, []database.Item{
		{Name: "beach", Path: "beach", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "sunset.jpg", Path: "beach/sunset.jpg", Type: mediatypes.TypePhoto, Mtime: 1000, Width: 1, Height: 1},
		{Name: "night.mp4", Path: "city/night.mp4", Type: mediatypes.TypeVideo, Mtime: 1000, Width: 1, Height: 1},
	})

	r, err := svc.Search(ctx, "each", 1, 10)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if r.TotalResults != 2 {
		t.Fatalf("total = %d, want 2 (album + photo under it)", r.TotalResults)
	}
	if got := resultPaths(r); got[0] != "beach" || got[1] != "beach/sunset.jpg" {
		t.Errorf("results = %v, want album first", got)
	}
	if r.Results[0].Type != "album" || r.Results[1].Type != "photo" {
		t.Errorf("types = %s, %s", r.Results[0].Type, r.Results[1].Type)
	}
	if r.Results[1].Data.OriginalURL == "" {
		t.Error("media hit missing originalUrl")
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	svc, db := setupSearch(t)
	seedSearchable(t, db, []database.Item{
		{Name: "Beach.jpg", Path: "Beach.jpg", Type: mediatypes.TypePhoto, Mtime: 1, Width: 1, Height: 1},
	})

	r, err := svc.Search(context.Background(), "BEACH", 1, 10)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if r.TotalResults != 1 {
		t.Errorf("total = %d, want 1", r.TotalResults)
	}
}

func TestSearchSuppressesNestedAlbums(t *testing.T) {
	t.Parallel()

	svc, db := setupSearch(t)
	seedSearchable(t, db, []database.Item{
		{Name: "trips", Path: "trips", Type: mediatypes.TypeAlbum, Mtime: 1},
		{Name: "rome", Path: "trips/rome", Type: mediatypes.TypeAlbum, Mtime: 1},
		{Name: "x.jpg", Path: "trips/rome/x.jpg", Type: mediatypes.TypePhoto, Mtime: 1, Width: 1, Height: 1},
	})

	r, err := svc.Search(context.Background(), "trips", 1, 10)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	got := resultPaths(r)
	for _, p := range got {
		if p == "trips/rome" {
			t.Errorf("results = %v, nested album should be suppressed", got)
		}
	}
	if r.TotalResults != 2 || got[0] != "trips" {
		t.Errorf("results = %v (total %d), want [trips trips/rome/x.jpg]", got, r.TotalResults)
	}
}

func TestSearchPaginates(t *testing.T) {
	t.Parallel()

	svc, db := setupSearch(t)
	var items []database.Item
	for _, n := range []string{"pic1.jpg", "pic2.jpg", "pic3.jpg", "pic4.jpg", "pic5.jpg"} {
		items = append(items, database.Item{Name: n, Path: n, Type: mediatypes.TypePhoto, Mtime: 1, Width: 1, Height: 1})
	}
	seedSearchable(t, db, items)

	r, err := svc.Search(context.Background(), "pic", 2, 2)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(r.Results) != 2 || r.TotalResults != 5 || r.TotalPages != 3 || r.Page != 2 || r.Limit != 2 {
		t.Errorf("page shape = %d results, total %d, pages %d, page %d, limit %d",
			len(r.Results), r.TotalResults, r.TotalPages, r.Page, r.Limit)
	}
}

func TestSearchRejectsUnsearchableQueries(t *testing.T) {
	t.Parallel()

	svc, db := setupSearch(t)
	seedSearchable(t, db, []database.Item{
		{Name: "a.jpg", Path: "a.jpg", Type: mediatypes.TypePhoto, Mtime: 1, Width: 1, Height: 1},
	})

	for _, q := range []string{"", "   ", `()[]{}"'.*?!:^~+-,`, "///"} {
		if _, err := svc.Search(context.Background(), q, 1, 10); errs.KindOf(err) != errs.InvalidQuery {
			t.Errorf("Search(%q) error = %v, want INVALID_QUERY", q, err)
		}
	}
}

func TestSearchUnavailableOnEmptyIndex(t *testing.T) {
	t.Parallel()

	svc, db := setupSearch(t)
	if _, err := svc.Search(context.Background(), "beach", 1, 10); errs.KindOf(err) != errs.SearchUnavailable {
		t.Errorf("empty index error = %v, want SEARCH_UNAVAILABLE", err)
	}

	// Items without FTS rows still count as unavailable: the FTS side is
	// what answers queries.
	ctx := context.Background()
	batch, err := db.Gallery.BeginBatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	it := database.Item{Name: "a.jpg", Path: "a.jpg", Type: mediatypes.TypePhoto, Mtime: 1}
	if _, err := db.UpsertItem(batch.Tx, &it); err != nil {
		t.Fatal(err)
	}
	if err := batch.End(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Search(ctx, "beach", 1, 10); errs.KindOf(err) != errs.SearchUnavailable {
		t.Errorf("fts-empty error = %v, want SEARCH_UNAVAILABLE", err)
	}
}

func TestSearchRejectsOversizedLimit(t *testing.T) {
	t.Parallel()

	svc, db := setupSearch(t)
	seedSearchable(t, db, []database.Item{
		{Name: "a.jpg", Path: "a.jpg", Type: mediatypes.TypePhoto, Mtime: 1, Width: 1, Height: 1},
	})

	if _, err := svc.Search(context.Background(), "a", 1, 10001); errs.KindOf(err) != errs.ValidationError {
		t.Errorf("error = %v, want VALIDATION_ERROR", err)
	}
}

func TestSearchEnrichesAlbumCovers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, db := setupSearch(t)
	seedSearchable(t, db, []database.Item{
		{Name: "beach", Path: "beach", Type: mediatypes.TypeAlbum, Mtime: 1000},
	})
	cv := &database.Cover{AlbumPath: "beach", CoverPath: "beach/sunset.jpg", Width: 640, Height: 480, Mtime: 55}
	if err := db.SetAlbumCover(ctx, "beach", cv); err != nil {
		t.Fatal(err)
	}

	r, err := svc.Search(ctx, "beach", 1, 10)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	got := r.Results[0].Data
	if got.CoverPath != "beach/sunset.jpg" || !strings.Contains(got.ThumbnailURL, "v=55") {
		t.Errorf("album hit = %+v, want cover with mtime cache-buster", got)
	}
}
