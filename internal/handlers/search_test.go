package handlers

import (
	"net/http"
	"testing"

	"media-gallery/internal/database"
	"media-gallery/internal/mediatypes"
)

func TestSearchFindsSeededMedia(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	seedItems(t, env.db, []database.Item{
		{Name: "trips", Path: "trips", Type: mediatypes.TypeAlbum, Mtime: 1000},
		{Name: "beach.jpg", Path: "trips/beach.jpg", Type: mediatypes.TypePhoto, Mtime: 2000},
		{Name: "city.jpg", Path: "trips/city.jpg", Type: mediatypes.TypePhoto, Mtime: 3000},
	})

	w := env.get(t, "/api/search?q=beach")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", w.Code, w.Body.String())
	}
	var resp struct {
		Query   string `json:"query"`
		Results []struct {
			Data struct {
				Path string `json:"path"`
			} `json:"data"`
		} `json:"results"`
		Page         int `json:"page"`
		TotalResults int `json:"totalResults"`
		Limit        int `json:"limit"`
	}
	decodeJSON(t, w, &resp)
	if resp.Query != "beach" {
		t.Errorf("query echoed as %q", resp.Query)
	}
	if resp.TotalResults != 1 || len(resp.Results) != 1 {
		t.Fatalf("results = %+v, want exactly beach.jpg", resp)
	}
	if resp.Results[0].Data.Path != "trips/beach.jpg" {
		t.Errorf("hit = %q, want trips/beach.jpg", resp.Results[0].Data.Path)
	}
	if resp.Limit == 0 || resp.Page != 1 {
		t.Errorf("page/limit = %d/%d, want defaults echoed", resp.Page, resp.Limit)
	}
}

func TestSearchRejectsUnsearchableQuery(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	seedItems(t, env.db, []database.Item{
		{Name: "beach.jpg", Path: "beach.jpg", Type: mediatypes.TypePhoto, Mtime: 2000},
	})

	wantErrorCode(t, env.get(t, "/api/search?q=%3F%3F%3F"), http.StatusBadRequest, "INVALID_QUERY")
	wantErrorCode(t, env.get(t, "/api/search"), http.StatusBadRequest, "INVALID_QUERY")
}

func TestSearchUnavailableWhileIndexEmpty(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	wantErrorCode(t, env.get(t, "/api/search?q=beach"), http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE")
}
