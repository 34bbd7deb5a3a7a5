package handlers

import (
	"net/http"

	"media-gallery/internal/database"
)

const (
	coversDefaultLimit = 100
	coversMaxLimit     = 500
)

// coversResponse carries every stored album cover in one shot, for
// gallery fronts small enough to skip cursor paging.
type coversResponse struct {
	Covers []database.Cover `json:"covers"`
	Total  int64            `json:"total"`
}

// coversCursorResponse is one page of covers. NextCursor is absent on
// the last page.
type coversCursorResponse struct {
	Covers     []database.Cover `json:"covers"`
	NextCursor int              `json:"nextCursor,omitempty"`
	Total      int64            `json:"total"`
}

// AlbumCovers returns all precomputed covers ordered by album path.
func (h *Handlers) AlbumCovers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := h.db.CountAlbumCovers(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	covers, err := h.db.AlbumCoversPage(ctx, 0, int(total))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if covers == nil {
		covers = []database.Cover{}
	}
	writeJSON(w, http.StatusOK, coversResponse{Covers: covers, Total: total})
}

// AlbumCoversCursor returns one page of covers. The cursor is a row
// offset, zero by default; the page size clamps to 500.
func (h *Handlers) AlbumCoversCursor(w http.ResponseWriter, r *http.Request) {
	cursor := queryInt(r, "cursor", 0)
	if cursor < 0 {
		cursor = 0
	}
	limit := queryInt(r, "limit", coversDefaultLimit)
	if limit <= 0 {
		limit = coversDefaultLimit
	}
	if limit > coversMaxLimit {
		limit = coversMaxLimit
	}

	ctx := r.Context()
	total, err := h.db.CountAlbumCovers(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	covers, err := h.db.AlbumCoversPage(ctx, cursor, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if covers == nil {
		covers = []database.Cover{}
	}

	resp := coversCursorResponse{Covers: covers, Total: total}
	if next := cursor + len(covers); int64(next) < total {
		resp.NextCursor = next
	}
	writeJSON(w, http.StatusOK, resp)
}
