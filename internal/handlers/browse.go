package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"media-gallery/internal/errs"
	"media-gallery/internal/middleware"
	"media-gallery/internal/relpath"
)

// Browse lists one page of a directory. The empty path is the media
// root; unknown and non-directory paths answer 404.
func (h *Handlers) Browse(w http.ResponseWriter, r *http.Request) {
	rel, err := relpath.New(mux.Vars(r)["path"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	listing, err := h.browse.ListDirectory(r.Context(), rel,
		queryInt(r, "page", 1), queryInt(r, "limit", 0),
		middleware.UserID(r), q.Get("sort"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type viewedRequest struct {
	Path string `json:"path"`
}

// MarkViewed records that the requesting user opened a path, feeding the
// viewed_desc and smart sort orders.
func (h *Handlers) MarkViewed(w http.ResponseWriter, r *http.Request) {
	var req viewedRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Path == "" {
		writeError(w, r, errs.Ef(errs.ValidationError, "path is required"))
		return
	}

	rel, err := relpath.New(req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.browse.UpdateViewTime(r.Context(), middleware.UserID(r), rel); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
