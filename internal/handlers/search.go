package handlers

import (
	"net/http"
)

// Search runs a full-text query over the index. Queries with no
// searchable characters answer 400; an empty index answers 503 so the
// route cache can keep serving the last good result during rebuilds.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.search.Search(r.Context(), r.URL.Query().Get("q"),
		queryInt(r, "page", 1), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
