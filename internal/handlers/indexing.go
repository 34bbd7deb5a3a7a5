package handlers

import (
	"net/http"
)

// GetIndexing reports the index status row: building or complete,
// progress counters, and the last rebuild error if any.
func (h *Handlers) GetIndexing(w http.ResponseWriter, r *http.Request) {
	status, err := h.db.GetIndexStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
