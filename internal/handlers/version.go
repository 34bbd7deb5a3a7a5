package handlers

import (
	"net/http"

	"media-gallery/internal/startup"
)

// GetVersion returns build information injected at link time.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, startup.GetBuildInfo())
}
