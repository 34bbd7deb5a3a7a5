package handlers

import (
	"net/http"
	"time"

	"media-gallery/internal/logging"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// healthResponse is what orchestrator probes and the UI footer read.
type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Database  databaseHealth `json:"database"`
}

type databaseHealth struct {
	Items int64 `json:"items"`
	FTS   int64 `json:"fts"`
}

// GetHealth reports liveness plus the index row counts. A database error
// is the one condition that makes this endpoint answer 503: Redis being
// down degrades features but the gallery still serves.
func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	items, err := h.db.CountItems(ctx)
	if err == nil {
		resp.Database.Items = items
		resp.Database.FTS, err = h.db.CountFTS(ctx)
	}
	if err != nil {
		logging.Error("Health check database error: %v", err)
		resp.Status = statusUnhealthy
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
