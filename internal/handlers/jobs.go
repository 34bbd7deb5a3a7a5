package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"media-gallery/internal/errs"
	"media-gallery/internal/jobs"
	"media-gallery/internal/relpath"
)

type captionRequest struct {
	Path string `json:"path"`
}

// SubmitCaption enqueues an AI captioning job for one indexed media
// file. Repeated submissions for the same path attach to the active job
// instead of queueing duplicates.
func (h *Handlers) SubmitCaption(w http.ResponseWriter, r *http.Request) {
	var req captionRequest
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

	it, err := h.db.GetItemByPath(r.Context(), rel.String())
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, r, errs.Ef(errs.PathNotFound, "no such media: %s", rel))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if it.IsAlbum() {
		writeError(w, r, errs.Ef(errs.ValidationError, "cannot caption a directory: %s", rel))
		return
	}

	id, err := h.queue.EnqueueOrAttach(r.Context(), jobs.StreamCaptioning,
		jobs.CaptionFingerprint(rel.String()), jobs.CaptionPayload{Path: rel.String()})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": id})
}

// GetJob reports one job's status by id. Finished statuses age out, so
// old ids answer 404.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	status, err := h.queue.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
