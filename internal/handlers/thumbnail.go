package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"media-gallery/internal/errs"
	"media-gallery/internal/media"
	"media-gallery/internal/relpath"
	"media-gallery/internal/thumbnailer"
)

// thumbCacheControl suits content that listings cache-bust by mtime: a
// week of client cache, never revalidated.
const thumbCacheControl = "public, max-age=604800, immutable"

// headerThumbStatus tells polling clients why they got a placeholder.
const headerThumbStatus = "X-Thumb-Status"

// GetThumbnail serves the mirrored thumbnail for one media path. A
// missing thumbnail jumps the generation queue and answers 202 with a
// neutral placeholder; a permanent failure answers 500 with a broken
// tile. Both carry X-Thumb-Status so clients can stop polling.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	rel, err := relpath.New(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rel.IsRoot() {
		writeError(w, r, errs.Ef(errs.ValidationError, "path is required"))
		return
	}

	res := h.thumbs.EnsureThumbnailExists(r.Context(), rel.Under(h.config.PhotosDir), rel)
	switch res.State {
	case thumbnailer.StateExists:
		h.serveThumbFile(w, r, res.ThumbPath)
	case thumbnailer.StateFailed:
		writePlaceholder(w, http.StatusInternalServerError, "failed", media.PlaceholderBroken())
	default:
		writePlaceholder(w, http.StatusAccepted, "processing", media.PlaceholderProcessing())
	}
}

// serveThumbFile streams a mirrored thumbnail with conditional-request
// support. ServeContent handles If-Modified-Since and If-None-Match once
// the ETag is set.
func (h *Handlers) serveThumbFile(w http.ResponseWriter, r *http.Request, abs string) {
	f, err := os.Open(abs)
	if err != nil {
		// Deleted between the existence check and here; the reconciler
		// will regenerate it.
		writePlaceholder(w, http.StatusAccepted, "processing", media.PlaceholderProcessing())
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		writeError(w, r, errs.E(errs.Internal, "read thumbnail", err))
		return
	}

	w.Header().Set("Cache-Control", thumbCacheControl)
	w.Header().Set("ETag", fmt.Sprintf("\"%x-%x\"", fi.ModTime().UnixNano(), fi.Size()))
	http.ServeContent(w, r, filepath.Base(abs), fi.ModTime(), f)
}

// writePlaceholder sends a generated tile in place of a real thumbnail.
// Placeholders must not stick in caches or the client would never see
// the finished thumbnail.
func writePlaceholder(w http.ResponseWriter, status int, state string, png []byte) {
	w.Header().Set("Content-Type", media.PlaceholderContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(headerThumbStatus, state)
	w.WriteHeader(status)
	_, _ = w.Write(png)
}
