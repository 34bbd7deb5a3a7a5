package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"media-gallery/internal/errs"
	"media-gallery/internal/logging"
	"media-gallery/internal/middleware"
)

// maxBodyBytes caps request bodies. The largest legitimate body is a
// settings map, which is tiny.
const maxBodyBytes = 1 << 20

// errorBody is the JSON error envelope shared by every endpoint.
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	Details   string `json:"details,omitempty"`
}

// writeJSON encodes v with the given status. Encode errors are logged;
// the status line is already on the wire by then.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode JSON response: %v", err)
	}
}

// writeError maps a domain error onto its status code and typed body.
// Client mistakes log at debug; everything 5xx logs as an error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := errs.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logging.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Debug("%s %s rejected: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorBody{
		Code:      string(kind),
		Message:   errs.MessageOf(err),
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// readJSON decodes the request body into dst. Oversized, malformed, or
// empty bodies come back as validation errors.
func readJSON(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errs.E(errs.ValidationError, "invalid request body", err)
	}
	return nil
}

// queryInt parses an integer query parameter, returning def when the
// parameter is absent or unparseable.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
