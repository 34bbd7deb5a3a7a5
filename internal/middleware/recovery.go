package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"media-gallery/internal/errs"
	"media-gallery/internal/logging"
)

// Recovery converts handler panics into INTERNAL_ERROR responses. The
// net/http abort sentinel passes through so deliberate connection drops
// keep working.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := newResponseWriter(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			id := GetRequestID(r.Context())
			logging.Error("Panic serving %s %s (request %s): %v\n%s",
				r.Method, r.URL.Path, id, rec, debug.Stack())

			if wrapped.wroteHeader {
				return
			}
			wrapped.Header().Set("Content-Type", "application/json")
			wrapped.WriteHeader(errs.HTTPStatus(errs.Internal))
			body, _ := json.Marshal(map[string]string{
				"code":      string(errs.Internal),
				"message":   "internal server error",
				"requestId": id,
			})
			if _, err := wrapped.Write(body); err != nil {
				logging.Debug("Failed to write recovery response: %v", err)
			}
		}()
		next.ServeHTTP(wrapped, r)
	})
}
