package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// HeaderRequestID is echoed on every response. Incoming values are
// trusted as-is so a reverse proxy can thread its own ids through.
const HeaderRequestID = "X-Request-Id"

// HeaderUserID carries the opaque per-user identity set by the external
// auth layer. Absent means anonymous.
const HeaderUserID = "X-User-Id"

// RequestID assigns every request an id, stores it in the context, and
// echoes it in the response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// UserID extracts the caller's identity from the request.
func UserID(r *http.Request) string {
	return r.Header.Get(HeaderUserID)
}
