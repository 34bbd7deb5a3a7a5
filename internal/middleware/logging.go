package middleware

import (
	"net/http"
	"strings"
	"time"

	"media-gallery/internal/logging"
)

// responseWriter captures status and size for the access log and lets
// Recovery know whether headers already went out.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush keeps SSE working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingConfig controls which requests reach the access log.
type LoggingConfig struct {
	SkipPaths       []string
	SkipExtensions  []string
	LogStaticFiles  bool
	LogHealthChecks bool
}

// DefaultLoggingConfig skips asset noise and keeps health checks.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipExtensions: []string{
			".css", ".js", ".ico", ".png", ".jpg", ".jpeg",
			".gif", ".svg", ".webp", ".woff", ".woff2", ".ttf",
		},
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger writes one W3C Extended Log Format line per request:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes
//	time-taken cs(Content-Encoding) cs(User-Agent) cs(Referer) x-request-id
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			logAccess(r, wrapped, time.Since(start))
		})
	}
}

func logAccess(r *http.Request, rw *responseWriter, duration time.Duration) {
	now := time.Now().UTC()

	query := sanitizeLogField(r.URL.RawQuery)
	if query == "" {
		query = "-"
	}
	encoding := rw.Header().Get("Content-Encoding")
	if encoding == "" {
		encoding = "-"
	}
	agent := sanitizeLogField(r.Header.Get("User-Agent"))
	if agent == "" {
		agent = "-"
	} else {
		agent = quoteW3CField(agent)
	}
	referer := sanitizeLogField(r.Header.Get("Referer"))
	if referer == "" {
		referer = "-"
	}
	requestID := rw.Header().Get(HeaderRequestID)
	if requestID == "" {
		requestID = "-"
	}

	logging.Printf("%s %s %s %s %s %s %d %d %d %s %s %s %s",
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		sanitizeLogField(clientIP(r)),
		sanitizeLogField(r.Method),
		sanitizeLogField(r.URL.Path),
		query,
		rw.statusCode,
		rw.bytesWritten,
		duration.Milliseconds(),
		encoding,
		agent,
		referer,
		requestID,
	)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, skipPath := range config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	if !config.LogHealthChecks && healthCheckPaths[path] {
		return true
	}
	if !config.LogStaticFiles {
		for _, ext := range config.SkipExtensions {
			if strings.HasSuffix(strings.ToLower(path), ext) {
				return true
			}
		}
	}
	return false
}

// sanitizeLogField strips control characters so a crafted path or header
// cannot forge log lines or inject terminal escapes.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r == '\x00' || r == '\x1b':
			continue
		case r < 0x20 && r != '\t':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// clientIP prefers proxy headers, falling back to the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// quoteW3CField quotes values containing separators, doubling embedded
// quotes per the W3C rules.
func quoteW3CField(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
