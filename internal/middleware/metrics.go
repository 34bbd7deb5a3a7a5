package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-gallery/internal/metrics"
)

// MetricsConfig lists paths excluded from request metrics.
type MetricsConfig struct {
	SkipPaths []string
}

// DefaultMetricsConfig keeps the scrape and probe endpoints out of their
// own numbers.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics records request counts, durations, and the in-flight gauge.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newResponseWriter(w)
			start := time.Now()
			next.ServeHTTP(wrapped, r)

			route := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// pathRoutes collapses endpoints whose tail is a media path, a pattern,
// or an id. Without this every file in the library becomes its own label
// value.
var pathRoutes = map[string]string{
	"/api/browse/":      "/api/browse/{path}",
	"/static/":          "/static/{path}",
	"/thumbs/":          "/thumbs/{path}",
	"/api/jobs/":        "/api/jobs/{id}",
	"/api/cache/clear/": "/api/cache/clear/{pattern}",
}

func normalizePath(path string) string {
	for prefix, route := range pathRoutes {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return route
		}
	}
	return path
}
