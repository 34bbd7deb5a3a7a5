package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"media-gallery/internal/cache"
	"media-gallery/internal/logging"
	"media-gallery/internal/metrics"
)

// Strategy selects how a cached route balances freshness against latency.
type Strategy int

const (
	// CacheFirst serves a cached copy when present and only then asks the
	// handler. Listings tolerate short staleness; tag invalidation keeps
	// the window tight.
	CacheFirst Strategy = iota
	// NetworkFirst always asks the handler and falls back to the cached
	// copy on a 5xx, so search keeps answering while the index rebuilds.
	NetworkFirst
	// StaleWhileRevalidate serves whatever is cached immediately and
	// refreshes expired copies in the background.
	StaleWhileRevalidate
)

// swrStaleFactor is how many logical TTLs a stale-while-revalidate entry
// stays servable in Redis after it expires logically.
const swrStaleFactor = 10

// RouteRule caches GET responses under one path prefix.
type RouteRule struct {
	Prefix   string
	Strategy Strategy
	TTL      time.Duration
	// Tags registers the cached key for precise invalidation. Nil means
	// the entry only ages out.
	Tags func(r *http.Request) []string
}

// DefaultRouteRules covers the cacheable API surface: browse listings and
// album covers (cache-first, invalidated by the indexer's album tags),
// search (network-first), settings (stale-while-revalidate).
func DefaultRouteRules() []RouteRule {
	return []RouteRule{
		{
			Prefix:   "/api/browse",
			Strategy: CacheFirst,
			TTL:      time.Minute,
			Tags:     browseTags,
		},
		{
			Prefix:   "/api/albums/covers",
			Strategy: CacheFirst,
			TTL:      time.Minute,
			Tags: func(*http.Request) []string {
				// Covers can change on any media change, and the indexer
				// includes the root tag in every invalidation union.
				return []string{cache.AlbumTag("")}
			},
		},
		{
			Prefix:   "/api/search",
			Strategy: NetworkFirst,
			TTL:      time.Minute,
		},
		{
			Prefix:   "/api/settings",
			Strategy: StaleWhileRevalidate,
			TTL:      5 * time.Minute,
		},
	}
}

// browseTags maps a browse URL to the album tag the indexer invalidates
// when anything under that directory changes.
func browseTags(r *http.Request) []string {
	dir := strings.TrimPrefix(r.URL.Path, "/api/browse")
	dir = strings.Trim(dir, "/")
	return []string{cache.AlbumTag(dir)}
}

// cachedResponse is the stored envelope. Body round-trips through JSON
// as base64.
type cachedResponse struct {
	Status      int       `json:"status"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	StoredAt    time.Time `json:"storedAt"`
}

// RouteCache serves idempotent GETs from Redis, keyed per user and full
// URL. Unmatched paths pass through untouched, which keeps SSE and the
// binary endpoints clear of response capture.
func RouteCache(client *cache.Client, rules []RouteRule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &routeCache{client: client, rules: rules, next: next}
	}
}

type routeCache struct {
	client *cache.Client
	rules  []RouteRule
	next   http.Handler
	flight singleflight.Group
}

func (rc *routeCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rc.next.ServeHTTP(w, r)
		return
	}
	rule, ok := rc.match(r.URL.Path)
	if !ok {
		rc.next.ServeHTTP(w, r)
		return
	}

	key := cache.RouteKey(UserID(r), r.URL.RequestURI())

	switch rule.Strategy {
	case NetworkFirst:
		rc.serveNetworkFirst(w, r, rule, key)
	case StaleWhileRevalidate:
		rc.serveStaleWhileRevalidate(w, r, rule, key)
	default:
		rc.serveCacheFirst(w, r, rule, key)
	}
}

// match finds the rule for a path. Prefixes match whole segments, so
// "/api/search" does not claim "/api/searchx".
func (rc *routeCache) match(path string) (RouteRule, bool) {
	for _, rule := range rc.rules {
		if !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		if len(path) == len(rule.Prefix) || path[len(rule.Prefix)] == '/' {
			return rule, true
		}
	}
	return RouteRule{}, false
}

func (rc *routeCache) serveCacheFirst(w http.ResponseWriter, r *http.Request, rule RouteRule, key string) {
	if entry, ok := rc.lookup(r.Context(), key); ok {
		metrics.CacheHits.WithLabelValues("route").Inc()
		writeCached(w, entry)
		return
	}
	metrics.CacheMisses.WithLabelValues("route").Inc()

	w.Header().Set("X-Cache", "MISS")
	cw := newCaptureWriter(w.Header())
	rc.next.ServeHTTP(cw, r)
	cw.copyTo(w)

	if cw.status == http.StatusOK {
		rc.store(r.Context(), key, rule, cw, r)
	}
}

func (rc *routeCache) serveNetworkFirst(w http.ResponseWriter, r *http.Request, rule RouteRule, key string) {
	cw := newCaptureWriter(w.Header())
	rc.next.ServeHTTP(cw, r)

	if cw.status >= http.StatusInternalServerError {
		if entry, ok := rc.lookup(r.Context(), key); ok {
			metrics.CacheHits.WithLabelValues("route").Inc()
			writeCached(w, entry)
			return
		}
	}

	metrics.CacheMisses.WithLabelValues("route").Inc()
	w.Header().Set("X-Cache", "MISS")
	cw.copyTo(w)

	if cw.status == http.StatusOK {
		rc.store(r.Context(), key, rule, cw, r)
	}
}

func (rc *routeCache) serveStaleWhileRevalidate(w http.ResponseWriter, r *http.Request, rule RouteRule, key string) {
	if entry, ok := rc.lookup(r.Context(), key); ok {
		metrics.CacheHits.WithLabelValues("route").Inc()
		writeCached(w, entry)

		if time.Since(entry.StoredAt) > rule.TTL {
			rc.revalidate(r, rule, key)
		}
		return
	}
	metrics.CacheMisses.WithLabelValues("route").Inc()

	w.Header().Set("X-Cache", "MISS")
	cw := newCaptureWriter(w.Header())
	rc.next.ServeHTTP(cw, r)
	cw.copyTo(w)

	if cw.status == http.StatusOK {
		rc.store(r.Context(), key, rule, cw, r)
	}
}

// revalidate refreshes one expired entry in the background. Singleflight
// keeps a burst of stale hits from stampeding the handler.
func (rc *routeCache) revalidate(r *http.Request, rule RouteRule, key string) {
	detached := r.Clone(context.WithoutCancel(r.Context()))
	go func() {
		_, _, _ = rc.flight.Do(key, func() (interface{}, error) {
			cw := newCaptureWriter(make(http.Header))
			rc.next.ServeHTTP(cw, detached)
			if cw.status == http.StatusOK {
				rc.store(detached.Context(), key, rule, cw, detached)
			}
			return nil, nil
		})
	}()
}

func (rc *routeCache) lookup(ctx context.Context, key string) (cachedResponse, bool) {
	raw, ok := rc.client.Get(ctx, key)
	if !ok {
		return cachedResponse{}, false
	}
	var entry cachedResponse
	if err := json.Unmarshal(raw, &entry); err != nil {
		logging.Debug("Dropping undecodable route cache entry %s: %v", key, err)
		return cachedResponse{}, false
	}
	return entry, true
}

func (rc *routeCache) store(ctx context.Context, key string, rule RouteRule, cw *captureWriter, r *http.Request) {
	entry := cachedResponse{
		Status:      cw.status,
		ContentType: cw.header.Get("Content-Type"),
		Body:        cw.body.Bytes(),
		StoredAt:    time.Now(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		logging.Debug("Could not encode route cache entry %s: %v", key, err)
		return
	}

	ttl := rule.TTL
	if rule.Strategy == StaleWhileRevalidate {
		ttl *= swrStaleFactor
	}
	if err := rc.client.Set(ctx, key, raw, ttl); err != nil {
		return
	}
	if rule.Tags == nil {
		return
	}
	if tags := rule.Tags(r); len(tags) > 0 {
		if err := rc.client.AddTagsToKey(ctx, key, tags); err != nil {
			logging.Debug("Could not tag route cache entry %s: %v", key, err)
		}
	}
}

func writeCached(w http.ResponseWriter, entry cachedResponse) {
	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(entry.Status)
	if _, err := w.Write(entry.Body); err != nil {
		logging.Debug("Failed to write cached response: %v", err)
	}
}

// captureWriter buffers a handler's response so it can be both sent and
// stored. It shares the real header map when serving inline, so handlers
// see their header writes take effect.
type captureWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newCaptureWriter(h http.Header) *captureWriter {
	return &captureWriter{header: h, status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.wroteHeader = true
	return c.body.Write(b)
}

func (c *captureWriter) copyTo(w http.ResponseWriter) {
	w.WriteHeader(c.status)
	if _, err := w.Write(c.body.Bytes()); err != nil {
		logging.Debug("Failed to relay captured response: %v", err)
	}
}
