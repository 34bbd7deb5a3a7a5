package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"media-gallery/internal/cache"
	"media-gallery/internal/errs"
	"media-gallery/internal/logging"
)

// CacheStats reports the Redis server view: key count, memory, and
// keyspace hit counters.
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.GetStats(r.Context())
	if err != nil {
		writeError(w, r, errs.E(errs.Internal, "cache unavailable", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CacheClear drops cached entries. With a pattern it deletes matching
// keys; without one it flushes the whole cache database, job status
// hashes included.
func (h *Handlers) CacheClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pattern := mux.Vars(r)["pattern"]

	if pattern == "" {
		if err := h.cache.ClearAll(ctx); err != nil {
			writeError(w, r, errs.E(errs.Internal, "cache flush failed", err))
			return
		}
		logging.Info("Cache flushed by admin request")
		writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
		return
	}

	deleted, err := h.cache.DeletePattern(ctx, pattern)
	if err != nil {
		writeError(w, r, errs.E(errs.Internal, "cache clear failed", err))
		return
	}
	logging.Info("Cache clear %q removed %d keys", pattern, deleted)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pattern": pattern,
		"cleared": deleted,
	})
}

// cacheMetricsResponse is the derived cache health view: the global hit
// rate plus a key count per key family.
type cacheMetricsResponse struct {
	KeyspaceHits   int64            `json:"keyspaceHits"`
	KeyspaceMisses int64            `json:"keyspaceMisses"`
	HitRate        float64          `json:"hitRate"`
	Keys           map[string]int64 `json:"keys"`
}

// CacheMetrics breaks the key population down by family and reports the
// overall hit rate. Families that fail to count are reported as zero
// rather than failing the whole response.
func (h *Handlers) CacheMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.cache.GetStats(ctx)
	if err != nil {
		writeError(w, r, errs.E(errs.Internal, "cache unavailable", err))
		return
	}

	resp := cacheMetricsResponse{
		KeyspaceHits:   stats.KeyspaceHits,
		KeyspaceMisses: stats.KeyspaceMisses,
		Keys:           make(map[string]int64),
	}
	if lookups := stats.KeyspaceHits + stats.KeyspaceMisses; lookups > 0 {
		resp.HitRate = float64(stats.KeyspaceHits) / float64(lookups)
	}
	for _, class := range cache.KeyClasses() {
		n, err := h.cache.CountPattern(ctx, class.Pattern)
		if err != nil {
			logging.Debug("Count cache keys %q: %v", class.Pattern, err)
		}
		resp.Keys[class.Name] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

// queueMetricsResponse reports in-memory work queue depths.
type queueMetricsResponse struct {
	Thumbnails thumbQueueMetrics `json:"thumbnails"`
	Optimizer  optQueueMetrics   `json:"optimizer"`
}

type thumbQueueMetrics struct {
	High   int `json:"high"`
	Low    int `json:"low"`
	Active int `json:"active"`
}

type optQueueMetrics struct {
	Queued int `json:"queued"`
}

// QueueMetrics reports thumbnail and transcode queue depths.
func (h *Handlers) QueueMetrics(w http.ResponseWriter, r *http.Request) {
	high, low, active := h.thumbs.QueueDepths()
	writeJSON(w, http.StatusOK, queueMetricsResponse{
		Thumbnails: thumbQueueMetrics{High: high, Low: low, Active: active},
		Optimizer:  optQueueMetrics{Queued: h.opt.QueueDepth()},
	})
}
