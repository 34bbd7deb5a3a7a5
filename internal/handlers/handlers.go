package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-gallery/internal/browse"
	"media-gallery/internal/cache"
	"media-gallery/internal/database"
	"media-gallery/internal/events"
	"media-gallery/internal/jobs"
	"media-gallery/internal/optimizer"
	"media-gallery/internal/search"
	"media-gallery/internal/startup"
	"media-gallery/internal/thumbnailer"
)

// staticMaxAge is the client cache lifetime for original media and
// mirrored thumbnails, thirty days in seconds.
const staticMaxAge = "2592000"

// Handlers owns every API endpoint. All handler methods hang off this
// struct so main wires the shared services exactly once.
type Handlers struct {
	db     *database.Manager
	cache  *cache.Client
	bus    *events.Bus
	thumbs *thumbnailer.Thumbnailer
	browse *browse.Service
	search *search.Service
	queue  *jobs.Queue
	opt    *optimizer.Optimizer
	config *startup.Config
}

// New creates the handler set over the shared services.
func New(
	db *database.Manager,
	cacheClient *cache.Client,
	bus *events.Bus,
	thumbs *thumbnailer.Thumbnailer,
	browseSvc *browse.Service,
	searchSvc *search.Service,
	queue *jobs.Queue,
	opt *optimizer.Optimizer,
	config *startup.Config,
) *Handlers {
	return &Handlers{
		db:     db,
		cache:  cacheClient,
		bus:    bus,
		thumbs: thumbs,
		browse: browseSvc,
		search: searchSvc,
		queue:  queue,
		opt:    opt,
		config: config,
	}
}

// Register attaches every route to the router. The route cache keys the
// browse, covers, search, and settings reads; everything else is served
// straight from the handlers.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/health", h.GetHealth).Methods("GET", "HEAD")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/browse", h.Browse).Methods("GET")
	api.HandleFunc("/browse/viewed", h.MarkViewed).Methods("POST")
	api.HandleFunc("/browse/{path:.*}", h.Browse).Methods("GET")

	api.HandleFunc("/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/search", h.Search).Methods("GET")

	api.HandleFunc("/albums/covers", h.AlbumCovers).Methods("GET")
	api.HandleFunc("/albums/covers/cursor", h.AlbumCoversCursor).Methods("GET")

	api.HandleFunc("/events", h.Events).Methods("GET")
	api.HandleFunc("/indexing", h.GetIndexing).Methods("GET")

	api.HandleFunc("/cache/stats", h.CacheStats).Methods("GET")
	api.HandleFunc("/cache/clear", h.CacheClear).Methods("POST")
	api.HandleFunc("/cache/clear/{pattern:.*}", h.CacheClear).Methods("POST")
	api.HandleFunc("/metrics/cache", h.CacheMetrics).Methods("GET")
	api.HandleFunc("/metrics/queue", h.QueueMetrics).Methods("GET")

	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.UpdateSettings).Methods("PUT")

	api.HandleFunc("/captions", h.SubmitCaption).Methods("POST")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")

	api.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Original media and the thumbnail mirror. Thumbnails are immutable
	// because listings cache-bust them with ?v=<mtime>.
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/",
		staticFiles(h.config.PhotosDir, "public, max-age="+staticMaxAge)))
	r.PathPrefix("/thumbs/").Handler(http.StripPrefix("/thumbs/",
		staticFiles(h.config.ThumbsDir, "public, max-age="+staticMaxAge+", immutable")))
}

// staticFiles serves a directory tree with a long client cache.
func staticFiles(root, cacheControl string) http.Handler {
	fs := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", cacheControl)
		fs.ServeHTTP(w, r)
	})
}
