package browse

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-gallery/internal/cache"
	"media-gallery/internal/database"
	"media-gallery/internal/errs"
	"media-gallery/internal/logging"
	"media-gallery/internal/media"
	"media-gallery/internal/metrics"
	"media-gallery/internal/relpath"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultLimit = 100

	// coverLRUTTL bounds how long a process keeps serving a cover the
	// indexer has since replaced. Redis is invalidated precisely on
	// change; the in-process layer just expires.
	coverLRUTTL = time.Minute

	coverTTL = 7 * 24 * time.Hour
	dimTTL   = 7 * 24 * time.Hour
)

// Config carries the browse service tunables.
type Config struct {
	MediaRoot    string
	HardCap      int // largest page size a client may request
	CoverLRUSize int
}

func (c *Config) applyDefaults() {
	if c.HardCap <= 0 {
		c.HardCap = 10000
	}
	if c.CoverLRUSize <= 0 {
		c.CoverLRUSize = 1024
	}
}

// Entry is one listed child in its JSON envelope.
type Entry struct {
	Type string    `json:"type"`
	Data EntryData `json:"data"`
}

// EntryData carries the fields the gallery UI renders for one item.
// Albums get a cover; media get original and thumbnail URLs.
type EntryData struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Mtime        int64  `json:"mtime"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	OriginalURL  string `json:"originalUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	CoverPath    string `json:"coverPath,omitempty"`
	LastViewedAt int64  `json:"lastViewedAt,omitempty"`
}

// Listing is one page of a directory.
type Listing struct {
	Items        []Entry `json:"items"`
	Page         int     `json:"page"`
	TotalPages   int     `json:"totalPages"`
	TotalResults int     `json:"totalResults"`
}

// Service answers listings from the index alone; the filesystem is only
// touched to resolve covers for albums that predate the cover table.
type Service struct {
	db    *database.Manager
	cache *cache.Client
	cfg   Config

	coverLRU *expirable.LRU[string, database.Cover]
}

func New(db *database.Manager, c *cache.Client, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		db:       db,
		cache:    c,
		cfg:      cfg,
		coverLRU: expirable.NewLRU[string, database.Cover](cfg.CoverLRUSize, nil, coverLRUTTL),
	}
}

// ListDirectory returns one page of dir's direct children. Albums always
// sort above media; the strategy orders within those groups.
func (s *Service) ListDirectory(ctx context.Context, dir relpath.Path, page, limit int, userID, sortName string) (*Listing, error) {
	srt, err := database.ParseSort(sortName)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > s.cfg.HardCap {
		return nil, errs.Ef(errs.ValidationError, "limit %d exceeds maximum %d", limit, s.cfg.HardCap)
	}

	if !dir.IsRoot() {
		it, err := s.db.GetItemByPath(ctx, dir.String())
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.Ef(errs.PathNotFound, "no such directory: %s", dir)
		}
		if err != nil {
			return nil, err
		}
		if !it.IsAlbum() {
			return nil, errs.Ef(errs.PathNotFound, "not a directory: %s", dir)
		}
	}

	items, total, err := s.db.ListChildren(ctx, dir, srt, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	// viewed_desc pages by name in SQL; the history lives in its own
	// database file, so the page is re-sorted here instead of joined.
	// Smart order uses the same treatment inside subdirectories.
	var viewed map[string]int64
	if srt == database.SortViewedDesc || (srt == database.SortSmart && !dir.IsRoot()) {
		viewed, err = s.resortByHistory(ctx, userID, items)
		if err != nil {
			return nil, err
		}
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Listing{
		Items:        s.decorate(ctx, items, viewed),
		Page:         page,
		TotalPages:   totalPages,
		TotalResults: total,
	}, nil
}

// resortByHistory reorders a name-ordered page so recently viewed albums
// come first. The sort is stable: unviewed rows keep their name order and
// media stays below albums.
func (s *Service) resortByHistory(ctx context.Context, userID string, items []database.Item) (map[string]int64, error) {
	var albumPaths []string
	for i := range items {
		if items[i].IsAlbum() {
			albumPaths = append(albumPaths, items[i].Path)
		}
	}
	viewed, err := s.db.LastViewedForPaths(ctx, userID, albumPaths)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		if a.IsAlbum() != b.IsAlbum() {
			return a.IsAlbum()
		}
		return viewed[a.Path] > viewed[b.Path]
	})
	return viewed, nil
}

// Enrich decorates index rows fetched outside a listing, e.g. search
// hits. Covers and dimensions resolve through the same caches a listing
// uses.
func (s *Service) Enrich(ctx context.Context, items []database.Item) []Entry {
	return s.decorate(ctx, items, nil)
}

// decorate turns index rows into API entries, filling covers for albums
// and dimensions plus URLs for media.
func (s *Service) decorate(ctx context.Context, items []database.Item, viewed map[string]int64) []Entry {
	var albumPaths []string
	for i := range items {
		if items[i].IsAlbum() {
			albumPaths = append(albumPaths, items[i].Path)
		}
	}
	covers := s.coversFor(ctx, albumPaths)

	entries := make([]Entry, 0, len(items))
	for i := range items {
		it := &items[i]
		data := EntryData{Name: it.Name, Path: it.Path, Mtime: it.Mtime}
		if it.IsAlbum() {
			if cv, ok := covers[it.Path]; ok {
				data.CoverPath = cv.CoverPath
				data.Width = cv.Width
				data.Height = cv.Height
				data.ThumbnailURL = thumbnailURL(cv.CoverPath, cv.Mtime)
			}
			data.LastViewedAt = viewed[it.Path]
		} else {
			dims := s.dimensionsFor(ctx, it)
			data.Width = dims.Width
			data.Height = dims.Height
			data.OriginalURL = originalURL(it.Path)
			data.ThumbnailURL = thumbnailURL(it.Path, it.Mtime)
		}
		entries = append(entries, Entry{Type: string(it.Type), Data: data})
	}
	return entries
}

// dimensionsFor returns stored dimensions when the index has them,
// otherwise consults the mtime-keyed cache or probes the file once.
func (s *Service) dimensionsFor(ctx context.Context, it *database.Item) media.Dimensions {
	if it.Width > 0 && it.Height > 0 {
		return media.Dimensions{Width: it.Width, Height: it.Height}
	}
	key := cache.DimKey(it.Path, it.Mtime)
	if raw, ok := s.cache.Get(ctx, key); ok {
		if d, ok := parseDims(string(raw)); ok {
			metrics.CacheHits.WithLabelValues("dim").Inc()
			return d
		}
	}
	metrics.CacheMisses.WithLabelValues("dim").Inc()

	rel, err := relpath.New(it.Path)
	if err != nil {
		return media.FallbackDimensions
	}
	d := media.ProbeDimensions(ctx, rel.Under(s.cfg.MediaRoot), it.Type)
	if err := s.cache.Set(ctx, key, []byte(formatDims(d)), dimTTL); err != nil {
		logging.Debug("browse: cache dimensions for %s: %v", it.Path, err)
	}
	return d
}

// UpdateViewTime records that userID viewed rel just now. The whole
// ancestor chain is touched so parent albums float in viewed_desc
// listings, then the parent's cached listings are dropped so the new
// order is visible on the next request.
func (s *Service) UpdateViewTime(ctx context.Context, userID string, rel relpath.Path) error {
	if rel.IsRoot() {
		return errs.Ef(errs.ValidationError, "cannot record a view of the media root")
	}
	paths := []string{rel.String()}
	for _, anc := range rel.Ancestors() {
		if !anc.IsRoot() {
			paths = append(paths, anc.String())
		}
	}
	if err := s.db.TouchViewTimes(ctx, userID, paths, time.Now().UnixMilli()); err != nil {
		return err
	}

	parent := rel.Parent().String()
	if n, err := s.cache.DeletePattern(ctx, cache.BrowseRoutePatternUnder(parent)); err != nil {
		logging.Warn("browse: drop cached listings under %q: %v", parent, err)
	} else if n > 0 {
		logging.Debug("browse: dropped %d cached listings under %q", n, parent)
	}
	return nil
}

func originalURL(rel string) string {
	return "/static/" + escapePath(rel)
}

func thumbnailURL(rel string, mtime int64) string {
	return "/api/thumbnail?path=" + url.QueryEscape(rel) + "&v=" + strconv.FormatInt(mtime, 10)
}

// escapePath escapes each segment but keeps the separators, so the URL
// still reads as a path.
func escapePath(rel string) string {
	segs := strings.Split(rel, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

func formatDims(d media.Dimensions) string {
	return strconv.Itoa(d.Width) + "x" + strconv.Itoa(d.Height)
}

func parseDims(s string) (media.Dimensions, bool) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return media.Dimensions{}, false
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return media.Dimensions{}, false
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return media.Dimensions{}, false
	}
	return media.Dimensions{Width: width, Height: height}, true
}
