package search

import (
	"context"
	"time"

	"media-gallery/internal/browse"
	"media-gallery/internal/database"
	"media-gallery/internal/errs"
	"media-gallery/internal/metrics"
	"media-gallery/internal/ngram"
)

const defaultLimit = 100

// Results is one page of hits, albums before media, best match first.
type Results struct {
	Query        string         `json:"query"`
	Results      []browse.Entry `json:"results"`
	Page         int            `json:"page"`
	TotalPages   int            `json:"totalPages"`
	TotalResults int            `json:"totalResults"`
	Limit        int            `json:"limit"`
}

// Service runs FTS queries and enriches the hits through the browse
// service, so search results carry the same covers and URLs a listing
// would.
type Service struct {
	db      *database.Manager
	decor   *browse.Service
	hardCap int
}

func New(db *database.Manager, decor *browse.Service, hardCap int) *Service {
	if hardCap <= 0 {
		hardCap = 10000
	}
	return &Service{db: db, decor: decor, hardCap: hardCap}
}

// Search runs one query and records its outcome.
func (s *Service) Search(ctx context.Context, q string, page, limit int) (*Results, error) {
	start := time.Now()
	res, err := s.search(ctx, q, page, limit)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchQueriesTotal.WithLabelValues(statusLabel(err)).Inc()
	return res, err
}

func (s *Service) search(ctx context.Context, q string, page, limit int) (*Results, error) {
	// Normalization strips FTS metacharacters and whitespace. A query
	// with nothing left cannot match anything and gets rejected rather
	// than silently returning the whole index.
	if ngram.Normalize(q) == "" {
		return nil, errs.Ef(errs.InvalidQuery, "query has no searchable characters")
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > s.hardCap {
		return nil, errs.Ef(errs.ValidationError, "limit %d exceeds maximum %d", limit, s.hardCap)
	}
	if err := s.ensureAvailable(ctx); err != nil {
		return nil, err
	}

	items, total, err := s.db.SearchItems(ctx, ngram.Tokens(q), limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Results{
		Query:        q,
		Results:      s.decor.Enrich(ctx, items),
		Page:         page,
		TotalPages:   totalPages,
		TotalResults: total,
		Limit:        limit,
	}, nil
}

// ensureAvailable reports the index as unavailable while it is empty,
// which is what a fresh install or an early rebuild looks like. An empty
// result set would read as "no matches", which is the wrong answer.
func (s *Service) ensureAvailable(ctx context.Context) error {
	for _, count := range []func(context.Context) (int64, error){s.db.CountItems, s.db.CountFTS} {
		n, err := count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.Ef(errs.SearchUnavailable, "search index is still building")
		}
	}
	return nil
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errs.Is(err, errs.InvalidQuery):
		return "invalid"
	case errs.Is(err, errs.SearchUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
