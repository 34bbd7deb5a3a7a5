package indexer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"media-gallery/internal/media"
	"media-gallery/internal/mediatypes"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/semaphore"
)

const (
	// probeConcurrency bounds simultaneous dimension probes. ffprobe
	// spawns a process per video, so this is a real resource limit, not
	// just a politeness.
	probeConcurrency = 50

	dimensionCacheSize = 4096
	dimensionCacheTTL  = time.Hour
)

// prober resolves media dimensions with bounded parallelism. A TTL LRU
// keyed (path, mtime) absorbs repeated probes of the same file, which
// change application hits constantly while a directory is being synced.
type prober struct {
	sem *semaphore.Weighted
	lru *expirable.LRU[string, media.Dimensions]
}

func newProber() *prober {
	return &prober{
		sem: semaphore.NewWeighted(probeConcurrency),
		lru: expirable.NewLRU[string, media.Dimensions](dimensionCacheSize, nil, dimensionCacheTTL),
	}
}

func probeCacheKey(rel string, mtime int64) string {
	return rel + "@" + strconv.FormatInt(mtime, 10)
}

// probe resolves one file's dimensions, serving from the LRU when the
// (path, mtime) pair was seen before. It never fails; probe errors fall
// back inside media.ProbeDimensions.
func (p *prober) probe(ctx context.Context, e entry) media.Dimensions {
	key := probeCacheKey(e.rel.String(), e.mtime)
	if dims, ok := p.lru.Get(key); ok {
		return dims
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return media.FallbackDimensions
	}
	dims := media.ProbeDimensions(ctx, e.abs, e.typ)
	p.sem.Release(1)

	p.lru.Add(key, dims)
	return dims
}

// probeBatch resolves dimensions for every media entry of a batch in
// parallel. Albums keep zero dimensions. The result aligns with the
// input slice.
func (p *prober) probeBatch(ctx context.Context, batch []entry) []media.Dimensions {
	dims := make([]media.Dimensions, len(batch))

	var wg sync.WaitGroup
	for i := range batch {
		if batch[i].typ == mediatypes.TypeAlbum {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dims[i] = p.probe(ctx, batch[i])
		}(i)
	}
	wg.Wait()

	return dims
}
