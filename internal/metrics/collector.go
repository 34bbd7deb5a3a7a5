package metrics

import (
	"time"

	"media-gallery/internal/logging"
)

// StatsProvider interface for collecting library stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current library statistics
type Stats struct {
	TotalPhotos   int
	TotalVideos   int
	TotalAlbums   int
	ThumbsPending int
	ThumbsDone    int
	ThumbsFailed  int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	MediaFilesTotal.WithLabelValues("photo").Set(float64(stats.TotalPhotos))
	MediaFilesTotal.WithLabelValues("video").Set(float64(stats.TotalVideos))
	MediaAlbumsTotal.Set(float64(stats.TotalAlbums))
	ThumbnailsByStatus.WithLabelValues("pending").Set(float64(stats.ThumbsPending))
	ThumbnailsByStatus.WithLabelValues("done").Set(float64(stats.ThumbsDone))
	ThumbnailsByStatus.WithLabelValues("failed").Set(float64(stats.ThumbsFailed))

	logging.Debug("Metrics collected: photos=%d, videos=%d, albums=%d, thumbs pending=%d",
		stats.TotalPhotos, stats.TotalVideos, stats.TotalAlbums, stats.ThumbsPending)
}
