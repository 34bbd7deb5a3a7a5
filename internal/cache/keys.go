package cache

import (
	"strconv"
)

// Key prefixes. Everything the application stores in Redis hangs off one of
// these, so an operator can SCAN by prefix and know what they are looking at.
const (
	routeKeyPrefix = "route:"
	tagKeyPrefix   = "tag:"

	coverKeyPrefix = "cover:"
	dimKeyPrefix   = "dim:"

	thumbFailedPrefix    = "thumb_failed_permanently:"
	optimizeFailedPrefix = "optimize_failed_permanently:"
)

// KeyClasses maps each key family to its glob pattern, in the order the
// admin cache-metrics endpoint reports them.
func KeyClasses() []KeyClass {
	return []KeyClass{
		{"routes", routeKeyPrefix + "*"},
		{"tags", tagKeyPrefix + "*"},
		{"covers", coverKeyPrefix + "*"},
		{"dimensions", dimKeyPrefix + "*"},
		{"thumbFailures", thumbFailedPrefix + "*"},
		{"optimizeFailures", optimizeFailedPrefix + "*"},
	}
}

// KeyClass names one key family and the pattern that matches it.
type KeyClass struct {
	Name    string
	Pattern string
}

// BrowseRoutePattern matches every cached browse listing regardless of user.
// Used as the coarse fallback when tag invalidation would exceed the ceiling.
const BrowseRoutePattern = routeKeyPrefix + "*:/api/browse*"

// BrowseRoutePatternUnder matches cached browse listings of one directory,
// every user and every query string. View recording drops these so the new
// ordering is visible on the next request.
func BrowseRoutePatternUnder(dir string) string {
	return routeKeyPrefix + "*:/api/browse/" + dir + "*"
}

// RouteKey builds the route cache key for a response. Anonymous requests
// share one namespace; authenticated users get their own.
func RouteKey(userID, originalURL string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return routeKeyPrefix + userID + ":" + originalURL
}

// TagKey builds the reverse-index set key for a tag.
func TagKey(tag string) string {
	return tagKeyPrefix + tag
}

// ItemTag is the invalidation tag for one media item.
func ItemTag(relPath string) string {
	return "item:" + relPath
}

// AlbumTag is the invalidation tag for an album listing. The media root
// is spelled "/" so the root tag is distinguishable from a missing path.
func AlbumTag(albumPath string) string {
	if albumPath == "" {
		albumPath = "/"
	}
	return "album:" + albumPath
}

// CoverPattern matches every cached album cover. A full rebuild recomputes
// covers wholesale, so the fine-grained tags are no help there.
const CoverPattern = coverKeyPrefix + "*"

// CoverKey builds the album cover cache key.
func CoverKey(albumPath string) string {
	return coverKeyPrefix + albumPath
}

// DimKey builds the media dimension cache key. The mtime makes edits
// self-invalidating.
func DimKey(path string, mtime int64) string {
	return dimKeyPrefix + path + ":" + strconv.FormatInt(mtime, 10)
}

// ThumbFailedKey marks a media path whose thumbnail generation failed
// permanently. Carries a TTL so the path is retried eventually.
func ThumbFailedKey(relPath string) string {
	return thumbFailedPrefix + relPath
}

// OptimizeFailedKey marks a video whose transcode failed permanently.
// Same TTL contract as ThumbFailedKey.
func OptimizeFailedKey(relPath string) string {
	return optimizeFailedPrefix + relPath
}
