// Package optimizer pre-transcodes videos that browsers cannot play
// directly.
//
// The watcher feeds it newly added videos. Sources whose codec is already
// natively decodable (h264/vp8/vp9/av1) inside a web container (.mp4,
// .webm, .ogg) are skipped; everything else is converted to an H.264/AAC
// MP4 copy under the optimized mirror, so playback never waits on a live
// transcode. The mirror repeats the media tree's layout with extensions
// rewritten to .mp4.
//
// A single worker drains a bounded in-memory queue; full queues drop new
// paths with a warning because the next watcher event or rebuild offers
// them again. ffmpeg writes to a temp file that is renamed into place only
// on success, and startup sweeps temp leftovers from a crashed run. A
// source that fails to transcode is marked in Redis for seven days so the
// queue does not churn on it.
package optimizer
