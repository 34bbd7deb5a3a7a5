// Package media renders thumbnails and probes media files.
//
// Rendering is split by kind: still images go through libvips (govips)
// and come out as width-constrained WebP, with the encode quality picked
// from the source pixel count; videos go through ffmpeg frame extraction
// and come out as JPEG, using a "golden frame" heuristic that samples
// five frames across the duration and keeps the one with the most
// per-channel variance.
//
// Probing answers two questions without full decodes: image dimensions
// via image.DecodeConfig (WebP supported through golang.org/x/image/webp)
// and video dimensions/duration via ffprobe's JSON output. Probe failures
// degrade to a fixed fallback size rather than erroring, since dimensions
// only feed layout hints.
//
// InitVips must be called once at startup before any image render;
// ShutdownVips releases libvips at exit and cannot be undone within the
// same process.
package media
