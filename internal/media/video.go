package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"media-gallery/internal/logging"

	"github.com/disintegration/imaging"
)

// VideoThumbWidth is the width of rendered video thumbnails.
const VideoThumbWidth = 320

// videoThumbQuality is the JPEG quality for video thumbnails.
const videoThumbQuality = 80

// goldenFrameOffsets are the fractions of the video duration sampled by
// the golden-frame heuristic.
var goldenFrameOffsets = []float64{0.10, 0.30, 0.50, 0.70, 0.90}

// VideoInfo is what ffprobe reports about a video file.
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64 // seconds
	Codec    string  // first video stream, e.g. "h264"
}

// ProbeVideo runs ffprobe against path and returns the first video
// stream's dimensions and the container duration.
func ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w (%s)",
			filepath.Base(path), err, bytes.TrimSpace(stderr.Bytes()))
	}

	return parseProbeOutput(stdout.Bytes())
}

// parseProbeOutput decodes ffprobe's -print_format json output. Missing
// duration or video streams are not errors; the zero fields just stay
// zero and callers fall back.
func parseProbeOutput(data []byte) (VideoInfo, error) {
	var probe struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var info VideoInfo
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		if info.Codec == "" && s.CodecName != "" {
			info.Codec = s.CodecName
		}
		if info.Width == 0 && s.Width > 0 && s.Height > 0 {
			info.Width = s.Width
			info.Height = s.Height
		}
	}
	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && d > 0 {
			info.Duration = d
		}
	}
	return info, nil
}

// RenderVideoThumb renders src into a JPEG thumbnail at dst using the
// golden frame: five frames sampled across the duration, scored by
// summed per-channel standard deviation, highest score wins. Flat frames
// (black lead-ins, fades, title cards) score near zero and lose to
// anything with actual content.
//
// When the duration is unknown or every sample fails, it falls back to a
// single frame one second in, then to the very first frame.
func RenderVideoThumb(ctx context.Context, src, dst string) error {
	tmpDir, err := os.MkdirTemp("", "gallery-frames-")
	if err != nil {
		return fmt.Errorf("create frame dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			logging.Warn("failed to clean up frame dir %s: %v", tmpDir, rmErr)
		}
	}()

	var duration float64
	if info, err := ProbeVideo(ctx, src); err != nil {
		logging.Debug("ffprobe failed for %s, using fallback frame: %v", filepath.Base(src), err)
	} else {
		duration = info.Duration
	}

	best, sampled := pickGoldenFrame(ctx, src, tmpDir, duration)
	if best == nil {
		// No scorable frame; take whatever decodes first.
		best = fallbackFrame(ctx, src, tmpDir)
	}
	if best == nil {
		return fmt.Errorf("no decodable frame in %s", filepath.Base(src))
	}

	logging.Debug("video thumbnail for %s: %d frames sampled", filepath.Base(src), sampled)

	if best.Bounds().Dx() > VideoThumbWidth {
		best = imaging.Resize(best, VideoThumbWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, best, imaging.JPEG, imaging.JPEGQuality(videoThumbQuality)); err != nil {
		return fmt.Errorf("encode video thumbnail: %w", err)
	}
	return writeFileAtomic(dst, buf.Bytes())
}

// pickGoldenFrame extracts one frame per offset fraction and returns the
// highest-scoring decodable frame, plus how many frames decoded. A zero
// duration yields no samples.
func pickGoldenFrame(ctx context.Context, src, tmpDir string, duration float64) (image.Image, int) {
	if duration <= 0 {
		return nil, 0
	}

	var best image.Image
	bestScore := -1.0
	sampled := 0

	for i, frac := range goldenFrameOffsets {
		if ctx.Err() != nil {
			break
		}

		framePath := filepath.Join(tmpDir, "frame"+strconv.Itoa(i)+".jpg")
		if err := extractFrame(ctx, src, framePath, duration*frac); err != nil {
			logging.Debug("frame extract at %.0f%% failed for %s: %v",
				frac*100, filepath.Base(src), err)
			continue
		}

		frame, err := imaging.Open(framePath)
		if err != nil {
			continue
		}
		sampled++

		if score := frameScore(frame); score > bestScore {
			bestScore = score
			best = frame
		}
	}
	return best, sampled
}

// fallbackFrame is the last-resort extraction: one second in, then the
// first frame for clips shorter than that.
func fallbackFrame(ctx context.Context, src, tmpDir string) image.Image {
	for i, offset := range []float64{1.0, 0.0} {
		framePath := filepath.Join(tmpDir, "fallback"+strconv.Itoa(i)+".jpg")
		if err := extractFrame(ctx, src, framePath, offset); err != nil {
			continue
		}
		if frame, err := imaging.Open(framePath); err == nil {
			return frame
		}
	}
	return nil
}

// extractFrame asks ffmpeg for a single frame at the given offset,
// scaled to the thumbnail width at extraction time so scoring and the
// final encode work on small images.
func extractFrame(ctx context.Context, src, dst string, offsetSec float64) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(offsetSec, 'f', 2, 64),
		"-i", src,
		"-vframes", "1",
		"-vf", "scale="+strconv.Itoa(VideoThumbWidth)+":-2",
		"-q:v", "2",
		"-y",
		dst,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	// ffmpeg exits zero on an out-of-range seek but writes nothing.
	if fi, err := os.Stat(dst); err != nil || fi.Size() == 0 {
		return fmt.Errorf("ffmpeg produced no frame at %.2fs", offsetSec)
	}
	return nil
}

// frameScore sums the per-channel standard deviation of a frame's
// pixels. Higher means more visual variance.
func frameScore(img image.Image) float64 {
	nrgba := imaging.Clone(img)
	pix := nrgba.Pix
	n := len(pix) / 4
	if n == 0 {
		return 0
	}

	var sum, sumSq [3]float64
	for i := 0; i+3 < len(pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(pix[i+c])
			sum[c] += v
			sumSq[c] += v * v
		}
	}

	fn := float64(n)
	var score float64
	for c := 0; c < 3; c++ {
		mean := sum[c] / fn
		variance := sumSq[c]/fn - mean*mean
		if variance > 0 {
			score += math.Sqrt(variance)
		}
	}
	return score
}
