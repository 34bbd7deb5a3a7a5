package media

import (
	"context"
	"image"
	"os"

	"media-gallery/internal/logging"
	"media-gallery/internal/mediatypes"

	// Image format decoders for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp" // WebP format support
)

// Dimensions holds a media file's pixel size.
type Dimensions struct {
	Width  int
	Height int
}

// FallbackDimensions is used when probing fails. Dimensions only drive
// layout hints, so a wrong guess costs a reflow, not correctness.
var FallbackDimensions = Dimensions{Width: 1920, Height: 1080}

// ImageDimensions reads an image's dimensions from its header without
// decoding the pixels.
func ImageDimensions(path string) (Dimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return Dimensions{}, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return Dimensions{}, err
	}
	return Dimensions{Width: config.Width, Height: config.Height}, nil
}

// VideoDimensions probes a video's dimensions with ffprobe.
func VideoDimensions(ctx context.Context, path string) (Dimensions, error) {
	info, err := ProbeVideo(ctx, path)
	if err != nil {
		return Dimensions{}, err
	}
	return Dimensions{Width: info.Width, Height: info.Height}, nil
}

// ProbeDimensions resolves a media file's dimensions by type, falling
// back to FallbackDimensions on any failure. It never errors.
func ProbeDimensions(ctx context.Context, absPath string, typ mediatypes.ItemType) Dimensions {
	var (
		dims Dimensions
		err  error
	)
	switch typ {
	case mediatypes.TypePhoto:
		dims, err = ImageDimensions(absPath)
	case mediatypes.TypeVideo:
		dims, err = VideoDimensions(ctx, absPath)
	default:
		return FallbackDimensions
	}

	if err != nil || dims.Width <= 0 || dims.Height <= 0 {
		logging.Debug("dimension probe failed for %s, using fallback: %v", absPath, err)
		return FallbackDimensions
	}
	return dims
}
