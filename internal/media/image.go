package media

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"media-gallery/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

// ImageThumbWidth is the width of rendered image thumbnails. Height
// follows the source aspect ratio; smaller sources are never upscaled.
const ImageThumbWidth = 500

// Quality tiers by source pixel count. Large photos compress harder
// because the downscale already discards most of their detail.
const (
	largeImagePixels  = 8_000_000
	mediumImagePixels = 2_000_000

	qualityLarge  = 65
	qualityMedium = 70
	qualityNormal = 80

	// qualityTolerant is used by the accept-warnings fallback path, where
	// the source already decoded with errors.
	qualityTolerant = 60
)

// qualityForPixels picks the WebP encode quality for a source image of
// the given total pixel count.
func qualityForPixels(pixels int) int {
	switch {
	case pixels > largeImagePixels:
		return qualityLarge
	case pixels > mediumImagePixels:
		return qualityMedium
	default:
		return qualityNormal
	}
}

// RenderImageThumb renders src into a WebP thumbnail at dst, creating
// parent directories as needed. The primary path decodes with libvips;
// if that decode fails (truncated JPEGs, odd ICC profiles) it retries
// once through the tolerant imaging decoder and re-encodes with vips at
// reduced quality.
func RenderImageThumb(src, dst string) error {
	if !IsVipsAvailable() {
		return fmt.Errorf("libvips not available")
	}

	primaryErr := renderImageVips(src, dst)
	if primaryErr == nil {
		return nil
	}

	logging.Debug("vips render failed for %s, retrying tolerant path: %v",
		filepath.Base(src), primaryErr)

	if err := renderImageTolerant(src, dst); err != nil {
		return fmt.Errorf("image thumbnail failed (vips: %v): %w", primaryErr, err)
	}
	return nil
}

// renderImageVips is the primary path: decode-time shrinking in libvips,
// quality picked from the source pixel count.
func renderImageVips(src, dst string) error {
	ref, err := vips.LoadImageFromFile(src, vips.NewImportParams())
	if err != nil {
		return fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	origWidth := ref.Width()
	origHeight := ref.Height()
	quality := qualityForPixels(origWidth * origHeight)

	if w, h := thumbSize(origWidth, origHeight); w < origWidth {
		if err := ref.Thumbnail(w, h, vips.InterestingNone); err != nil {
			return fmt.Errorf("vips resize: %w", err)
		}
	}

	params := vips.NewWebpExportParams()
	params.Quality = quality
	params.StripMetadata = true

	encoded, _, err := ref.ExportWebp(params)
	if err != nil {
		return fmt.Errorf("vips export: %w", err)
	}

	logging.Debug("rendered %s: %dx%d -> %dx%d webp q%d",
		filepath.Base(src), origWidth, origHeight, ref.Width(), ref.Height(), quality)

	return writeFileAtomic(dst, encoded)
}

// renderImageTolerant is the fallback: the imaging decoder accepts files
// vips rejects outright (it keeps whatever decoded before the error),
// then the resized pixels round-trip through vips for the WebP encode.
func renderImageTolerant(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("tolerant decode: %w", err)
	}

	if img.Bounds().Dx() > ImageThumbWidth {
		img = imaging.Resize(img, ImageThumbWidth, 0, imaging.Lanczos)
	}

	// Lossless intermediate so the fallback only pays one lossy encode.
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode intermediate: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return fmt.Errorf("vips reload: %w", err)
	}
	defer ref.Close()

	params := vips.NewWebpExportParams()
	params.Quality = qualityTolerant
	params.StripMetadata = true

	encoded, _, err := ref.ExportWebp(params)
	if err != nil {
		return fmt.Errorf("vips export: %w", err)
	}

	logging.Info("rendered %s via tolerant fallback (q%d)", filepath.Base(src), qualityTolerant)

	return writeFileAtomic(dst, encoded)
}

// thumbSize returns the target bounding box for a source of the given
// size: width capped at ImageThumbWidth, height following the aspect
// ratio. Sources already narrower than the cap keep their size.
func thumbSize(origWidth, origHeight int) (int, int) {
	if origWidth <= ImageThumbWidth || origWidth <= 0 || origHeight <= 0 {
		return origWidth, origHeight
	}
	h := origHeight * ImageThumbWidth / origWidth
	if h < 1 {
		h = 1
	}
	return ImageThumbWidth, h
}

// writeFileAtomic writes data to path via a temp file and rename, so a
// concurrent reader never sees a partial thumbnail.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create thumbnail directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			logging.Warn("failed to remove temp thumbnail %s: %v", tmp, rmErr)
		}
		return fmt.Errorf("publish thumbnail: %w", err)
	}
	return nil
}
