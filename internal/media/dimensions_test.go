package media

import (
	"context"
	"image/color"
	"path/filepath"
	"testing"

	"media-gallery/internal/mediatypes"
)

func TestImageDimensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	jpg := filepath.Join(dir, "photo.jpg")
	writeTestJPEG(t, jpg, 320, 240)

	png := filepath.Join(dir, "graphic.png")
	writeTestPNG(t, png, 48, 96, color.NRGBA{R: 255, A: 255})

	tests := []struct {
		name string
		path string
		want Dimensions
	}{
		{"jpeg header", jpg, Dimensions{Width: 320, Height: 240}},
		{"png header", png, Dimensions{Width: 48, Height: 96}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImageDimensions(tt.path)
			if err != nil {
				t.Fatalf("ImageDimensions() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ImageDimensions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestImageDimensionsErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if _, err := ImageDimensions(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}

	garbage := filepath.Join(dir, "garbage.jpg")
	writeTestFile(t, garbage, []byte("not an image at all"))
	if _, err := ImageDimensions(garbage); err == nil {
		t.Error("expected error for undecodable file")
	}
}

func TestProbeDimensionsFallsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		typ  mediatypes.ItemType
	}{
		{"missing photo", filepath.Join(dir, "gone.jpg"), mediatypes.TypePhoto},
		{"missing video", filepath.Join(dir, "gone.mp4"), mediatypes.TypeVideo},
		{"non-media type", filepath.Join(dir, "notes.txt"), mediatypes.TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProbeDimensions(ctx, tt.path, tt.typ); got != FallbackDimensions {
				t.Errorf("ProbeDimensions() = %+v, want fallback %+v", got, FallbackDimensions)
			}
		})
	}
}

func TestProbeDimensionsReadsPhotos(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jpg := filepath.Join(dir, "photo.jpg")
	writeTestJPEG(t, jpg, 640, 480)

	got := ProbeDimensions(context.Background(), jpg, mediatypes.TypePhoto)
	want := Dimensions{Width: 640, Height: 480}
	if got != want {
		t.Errorf("ProbeDimensions() = %+v, want %+v", got, want)
	}
}
