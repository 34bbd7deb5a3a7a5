package media

import (
	"context"
	"image/color"
	"math"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestParseProbeOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		json    string
		want    VideoInfo
		wantErr bool
	}{
		{
			name: "video with audio stream",
			json: `{
				"streams": [
					{"codec_type": "audio", "codec_name": "aac"},
					{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080}
				],
				"format": {"duration": "30.500000"}
			}`,
			want: VideoInfo{Width: 1920, Height: 1080, Duration: 30.5, Codec: "h264"},
		},
		{
			name: "codec from first video stream, dimensions from first sized one",
			json: `{
				"streams": [
					{"codec_type": "video", "codec_name": "hevc", "width": 0, "height": 0},
					{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720}
				],
				"format": {}
			}`,
			want: VideoInfo{Width: 1280, Height: 720, Codec: "hevc"},
		},
		{
			name: "first video stream wins",
			json: `{
				"streams": [
					{"codec_type": "video", "width": 1280, "height": 720},
					{"codec_type": "video", "width": 640, "height": 360}
				],
				"format": {"duration": "5"}
			}`,
			want: VideoInfo{Width: 1280, Height: 720, Duration: 5},
		},
		{
			name: "missing duration stays zero",
			json: `{"streams": [{"codec_type": "video", "width": 640, "height": 480}], "format": {}}`,
			want: VideoInfo{Width: 640, Height: 480},
		},
		{
			name: "unparseable duration stays zero",
			json: `{"streams": [{"codec_type": "video", "width": 640, "height": 480}], "format": {"duration": "N/A"}}`,
			want: VideoInfo{Width: 640, Height: 480},
		},
		{
			name: "no video stream",
			json: `{"streams": [{"codec_type": "audio"}], "format": {"duration": "12.0"}}`,
			want: VideoInfo{Duration: 12},
		},
		{
			name: "zero-size video stream skipped",
			json: `{"streams": [{"codec_type": "video", "width": 0, "height": 0}], "format": {}}`,
			want: VideoInfo{},
		},
		{
			name:    "malformed json",
			json:    `{"streams": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseProbeOutput([]byte(tt.json))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseProbeOutput() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseProbeOutput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFrameScoreUniformIsZero(t *testing.T) {
	t.Parallel()

	flat := imaging.New(64, 64, color.NRGBA{R: 100, G: 150, B: 200, A: 255})
	if score := frameScore(flat); score != 0 {
		t.Errorf("uniform frame score = %f, want 0", score)
	}
}

func TestFrameScorePrefersVariance(t *testing.T) {
	t.Parallel()

	// Left half black, right half white: stddev 127.5 per channel.
	split := imaging.New(64, 64, color.NRGBA{A: 255})
	for y := 0; y < 64; y++ {
		for x := 32; x < 64; x++ {
			split.Set(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	score := frameScore(split)
	want := 3 * 127.5
	if math.Abs(score-want) > 1.0 {
		t.Errorf("split frame score = %f, want ~%f", score, want)
	}

	flat := imaging.New(64, 64, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	if frameScore(flat) >= score {
		t.Error("flat frame should score below a high-contrast frame")
	}
}

func TestFrameScoreEmptyImage(t *testing.T) {
	t.Parallel()

	empty := imaging.New(0, 0, color.NRGBA{})
	if score := frameScore(empty); score != 0 {
		t.Errorf("empty frame score = %f, want 0", score)
	}
}

func TestProbeVideoMissingFile(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available in test environment")
	}

	_, err := ProbeVideo(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRenderVideoThumbIfAvailable(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available in test environment")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available in test environment")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	dst := filepath.Join(dir, "thumbs", "clip.jpg")

	// Synthesize a 3s test clip.
	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=3:size=640x360:rate=10",
		"-pix_fmt", "yuv420p",
		"-y", src,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not synthesize test clip: %v (%s)", err, out)
	}

	if err := RenderVideoThumb(context.Background(), src, dst); err != nil {
		t.Fatalf("RenderVideoThumb() error = %v", err)
	}

	thumb, err := imaging.Open(dst)
	if err != nil {
		t.Fatalf("thumbnail does not decode: %v", err)
	}
	if w := thumb.Bounds().Dx(); w > VideoThumbWidth {
		t.Errorf("thumbnail width = %d, want <= %d", w, VideoThumbWidth)
	}
}

func TestRenderVideoThumbNotAVideo(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available in test environment")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "fake.mp4")
	writeTestFile(t, src, []byte("this is not a video container"))

	if err := RenderVideoThumb(context.Background(), src, filepath.Join(dir, "fake.jpg")); err == nil {
		t.Fatal("expected error for undecodable input")
	}
}
