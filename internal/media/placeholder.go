package media

import (
	"bytes"
	"image/color"
	"sync"

	"media-gallery/internal/logging"

	"github.com/disintegration/imaging"
)

// PlaceholderContentType is the MIME type of placeholder bytes.
const PlaceholderContentType = "image/png"

// Placeholders stand in for thumbnails the engine has not produced:
// a neutral tile while generation is queued, a darker one when the
// source failed permanently. Both are rendered once and cached.
var (
	processingOnce  sync.Once
	processingBytes []byte

	brokenOnce  sync.Once
	brokenBytes []byte
)

// PlaceholderProcessing returns the tile served with 202 while a
// thumbnail is still being generated.
func PlaceholderProcessing() []byte {
	processingOnce.Do(func() {
		processingBytes = renderPlaceholder(color.NRGBA{R: 0xe2, G: 0xe2, B: 0xe2, A: 0xff})
	})
	return processingBytes
}

// PlaceholderBroken returns the tile served when thumbnail generation
// failed permanently.
func PlaceholderBroken() []byte {
	brokenOnce.Do(func() {
		brokenBytes = renderPlaceholder(color.NRGBA{R: 0x4a, G: 0x4a, B: 0x4a, A: 0xff})
	})
	return brokenBytes
}

func renderPlaceholder(fill color.NRGBA) []byte {
	img := imaging.New(ImageThumbWidth, ImageThumbWidth, fill)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		// Encoding an in-memory NRGBA to PNG cannot realistically fail;
		// log and serve empty rather than panic in a request path.
		logging.Error("placeholder encode failed: %v", err)
		return nil
	}
	return buf.Bytes()
}
