package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"media-gallery/internal/logging"
)

// CompressionConfig tunes the gzip middleware.
type CompressionConfig struct {
	// MinSize is the smallest body worth compressing. Responses below it
	// go out verbatim.
	MinSize int
	// Level is passed to gzip.NewWriterLevel.
	Level int
	// CompressibleTypes lists media types (no parameters) to compress.
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses text and JSON from 1 KiB up.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"text/html",
			"text/css",
			"text/plain",
			"text/javascript",
			"application/json",
			"application/javascript",
			"image/svg+xml",
		},
	}
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

// gzipWriter buffers the response until it knows whether compression is
// worth it: the body must reach MinSize and carry a compressible
// Content-Type. Until then WriteHeader is deferred, since the encoding
// headers have to go out first.
type gzipWriter struct {
	http.ResponseWriter
	cfg        CompressionConfig
	gz         *gzip.Writer
	buf        []byte
	statusCode int
	decided    bool
	compress   bool
}

func newGzipWriter(w http.ResponseWriter, cfg CompressionConfig) *gzipWriter {
	return &gzipWriter{
		ResponseWriter: w,
		cfg:            cfg,
		statusCode:     http.StatusOK,
		buf:            make([]byte, 0, cfg.MinSize+1),
	}
}

func (g *gzipWriter) WriteHeader(statusCode int) {
	if !g.decided {
		g.statusCode = statusCode
	}
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	if g.decided {
		if g.compress {
			return g.gz.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buf = append(g.buf, data...)
	if len(g.buf) > g.cfg.MinSize {
		g.decide()
	}
	return len(data), nil
}

// decide commits: either start the gzip stream or flush the buffer raw.
func (g *gzipWriter) decide() {
	if g.decided {
		return
	}
	g.decided = true
	g.compress = len(g.buf) >= g.cfg.MinSize && g.compressibleType()

	if g.compress {
		g.Header().Del("Content-Length")
		g.Header().Set("Content-Encoding", "gzip")
		g.Header().Add("Vary", "Accept-Encoding")

		g.gz = gzipWriterPool.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
		g.ResponseWriter.WriteHeader(g.statusCode)
		if _, err := g.gz.Write(g.buf); err != nil {
			logging.Debug("gzip write failed: %v", err)
		}
	} else {
		g.ResponseWriter.WriteHeader(g.statusCode)
		if _, err := g.ResponseWriter.Write(g.buf); err != nil {
			logging.Debug("response write failed: %v", err)
		}
	}
	g.buf = nil
}

func (g *gzipWriter) compressibleType() bool {
	ct := g.Header().Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	for _, c := range g.cfg.CompressibleTypes {
		if mediaType == c {
			return true
		}
	}
	return false
}

// Close flushes the decision and returns the writer to the pool.
func (g *gzipWriter) Close() error {
	if !g.decided {
		g.decide()
	}
	if g.gz != nil {
		err := g.gz.Close()
		gzipWriterPool.Put(g.gz)
		g.gz = nil
		return err
	}
	return nil
}

func (g *gzipWriter) Flush() {
	if !g.decided {
		g.decide()
	}
	if g.gz != nil {
		if err := g.gz.Flush(); err != nil {
			logging.Debug("gzip flush failed: %v", err)
		}
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compression gzips eligible responses. Event streams and protocol
// upgrades bypass it entirely; buffering would break both.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") ||
				r.Header.Get("Upgrade") != "" ||
				r.Header.Get("Accept") == "text/event-stream" {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipWriter(w, config)
			defer func() {
				if err := gzw.Close(); err != nil {
					logging.Debug("gzip close failed: %v", err)
				}
			}()
			next.ServeHTTP(gzw, r)
		})
	}
}
