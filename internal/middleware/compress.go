package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressionOptions configures response compression
type CompressionOptions struct {
	// Minimum body size in bytes before compressing; 0 disables compression.
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   2,
	}
}

type bufferedWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(status int) {
	w.status = status
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Compress zstd-encodes response bodies for clients that send
// "Accept-Encoding: zstd". Bodies below MinSize, or that do not shrink,
// go out unchanged.
func Compress(opts CompressionOptions) Middleware {
	if opts.Level <= 0 {
		opts.Level = DefaultCompressionOptions().Level
	}
	level := zstd.EncoderLevelFromZstd(opts.Level)

	encoders := &sync.Pool{
		New: func() interface{} {
			enc, _ := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(level),
				zstd.WithEncoderConcurrency(1),
			)
			return enc
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.MinSize <= 0 || !acceptsZstd(r) {
				next.ServeHTTP(w, r)
				return
			}

			bw := &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(bw, r)

			body := bw.buf.Bytes()
			w.Header().Add("Vary", "Accept-Encoding")
			if len(body) >= opts.MinSize {
				if enc, ok := encoders.Get().(*zstd.Encoder); ok && enc != nil {
					out := enc.EncodeAll(body, make([]byte, 0, len(body)/2))
					encoders.Put(enc)
					if len(out) < len(body) {
						body = out
						w.Header().Set("Content-Encoding", "zstd")
					}
				}
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(bw.status)
			w.Write(body)
		})
	}
}

func acceptsZstd(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(coding, "zstd") {
			return true
		}
	}
	return false
}
