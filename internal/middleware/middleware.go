package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"twig/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statusRecorder remembers what reached the client for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

type Middleware func(http.Handler) http.Handler

// Chain wraps h so the last middleware listed runs first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}

// RequestID tags the request context and response with a fresh uuid,
// reusing a valid X-Request-ID sent by the client.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), logging.RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger writes one access-log entry per request. Client errors log at
// warn, server errors at error, everything else at debug.
func Logger(logger *logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			fields := []zap.Field{
				zap.String("route", r.Method+" "+r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Duration("elapsed", time.Since(start)),
			}
			if enc := rec.Header().Get("Content-Encoding"); enc != "" {
				fields = append(fields, zap.String("encoding", enc))
			}

			log := logger.WithRequestID(r.Context())
			switch {
			case rec.status >= http.StatusInternalServerError:
				log.Error("request failed", fields...)
			case rec.status >= http.StatusBadRequest:
				log.Warn("request rejected", fields...)
			default:
				log.Debug("request served", fields...)
			}
		})
	}
}

// Recover turns a handler panic into a 500 with a JSON body carrying the
// request id, unless the handler already started its response.
func Recover(logger *logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.WithRequestID(r.Context()).Error("handler panicked",
					zap.Any("panic", p),
					zap.String("route", r.Method+" "+r.URL.Path),
					zap.Stack("stack"),
				)
				if rec.wroteHeader {
					return
				}
				requestID, _ := r.Context().Value(logging.RequestIDKey).(string)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{
					"message":    "internal error",
					"request_id": requestID,
				})
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
