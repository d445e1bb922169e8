package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/warden/pkg/telemetry/logging"
)

// Recorder receives one observation per completed request.
type Recorder interface {
	RecordRequest(method string, code int, d time.Duration)
}

type responseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.status = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logging logs every completed request and reports it to recorder, which
// may be nil. The user named by userHeader is added to the context.
func Logging(logger *slog.Logger, recorder Recorder, userHeader string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if user := r.Header.Get(userHeader); user != "" {
				ctx = logging.WithUser(ctx, user)
			}

			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))
			elapsed := time.Since(start)

			level := slog.LevelInfo
			switch {
			case rw.status >= 500:
				level = slog.LevelError
			case rw.status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"latency_ms", elapsed.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)

			if recorder != nil {
				recorder.RecordRequest(r.Method, rw.status, elapsed)
			}
		})
	}
}
