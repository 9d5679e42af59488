package middleware

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/smart-autotrader/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging writes one http_request entry per request. Server errors log at
// error level, client errors at warn, and health probes drop to debug.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Check(requestLevel(r, rec.statusCode), "http_request").Write(
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.Int("status_code", rec.statusCode),
				zap.Int("bytes", rec.written),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func requestLevel(r *http.Request, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case r.URL.Path == "/healthz":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// responseWriter records the status and body size for Logging and Audit.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
