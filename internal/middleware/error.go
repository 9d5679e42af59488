package middleware

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/smart-autotrader/internal/logger"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrorResponse mirrors the failure envelope the chat handlers write.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ErrorHandler turns a handler panic into a 500 envelope. http.ErrAbortHandler
// is re-raised so net/http can drop the connection.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic_recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.Stack("stack"),
				)
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func respondErrorJSON(w http.ResponseWriter, r *http.Request, status int, errorType, message string, logger *zap.Logger) {
	body, err := json.Marshal(ErrorResponse{
		Error:     errorType,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		if logger != nil {
			logger.Error("error_envelope_marshal_failed", zap.Error(err), zap.Int("status_code", status))
		}
		http.Error(w, errorType, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil && logger != nil {
		logger.Debug("error_envelope_write_failed",
			zap.Error(err),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
		)
	}
}
