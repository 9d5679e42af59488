package middleware

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// DefaultRequestTimeout leaves room for one extraction call plus the catalog search.
const DefaultRequestTimeout = 45 * time.Second

// Timeout answers 503 with the error envelope when a turn overruns, and
// cancels the request context so the extractor call is abandoned.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	body, _ := json.Marshal(ErrorResponse{
		Error:   http.StatusText(http.StatusServiceUnavailable),
		Message: "Request timed out",
	})
	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			th.ServeHTTP(&timeoutWriter{ResponseWriter: w}, r)
		})
	}
}

// timeoutWriter labels the TimeoutHandler's 503 body as JSON. Responses the
// handler completed keep the headers it set.
type timeoutWriter struct {
	http.ResponseWriter
}

func (tw *timeoutWriter) WriteHeader(code int) {
	if code == http.StatusServiceUnavailable && tw.Header().Get("Content-Type") == "" {
		tw.Header().Set("Content-Type", "application/json")
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}
